package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
)

// Method names accepted by Memory.FailNext.
const (
	MethodPing           = "Ping"
	MethodGetMembership  = "GetMembership"
	MethodListRenewals   = "ListRenewals"
	MethodCreateRenewal  = "CreateRenewal"
	MethodListMeals      = "ListMeals"
	MethodListMealPasses = "ListMealPasses"
	MethodListClosures   = "ListClosures"
	MethodListRatings    = "ListRatings"
	MethodCreateRating   = "CreateRating"
	MethodListAbsences   = "ListAbsences"
	MethodCreateAbsence  = "CreateAbsence"
	MethodCancelAbsence  = "CancelAbsence"
)

// Memory is an in-process API. The zero value is not usable; call NewMemory.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	latency     time.Duration
	offline     bool
	failures    map[string][]error
	calls       map[string]int
	memberships map[string]domain.Membership
	renewals    []domain.RenewalRequest
	meals       []domain.Meal
	passes      []domain.MealPass
	closures    []domain.MessClosure
	ratings     []domain.Rating
	absences    []domain.Absence
}

var _ API = (*Memory)(nil)

// NewMemory returns an empty backend.
func NewMemory() *Memory {
	return &Memory{
		now:         time.Now,
		failures:    make(map[string][]error),
		calls:       make(map[string]int),
		memberships: make(map[string]domain.Membership),
	}
}

// SetClock replaces the time source used for timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// SetLatency delays every call by d, or until the caller's context ends.
func (m *Memory) SetLatency(d time.Duration) {
	m.mu.Lock()
	m.latency = d
	m.mu.Unlock()
}

// SetOffline makes every call fail with fault.ErrNetwork.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	m.offline = offline
	m.mu.Unlock()
}

// FailNext queues err as the result of the next call to method.
func (m *Memory) FailNext(method string, err error) {
	m.mu.Lock()
	m.failures[method] = append(m.failures[method], err)
	m.mu.Unlock()
}

// Calls returns how often method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// PutMembership stores or replaces a user's membership.
func (m *Memory) PutMembership(ms domain.Membership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms.ID == "" {
		ms.ID = uuid.NewString()
	}
	m.memberships[ms.UserID] = ms
}

// AddMeals appends menu entries.
func (m *Memory) AddMeals(meals ...domain.Meal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, meal := range meals {
		if meal.ID == "" {
			meal.ID = uuid.NewString()
		}
		m.meals = append(m.meals, meal)
	}
}

// AddClosure appends a closure.
func (m *Memory) AddClosure(c domain.MessClosure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.closures = append(m.closures, c)
}

// AddPass appends a meal pass.
func (m *Memory) AddPass(p domain.MealPass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Code == "" {
		p.Code = uuid.NewString()[:8]
	}
	m.passes = append(m.passes, p)
}

// Seed fills the backend with a week of meals starting at now, a closure
// and an active monthly membership for each of memberIDs.
func (m *Memory) Seed(now time.Time, memberIDs ...string) {
	today := domain.Day(now)
	menu := map[domain.MealType][]string{
		domain.Breakfast: {"Poha", "Tea"},
		domain.Lunch:     {"Dal", "Rice", "Roti", "Sabzi"},
		domain.Dinner:    {"Paneer curry", "Roti", "Kheer"},
	}
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, i)
		for _, t := range domain.MealTypes {
			m.AddMeals(domain.Meal{Day: day, Type: t, Items: menu[t]})
		}
	}
	m.AddClosure(domain.MessClosure{
		From:   today.AddDate(0, 0, 10),
		To:     today.AddDate(0, 0, 11),
		Reason: "Maintenance",
	})
	for _, id := range memberIDs {
		m.PutMembership(domain.Membership{
			UserID:     id,
			Plan:       domain.PlanMonthly,
			Status:     domain.MembershipActive,
			StartDate:  today,
			ExpiryDate: today.AddDate(0, domain.PlanMonthly.Months(), 0),
			UpdatedAt:  now,
		})
	}
}

// enter records the call, applies latency and injected failures. It returns
// with m.mu held on success.
func (m *Memory) enter(ctx context.Context, method string) error {
	m.mu.Lock()
	m.calls[method]++
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.offline {
		m.mu.Unlock()
		return fault.Wrap(fault.KindNetwork, errors.New("backend unreachable"))
	}
	if q := m.failures[method]; len(q) > 0 {
		err := q[0]
		m.failures[method] = q[1:]
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	if err := m.enter(ctx, MethodPing); err != nil {
		return err
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetMembership(ctx context.Context, userID string) (*domain.Membership, error) {
	if err := m.enter(ctx, MethodGetMembership); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	ms, ok := m.memberships[userID]
	if !ok {
		return nil, fault.Wrap(fault.KindNotFound, fmt.Errorf("membership for %s", userID))
	}
	return &ms, nil
}

func (m *Memory) ListRenewals(ctx context.Context, userID string) ([]domain.RenewalRequest, error) {
	if err := m.enter(ctx, MethodListRenewals); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return filter(m.renewals, func(r domain.RenewalRequest) bool { return r.UserID == userID }), nil
}

func (m *Memory) CreateRenewal(ctx context.Context, userID string, in domain.RenewalInput) (domain.RenewalRequest, error) {
	if err := m.enter(ctx, MethodCreateRenewal); err != nil {
		return domain.RenewalRequest{}, err
	}
	defer m.mu.Unlock()

	for _, r := range m.renewals {
		if r.UserID == userID && r.Status == domain.RenewalPending {
			return domain.RenewalRequest{}, fault.Wrap(fault.KindConflict, errors.New("a renewal request is already pending"))
		}
	}
	req := domain.RenewalRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Plan:      in.Plan,
		Status:    domain.RenewalPending,
		Note:      in.Note,
		CreatedAt: m.now(),
	}
	if ms, ok := m.memberships[userID]; ok {
		req.MembershipID = ms.ID
	}
	m.renewals = append(m.renewals, req)
	return req, nil
}

func (m *Memory) ListMeals(ctx context.Context, from, to time.Time) ([]domain.Meal, error) {
	if err := m.enter(ctx, MethodListMeals); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	out := filter(m.meals, func(meal domain.Meal) bool {
		d := domain.Day(meal.Day)
		return !d.Before(domain.Day(from)) && !d.After(domain.Day(to))
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *Memory) ListMealPasses(ctx context.Context, userID string) ([]domain.MealPass, error) {
	if err := m.enter(ctx, MethodListMealPasses); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return filter(m.passes, func(p domain.MealPass) bool { return p.UserID == userID }), nil
}

func (m *Memory) ListClosures(ctx context.Context) ([]domain.MessClosure, error) {
	if err := m.enter(ctx, MethodListClosures); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return append([]domain.MessClosure(nil), m.closures...), nil
}

func (m *Memory) ListRatings(ctx context.Context, userID string) ([]domain.Rating, error) {
	if err := m.enter(ctx, MethodListRatings); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return filter(m.ratings, func(r domain.Rating) bool { return r.UserID == userID }), nil
}

func (m *Memory) CreateRating(ctx context.Context, userID string, in domain.RatingInput) (domain.Rating, error) {
	if err := m.enter(ctx, MethodCreateRating); err != nil {
		return domain.Rating{}, err
	}
	defer m.mu.Unlock()

	found := false
	for _, meal := range m.meals {
		if meal.ID == in.MealID {
			found = true
			break
		}
	}
	if !found {
		return domain.Rating{}, fault.Wrap(fault.KindNotFound, fmt.Errorf("meal %s", in.MealID))
	}
	for _, r := range m.ratings {
		if r.UserID == userID && r.MealID == in.MealID {
			return domain.Rating{}, fault.Wrap(fault.KindConflict, errors.New("meal already rated"))
		}
	}
	r := domain.Rating{
		ID:        uuid.NewString(),
		UserID:    userID,
		MealID:    in.MealID,
		Score:     in.Score,
		Comment:   in.Comment,
		CreatedAt: m.now(),
	}
	m.ratings = append(m.ratings, r)
	return r, nil
}

func (m *Memory) ListAbsences(ctx context.Context, userID string) ([]domain.Absence, error) {
	if err := m.enter(ctx, MethodListAbsences); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return filter(m.absences, func(a domain.Absence) bool { return a.UserID == userID }), nil
}

func (m *Memory) CreateAbsence(ctx context.Context, userID string, in domain.AbsenceInput) (domain.Absence, error) {
	if err := m.enter(ctx, MethodCreateAbsence); err != nil {
		return domain.Absence{}, err
	}
	defer m.mu.Unlock()

	for _, a := range m.absences {
		if a.UserID == userID && a.Overlaps(in.From, in.To) {
			return domain.Absence{}, fault.Wrap(fault.KindConflict, errors.New("absence overlaps an existing one"))
		}
	}
	a := domain.Absence{
		ID:        uuid.NewString(),
		UserID:    userID,
		From:      domain.Day(in.From),
		To:        domain.Day(in.To),
		Reason:    in.Reason,
		Status:    domain.AbsenceActive,
		CreatedAt: m.now(),
	}
	m.absences = append(m.absences, a)
	return a, nil
}

func (m *Memory) CancelAbsence(ctx context.Context, userID, absenceID string) (domain.Absence, error) {
	if err := m.enter(ctx, MethodCancelAbsence); err != nil {
		return domain.Absence{}, err
	}
	defer m.mu.Unlock()

	for i, a := range m.absences {
		if a.ID == absenceID && a.UserID == userID {
			a.Status = domain.AbsenceCancelled
			m.absences[i] = a
			return a, nil
		}
	}
	return domain.Absence{}, fault.Wrap(fault.KindNotFound, fmt.Errorf("absence %s", absenceID))
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
