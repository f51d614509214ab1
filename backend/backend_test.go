package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.SetClock(func() time.Time { return testNow })
	m.Seed(testNow, "member-1")
	return m
}

func TestMemorySeed(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	ms, err := m.GetMembership(ctx, "member-1")
	require.NoError(t, err)
	assert.True(t, ms.IsActive(testNow))

	_, err = m.GetMembership(ctx, "nobody")
	assert.ErrorIs(t, err, fault.ErrNotFound)

	meals, err := m.ListMeals(ctx, testNow, testNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, meals, 6)
	for i := 1; i < len(meals); i++ {
		assert.False(t, meals[i].Day.Before(meals[i-1].Day))
	}

	closures, err := m.ListClosures(ctx)
	require.NoError(t, err)
	assert.Len(t, closures, 1)
}

func TestMemoryRatings(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	meals, err := m.ListMeals(ctx, testNow, testNow)
	require.NoError(t, err)

	r, err := m.CreateRating(ctx, "member-1", domain.RatingInput{MealID: meals[0].ID, Score: 5})
	require.NoError(t, err)
	assert.Equal(t, testNow, r.CreatedAt)

	_, err = m.CreateRating(ctx, "member-1", domain.RatingInput{MealID: meals[0].ID, Score: 4})
	assert.ErrorIs(t, err, fault.ErrConflict)

	_, err = m.CreateRating(ctx, "member-1", domain.RatingInput{MealID: "missing", Score: 4})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	ratings, err := m.ListRatings(ctx, "member-1")
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
}

func TestMemoryAbsences(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	from := testNow.AddDate(0, 0, 2)

	a, err := m.CreateAbsence(ctx, "member-1", domain.AbsenceInput{From: from, To: from.AddDate(0, 0, 2)})
	require.NoError(t, err)

	_, err = m.CreateAbsence(ctx, "member-1", domain.AbsenceInput{From: from.AddDate(0, 0, 1), To: from.AddDate(0, 0, 5)})
	assert.ErrorIs(t, err, fault.ErrConflict)

	cancelled, err := m.CancelAbsence(ctx, "member-1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AbsenceCancelled, cancelled.Status)

	_, err = m.CreateAbsence(ctx, "member-1", domain.AbsenceInput{From: from.AddDate(0, 0, 1), To: from.AddDate(0, 0, 5)})
	assert.NoError(t, err)

	_, err = m.CancelAbsence(ctx, "someone-else", a.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestMemoryRenewalConflict(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	req, err := m.CreateRenewal(ctx, "member-1", domain.RenewalInput{Plan: domain.PlanYearly})
	require.NoError(t, err)
	assert.Equal(t, domain.RenewalPending, req.Status)
	assert.NotEmpty(t, req.MembershipID)

	_, err = m.CreateRenewal(ctx, "member-1", domain.RenewalInput{Plan: domain.PlanMonthly})
	assert.ErrorIs(t, err, fault.ErrConflict)
}

func TestMemoryFailureInjection(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	m.FailNext(MethodPing, boom)
	assert.ErrorIs(t, m.Ping(ctx), boom)
	assert.NoError(t, m.Ping(ctx))
	assert.Equal(t, 2, m.Calls(MethodPing))

	m.SetOffline(true)
	assert.ErrorIs(t, m.Ping(ctx), fault.ErrNetwork)
	m.SetOffline(false)
	assert.NoError(t, m.Ping(ctx))
}

func TestMemoryLatencyHonorsContext(t *testing.T) {
	m := seeded(t)
	m.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.ListClosures(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	m := seeded(t)
	logger, hook := logtest.NewNullLogger()
	var transitions []bool
	b := WithBreaker(m, BreakerConfig{
		Name:                "test",
		MaxRequests:         1,
		Timeout:             time.Hour,
		ConsecutiveFailures: 2,
	}, logger, func(online bool) { transitions = append(transitions, online) })
	ctx := context.Background()

	m.SetOffline(true)
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Ping(ctx), fault.ErrNetwork)
	}
	assert.True(t, b.Open())
	assert.Equal(t, []bool{false}, transitions)
	require.NotEmpty(t, hook.Entries)

	m.SetOffline(false)
	before := m.Calls(MethodGetMembership)
	_, err := b.GetMembership(ctx, "member-1")
	assert.ErrorIs(t, err, fault.ErrOffline)
	assert.Equal(t, before, m.Calls(MethodGetMembership), "open breaker must not reach the backend")
}

func TestBreakerIgnoresDomainErrors(t *testing.T) {
	m := seeded(t)
	b := WithBreaker(m, BreakerConfig{Name: "test", Timeout: time.Hour, ConsecutiveFailures: 1}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.GetMembership(ctx, "nobody")
		assert.ErrorIs(t, err, fault.ErrNotFound)
	}
	assert.False(t, b.Open())

	ms, err := b.GetMembership(ctx, "member-1")
	require.NoError(t, err)
	assert.Equal(t, "member-1", ms.UserID)
}
