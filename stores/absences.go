package stores

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/messpass/backend"
	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/fault"
	"github.com/MrEthical07/messpass/validation"
)

// AbsencesStoreName is the registry name of the absences store.
const AbsencesStoreName = "absences"

// ErrAbsenceOverlap is returned when a new absence shares a day with an
// active one.
var ErrAbsenceOverlap = errors.New("absence overlaps an existing absence")

// AbsencesData is the absences store payload.
type AbsencesData struct {
	Items []domain.Absence
}

// Absences holds the user's planned absences.
type Absences struct {
	*Store[AbsencesData]
	api backend.API
}

func NewAbsences(api backend.API, opts Options) *Absences {
	return &Absences{
		Store: newStore(AbsencesStoreName, AbsencesData{}, opts),
		api:   api,
	}
}

func (a *Absences) Load(ctx context.Context, userID string) error {
	return a.Store.Load(ctx, func(ctx context.Context) (Reducer[AbsencesData], error) {
		items, err := a.api.ListAbsences(ctx, userID)
		if err != nil {
			return nil, err
		}
		return func(AbsencesData) AbsencesData { return AbsencesData{Items: items} }, nil
	})
}

// Register plans a new absence. Overlaps with known active absences are
// rejected before the backend is called.
func (a *Absences) Register(ctx context.Context, userID string, in domain.AbsenceInput) error {
	return a.Do(ctx, "register_absence", func(ctx context.Context) (Reducer[AbsencesData], error) {
		if err := validation.Struct(&in); err != nil {
			return nil, err
		}
		for _, existing := range a.Snapshot().Data.Items {
			if existing.Overlaps(in.From, in.To) {
				return nil, fault.Wrap(fault.KindConflict, ErrAbsenceOverlap)
			}
		}
		created, err := a.api.CreateAbsence(ctx, userID, in)
		if err != nil {
			return nil, err
		}
		return func(cur AbsencesData) AbsencesData {
			return AbsencesData{Items: appendCopy(cur.Items, created)}
		}, nil
	})
}

// Cancel withdraws an absence.
func (a *Absences) Cancel(ctx context.Context, userID, absenceID string) error {
	return a.Do(ctx, "cancel_absence", func(ctx context.Context) (Reducer[AbsencesData], error) {
		updated, err := a.api.CancelAbsence(ctx, userID, absenceID)
		if err != nil {
			return nil, err
		}
		return func(cur AbsencesData) AbsencesData {
			items := make([]domain.Absence, len(cur.Items))
			copy(items, cur.Items)
			for i := range items {
				if items[i].ID == updated.ID {
					items[i] = updated
				}
			}
			return AbsencesData{Items: items}
		}, nil
	})
}

// Active returns the active absences that have not ended before now.
func (a *Absences) Active(now time.Time) []domain.Absence {
	today := domain.Day(now)
	var out []domain.Absence
	for _, item := range a.Snapshot().Data.Items {
		if item.Status == domain.AbsenceActive && !domain.Day(item.To).Before(today) {
			out = append(out, item)
		}
	}
	return out
}
