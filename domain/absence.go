package domain

import "time"

type AbsenceStatus string

const (
	AbsenceActive    AbsenceStatus = "active"
	AbsenceCancelled AbsenceStatus = "cancelled"
)

// Absence is a planned span of days a member will not eat at the mess.
// From and To are inclusive days.
type Absence struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	Reason    string        `json:"reason,omitempty"`
	Status    AbsenceStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Overlaps reports whether a is active and shares at least one day with
// [from, to].
func (a Absence) Overlaps(from, to time.Time) bool {
	if a.Status != AbsenceActive {
		return false
	}
	return !Day(a.From).After(Day(to)) && !Day(from).After(Day(a.To))
}

// Days returns the number of days covered, inclusive.
func (a Absence) Days() int {
	return int(Day(a.To).Sub(Day(a.From))/(24*time.Hour)) + 1
}

// AbsenceInput is the user-supplied part of a planned absence.
type AbsenceInput struct {
	From   time.Time `json:"from" validate:"required"`
	To     time.Time `json:"to" validate:"required,gtefield=From"`
	Reason string    `json:"reason" validate:"max=200"`
}
