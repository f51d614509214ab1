package domain

import "time"

// MembershipStatus is the administrative state of a membership row.
type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "pending"
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipCancelled MembershipStatus = "cancelled"
)

// Plan is a billing period a membership can be renewed for.
type Plan string

const (
	PlanMonthly   Plan = "monthly"
	PlanQuarterly Plan = "quarterly"
	PlanYearly    Plan = "yearly"
)

// Months returns the number of months covered by p, or 0 for an unknown plan.
func (p Plan) Months() int {
	switch p {
	case PlanMonthly:
		return 1
	case PlanQuarterly:
		return 3
	case PlanYearly:
		return 12
	}
	return 0
}

// Membership is a user's subscription to the mess.
type Membership struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Plan       Plan             `json:"plan"`
	Status     MembershipStatus `json:"status"`
	StartDate  time.Time        `json:"start_date"`
	ExpiryDate time.Time        `json:"expiry_date"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IsActive reports whether m is marked active and now is before its expiry.
// A nil membership is never active.
func (m *Membership) IsActive(now time.Time) bool {
	if m == nil {
		return false
	}
	return m.Status == MembershipActive && now.Before(m.ExpiryDate)
}

// IsExpired reports whether m has lapsed at now. A nil membership counts as
// expired.
func (m *Membership) IsExpired(now time.Time) bool {
	if m == nil {
		return true
	}
	return m.Status == MembershipExpired || !now.Before(m.ExpiryDate)
}

// DaysLeft returns the whole days remaining before expiry, never negative.
func (m *Membership) DaysLeft(now time.Time) int {
	if m == nil || !now.Before(m.ExpiryDate) {
		return 0
	}
	return int(m.ExpiryDate.Sub(now) / (24 * time.Hour))
}

// RenewalStatus tracks an admin's answer to a renewal request.
type RenewalStatus string

const (
	RenewalPending  RenewalStatus = "pending"
	RenewalApproved RenewalStatus = "approved"
	RenewalRejected RenewalStatus = "rejected"
)

// RenewalRequest asks an admin to extend a membership.
type RenewalRequest struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	MembershipID string        `json:"membership_id,omitempty"`
	Plan         Plan          `json:"plan"`
	Status       RenewalStatus `json:"status"`
	Note         string        `json:"note,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// RenewalInput is the user-supplied part of a renewal request.
type RenewalInput struct {
	Plan Plan   `json:"plan" validate:"required,oneof=monthly quarterly yearly"`
	Note string `json:"note" validate:"max=280"`
}
