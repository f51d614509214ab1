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

// MembershipStoreName is the registry name of the membership store.
const MembershipStoreName = "membership"

// MembershipData is the membership store payload. Membership is nil when
// the user has never subscribed. UserID is the user the data was loaded for.
type MembershipData struct {
	UserID     string
	Membership *domain.Membership
	Renewals   []domain.RenewalRequest
}

// MembershipStatus is the view the access guard consumes.
type MembershipStatus struct {
	IsActive      bool
	IsInitialized bool
}

// Membership holds the signed-in user's subscription.
type Membership struct {
	*Store[MembershipData]
	api backend.API
}

func NewMembership(api backend.API, opts Options) *Membership {
	return &Membership{
		Store: newStore(MembershipStoreName, MembershipData{}, opts),
		api:   api,
	}
}

// Load fetches the membership and renewal history of userID.
func (m *Membership) Load(ctx context.Context, userID string) error {
	return m.Store.Load(ctx, func(ctx context.Context) (Reducer[MembershipData], error) {
		ms, err := m.api.GetMembership(ctx, userID)
		if err != nil && !errors.Is(err, fault.ErrNotFound) {
			return nil, err
		}
		renewals, err := m.api.ListRenewals(ctx, userID)
		if err != nil {
			return nil, err
		}
		return func(MembershipData) MembershipData {
			return MembershipData{UserID: userID, Membership: ms, Renewals: renewals}
		}, nil
	})
}

// RequestRenewal files a renewal request for userID.
func (m *Membership) RequestRenewal(ctx context.Context, userID string, in domain.RenewalInput) error {
	return m.Do(ctx, "request_renewal", func(ctx context.Context) (Reducer[MembershipData], error) {
		if err := validation.Struct(&in); err != nil {
			return nil, err
		}
		req, err := m.api.CreateRenewal(ctx, userID, in)
		if err != nil {
			return nil, err
		}
		return func(cur MembershipData) MembershipData {
			cur.Renewals = appendCopy(cur.Renewals, req)
			return cur
		}, nil
	})
}

// Status derives the guard view at now.
func (m *Membership) Status(now time.Time) MembershipStatus {
	st := m.Snapshot()
	return MembershipStatus{
		IsActive:      st.Data.Membership.IsActive(now),
		IsInitialized: st.Initialized,
	}
}

// LoadedFor returns the user the current data belongs to, or "" after a
// Reset.
func (m *Membership) LoadedFor() string { return m.Snapshot().Data.UserID }

// IsExpired reports whether the membership has lapsed at now. A user
// without a membership counts as expired.
func (m *Membership) IsExpired(now time.Time) bool {
	return m.Snapshot().Data.Membership.IsExpired(now)
}

// PendingRenewal returns the open renewal request, if any.
func (m *Membership) PendingRenewal() (domain.RenewalRequest, bool) {
	for _, r := range m.Snapshot().Data.Renewals {
		if r.Status == domain.RenewalPending {
			return r, true
		}
	}
	return domain.RenewalRequest{}, false
}

// appendCopy appends v to a fresh copy of s so published slices stay
// untouched.
func appendCopy[E any](s []E, v ...E) []E {
	out := make([]E, 0, len(s)+len(v))
	out = append(out, s...)
	return append(out, v...)
}
