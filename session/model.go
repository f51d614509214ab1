package session

import "time"

// Role selects which route subtrees a user can reach.
type Role string

const (
	RoleMember  Role = "member"
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// Roles lists every recognized role.
var Roles = []Role{RoleMember, RoleAdmin, RoleRegular}

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleRegular:
		return true
	}
	return false
}

// ParseRole converts s to a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// User is the identity attached to a session.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an authenticated identity issued by the session provider.
//
// Session values are replaced, never mutated, once handed to a store.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         User      `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether s is absent or past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

// Clone returns a copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
