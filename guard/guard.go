package guard

import (
	"slices"

	"github.com/MrEthical07/messpass/session"
)

// Kind is the outcome class of a Decision.
type Kind uint8

const (
	Loading Kind = iota
	Redirect
	Allow
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Allow:
		return "allow"
	}
	return "unknown"
}

// Reason names the rule that produced a Decision.
type Reason string

const (
	ReasonAuthPending       Reason = "auth_pending"
	ReasonMembershipPending Reason = "membership_pending"
	ReasonUnauthenticated   Reason = "unauthenticated"
	ReasonRoleNotAllowed    Reason = "role_not_allowed"
	ReasonMembershipExpired Reason = "membership_inactive"
	ReasonAllowed           Reason = "allowed"
)

// Decision is the guard outcome. Path is set only for Redirect.
type Decision struct {
	Kind   Kind
	Path   string
	Reason Reason
}

func (d Decision) String() string {
	if d.Kind == Redirect {
		return "redirect(" + d.Path + ")"
	}
	return d.Kind.String()
}

// Options configures the guard for one protected subtree.
type Options struct {
	RequireAuth       bool
	RequireMembership bool
	// AllowedRoles restricts access; empty means any role.
	AllowedRoles []session.Role
}

// DefaultOptions requires authentication only.
func DefaultOptions() Options {
	return Options{RequireAuth: true}
}

// Snapshot is the state a decision is computed from.
type Snapshot struct {
	AuthInitialized       bool
	Authenticated         bool
	User                  *session.User
	MembershipInitialized bool
	MembershipActive      bool
}

// Paths are the redirect targets.
type Paths struct {
	SignIn      string
	MemberHome  string
	AdminHome   string
	RegularHome string
	Root        string
	Renewal     string
}

// DefaultPaths returns the stock route table.
func DefaultPaths() Paths {
	return Paths{
		SignIn:      "/signin",
		MemberHome:  "/(member)/(tabs)/home",
		AdminHome:   "/(admin)/dashboard",
		RegularHome: "/(regular)/(tabs)/home",
		Root:        "/",
		Renewal:     "/(member)/renewal",
	}
}

// HomeFor returns the landing path of role, or Root for an unset or
// unrecognized role.
func (p Paths) HomeFor(role session.Role) string {
	switch role {
	case session.RoleMember:
		return p.MemberHome
	case session.RoleAdmin:
		return p.AdminHome
	case session.RoleRegular:
		return p.RegularHome
	default:
		return p.Root
	}
}

// Decide applies opts to s using the default paths.
func Decide(opts Options, s Snapshot) Decision {
	return DefaultPaths().Decide(opts, s)
}

// Decide applies opts to s.
func (p Paths) Decide(opts Options, s Snapshot) Decision {
	if !s.AuthInitialized {
		return Decision{Kind: Loading, Reason: ReasonAuthPending}
	}
	if opts.RequireMembership && !s.MembershipInitialized {
		return Decision{Kind: Loading, Reason: ReasonMembershipPending}
	}

	if opts.RequireAuth && !s.Authenticated {
		return Decision{Kind: Redirect, Path: p.SignIn, Reason: ReasonUnauthenticated}
	}

	if len(opts.AllowedRoles) > 0 && (s.User == nil || !slices.Contains(opts.AllowedRoles, s.User.Role)) {
		var role session.Role
		if s.User != nil {
			role = s.User.Role
		}
		return Decision{Kind: Redirect, Path: p.HomeFor(role), Reason: ReasonRoleNotAllowed}
	}

	if opts.RequireMembership && !s.MembershipActive {
		return Decision{Kind: Redirect, Path: p.Renewal, Reason: ReasonMembershipExpired}
	}

	return Decision{Kind: Allow, Reason: ReasonAllowed}
}
