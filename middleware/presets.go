package middleware

import (
	"net/http"

	"github.com/MrEthical07/messpass/guard"
	"github.com/MrEthical07/messpass/session"
)

// RequireMember admits members with an active subscription.
func RequireMember(d Decider) func(http.Handler) http.Handler {
	return Guard(d, guard.Options{
		RequireAuth:       true,
		RequireMembership: true,
		AllowedRoles:      []session.Role{session.RoleMember},
	})
}

func RequireAdmin(d Decider) func(http.Handler) http.Handler {
	return Guard(d, guard.Options{RequireAuth: true, AllowedRoles: []session.Role{session.RoleAdmin}})
}

func RequireRegular(d Decider) func(http.Handler) http.Handler {
	return Guard(d, guard.Options{RequireAuth: true, AllowedRoles: []session.Role{session.RoleRegular}})
}
