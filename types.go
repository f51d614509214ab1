package messpass

import (
	"github.com/MrEthical07/messpass/guard"
	"github.com/MrEthical07/messpass/lifecycle"
	"github.com/MrEthical07/messpass/session"
	"github.com/MrEthical07/messpass/stores"
)

type (
	Role         = session.Role
	User         = session.User
	Session      = session.Session
	Decision     = guard.Decision
	GuardOptions = guard.Options
	StoreState   = lifecycle.State
)

const (
	RoleMember  = session.RoleMember
	RoleAdmin   = session.RoleAdmin
	RoleRegular = session.RoleRegular
)

// Registry names of the built-in stores.
const (
	StoreAuth       = stores.AuthStoreName
	StoreMembership = stores.MembershipStoreName
	StoreMeals      = stores.MealsStoreName
	StoreAbsences   = stores.AbsencesStoreName
	StoreNetwork    = stores.NetworkStoreName
)

// userScoped lists the stores reloaded whenever the signed-in user changes.
var userScoped = []string{StoreMembership, StoreMeals, StoreAbsences}

// MemberOnly is the guard option set for member screens that need an
// active subscription.
func MemberOnly() GuardOptions {
	return GuardOptions{RequireAuth: true, RequireMembership: true, AllowedRoles: []Role{RoleMember}}
}

// AdminOnly is the guard option set for admin screens.
func AdminOnly() GuardOptions {
	return GuardOptions{RequireAuth: true, AllowedRoles: []Role{RoleAdmin}}
}

// RegularOnly is the guard option set for pay-per-meal screens.
func RegularOnly() GuardOptions {
	return GuardOptions{RequireAuth: true, AllowedRoles: []Role{RoleRegular}}
}
