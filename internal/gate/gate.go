// Package gate computes routing decisions for protected views. Decisions are
// plain values produced outside any rendering path, so every gate is a total
// function over the session state and can be tested without a UI harness.
package gate

import (
	"github.com/retinoscan/retinoscan/internal/session"
)

// Known route destinations
const (
	RouteRoot         = "/"
	RouteLogin        = "/login"
	RouteAdmin        = "/admin"
	RouteEspecialista = "/especialista"
	RouteMedico       = "/medico"
)

// Action is the outcome kind of a gate decision
type Action int

const (
	// ActionWait means the session is not yet resolved: hold rendering,
	// never redirect. Redirecting here would flash a logged-in user to the
	// login screen before bootstrap completes.
	ActionWait Action = iota
	// ActionRender means the protected content may be shown unchanged
	ActionRender
	// ActionRedirect means navigation must move to Target instead
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "invalid"
	}
}

// Decision is the result of evaluating a gate
type Decision struct {
	Action Action
	// Target is the destination route when Action is ActionRedirect
	Target string
	// Replace indicates the redirect must not leave the intermediate step
	// in back-navigation history
	Replace bool
}

// Render is the decision that lets protected content through
var Render = Decision{Action: ActionRender}

func wait() Decision {
	return Decision{Action: ActionWait}
}

func redirect(target string) Decision {
	return Decision{Action: ActionRedirect, Target: target}
}

// Authenticated is the authentication gate: only resolved, authenticated
// sessions may render; anonymous sessions are sent to login; unresolved
// sessions wait.
func Authenticated(snap session.Snapshot) Decision {
	switch snap.State {
	case session.StateUnresolved:
		return wait()
	case session.StateAuthenticated:
		if snap.User == nil {
			return redirect(RouteLogin)
		}
		return Render
	default:
		return redirect(RouteLogin)
	}
}

// AllowRoles is the role gate: it further restricts a view to an explicit
// allow-list. A missing user redirects to login, even when Authenticated has
// already run before it; a user whose role is outside the allow-list is
// sent to the application root, a distinct target that signals "authenticated
// but forbidden". An empty allow-list denies every role.
func AllowRoles(snap session.Snapshot, allowed session.RoleSet) Decision {
	if snap.State == session.StateUnresolved {
		return wait()
	}
	if snap.User == nil {
		return redirect(RouteLogin)
	}
	if !allowed.Contains(snap.User.Role) {
		return redirect(RouteRoot)
	}
	return Render
}

// DashboardRoute maps a role to its landing destination. Unrecognized roles
// land on the login route.
func DashboardRoute(role session.Role) string {
	switch role {
	case session.RoleAdministrador:
		return RouteAdmin
	case session.RoleEspecialista:
		return RouteEspecialista
	case session.RoleMedico:
		return RouteMedico
	default:
		return RouteLogin
	}
}
