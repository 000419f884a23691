package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retinoscan/retinoscan/internal/session"
)

func authenticatedSnap(role session.Role) session.Snapshot {
	return session.Snapshot{
		State: session.StateAuthenticated,
		User:  &session.User{ID: "u1", Email: "user@clinic.org", Role: role},
	}
}

func TestAuthenticated_UnresolvedWaits(t *testing.T) {
	d := Authenticated(session.Snapshot{State: session.StateUnresolved})

	assert.Equal(t, ActionWait, d.Action)
	assert.Empty(t, d.Target)
}

func TestAuthenticated_AnonymousRedirectsToLogin(t *testing.T) {
	d := Authenticated(session.Snapshot{State: session.StateAnonymous})

	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, RouteLogin, d.Target)
}

func TestAuthenticated_AuthenticatedRenders(t *testing.T) {
	d := Authenticated(authenticatedSnap(session.RoleMedico))

	assert.Equal(t, ActionRender, d.Action)
}

func TestAuthenticated_AuthenticatedWithoutUserRedirectsToLogin(t *testing.T) {
	d := Authenticated(session.Snapshot{State: session.StateAuthenticated})

	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, RouteLogin, d.Target)
}

func TestAllowRoles_UnresolvedWaits(t *testing.T) {
	allowed := session.NewRoleSet(session.RoleAdministrador)

	d := AllowRoles(session.Snapshot{State: session.StateUnresolved}, allowed)

	assert.Equal(t, ActionWait, d.Action)
}

func TestAllowRoles_MissingUserRedirectsToLogin(t *testing.T) {
	allowed := session.NewRoleSet(session.RoleAdministrador)

	d := AllowRoles(session.Snapshot{State: session.StateAnonymous}, allowed)

	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, RouteLogin, d.Target)
}

func TestAllowRoles_AllowedRoleRenders(t *testing.T) {
	allowed := session.NewRoleSet(session.RoleAdministrador, session.RoleMedico)

	d := AllowRoles(authenticatedSnap(session.RoleMedico), allowed)

	assert.Equal(t, ActionRender, d.Action)
}

func TestAllowRoles_ForbiddenRoleRedirectsToRoot(t *testing.T) {
	allowed := session.NewRoleSet(session.RoleAdministrador)

	d := AllowRoles(authenticatedSnap(session.RoleMedico), allowed)

	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, RouteRoot, d.Target)
}

func TestAllowRoles_EmptyAllowListDeniesEveryRole(t *testing.T) {
	empty := session.NewRoleSet()

	for _, role := range []session.Role{
		session.RoleAdministrador,
		session.RoleEspecialista,
		session.RoleMedico,
		session.RoleUnknown,
	} {
		d := AllowRoles(authenticatedSnap(role), empty)
		assert.Equal(t, ActionRedirect, d.Action, "role %q", role)
		assert.Equal(t, RouteRoot, d.Target, "role %q", role)
	}
}

func TestDashboardRoute(t *testing.T) {
	assert.Equal(t, RouteAdmin, DashboardRoute(session.RoleAdministrador))
	assert.Equal(t, RouteEspecialista, DashboardRoute(session.RoleEspecialista))
	assert.Equal(t, RouteMedico, DashboardRoute(session.RoleMedico))
	assert.Equal(t, RouteLogin, DashboardRoute(session.RoleUnknown))
	assert.Equal(t, RouteLogin, DashboardRoute(session.Role("superuser")))
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "wait", ActionWait.String())
	assert.Equal(t, "render", ActionRender.String())
	assert.Equal(t, "redirect", ActionRedirect.String())
	assert.Equal(t, "invalid", Action(99).String())
}
