package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retinoscan/retinoscan/internal/session"
)

func TestRedirector_WaitsWhileUnresolved(t *testing.T) {
	r := NewRedirector()

	d := r.Observe(session.Snapshot{State: session.StateUnresolved})

	assert.Equal(t, ActionWait, d.Action)
	assert.Equal(t, RedirectorPending, r.State())

	// Still pending: unresolved observations never consume the dispatch
	d = r.Observe(session.Snapshot{State: session.StateUnresolved})
	assert.Equal(t, ActionWait, d.Action)
	assert.Equal(t, RedirectorPending, r.State())
}

func TestRedirector_DispatchesToRoleDashboard(t *testing.T) {
	tests := []struct {
		role   session.Role
		target string
	}{
		{session.RoleAdministrador, RouteAdmin},
		{session.RoleEspecialista, RouteEspecialista},
		{session.RoleMedico, RouteMedico},
		{session.Role("superuser"), RouteLogin},
	}

	for _, tt := range tests {
		r := NewRedirector()

		d := r.Observe(authenticatedSnap(tt.role))

		assert.Equal(t, ActionRedirect, d.Action, "role %q", tt.role)
		assert.Equal(t, tt.target, d.Target, "role %q", tt.role)
		assert.True(t, d.Replace, "role %q", tt.role)
		assert.Equal(t, RedirectorDispatching, r.State())
	}
}

func TestRedirector_AnonymousDispatchesToLogin(t *testing.T) {
	r := NewRedirector()

	d := r.Observe(session.Snapshot{State: session.StateAnonymous})

	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, RouteLogin, d.Target)
	assert.True(t, d.Replace)
}

func TestRedirector_DispatchesExactlyOnce(t *testing.T) {
	r := NewRedirector()
	snap := authenticatedSnap(session.RoleAdministrador)

	first := r.Observe(snap)
	assert.Equal(t, ActionRedirect, first.Action)

	second := r.Observe(snap)
	assert.Equal(t, ActionRender, second.Action)
	assert.Equal(t, RedirectorDone, r.State())

	// Even a changed session cannot trigger a second dispatch
	third := r.Observe(session.Snapshot{State: session.StateAnonymous})
	assert.Equal(t, ActionRender, third.Action)
	assert.Equal(t, RedirectorDone, r.State())
}
