package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdministrador, ParseRole("administrador"))
	assert.Equal(t, RoleEspecialista, ParseRole("especialista"))
	assert.Equal(t, RoleMedico, ParseRole("medico"))
	assert.Equal(t, RoleUnknown, ParseRole("superuser"))
	assert.Equal(t, RoleUnknown, ParseRole(""))
	assert.Equal(t, RoleUnknown, ParseRole("Administrador"))
}

func TestRoleSet_Contains(t *testing.T) {
	set := NewRoleSet(RoleAdministrador, RoleMedico)

	assert.True(t, set.Contains(RoleAdministrador))
	assert.True(t, set.Contains(RoleMedico))
	assert.False(t, set.Contains(RoleEspecialista))
	assert.False(t, set.Contains(RoleUnknown))
}

func TestRoleSet_EmptyDeniesEveryRole(t *testing.T) {
	empty := NewRoleSet()

	assert.False(t, empty.Contains(RoleAdministrador))
	assert.False(t, empty.Contains(RoleEspecialista))
	assert.False(t, empty.Contains(RoleMedico))
	assert.False(t, empty.Contains(RoleUnknown))
}

func TestStore_StartsUnresolved(t *testing.T) {
	store := NewStore()

	snap := store.Snapshot()
	assert.Equal(t, StateUnresolved, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, snap.Authenticated())
}

func TestStore_SetAuthenticated(t *testing.T) {
	store := NewStore()
	store.SetAuthenticated(&User{ID: "u1", Email: "doc@clinic.org", Role: RoleMedico})

	snap := store.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "doc@clinic.org", snap.User.Email)
	assert.Equal(t, RoleMedico, snap.User.Role)
}

func TestStore_SetAuthenticatedNilUserBecomesAnonymous(t *testing.T) {
	store := NewStore()
	store.SetAuthenticated(nil)

	snap := store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, snap.Authenticated())
}

func TestStore_SetAnonymousClearsUser(t *testing.T) {
	store := NewStore()
	store.SetAuthenticated(&User{ID: "u1", Role: RoleMedico})
	store.SetAnonymous()

	snap := store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
}

func TestStore_ResetReturnsToUnresolved(t *testing.T) {
	store := NewStore()
	store.SetAuthenticated(&User{ID: "u1", Role: RoleMedico})
	store.Reset()

	snap := store.Snapshot()
	assert.Equal(t, StateUnresolved, snap.State)
	assert.Nil(t, snap.User)
}

func TestStore_SnapshotCopiesUser(t *testing.T) {
	store := NewStore()
	store.SetAuthenticated(&User{ID: "u1", Email: "doc@clinic.org", Role: RoleMedico})

	snap := store.Snapshot()
	snap.User.Email = "tampered@clinic.org"

	assert.Equal(t, "doc@clinic.org", store.Snapshot().User.Email)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unresolved", StateUnresolved.String())
	assert.Equal(t, "anonymous", StateAnonymous.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "invalid", State(99).String())
}
