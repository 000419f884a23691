package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTokenStore is an in-memory token store for testing
type memTokenStore struct {
	tokens map[string]string
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]string)}
}

func (m *memTokenStore) SaveToken(key, token string) error {
	m.tokens[key] = token
	return nil
}

func (m *memTokenStore) LoadToken(key string) (string, error) {
	token, ok := m.tokens[key]
	if !ok {
		return "", errors.New("not authenticated")
	}
	return token, nil
}

func (m *memTokenStore) DeleteToken(key string) error {
	delete(m.tokens, key)
	return nil
}

// stubResolver counts calls and returns canned results
type stubResolver struct {
	user        *User
	resolveErr  error
	newAccess   string
	refreshErr  error
	resolveHits int
	refreshHits int

	// resolveErrOnce fails only the first ResolveIdentity call
	resolveErrOnce bool
}

func (r *stubResolver) ResolveIdentity(ctx context.Context, accessToken string) (*User, error) {
	r.resolveHits++
	if r.resolveErr != nil {
		if r.resolveErrOnce && r.resolveHits > 1 {
			return r.user, nil
		}
		return nil, r.resolveErr
	}
	return r.user, nil
}

func (r *stubResolver) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	r.refreshHits++
	if r.refreshErr != nil {
		return "", r.refreshErr
	}
	return r.newAccess, nil
}

func TestBootstrap_NoStoredTokenIsAnonymous(t *testing.T) {
	store := NewStore()
	resolver := &stubResolver{user: &User{ID: "u1", Role: RoleMedico}}
	b := NewBootstrapper(store, newMemTokenStore(), resolver)

	snap := b.Bootstrap(context.Background())

	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	// No credential means no network call at all
	assert.Equal(t, 0, resolver.resolveHits)
}

func TestBootstrap_ValidTokenResolvesUser(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	tokens.SaveToken(KeyAccess, "valid-access")
	resolver := &stubResolver{user: &User{ID: "u1", Email: "doc@clinic.org", Role: RoleMedico}}
	b := NewBootstrapper(store, tokens, resolver)

	snap := b.Bootstrap(context.Background())

	require.True(t, snap.Authenticated())
	assert.Equal(t, "doc@clinic.org", snap.User.Email)
	assert.Equal(t, 1, resolver.resolveHits)
}

func TestBootstrap_RejectedTokenCollapsesToAnonymous(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	tokens.SaveToken(KeyAccess, "expired-access")
	resolver := &stubResolver{resolveErr: errors.New("401 unauthorized"), refreshErr: errors.New("401 unauthorized")}
	b := NewBootstrapper(store, tokens, resolver)

	snap := b.Bootstrap(context.Background())

	// An invalid credential ends in the same state as no credential
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
}

func TestBootstrap_RefreshRecoversExpiredAccess(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	tokens.SaveToken(KeyAccess, "expired-access")
	tokens.SaveToken(KeyRefresh, "valid-refresh")
	resolver := &stubResolver{
		user:           &User{ID: "u1", Role: RoleEspecialista},
		resolveErr:     errors.New("401 unauthorized"),
		resolveErrOnce: true,
		newAccess:      "fresh-access",
	}
	b := NewBootstrapper(store, tokens, resolver)

	snap := b.Bootstrap(context.Background())

	require.True(t, snap.Authenticated())
	assert.Equal(t, RoleEspecialista, snap.User.Role)
	assert.Equal(t, 1, resolver.refreshHits)
	assert.Equal(t, 2, resolver.resolveHits)

	// The renewed access token is persisted for the next process
	saved, err := tokens.LoadToken(KeyAccess)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", saved)
}

func TestBootstrap_FailedRefreshCollapsesToAnonymous(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	tokens.SaveToken(KeyAccess, "expired-access")
	tokens.SaveToken(KeyRefresh, "expired-refresh")
	resolver := &stubResolver{
		resolveErr: errors.New("401 unauthorized"),
		refreshErr: errors.New("401 unauthorized"),
	}
	b := NewBootstrapper(store, tokens, resolver)

	snap := b.Bootstrap(context.Background())

	assert.Equal(t, StateAnonymous, snap.State)
	assert.Equal(t, 1, resolver.refreshHits)
}

func TestBootstrap_SecondCallMakesNoNetworkRequest(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	tokens.SaveToken(KeyAccess, "valid-access")
	resolver := &stubResolver{user: &User{ID: "u1", Role: RoleMedico}}
	b := NewBootstrapper(store, tokens, resolver)

	first := b.Bootstrap(context.Background())
	second := b.Bootstrap(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, resolver.resolveHits)
}

func TestBootstrap_RearmAllowsAnotherResolution(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	tokens.SaveToken(KeyAccess, "valid-access")
	resolver := &stubResolver{user: &User{ID: "u1", Role: RoleMedico}}
	b := NewBootstrapper(store, tokens, resolver)

	b.Bootstrap(context.Background())
	b.Rearm()

	assert.Equal(t, StateUnresolved, store.Snapshot().State)

	snap := b.Bootstrap(context.Background())
	require.True(t, snap.Authenticated())
	assert.Equal(t, 2, resolver.resolveHits)
}

func TestLogin_PersistsTokensAndAuthenticates(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	resolver := &stubResolver{}
	b := NewBootstrapper(store, tokens, resolver)

	user := &User{ID: "u1", Email: "admin@clinic.org", Role: RoleAdministrador}
	require.NoError(t, b.Login(user, "access-token", "refresh-token"))

	snap := store.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, RoleAdministrador, snap.User.Role)

	access, err := tokens.LoadToken(KeyAccess)
	require.NoError(t, err)
	assert.Equal(t, "access-token", access)

	refresh, err := tokens.LoadToken(KeyRefresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", refresh)

	// Login marks the session resolved: Bootstrap must not hit the network
	b.Bootstrap(context.Background())
	assert.Equal(t, 0, resolver.resolveHits)
}

func TestLogout_RemovesTokensAndClearsSession(t *testing.T) {
	store := NewStore()
	tokens := newMemTokenStore()
	b := NewBootstrapper(store, tokens, &stubResolver{})

	require.NoError(t, b.Login(&User{ID: "u1", Role: RoleMedico}, "access-token", "refresh-token"))
	require.NoError(t, b.Logout())

	snap := store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)

	_, err := tokens.LoadToken(KeyAccess)
	assert.Error(t, err)
	_, err = tokens.LoadToken(KeyRefresh)
	assert.Error(t, err)
}
