package session

import (
	"context"
	"sync"
)

// Token storage keys in the durable client store
const (
	KeyAccess  = "access"
	KeyRefresh = "refresh"
)

// TokenStore is the durable client-side key-value store for credential
// tokens. Implementations must survive process restarts; the production one
// is backed by the OS keychain (internal/cli/auth).
type TokenStore interface {
	SaveToken(key, token string) error
	LoadToken(key string) (string, error)
	DeleteToken(key string) error
}

// Resolver converts stored credentials into a live identity. Implemented by
// the API client against GET /api/auth/me and POST /api/auth/refresh.
type Resolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (*User, error)
	RefreshAccess(ctx context.Context, refreshToken string) (string, error)
}

// Bootstrapper performs the one-shot conversion of a persisted access token
// into a resolved session at process start. A missing token or a failed
// resolution is not an error: both collapse silently to the Anonymous state,
// which is a valid, expected outcome.
type Bootstrapper struct {
	store    *Store
	tokens   TokenStore
	resolver Resolver

	mu   sync.Mutex
	done bool
}

// NewBootstrapper wires a bootstrapper to its session store, token store and
// identity resolver
func NewBootstrapper(store *Store, tokens TokenStore, resolver Resolver) *Bootstrapper {
	return &Bootstrapper{store: store, tokens: tokens, resolver: resolver}
}

// Bootstrap resolves the session once per process. Subsequent calls return
// the current snapshot without issuing another network request until Rearm
// is called (after login, or logout).
func (b *Bootstrapper) Bootstrap(ctx context.Context) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return b.store.Snapshot()
	}
	b.done = true

	access, err := b.tokens.LoadToken(KeyAccess)
	if err != nil || access == "" {
		// No stored credential: resolved, unauthenticated. Terminal, no error.
		b.store.SetAnonymous()
		return b.store.Snapshot()
	}

	user, err := b.resolver.ResolveIdentity(ctx, access)
	if err != nil {
		user = b.resolveWithRefresh(ctx)
	}

	if user == nil {
		b.store.SetAnonymous()
	} else {
		b.store.SetAuthenticated(user)
	}
	return b.store.Snapshot()
}

// resolveWithRefresh makes a single attempt to trade the refresh token for a
// new access token and retry identity resolution. Any failure along the way
// yields nil: the caller collapses that to Anonymous.
func (b *Bootstrapper) resolveWithRefresh(ctx context.Context) *User {
	refresh, err := b.tokens.LoadToken(KeyRefresh)
	if err != nil || refresh == "" {
		return nil
	}

	access, err := b.resolver.RefreshAccess(ctx, refresh)
	if err != nil || access == "" {
		return nil
	}

	// Persist the renewed access token so the next process start does not
	// have to refresh again. Failure to persist is not fatal for this run.
	_ = b.tokens.SaveToken(KeyAccess, access)

	user, err := b.resolver.ResolveIdentity(ctx, access)
	if err != nil {
		return nil
	}
	return user
}

// Rearm allows Bootstrap to run again, used after an explicit login stores
// fresh tokens
func (b *Bootstrapper) Rearm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = false
	b.store.Reset()
}

// Login records a freshly authenticated user and persists both tokens
func (b *Bootstrapper) Login(user *User, access, refresh string) error {
	if err := b.tokens.SaveToken(KeyAccess, access); err != nil {
		return err
	}
	if err := b.tokens.SaveToken(KeyRefresh, refresh); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.store.SetAuthenticated(user)
	return nil
}

// Logout tears the session down: both persisted tokens are removed and the
// store is cleared. Token deletion errors are reported but the in-memory
// session is always cleared.
func (b *Bootstrapper) Logout() error {
	b.mu.Lock()
	b.done = false
	b.store.SetAnonymous()
	b.mu.Unlock()

	errAccess := b.tokens.DeleteToken(KeyAccess)
	errRefresh := b.tokens.DeleteToken(KeyRefresh)
	if errAccess != nil {
		return errAccess
	}
	return errRefresh
}
