package session

import (
	"sync"
)

// Role is a user's clinical role. The set is closed: any value outside it is
// treated as RoleUnknown and carries no permissions.
type Role string

const (
	RoleAdministrador Role = "administrador"
	RoleEspecialista  Role = "especialista"
	RoleMedico        Role = "medico"
	RoleUnknown       Role = ""
)

// ParseRole maps a raw role string onto the closed role set
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdministrador, RoleEspecialista, RoleMedico:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// RoleSet is an allow-list of roles, declared per route by the caller
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether the role is in the allow-list.
// An empty set denies every role.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// User is the resolved identity record returned by the identity endpoint
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
	Picture   string `json:"picture,omitempty"`
}

// State describes where the session is in its lifecycle. Unresolved (bootstrap
// not finished) and Anonymous (bootstrap finished, no user) are distinct
// states: routing must never treat "not yet checked" as "checked, absent".
type State int

const (
	StateUnresolved State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// Snapshot is an immutable view of the store at one point in time
type Snapshot struct {
	State State
	User  *User
}

// Authenticated reports whether a user record has been resolved
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.User != nil
}

// Store holds the session for one process. It is constructed explicitly and
// injected into its consumers so tests can run independent sessions side by
// side. Mutated only by the bootstrapper, login and logout.
type Store struct {
	mu    sync.RWMutex
	state State
	user  *User
}

// NewStore returns a store in the Unresolved state
func NewStore() *Store {
	return &Store{state: StateUnresolved}
}

// SetAuthenticated records a resolved user. A nil user is a programming error
// and is recorded as Anonymous instead, preserving the invariant that
// authenticated sessions always carry a user.
func (s *Store) SetAuthenticated(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.state = StateAnonymous
		s.user = nil
		return
	}
	s.state = StateAuthenticated
	s.user = u
}

// SetAnonymous records that resolution finished without a user
func (s *Store) SetAnonymous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAnonymous
	s.user = nil
}

// Reset returns the store to the Unresolved state (used after logout so a
// later bootstrap starts clean)
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUnresolved
	s.user = nil
}

// Snapshot returns a consistent view of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateAuthenticated && s.user != nil {
		u := *s.user
		return Snapshot{State: StateAuthenticated, User: &u}
	}
	return Snapshot{State: s.state}
}
