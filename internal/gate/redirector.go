package gate

import (
	"github.com/retinoscan/retinoscan/internal/session"
)

// RedirectorState tracks the one-shot dispatch from the application root
type RedirectorState int

const (
	// RedirectorPending: user not yet resolved, no decision taken
	RedirectorPending RedirectorState = iota
	// RedirectorDispatching: user resolved, redirect issued this observation
	RedirectorDispatching
	// RedirectorDone: dispatch already happened, nothing further
	RedirectorDone
)

// Redirector performs the one-shot dispatch from the application root to the
// role-specific landing destination. It transitions Pending -> Dispatching
// the instant the session resolves, emits exactly one history-replacing
// redirect, and is terminal afterwards. Role resolution is authoritative:
// there is no retry and no error path.
type Redirector struct {
	state RedirectorState
}

// NewRedirector returns a redirector in the Pending state
func NewRedirector() *Redirector {
	return &Redirector{state: RedirectorPending}
}

// State returns the current redirector state
func (r *Redirector) State() RedirectorState {
	return r.state
}

// Observe feeds the redirector the current session snapshot. While the
// session is unresolved it waits. On the first resolved observation it
// dispatches: authenticated sessions go to their role's dashboard, anonymous
// sessions and unrecognized roles go to login. After dispatch every further
// observation renders nothing.
func (r *Redirector) Observe(snap session.Snapshot) Decision {
	switch r.state {
	case RedirectorDone, RedirectorDispatching:
		r.state = RedirectorDone
		return Render
	}

	if snap.State == session.StateUnresolved {
		return wait()
	}

	r.state = RedirectorDispatching

	target := RouteLogin
	if snap.User != nil {
		target = DashboardRoute(snap.User.Role)
	}

	return Decision{Action: ActionRedirect, Target: target, Replace: true}
}
