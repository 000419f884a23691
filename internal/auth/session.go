package auth

import "github.com/retinoscan/retinoscan/internal/session"

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID string       `json:"user_id"`
	Email  string       `json:"email"`
	Role   session.Role `json:"role"`
}
