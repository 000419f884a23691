package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/retinoscan/retinoscan/internal/auth"
	"github.com/retinoscan/retinoscan/internal/gate"
	"github.com/retinoscan/retinoscan/internal/models"
	"github.com/retinoscan/retinoscan/internal/session"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user is inactive")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	s, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := s.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message, redirect string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message, "redirect": redirect})
	c.Abort()
}

// JWTAuthMiddleware validates bearer access tokens and loads the request
// session. Unauthenticated requests get a 401 with a login redirect hint so
// clients can route accordingly.
func JWTAuthMiddleware(db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, err := extractBearerToken(authHeader)
		if err != nil {
			var message string
			switch err {
			case ErrMissingAuthHeader:
				message = "Missing authorization header"
			case ErrInvalidAuthFormat:
				message = "Invalid authorization header format"
			case ErrEmptyToken:
				message = "Empty token"
			}
			respondWithError(c, log, http.StatusUnauthorized, err, message, gate.RouteLogin)
			return
		}

		claims, err := auth.ValidateAccessToken(token)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, ErrInvalidToken, "Invalid or expired token", gate.RouteLogin)
			return
		}

		// Verify user still exists and is active
		var user models.UserAccount
		if err := db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
			log.Error().Err(err).Str("user_id", claims.UserID).Msg("User not found")
			respondWithError(c, log, http.StatusUnauthorized, ErrUserNotFound, "User not found", gate.RouteLogin)
			return
		}
		if !user.IsActive {
			respondWithError(c, log, http.StatusUnauthorized, ErrUserInactive, "User is inactive", gate.RouteLogin)
			return
		}

		setSession(c, &auth.SessionData{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		})

		c.Next()
	}
}

// RequireRoles restricts a route group to an explicit allow-list of roles.
// The decision comes from the gate package: a missing session maps to 401
// with a login redirect, a role outside the allow-list to 403 with a root
// redirect ("authenticated but forbidden" is a distinct outcome from "not
// authenticated"). An empty allow-list denies everyone.
func RequireRoles(log zerolog.Logger, roles ...session.Role) gin.HandlerFunc {
	allowed := session.NewRoleSet(roles...)

	return func(c *gin.Context) {
		sessionData, exists := GetSessionData(c)

		snap := session.Snapshot{State: session.StateAnonymous}
		if exists {
			snap = session.Snapshot{
				State: session.StateAuthenticated,
				User:  &session.User{ID: sessionData.UserID, Email: sessionData.Email, Role: sessionData.Role},
			}
		}

		decision := gate.AllowRoles(snap, allowed)
		switch {
		case decision.Action == gate.ActionRender:
			c.Next()
		case decision.Target == gate.RouteLogin:
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no session"), "Unauthorized", gate.RouteLogin)
		default:
			respondWithError(c, log, http.StatusForbidden, errors.New("role not allowed"), "Insufficient role", gate.RouteRoot)
		}
	}
}
