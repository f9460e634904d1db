package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"quizhub-subscription-svc/src/internal/auth"
	"quizhub-subscription-svc/src/internal/cache"
	"quizhub-subscription-svc/src/internal/models"
	"quizhub-subscription-svc/src/internal/session"
	"quizhub-subscription-svc/src/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserStore is the slice of the user repository the middleware needs.
type UserStore interface {
	FindByID(ctx context.Context, userID string) (*user.User, error)
}

// AuthMiddleware handles authentication and authorization
type AuthMiddleware struct {
	tokens       *auth.TokenManager
	users        UserStore
	sessions     session.Service
	cacheService cache.Service
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(tokens *auth.TokenManager, users UserStore, sessions session.Service, cacheService cache.Service) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:       tokens,
		users:        users,
		sessions:     sessions,
		cacheService: cacheService,
	}
}

// RequireAuth validates the bearer token against the token version, the
// user's active session id and the session registry, in that order.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			m.reject(c, models.ErrNoToken)
			return
		}

		claims, u, err := m.validateToken(c.Request.Context(), token)
		if err != nil {
			logrus.WithError(err).WithField("code", models.AuthCode(err)).Debug("Token validation failed")
			m.reject(c, err)
			return
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set("session_id", claims.SessionID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", u.Role)
		c.Set("user", u)

		logrus.WithFields(logrus.Fields{
			"user_id":    claims.UserID,
			"session_id": claims.SessionID,
		}).Debug("User authenticated successfully")

		c.Next()
	}
}

// RequireAdminRights checks if user has admin privileges
func (m *AuthMiddleware) RequireAdminRights() gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("user_role")
		if userRole == "" {
			logrus.Error("User role not found in context - ensure RequireAuth middleware runs first")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authentication required",
			})
			c.Abort()
			return
		}

		if userRole != user.RoleAdmin {
			userID := c.GetString("user_id")
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,
				"user_role": userRole,
			}).Warn("User attempted to access admin endpoint without admin privileges")

			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Access forbidden - admin privileges required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// validateToken runs the ordered checks: structural decode, user lookup,
// signature and expiry, token version, active session id, session registry.
func (m *AuthMiddleware) validateToken(ctx context.Context, token string) (*auth.Claims, *user.User, error) {
	claims, err := m.tokens.Decode(token)
	if err != nil {
		return nil, nil, models.ErrInvalidToken
	}

	u, err := m.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, nil, models.ErrUserNotFound
		}
		return nil, nil, err
	}

	claims, err = m.tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	if claims.TokenVersion != u.TokenVersion {
		return nil, nil, models.ErrTokenVersionMismatch
	}

	if claims.SessionID != u.ActiveSessionID {
		return nil, nil, models.ErrSessionMismatch
	}

	valid, err := m.validateSession(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if !valid {
		return nil, nil, models.ErrSessionInvalidated
	}

	return claims, u, nil
}

// extractToken pulls the token from the Authorization header, the token
// query parameter or the token cookie, in that order.
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	if token, err := c.Cookie("token"); err == nil && token != "" {
		return token
	}

	return ""
}

// validateSession checks session validity in Redis first, then MongoDB fallback
func (m *AuthMiddleware) validateSession(ctx context.Context, userID, sessionID string) (bool, error) {
	key := cache.SessionKey(userID, sessionID)
	cached, err := m.cacheService.GetActiveSession(ctx, key)
	if err == nil && cached != nil && cached.Valid(time.Now()) {
		m.cacheService.UpdateSessionActivity(ctx, key)
		m.sessions.Touch(ctx, sessionID)
		return true, nil
	}

	s, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}

	if s.UserID != userID {
		logrus.WithField("session_id", sessionID).Warn("Session does not belong to user")
		return false, nil
	}

	if !s.Valid(time.Now()) {
		logrus.WithField("session_id", sessionID).Warn("Session is inactive or expired")
		return false, nil
	}

	s.LastActiveAt = time.Now()
	m.sessions.Touch(ctx, sessionID)
	m.cacheService.CacheActiveSession(ctx, s)

	logrus.WithField("session_id", sessionID).Debug("Session validated from MongoDB")
	return true, nil
}

func (m *AuthMiddleware) reject(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	if !errors.Is(err, models.ErrNoToken) &&
		!errors.Is(err, models.ErrInvalidToken) &&
		!errors.Is(err, models.ErrTokenExpired) &&
		!errors.Is(err, models.ErrUserNotFound) &&
		!errors.Is(err, models.ErrTokenVersionMismatch) &&
		!errors.Is(err, models.ErrSessionMismatch) &&
		!errors.Is(err, models.ErrSessionInvalidated) {
		// Storage failures are not auth failures.
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Session validation error",
		})
		c.Abort()
		return
	}

	c.JSON(status, gin.H{
		"success": false,
		"code":    models.AuthCode(err),
		"error":   err.Error(),
	})
	c.Abort()
}
