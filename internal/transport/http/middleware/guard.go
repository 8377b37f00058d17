package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ErlanBelekov/storefront/internal/domain"
	ctxlog "github.com/ErlanBelekov/storefront/internal/log"
	"github.com/ErlanBelekov/storefront/internal/metrics"
	"github.com/gin-gonic/gin"
)

const (
	errUnauthorized = "Unauthorized"
	errForbidden    = "Forbidden"
	errUnavailable  = "Service temporarily unavailable"
	errInternal     = "Internal server error"

	userIDKey = "userID"
	userKey   = "user"
)

// Requirement is the minimum privilege a route declares.
type Requirement int

const (
	RequireNone Requirement = iota
	RequireAuthenticated
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireNone:
		return "none"
	case RequireAuthenticated:
		return "authenticated"
	case RequireAdmin:
		return "administrator"
	}
	return "unknown"
}

// TokenVerifier is satisfied by *auth.TokenService.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// UserFinder is the slice of the credential store the guard reads.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Guard resolves the caller from a bearer token and enforces a route's
// Requirement before the handler runs. It never mutates anything.
type Guard struct {
	tokens  TokenVerifier
	users   UserFinder
	timeout time.Duration
	logger  *slog.Logger
}

func NewGuard(tokens TokenVerifier, users UserFinder, timeout time.Duration, logger *slog.Logger) *Guard {
	return &Guard{
		tokens:  tokens,
		users:   users,
		timeout: timeout,
		logger:  logger.With("component", "access_guard"),
	}
}

// Require returns the gate for req. On success the resolved user is stored
// under "user" and its id under "userID".
func (g *Guard) Require(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		if req == RequireNone {
			c.Next()
			return
		}

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			g.reject(c, http.StatusUnauthorized, "missing_token", nil)
			return
		}

		userID, err := g.tokens.Verify(raw)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, domain.ErrTokenExpired) {
				reason = "expired_token"
			}
			g.reject(c, http.StatusUnauthorized, reason, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), g.timeout)
		user, err := g.users.FindByID(ctx, userID)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				g.reject(c, http.StatusUnauthorized, "unknown_user", nil, "user_id", userID)
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrServiceUnavailable):
				g.reject(c, http.StatusServiceUnavailable, "timeout", err, "user_id", userID)
			default:
				g.reject(c, http.StatusInternalServerError, "lookup_failed", err, "user_id", userID)
			}
			return
		}

		if req == RequireAdmin && !user.IsAdmin() {
			g.reject(c, http.StatusForbidden, "not_admin", nil, "user_id", userID)
			return
		}

		c.Set(userIDKey, user.ID)
		c.Set(userKey, user)
		c.Request = c.Request.WithContext(ctxlog.WithUserID(c.Request.Context(), user.ID))
		c.Next()
	}
}

func (g *Guard) reject(c *gin.Context, status int, reason string, err error, attrs ...any) {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()

	attrs = append(attrs, "reason", reason, "path", c.FullPath())
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	ctx := c.Request.Context()
	msg := errUnauthorized
	switch status {
	case http.StatusForbidden:
		msg = errForbidden
		g.logger.InfoContext(ctx, "access denied", attrs...)
	case http.StatusServiceUnavailable:
		msg = errUnavailable
		g.logger.WarnContext(ctx, "identity lookup unavailable", attrs...)
	case http.StatusInternalServerError:
		msg = errInternal
		g.logger.ErrorContext(ctx, "identity lookup failed", attrs...)
	default:
		g.logger.InfoContext(ctx, "authentication failed", attrs...)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// CurrentUser returns the identity attached by Guard, or nil on routes that
// do not require one.
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}
