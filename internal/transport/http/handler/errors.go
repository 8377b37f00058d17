package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer = "Internal server error"
	errUnavailable    = "Service temporarily unavailable"
	errOrderNotFound  = "Order not found"
	errUserNotFound   = "User not found"
	errForbidden      = "Forbidden"
)

// respondError is the single mapping from domain errors to HTTP responses.
// Anything it does not recognise is logged and answered with 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		level := slog.LevelError
		if status == http.StatusServiceUnavailable {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, op, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrInvalidAdminSecret):
		return http.StatusForbidden, domain.ErrInvalidAdminSecret.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errForbidden
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errOrderNotFound
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, errUserNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errUnavailable
	}
	return http.StatusInternalServerError, errInternalServer
}
