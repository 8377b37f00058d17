package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/gin-gonic/gin"
)

type userUsecaser interface {
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

// UserHandler serves the administrator user-management routes.
type UserHandler struct {
	userUsecase userUsecaser
	logger      *slog.Logger
}

func NewUserHandler(userUsecase userUsecaser, logger *slog.Logger) *UserHandler {
	return &UserHandler{userUsecase: userUsecase, logger: logger.With("component", "user_handler")}
}

// updateUserRequest accepts either an explicit role or the legacy isAdmin flag.
type updateUserRequest struct {
	Role    *string `json:"role"`
	IsAdmin *bool   `json:"isAdmin"`
}

func (r updateUserRequest) role() (domain.Role, bool) {
	switch {
	case r.Role != nil:
		return domain.Role(*r.Role), true
	case r.IsAdmin != nil && *r.IsAdmin:
		return domain.RoleAdministrator, true
	case r.IsAdmin != nil:
		return domain.RoleCustomer, true
	}
	return "", false
}

// GET /admin/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userUsecase.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list users", err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = newUserResponse(u)
	}
	c.JSON(http.StatusOK, resp)
}

// GET /admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userUsecase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// PUT /admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, ok := req.role()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role or isAdmin is required"})
		return
	}

	id := c.Param("id")
	user, err := h.userUsecase.SetRole(c.Request.Context(), id, role)
	if err != nil {
		respondError(c, h.logger, "update user", err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "user role changed", "user_id", id, "role", role, "by", c.GetString("userID"))
	c.JSON(http.StatusOK, newUserResponse(user))
}

// DELETE /admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.userUsecase.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "delete user", err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "user deleted", "user_id", id, "by", c.GetString("userID"))
	c.Status(http.StatusNoContent)
}
