package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/storefront/internal/transport/http/middleware"
	"github.com/ErlanBelekov/storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*usecase.Session, error)
	RegisterAdmin(ctx context.Context, input usecase.RegisterInput, adminSecret string) (*usecase.Session, error)
	Login(ctx context.Context, email, password string) (*usecase.Session, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type registerRequest struct {
	Name     string `json:"name"     binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// registerAdminRequest carries no binding rules: the usecase checks the admin
// secret first and validates the rest only after it matches.
type registerAdminRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AdminPass string `json:"adminPass"`
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /users/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authUsecase.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

// POST /users/register-admin
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req registerAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authUsecase.RegisterAdmin(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, req.AdminPass)
	if err != nil {
		respondError(c, h.logger, "register admin", err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "administrator registered", "user_id", session.User.ID)
	c.JSON(http.StatusCreated, newSessionResponse(session))
}

// POST /users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authUsecase.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

// GET /users/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newUserResponse(middleware.CurrentUser(c)))
}

func newSessionResponse(s *usecase.Session) sessionResponse {
	return sessionResponse{Token: s.Token, User: newUserResponse(s.User)}
}
