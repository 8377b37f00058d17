package httptransport

import (
	"log/slog"
	"time"

	"github.com/ErlanBelekov/storefront/internal/transport/http/handler"
	"github.com/ErlanBelekov/storefront/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type Handlers struct {
	Auth  *handler.AuthHandler
	Order *handler.OrderHandler
	User  *handler.UserHandler
}

// NewRouter wires every route behind the access guard with its declared
// requirement. requestTimeout bounds the store calls of a single request.
func NewRouter(logger *slog.Logger, guard *middleware.Guard, h Handlers, requestTimeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.Deadline(requestTimeout))

	public := guard.Require(middleware.RequireNone)
	authenticated := guard.Require(middleware.RequireAuthenticated)
	admin := guard.Require(middleware.RequireAdmin)

	users := r.Group("/users")
	users.POST("/register", public, h.Auth.Register)
	users.POST("/login", public, h.Auth.Login)
	users.POST("/register-admin", public, h.Auth.RegisterAdmin)
	users.GET("/me", authenticated, h.Auth.Me)

	orders := r.Group("/orders")
	orders.POST("", authenticated, h.Order.Create)
	orders.GET("/my-orders", authenticated, h.Order.ListMine)
	orders.GET("/admin", admin, h.Order.ListAll)
	orders.GET("/:id", authenticated, h.Order.Get)
	orders.PUT("/:id/status", authenticated, h.Order.SetStatus)

	adminUsers := r.Group("/admin/users", admin)
	adminUsers.GET("", h.User.List)
	adminUsers.GET("/:id", h.User.Get)
	adminUsers.PUT("/:id", h.User.Update)
	adminUsers.DELETE("/:id", h.User.Delete)

	return r
}
