package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/transport/http/middleware"
	"github.com/ErlanBelekov/storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

type orderUsecaser interface {
	CreateOrder(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error)
	ListOwn(ctx context.Context, ownerID string) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.OrderWithOwner, error)
	Get(ctx context.Context, orderID string, actor *domain.User) (*usecase.OrderDetail, error)
	SetStatus(ctx context.Context, orderID string, target domain.OrderStatus, actor *domain.User) (*domain.Order, error)
}

type OrderHandler struct {
	orderUsecase orderUsecaser
	logger       *slog.Logger
}

func NewOrderHandler(orderUsecase orderUsecaser, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orderUsecase: orderUsecase, logger: logger.With("component", "order_handler")}
}

type createOrderRequest struct {
	ShippingInfo domain.ShippingInfo `json:"shippingInfo"`
	Items        []domain.LineItem   `json:"items"`
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orderUsecase.CreateOrder(c.Request.Context(), usecase.CreateOrderInput{
		OwnerID:  c.GetString("userID"),
		Shipping: req.ShippingInfo,
		Items:    req.Items,
	})
	if err != nil {
		respondError(c, h.logger, "create order", err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "order placed", "order_id", order.ID, "user_id", order.UserID, "items", len(order.Items))
	c.JSON(http.StatusCreated, newOrderResponse(order))
}

// GET /orders/my-orders
func (h *OrderHandler) ListMine(c *gin.Context) {
	orders, err := h.orderUsecase.ListOwn(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, "list own orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = newOrderResponse(o)
	}
	c.JSON(http.StatusOK, resp)
}

// GET /orders/admin
func (h *OrderHandler) ListAll(c *gin.Context) {
	orders, err := h.orderUsecase.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list all orders", err)
		return
	}

	resp := make([]adminOrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = adminOrderResponse{orderResponse: newOrderResponse(o.Order)}
		if o.Owner != nil {
			resp[i].Owner = &ownerResponse{Name: o.Owner.Name, Email: o.Owner.Email}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	detail, err := h.orderUsecase.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, h.logger, "get order", err)
		return
	}

	events := make([]eventResponse, len(detail.Events))
	for i, e := range detail.Events {
		events[i] = eventResponse{From: e.From, To: e.To, ActorID: e.ActorID, CreatedAt: e.CreatedAt}
	}
	c.JSON(http.StatusOK, orderDetailResponse{orderResponse: newOrderResponse(detail.Order), Events: events})
}

// PUT /orders/:id/status
func (h *OrderHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderID := c.Param("id")
	actor := middleware.CurrentUser(c)
	order, err := h.orderUsecase.SetStatus(c.Request.Context(), orderID, domain.OrderStatus(req.Status), actor)
	if err != nil {
		respondError(c, h.logger, "set order status", err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "order status set", "order_id", orderID, "status", order.Status, "actor_id", actor.ID)
	c.JSON(http.StatusOK, newOrderResponse(order))
}
