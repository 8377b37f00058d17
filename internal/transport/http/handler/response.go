package handler

import (
	"encoding/json"
	"time"

	"github.com/ErlanBelekov/storefront/internal/domain"
)

type userResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	IsAdmin   bool        `json:"isAdmin"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsAdmin:   u.IsAdmin(),
		CreatedAt: u.CreatedAt,
	}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user"`
	ShippingInfo domain.ShippingInfo `json:"shippingInfo"`
	Items        []domain.LineItem   `json:"items"`
	Status       domain.OrderStatus  `json:"status"`
	// Total is derived from Items on every response.
	Total     json.Number `json:"total"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func newOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		UserID:       o.UserID,
		ShippingInfo: o.Shipping,
		Items:        o.Items,
		Status:       o.Status,
		Total:        json.Number(o.Total().String()),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

type ownerResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type adminOrderResponse struct {
	orderResponse
	// Owner is null once the owning account has been deleted.
	Owner *ownerResponse `json:"owner"`
}

type eventResponse struct {
	From      domain.OrderStatus `json:"from,omitempty"`
	To        domain.OrderStatus `json:"to"`
	ActorID   string             `json:"actor"`
	CreatedAt time.Time          `json:"createdAt"`
}

type orderDetailResponse struct {
	orderResponse
	Events []eventResponse `json:"events"`
}
