package repository

import (
	"context"

	"github.com/ErlanBelekov/storefront/internal/domain"
)

// StatusChange is a compare-and-set on an order's status. It applies only if
// the stored status still equals From.
type StatusChange struct {
	OrderID string
	From    domain.OrderStatus
	To      domain.OrderStatus
	ActorID string
}

// OrderRepository holds no business rules. Insert and UpdateStatus append the
// matching audit event in the same transaction as the write.
type OrderRepository interface {
	Insert(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// FindByOwner and FindAll return orders newest first.
	FindByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
	FindAll(ctx context.Context) ([]*domain.OrderWithOwner, error)
	// UpdateStatus returns domain.ErrStatusConflict when the stored status is
	// no longer change.From, and domain.ErrOrderNotFound when the order is gone.
	UpdateStatus(ctx context.Context, change StatusChange) (*domain.Order, error)
	ListEvents(ctx context.Context, orderID string) ([]*domain.OrderEvent, error)
}
