package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/metrics"
	"github.com/ErlanBelekov/storefront/internal/repository"
)

// OrderUsecase is the order lifecycle manager. Every legality and permission
// check on an order lives here; the repository only persists.
type OrderUsecase struct {
	orders repository.OrderRepository
}

func NewOrderUsecase(orders repository.OrderRepository) *OrderUsecase {
	return &OrderUsecase{orders: orders}
}

type CreateOrderInput struct {
	OwnerID  string
	Shipping domain.ShippingInfo
	Items    []domain.LineItem
}

// OrderDetail is an order together with its audit trail, oldest event first.
type OrderDetail struct {
	Order  *domain.Order
	Events []*domain.OrderEvent
}

func (u *OrderUsecase) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if len(input.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, item := range input.Items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}
	if err := input.Shipping.Validate(); err != nil {
		return nil, err
	}

	created, err := u.orders.Insert(ctx, &domain.Order{
		UserID:   input.OwnerID,
		Shipping: input.Shipping,
		Items:    input.Items,
		Status:   domain.OrderStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	return created, nil
}

func (u *OrderUsecase) ListOwn(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	orders, err := u.orders.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list own orders: %w", err)
	}
	return orders, nil
}

func (u *OrderUsecase) ListAll(ctx context.Context) ([]*domain.OrderWithOwner, error) {
	orders, err := u.orders.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return orders, nil
}

// Get is allowed for the owner and for administrators.
func (u *OrderUsecase) Get(ctx context.Context, orderID string, actor *domain.User) (*OrderDetail, error) {
	order, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !actor.IsAdmin() && order.UserID != actor.ID {
		return nil, domain.ErrForbidden
	}

	events, err := u.orders.ListEvents(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	return &OrderDetail{Order: order, Events: events}, nil
}

// SetStatus moves an order to target. Checks run in this order: the order
// must exist, the actor must be allowed to request target, and target must be
// a legal successor of the current status. Requesting the current status is
// an idempotent success.
func (u *OrderUsecase) SetStatus(ctx context.Context, orderID string, target domain.OrderStatus, actor *domain.User) (*domain.Order, error) {
	if _, err := domain.ParseOrderStatus(string(target)); err != nil {
		return nil, err
	}

	order, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !mayRequest(actor, order, target) {
		metrics.OrderTransitionsRejectedTotal.WithLabelValues("forbidden").Inc()
		return nil, domain.ErrForbidden
	}

	if order.Status == target {
		return order, nil
	}
	if !order.Status.CanTransitionTo(target) {
		metrics.OrderTransitionsRejectedTotal.WithLabelValues("invalid_transition").Inc()
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, target)
	}

	updated, err := u.orders.UpdateStatus(ctx, repository.StatusChange{
		OrderID: orderID,
		From:    order.Status,
		To:      target,
		ActorID: actor.ID,
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		return u.resolveConflict(ctx, orderID, target)
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status), string(target)).Inc()
	return updated, nil
}

// resolveConflict runs after another writer changed the status between our
// read and our compare-and-set. If that writer already moved the order to
// target the call is an idempotent success; otherwise it lost the race.
func (u *OrderUsecase) resolveConflict(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	current, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	if current.Status == target {
		return current, nil
	}
	metrics.OrderTransitionsRejectedTotal.WithLabelValues("conflict").Inc()
	return nil, fmt.Errorf("%w: order is now %s", domain.ErrInvalidTransition, current.Status)
}

// mayRequest: administrators may request any status. The owner may only
// cancel, and only while the order is still pending (or re-cancel an order
// they already cancelled).
func mayRequest(actor *domain.User, order *domain.Order, target domain.OrderStatus) bool {
	if actor.IsAdmin() {
		return true
	}
	if order.UserID != actor.ID || target != domain.OrderStatusCancelled {
		return false
	}
	return order.Status == domain.OrderStatusPending || order.Status == domain.OrderStatusCancelled
}
