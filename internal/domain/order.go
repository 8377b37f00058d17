package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrStatusConflict is returned by repositories when a compare-and-set on
	// the order status finds a different current status.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusInTransit, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether to is a legal successor of s. Self-transitions
// are handled by the caller as idempotent no-ops and are not edges here.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return to == OrderStatusInTransit || to == OrderStatusCancelled
	case OrderStatusInTransit:
		return to == OrderStatusCompleted || to == OrderStatusCancelled
	case OrderStatusCompleted, OrderStatusCancelled:
		return false
	}
	return false
}

type ShippingInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Note    string `json:"note,omitempty"`
}

func (s ShippingInfo) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(s.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping %s required", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// LineItem is a snapshot of a product taken at checkout. It never refers back
// to the catalog.
type LineItem struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price"`
	// DiscountPercent is in [0, 100].
	DiscountPercent int    `json:"discount"`
	Image           string `json:"image"`
}

func (li LineItem) Validate() error {
	switch {
	case strings.TrimSpace(li.Name) == "":
		return fmt.Errorf("%w: item name required", ErrValidation)
	case li.Quantity < 1:
		return fmt.Errorf("%w: item %q quantity must be at least 1", ErrValidation, li.Name)
	case li.UnitPrice < 0:
		return fmt.Errorf("%w: item %q price must not be negative", ErrValidation, li.Name)
	case li.DiscountPercent < 0 || li.DiscountPercent > 100:
		return fmt.Errorf("%w: item %q discount must be between 0 and 100", ErrValidation, li.Name)
	}
	return nil
}

// Subtotal is unitPrice × (1 − discount/100) × quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	factor := hundred.Sub(decimal.NewFromInt(int64(li.DiscountPercent))).Div(hundred)
	return decimal.NewFromInt(li.UnitPrice).Mul(factor).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID        string
	UserID    string
	Shipping  ShippingInfo
	Items     []LineItem
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total is derived from the items on every read and is never stored.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// OrderOwner is the display identity attached to admin listings. Nil when the
// owning user has since been deleted.
type OrderOwner struct {
	Name  string
	Email string
}

type OrderWithOwner struct {
	*Order
	Owner *OrderOwner
}

// OrderEvent is one entry of an order's audit trail. From is empty for the
// creation event.
type OrderEvent struct {
	ID        int64
	OrderID   string
	From      OrderStatus
	To        OrderStatus
	ActorID   string
	CreatedAt time.Time
	// ClaimedAt is set while a notifier holds the event. DeliveredAt is set
	// once the notification went out or was skipped for good.
	ClaimedAt   *time.Time
	DeliveredAt *time.Time
	Attempts    int
}
