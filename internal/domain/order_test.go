package domain_test

import (
	"errors"
	"testing"

	"github.com/ErlanBelekov/storefront/internal/domain"
)

func TestCanTransitionTo(t *testing.T) {
	all := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusInTransit,
		domain.OrderStatusCompleted,
		domain.OrderStatusCancelled,
	}
	legal := map[[2]domain.OrderStatus]bool{
		{domain.OrderStatusPending, domain.OrderStatusInTransit}:   true,
		{domain.OrderStatusPending, domain.OrderStatusCancelled}:   true,
		{domain.OrderStatusInTransit, domain.OrderStatusCompleted}: true,
		{domain.OrderStatusInTransit, domain.OrderStatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]domain.OrderStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	if domain.OrderStatusPending.Terminal() || domain.OrderStatusInTransit.Terminal() {
		t.Error("pending and in_transit must not be terminal")
	}
	if !domain.OrderStatusCompleted.Terminal() || !domain.OrderStatusCancelled.Terminal() {
		t.Error("completed and cancelled must be terminal")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if s, err := domain.ParseOrderStatus("in_transit"); err != nil || s != domain.OrderStatusInTransit {
		t.Errorf("ParseOrderStatus(in_transit) = %q, %v", s, err)
	}
	if _, err := domain.ParseOrderStatus("shipped"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("want ErrInvalidStatus, got %v", err)
	}
}

func TestTotal_NoDiscount(t *testing.T) {
	o := &domain.Order{Items: []domain.LineItem{{Name: "Shirt", UnitPrice: 100000, Quantity: 2}}}

	if got := o.Total().String(); got != "200000" {
		t.Errorf("Total = %s, want 200000", got)
	}
}

func TestTotal_WithDiscount(t *testing.T) {
	o := &domain.Order{Items: []domain.LineItem{
		{Name: "Shirt", UnitPrice: 100000, Quantity: 2, DiscountPercent: 10},
		{Name: "Hat", UnitPrice: 999, Quantity: 3, DiscountPercent: 33},
	}}

	// 180000 + 999*0.67*3 = 180000 + 2007.99
	if got := o.Total().String(); got != "182007.99" {
		t.Errorf("Total = %s, want 182007.99", got)
	}
}

func TestLineItemValidate(t *testing.T) {
	cases := []struct {
		name string
		item domain.LineItem
		ok   bool
	}{
		{"valid", domain.LineItem{Name: "a", Quantity: 1, UnitPrice: 0}, true},
		{"zero quantity", domain.LineItem{Name: "a", Quantity: 0, UnitPrice: 1}, false},
		{"negative price", domain.LineItem{Name: "a", Quantity: 1, UnitPrice: -1}, false},
		{"discount over 100", domain.LineItem{Name: "a", Quantity: 1, DiscountPercent: 101}, false},
		{"missing name", domain.LineItem{Quantity: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
		})
	}
}

func TestShippingInfoValidate(t *testing.T) {
	if err := (domain.ShippingInfo{Name: "A", Address: "B", Phone: "C"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (domain.ShippingInfo{Name: "A"}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}
