package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/infrastructure/memory"
	"github.com/ErlanBelekov/storefront/internal/repository"
	"github.com/ErlanBelekov/storefront/internal/usecase"
)

// ---- fakes ----

type fakeOrderRepo struct {
	repository.OrderRepository
	findByID     func(ctx context.Context, id string) (*domain.Order, error)
	updateStatus func(ctx context.Context, change repository.StatusChange) (*domain.Order, error)
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findByID(ctx, id)
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, change repository.StatusChange) (*domain.Order, error) {
	return r.updateStatus(ctx, change)
}

// ---- helpers ----

var (
	admin    = &domain.User{ID: "admin-1", Role: domain.RoleAdministrator}
	customer = &domain.User{ID: "customer-1", Role: domain.RoleCustomer}
	stranger = &domain.User{ID: "customer-2", Role: domain.RoleCustomer}

	testShipping = domain.ShippingInfo{Name: "Alice", Address: "1 Main St", Phone: "555-0100"}
	testItems    = []domain.LineItem{{Name: "Shirt", Size: "M", Quantity: 2, UnitPrice: 100000}}
)

func newOrderUsecase(t *testing.T) (*usecase.OrderUsecase, *memory.OrderRepository) {
	t.Helper()
	orders := memory.NewStore().Orders()
	return usecase.NewOrderUsecase(orders), orders
}

// placeOrder creates an order for customer and walks it to status as admin.
func placeOrder(t *testing.T, uc *usecase.OrderUsecase, status domain.OrderStatus) *domain.Order {
	t.Helper()
	ctx := context.Background()

	order, err := uc.CreateOrder(ctx, usecase.CreateOrderInput{OwnerID: customer.ID, Shipping: testShipping, Items: testItems})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	var path []domain.OrderStatus
	switch status {
	case domain.OrderStatusInTransit:
		path = []domain.OrderStatus{domain.OrderStatusInTransit}
	case domain.OrderStatusCompleted:
		path = []domain.OrderStatus{domain.OrderStatusInTransit, domain.OrderStatusCompleted}
	case domain.OrderStatusCancelled:
		path = []domain.OrderStatus{domain.OrderStatusCancelled}
	}
	for _, s := range path {
		if order, err = uc.SetStatus(ctx, order.ID, s, admin); err != nil {
			t.Fatalf("move order to %s: %v", s, err)
		}
	}
	return order
}

// ---- CreateOrder ----

func TestCreateOrder_StartsPendingWithDerivedTotal(t *testing.T) {
	uc, _ := newOrderUsecase(t)

	order := placeOrder(t, uc, domain.OrderStatusPending)
	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if got := order.Total().String(); got != "200000" {
		t.Errorf("total = %s, want 200000", got)
	}
	if order.UserID != customer.ID {
		t.Errorf("owner = %q, want %q", order.UserID, customer.ID)
	}
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   usecase.CreateOrderInput
		wantErr error
	}{
		{
			name:    "empty cart",
			input:   usecase.CreateOrderInput{OwnerID: customer.ID, Shipping: testShipping},
			wantErr: domain.ErrEmptyCart,
		},
		{
			name: "zero quantity",
			input: usecase.CreateOrderInput{OwnerID: customer.ID, Shipping: testShipping,
				Items: []domain.LineItem{{Name: "Shirt", Quantity: 0, UnitPrice: 10}}},
			wantErr: domain.ErrValidation,
		},
		{
			name: "negative price",
			input: usecase.CreateOrderInput{OwnerID: customer.ID, Shipping: testShipping,
				Items: []domain.LineItem{{Name: "Shirt", Quantity: 1, UnitPrice: -1}}},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "missing address",
			input:   usecase.CreateOrderInput{OwnerID: customer.ID, Shipping: domain.ShippingInfo{Name: "A", Phone: "1"}, Items: testItems},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, orders := newOrderUsecase(t)
			if _, err := uc.CreateOrder(context.Background(), tt.input); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			all, _ := orders.FindAll(context.Background())
			if len(all) != 0 {
				t.Errorf("orders stored = %d, want 0", len(all))
			}
		})
	}
}

// ---- listings ----

func TestListOwn_OnlyOwnNewestFirst(t *testing.T) {
	uc, _ := newOrderUsecase(t)
	ctx := context.Background()

	first := placeOrder(t, uc, domain.OrderStatusPending)
	second := placeOrder(t, uc, domain.OrderStatusPending)
	if _, err := uc.CreateOrder(ctx, usecase.CreateOrderInput{OwnerID: stranger.ID, Shipping: testShipping, Items: testItems}); err != nil {
		t.Fatalf("create stranger order: %v", err)
	}

	own, err := uc.ListOwn(ctx, customer.ID)
	if err != nil {
		t.Fatalf("ListOwn: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("ListOwn returned %d orders, want 2", len(own))
	}
	if own[0].ID != second.ID || own[1].ID != first.ID {
		t.Errorf("order = [%s %s], want [%s %s]", own[0].ID, own[1].ID, second.ID, first.ID)
	}

	all, err := uc.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListAll returned %d orders, want 3", len(all))
	}
}

// ---- Get ----

func TestGet_OwnerSeesAuditTrail(t *testing.T) {
	uc, _ := newOrderUsecase(t)
	order := placeOrder(t, uc, domain.OrderStatusCompleted)

	detail, err := uc.Get(context.Background(), order.ID, customer)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	want := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusInTransit, domain.OrderStatusCompleted}
	if len(detail.Events) != len(want) {
		t.Fatalf("events = %d, want %d", len(detail.Events), len(want))
	}
	for i, e := range detail.Events {
		if e.To != want[i] {
			t.Errorf("event %d to = %s, want %s", i, e.To, want[i])
		}
	}
	if detail.Events[0].From != "" {
		t.Errorf("creation event from = %q, want empty", detail.Events[0].From)
	}
	if detail.Events[1].ActorID != admin.ID {
		t.Errorf("transition actor = %q, want %q", detail.Events[1].ActorID, admin.ID)
	}
}

func TestGet_StrangerForbidden(t *testing.T) {
	uc, _ := newOrderUsecase(t)
	order := placeOrder(t, uc, domain.OrderStatusPending)

	if _, err := uc.Get(context.Background(), order.ID, stranger); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("want ErrForbidden, got %v", err)
	}
	if _, err := uc.Get(context.Background(), order.ID, admin); err != nil {
		t.Errorf("admin Get: %v", err)
	}
}

// ---- SetStatus ----

func TestSetStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.OrderStatus
		to      domain.OrderStatus
		actor   *domain.User
		wantErr error
	}{
		{"admin ships pending", domain.OrderStatusPending, domain.OrderStatusInTransit, admin, nil},
		{"admin cancels pending", domain.OrderStatusPending, domain.OrderStatusCancelled, admin, nil},
		{"admin completes in transit", domain.OrderStatusInTransit, domain.OrderStatusCompleted, admin, nil},
		{"admin cancels in transit", domain.OrderStatusInTransit, domain.OrderStatusCancelled, admin, nil},
		{"admin skips to completed", domain.OrderStatusPending, domain.OrderStatusCompleted, admin, domain.ErrInvalidTransition},
		{"admin reopens completed", domain.OrderStatusCompleted, domain.OrderStatusPending, admin, domain.ErrInvalidTransition},
		{"admin reopens cancelled", domain.OrderStatusCancelled, domain.OrderStatusInTransit, admin, domain.ErrInvalidTransition},
		{"admin moves in transit back", domain.OrderStatusInTransit, domain.OrderStatusPending, admin, domain.ErrInvalidTransition},
		{"admin same status", domain.OrderStatusCompleted, domain.OrderStatusCompleted, admin, nil},
		{"owner cancels pending", domain.OrderStatusPending, domain.OrderStatusCancelled, customer, nil},
		{"owner re-cancels", domain.OrderStatusCancelled, domain.OrderStatusCancelled, customer, nil},
		{"owner cancels in transit", domain.OrderStatusInTransit, domain.OrderStatusCancelled, customer, domain.ErrForbidden},
		{"owner ships own order", domain.OrderStatusPending, domain.OrderStatusInTransit, customer, domain.ErrForbidden},
		{"stranger cancels", domain.OrderStatusPending, domain.OrderStatusCancelled, stranger, domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, orders := newOrderUsecase(t)
			order := placeOrder(t, uc, tt.from)

			got, err := uc.SetStatus(context.Background(), order.ID, tt.to, tt.actor)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			stored, _ := orders.FindByID(context.Background(), order.ID)
			if tt.wantErr != nil {
				if stored.Status != tt.from {
					t.Errorf("stored status = %s, want unchanged %s", stored.Status, tt.from)
				}
				return
			}
			if got.Status != tt.to || stored.Status != tt.to {
				t.Errorf("status = %s (stored %s), want %s", got.Status, stored.Status, tt.to)
			}
		})
	}
}

func TestSetStatus_NotFoundBeforeForbidden(t *testing.T) {
	uc, _ := newOrderUsecase(t)

	_, err := uc.SetStatus(context.Background(), "missing", domain.OrderStatusCancelled, stranger)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("want ErrOrderNotFound, got %v", err)
	}
}

func TestSetStatus_UnknownStatus(t *testing.T) {
	uc, _ := newOrderUsecase(t)
	order := placeOrder(t, uc, domain.OrderStatusPending)

	if _, err := uc.SetStatus(context.Background(), order.ID, "shipped", admin); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("want ErrInvalidStatus, got %v", err)
	}
}

func TestSetStatus_IdempotentRepeatWritesOneEvent(t *testing.T) {
	uc, _ := newOrderUsecase(t)
	ctx := context.Background()
	order := placeOrder(t, uc, domain.OrderStatusPending)

	for i := 0; i < 2; i++ {
		if _, err := uc.SetStatus(ctx, order.ID, domain.OrderStatusInTransit, admin); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}

	detail, _ := uc.Get(ctx, order.ID, admin)
	if len(detail.Events) != 2 {
		t.Errorf("events = %d, want 2 (creation + one transition)", len(detail.Events))
	}
}

func TestSetStatus_ConflictResolvedToSameTarget(t *testing.T) {
	reads := 0
	repo := &fakeOrderRepo{
		findByID: func(_ context.Context, id string) (*domain.Order, error) {
			reads++
			status := domain.OrderStatusPending
			if reads > 1 {
				status = domain.OrderStatusCancelled
			}
			return &domain.Order{ID: id, UserID: customer.ID, Status: status}, nil
		},
		updateStatus: func(_ context.Context, _ repository.StatusChange) (*domain.Order, error) {
			return nil, domain.ErrStatusConflict
		},
	}
	uc := usecase.NewOrderUsecase(repo)

	got, err := uc.SetStatus(context.Background(), "o-1", domain.OrderStatusCancelled, admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}

func TestSetStatus_ConflictLost(t *testing.T) {
	reads := 0
	repo := &fakeOrderRepo{
		findByID: func(_ context.Context, id string) (*domain.Order, error) {
			reads++
			status := domain.OrderStatusPending
			if reads > 1 {
				status = domain.OrderStatusInTransit
			}
			return &domain.Order{ID: id, UserID: customer.ID, Status: status}, nil
		},
		updateStatus: func(_ context.Context, _ repository.StatusChange) (*domain.Order, error) {
			return nil, domain.ErrStatusConflict
		},
	}
	uc := usecase.NewOrderUsecase(repo)

	_, err := uc.SetStatus(context.Background(), "o-1", domain.OrderStatusCancelled, customer)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("want ErrInvalidTransition, got %v", err)
	}
}

func TestSetStatus_ConcurrentTerminalTargetsOneWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		uc, orders := newOrderUsecase(t)
		order := placeOrder(t, uc, domain.OrderStatusInTransit)

		targets := []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusCancelled}
		errs := make([]error, len(targets))

		var wg sync.WaitGroup
		for i, target := range targets {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = uc.SetStatus(context.Background(), order.ID, target, admin)
			}()
		}
		wg.Wait()

		var winners []domain.OrderStatus
		for i, err := range errs {
			switch {
			case err == nil:
				winners = append(winners, targets[i])
			case !errors.Is(err, domain.ErrInvalidTransition):
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		if len(winners) != 1 {
			t.Fatalf("round %d: %d winners, want exactly 1", round, len(winners))
		}

		stored, _ := orders.FindByID(context.Background(), order.ID)
		if stored.Status != winners[0] {
			t.Fatalf("round %d: stored %s, winner %s", round, stored.Status, winners[0])
		}
	}
}
