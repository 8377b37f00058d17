// Package memory keeps users, orders and order events in process memory.
// It backs DATABASE_URL=memory:// for local runs and doubles as a test store.
// A single mutex serializes every operation, which gives the same atomicity
// the Postgres repositories get from transactions.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	users  map[string]*domain.User
	orders map[string]*domain.Order
	// seq breaks created_at ties so listings keep insertion order.
	seq    map[string]int64
	events []*domain.OrderEvent
	nextEv int64
}

func NewStore() *Store {
	return &Store{
		now:    time.Now,
		users:  make(map[string]*domain.User),
		orders: make(map[string]*domain.Order),
		seq:    make(map[string]int64),
	}
}

func (s *Store) Users() *UserRepository   { return &UserRepository{s: s} }
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }
func (s *Store) Events() *EventRepository { return &EventRepository{s: s} }

// Ping satisfies health.Pinger.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := domain.NormalizeEmail(user.Email)
	for _, u := range r.s.users {
		if u.Email == email {
			return nil, domain.ErrDuplicateEmail
		}
	}

	now := r.s.now()
	u := *user
	u.ID = uuid.NewString()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	r.s.users[u.ID] = &u

	out := u
	return &out, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = domain.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	users := make([]*domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out := *u
		users = append(users, &out)
	}
	slices.SortFunc(users, func(a, b *domain.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return users, nil
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = r.s.now()
	out := *u
	return &out, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.s.users, id)
	return nil
}

type OrderRepository struct{ s *Store }

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	o := cloneOrder(order)
	o.ID = uuid.NewString()
	o.CreatedAt = now
	o.UpdatedAt = now
	r.s.orders[o.ID] = o
	r.s.seq[o.ID] = int64(len(r.s.seq))
	r.s.appendEvent(o.ID, "", o.Status, o.UserID)

	return cloneOrder(o), nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var orders []*domain.Order
	for _, o := range r.s.orders {
		if o.UserID == ownerID {
			orders = append(orders, cloneOrder(o))
		}
	}
	r.s.sortNewestFirst(orders)
	return orders, nil
}

func (r *OrderRepository) FindAll(ctx context.Context) ([]*domain.OrderWithOwner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	orders := make([]*domain.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		orders = append(orders, cloneOrder(o))
	}
	r.s.sortNewestFirst(orders)

	out := make([]*domain.OrderWithOwner, len(orders))
	for i, o := range orders {
		out[i] = &domain.OrderWithOwner{Order: o}
		if u, ok := r.s.users[o.UserID]; ok {
			out[i].Owner = &domain.OrderOwner{Name: u.Name, Email: u.Email}
		}
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, change repository.StatusChange) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[change.OrderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status != change.From {
		return nil, domain.ErrStatusConflict
	}
	o.Status = change.To
	o.UpdatedAt = r.s.now()
	r.s.appendEvent(o.ID, change.From, change.To, change.ActorID)

	return cloneOrder(o), nil
}

func (r *OrderRepository) ListEvents(ctx context.Context, orderID string) ([]*domain.OrderEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var events []*domain.OrderEvent
	for _, e := range r.s.events {
		if e.OrderID == orderID {
			out := *e
			events = append(events, &out)
		}
	}
	return events, nil
}

type EventRepository struct{ s *Store }

func (r *EventRepository) ClaimUnnotified(ctx context.Context, limit, maxAttempts int) ([]*domain.OrderEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var claimed []*domain.OrderEvent
	for _, e := range r.s.events {
		if len(claimed) == limit {
			break
		}
		if e.DeliveredAt != nil || e.ClaimedAt != nil || e.Attempts >= maxAttempts {
			continue
		}
		t := now
		e.ClaimedAt = &t
		out := *e
		claimed = append(claimed, &out)
	}
	return claimed, nil
}

func (r *EventRepository) MarkDelivered(ctx context.Context, eventID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e := r.s.event(eventID); e != nil {
		t := r.s.now()
		e.DeliveredAt = &t
	}
	return nil
}

func (r *EventRepository) Release(ctx context.Context, eventID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e := r.s.event(eventID); e != nil && e.DeliveredAt == nil {
		e.ClaimedAt = nil
		e.Attempts++
	}
	return nil
}

func (r *EventRepository) Unclaim(ctx context.Context, eventIDs []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range eventIDs {
		if e := r.s.event(id); e != nil && e.DeliveredAt == nil {
			e.ClaimedAt = nil
		}
	}
	return nil
}

func (r *EventRepository) RequeueStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int
	for _, e := range r.s.events {
		if n == limit {
			break
		}
		if e.DeliveredAt != nil || e.ClaimedAt == nil || !e.ClaimedAt.Before(staleCutoff) {
			continue
		}
		e.ClaimedAt = nil
		e.Attempts++
		n++
	}
	return n, nil
}

// event must be called with mu held.
func (s *Store) event(id int64) *domain.OrderEvent {
	for _, e := range s.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// appendEvent must be called with mu held.
func (s *Store) appendEvent(orderID string, from, to domain.OrderStatus, actorID string) {
	s.nextEv++
	s.events = append(s.events, &domain.OrderEvent{
		ID:        s.nextEv,
		OrderID:   orderID,
		From:      from,
		To:        to,
		ActorID:   actorID,
		CreatedAt: s.now(),
	})
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = slices.Clone(o.Items)
	return &out
}

// sortNewestFirst must be called with mu held.
func (s *Store) sortNewestFirst(orders []*domain.Order) {
	slices.SortFunc(orders, func(a, b *domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(s.seq[b.ID], s.seq[a.ID])
	})
}
