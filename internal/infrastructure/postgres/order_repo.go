package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `o.id, o.user_id, o.ship_name, o.ship_address, o.ship_phone, o.ship_note,
		       o.items, o.status, o.created_at, o.updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert writes the order and its creation event in one transaction, so a
// partially written order is never visible.
func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	var created *domain.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			WITH o AS (
				INSERT INTO orders (user_id, ship_name, ship_address, ship_phone, ship_note, items, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING *
			)
			SELECT `+orderColumns+` FROM o`,
			order.UserID,
			order.Shipping.Name,
			order.Shipping.Address,
			order.Shipping.Phone,
			order.Shipping.Note,
			order.Items,
			order.Status,
		)
		o, err := scanOrder(row)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO order_events (order_id, from_status, to_status, actor_id) VALUES ($1, '', $2, $3)`,
			o.ID, o.Status, o.UserID,
		); err != nil {
			return fmt.Errorf("insert creation event: %w", err)
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, wrap("insert order", err)
	}
	return created, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if !validID(id) {
		return nil, domain.ErrOrderNotFound
	}
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, wrap("find order", err)
	}
	return o, nil
}

func (r *OrderRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	if !validID(ownerID) {
		return nil, nil
	}
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, wrap("find orders by owner", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrap("find orders by owner", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("find orders by owner", err)
	}
	return orders, nil
}

func (r *OrderRepository) FindAll(ctx context.Context) ([]*domain.OrderWithOwner, error) {
	query := `
		SELECT ` + orderColumns + `, u.name, u.email
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrap("find all orders", err)
	}
	defer rows.Close()

	var orders []*domain.OrderWithOwner
	for rows.Next() {
		var (
			o           domain.Order
			name, email *string
		)
		err := rows.Scan(
			&o.ID, &o.UserID, &o.Shipping.Name, &o.Shipping.Address, &o.Shipping.Phone, &o.Shipping.Note,
			&o.Items, &o.Status, &o.CreatedAt, &o.UpdatedAt,
			&name, &email,
		)
		if err != nil {
			return nil, wrap("find all orders", err)
		}
		owo := &domain.OrderWithOwner{Order: &o}
		if name != nil && email != nil {
			owo.Owner = &domain.OrderOwner{Name: *name, Email: *email}
		}
		orders = append(orders, owo)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("find all orders", err)
	}
	return orders, nil
}

// UpdateStatus is a single conditional UPDATE on (id, status). Two callers
// racing from the same status cannot both succeed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, change repository.StatusChange) (*domain.Order, error) {
	if !validID(change.OrderID) {
		return nil, domain.ErrOrderNotFound
	}

	var updated *domain.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			WITH o AS (
				UPDATE orders
				SET    status = $3, updated_at = NOW()
				WHERE  id = $1 AND status = $2
				RETURNING *
			)
			SELECT `+orderColumns+` FROM o`,
			change.OrderID, change.From, change.To,
		)
		o, err := scanOrder(row)
		if err != nil {
			if !errors.Is(err, domain.ErrOrderNotFound) {
				return err
			}
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, change.OrderID).Scan(&exists); err != nil {
				return fmt.Errorf("check order exists: %w", err)
			}
			if !exists {
				return domain.ErrOrderNotFound
			}
			return domain.ErrStatusConflict
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO order_events (order_id, from_status, to_status, actor_id) VALUES ($1, $2, $3, $4)`,
			change.OrderID, change.From, change.To, change.ActorID,
		); err != nil {
			return fmt.Errorf("insert status event: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrStatusConflict) {
			return nil, err
		}
		return nil, wrap("update order status", err)
	}
	return updated, nil
}

func (r *OrderRepository) ListEvents(ctx context.Context, orderID string) ([]*domain.OrderEvent, error) {
	if !validID(orderID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM order_events
		WHERE order_id = $1
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, wrap("list order events", err)
	}
	defer rows.Close()

	var events []*domain.OrderEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrap("list order events", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list order events", err)
	}
	return events, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Shipping.Name, &o.Shipping.Address, &o.Shipping.Phone, &o.Shipping.Note,
		&o.Items, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}
