package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, order_id, from_status, to_status, actor_id, created_at, claimed_at, delivered_at, attempts`

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) ClaimUnnotified(ctx context.Context, limit, maxAttempts int) ([]*domain.OrderEvent, error) {
	// FOR UPDATE SKIP LOCKED keeps concurrent notifiers from claiming the same rows.
	rows, err := r.pool.Query(ctx, `
		UPDATE order_events
		SET    claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM order_events
			WHERE  delivered_at IS NULL
			  AND  claimed_at   IS NULL
			  AND  attempts     < $2
			ORDER BY id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+eventColumns, limit, maxAttempts)
	if err != nil {
		return nil, wrap("claim events", err)
	}
	defer rows.Close()

	var events []*domain.OrderEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrap("claim events", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("claim events", err)
	}
	return events, nil
}

func (r *EventRepository) MarkDelivered(ctx context.Context, eventID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE order_events
		SET    delivered_at = NOW()
		WHERE  id = $1`, eventID)
	if err != nil {
		return wrap("mark event delivered", err)
	}
	return nil
}

func (r *EventRepository) Release(ctx context.Context, eventID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE order_events
		SET    claimed_at = NULL,
		       attempts   = attempts + 1
		WHERE  id = $1
		  AND  delivered_at IS NULL`, eventID)
	if err != nil {
		return wrap("release event", err)
	}
	return nil
}

func (r *EventRepository) Unclaim(ctx context.Context, eventIDs []int64) error {
	if len(eventIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE order_events
		SET    claimed_at = NULL
		WHERE  id = ANY($1)
		  AND  delivered_at IS NULL`, eventIDs)
	if err != nil {
		return wrap("unclaim events", err)
	}
	return nil
}

// RequeueStale counts the lost claim as an attempt, so an event that keeps
// crashing its notifier still runs out of attempts.
func (r *EventRepository) RequeueStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE order_events
		SET    claimed_at = NULL,
		       attempts   = attempts + 1
		WHERE id IN (
			SELECT id FROM order_events
			WHERE  delivered_at IS NULL
			  AND  claimed_at   < $1
			ORDER BY claimed_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, staleCutoff, limit)
	if err != nil {
		return 0, wrap("requeue stale events", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanEvent(row rowScanner) (*domain.OrderEvent, error) {
	var e domain.OrderEvent
	err := row.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.ActorID, &e.CreatedAt, &e.ClaimedAt, &e.DeliveredAt, &e.Attempts)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}
