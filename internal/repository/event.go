package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/storefront/internal/domain"
)

type EventRepository interface {
	// ClaimUnnotified claims up to limit undelivered, unclaimed events and
	// returns them. Concurrent callers never receive the same event.
	ClaimUnnotified(ctx context.Context, limit, maxAttempts int) ([]*domain.OrderEvent, error)
	// MarkDelivered finishes a claimed event. It is never claimed again.
	MarkDelivered(ctx context.Context, eventID int64) error
	// Release makes a claimed event eligible again and counts the failed attempt.
	Release(ctx context.Context, eventID int64) error
	// Unclaim hands events back without counting an attempt.
	Unclaim(ctx context.Context, eventIDs []int64) error

	// Reaper method: recover events whose notifier died holding the claim.
	RequeueStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error)
}
