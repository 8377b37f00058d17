// Package notify turns order audit events into customer emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"time"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/email"
	"github.com/ErlanBelekov/storefront/internal/metrics"
	"github.com/ErlanBelekov/storefront/internal/repository"
)

// MaxAttempts is how many failed sends an event gets before it is left alone.
const MaxAttempts = 5

const (
	sendTimeout = 10 * time.Second
	// Claim bookkeeping runs on a context detached from shutdown, so a
	// SIGTERM mid-batch still records what happened to each event.
	bookkeepingTimeout = 5 * time.Second
)

type Notifier struct {
	id           string
	events       repository.EventRepository
	orders       repository.OrderRepository
	users        repository.UserRepository
	sender       email.Sender
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

func NewNotifier(
	events repository.EventRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	sender email.Sender,
	logger *slog.Logger,
	pollInterval time.Duration,
	batchSize int,
) *Notifier {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return &Notifier{
		id:           id,
		events:       events,
		orders:       orders,
		users:        users,
		sender:       sender,
		logger:       logger.With("component", "notifier", "notifier_id", id),
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (n *Notifier) Start(ctx context.Context) {
	metrics.NotifierStartTime.SetToCurrentTime()

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	n.logger.Info("notifier started", "interval", n.pollInterval, "batch_size", n.batchSize)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("notifier shut down")
			return
		case <-ticker.C:
			n.processBatch(ctx)
		}
	}
}

func (n *Notifier) processBatch(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.NotifierBatchDuration.Observe(time.Since(start).Seconds()) }()

	events, err := n.events.ClaimUnnotified(ctx, n.batchSize, MaxAttempts)
	if err != nil {
		n.logger.Error("claim events", "error", err)
		return
	}
	if len(events) == 0 {
		return
	}

	n.logger.Info("claimed events", "count", len(events))
	for i, e := range events {
		if ctx.Err() != nil {
			n.unclaim(ctx, events[i:])
			return
		}
		n.deliver(ctx, e)
	}
}

func (n *Notifier) deliver(ctx context.Context, e *domain.OrderEvent) {
	log := n.logger.With("event_id", e.ID, "order_id", e.OrderID)

	order, err := n.orders.FindByID(ctx, e.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		log.Warn("order gone, skipping notification")
		n.finish(ctx, log, e)
		return
	}
	if err != nil {
		n.release(ctx, log, e, fmt.Errorf("load order: %w", err))
		return
	}

	owner, err := n.users.FindByID(ctx, order.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		log.Info("owner deleted, skipping notification", "user_id", order.UserID)
		n.finish(ctx, log, e)
		return
	}
	if err != nil {
		n.release(ctx, log, e, fmt.Errorf("load owner: %w", err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err = n.sender.Send(sendCtx, render(e, order, owner))
	cancel()
	if err != nil {
		n.release(ctx, log, e, err)
		return
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	log.Info("notification sent", "to_status", e.To)
	n.finish(ctx, log, e)
}

// finish marks the event delivered. If that write is lost the reaper hands the
// event back and the email may go out twice.
func (n *Notifier) finish(ctx context.Context, log *slog.Logger, e *domain.OrderEvent) {
	ctx, cancel := detached(ctx)
	defer cancel()

	if err := n.events.MarkDelivered(ctx, e.ID); err != nil {
		log.Error("mark event delivered", "error", err)
	}
}

// release hands the event back for a later batch. The attempt that just
// failed is counted, so after MaxAttempts failures it is never claimed again.
func (n *Notifier) release(ctx context.Context, log *slog.Logger, e *domain.OrderEvent, cause error) {
	outcome := "retry"
	if e.Attempts+1 >= MaxAttempts {
		outcome = "failed"
	}
	metrics.NotificationsTotal.WithLabelValues(outcome).Inc()

	ctx, cancel := detached(ctx)
	defer cancel()

	if err := n.events.Release(ctx, e.ID); err != nil {
		log.Error("release event", "error", err, "cause", cause)
		return
	}
	log.Warn("notification failed", "error", cause, "attempt", e.Attempts+1, "max_attempts", MaxAttempts, "outcome", outcome)
}

// unclaim returns events the notifier never got to. No attempt is counted.
func (n *Notifier) unclaim(ctx context.Context, events []*domain.OrderEvent) {
	ctx, cancel := detached(ctx)
	defer cancel()

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := n.events.Unclaim(ctx, ids); err != nil {
		n.logger.Error("unclaim events", "count", len(ids), "error", err)
		return
	}
	n.logger.Info("handed back unsent events", "count", len(ids))
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func render(e *domain.OrderEvent, order *domain.Order, owner *domain.User) email.Message {
	ref := order.ID
	if len(ref) > 8 {
		ref = ref[:8]
	}

	var subject, line string
	switch e.To {
	case domain.OrderStatusPending:
		subject = fmt.Sprintf("We received your order %s", ref)
		line = "Thanks for your order. We will let you know when it ships."
	case domain.OrderStatusInTransit:
		subject = fmt.Sprintf("Your order %s is on its way", ref)
		line = "Your order has left our warehouse."
	case domain.OrderStatusCompleted:
		subject = fmt.Sprintf("Your order %s was delivered", ref)
		line = "Your order has been delivered. Enjoy!"
	case domain.OrderStatusCancelled:
		subject = fmt.Sprintf("Your order %s was cancelled", ref)
		line = "Your order has been cancelled."
	default:
		subject = fmt.Sprintf("Update on your order %s", ref)
		line = fmt.Sprintf("Your order is now %s.", e.To)
	}

	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>%s</p><p>Order %s, %d item(s), total %s.</p>`,
		html.EscapeString(owner.Name), line, html.EscapeString(order.ID), len(order.Items), order.Total().String(),
	)
	return email.Message{
		To:      owner.Email,
		Subject: subject,
		HTML:    body,
		Key:     fmt.Sprintf("order-event-%d", e.ID),
		Tags:    map[string]string{"order_status": string(e.To)},
	}
}
