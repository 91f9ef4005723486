package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type EventType string

const (
	EventOrderPlaced         EventType = "order.placed"
	EventOrderPaid           EventType = "order.paid"
	EventOrderPaymentFailed  EventType = "order.payment_failed"
	EventOrderRefundRequired EventType = "order.refund_required"
	EventReservationExpired  EventType = "reservation.expired"
)

// Event is a lifecycle notification emitted after the owning transaction commits.
type Event struct {
	Type          EventType      `json:"type"`
	OrderID       string         `json:"order_id,omitempty"`
	ReservationID string         `json:"reservation_id,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// EventPublisher delivers events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...Event) error { return nil }

// publishAfterCommit is best effort: state is already durable, a lost event is
// logged rather than surfaced to the caller.
func publishAfterCommit(ctx context.Context, pub EventPublisher, logger zerolog.Logger, events ...Event) {
	if len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil {
		logger.Warn().Err(err).Int("events", len(events)).Str("type", string(events[0].Type)).Msg("publish events failed")
	}
}
