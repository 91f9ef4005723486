package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("keys by order id and tags event type", func(t *testing.T) {
		w := &captureWriter{}
		pub := newPublisher(w, zerolog.Nop())

		err := pub.Publish(context.Background(), app.Event{
			Type:       app.EventOrderPaid,
			OrderID:    "order-1",
			Data:       map[string]any{"total_amount": "10.00"},
			OccurredAt: at,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(w.msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(w.msgs))
		}
		msg := w.msgs[0]
		if string(msg.Key) != "order-1" {
			t.Fatalf("expected key order-1, got %s", msg.Key)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(app.EventOrderPaid) {
			t.Fatalf("unexpected headers: %+v", msg.Headers)
		}

		var decoded app.Event
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if decoded.Type != app.EventOrderPaid || !decoded.OccurredAt.Equal(at) {
			t.Fatalf("unexpected payload: %+v", decoded)
		}
	})

	t.Run("writer errors are returned", func(t *testing.T) {
		w := &captureWriter{err: errors.New("leader not available")}
		pub := newPublisher(w, zerolog.Nop())

		if err := pub.Publish(context.Background(), app.Event{Type: app.EventOrderPlaced, OrderID: "o"}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("no events is a no-op", func(t *testing.T) {
		w := &captureWriter{}
		if err := newPublisher(w, zerolog.Nop()).Publish(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(w.msgs) != 0 {
			t.Fatalf("expected no messages, got %d", len(w.msgs))
		}
	})
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	w := newWriter(Config{Brokers: []string{"kafka-1:9092"}, Topic: "storefront.orders"})
	if w.BatchTimeout != defaultBatchTimeout {
		t.Fatalf("expected batch timeout %v, got %v", defaultBatchTimeout, w.BatchTimeout)
	}
	if w.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("expected write timeout %v, got %v", defaultWriteTimeout, w.WriteTimeout)
	}
	if _, ok := w.Balancer.(*kafkago.Hash); !ok {
		t.Fatalf("expected hash balancer, got %T", w.Balancer)
	}

	w = newWriter(Config{Brokers: []string{"kafka-1:9092"}, Topic: "t", BatchTimeout: 50 * time.Millisecond})
	if w.BatchTimeout != 50*time.Millisecond {
		t.Fatalf("expected configured batch timeout, got %v", w.BatchTimeout)
	}
}
