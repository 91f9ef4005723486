// Package kafka publishes order lifecycle events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecommercefs/storefront/api/internal/app"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events keyed by order id so one order's events stay ordered
// within a partition.
type Publisher struct {
	writer messageWriter
	logger zerolog.Logger
}

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	// BatchTimeout caps how long a write waits for more messages. Events are
	// published one commit at a time, so the writer default of 1s would be
	// added to every request.
	BatchTimeout time.Duration
}

const (
	defaultWriteTimeout = 5 * time.Second
	defaultBatchTimeout = 10 * time.Millisecond
)

func NewPublisher(cfg Config, logger zerolog.Logger) *Publisher {
	return newPublisher(newWriter(cfg), logger)
}

func newWriter(cfg Config) *kafkago.Writer {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           writeTimeout,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}
}

func newPublisher(w messageWriter, logger zerolog.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, events ...app.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(events))
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", evt.Type, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(evt.OrderID),
			Value: payload,
			Time:  evt.OccurredAt,
			Headers: []kafkago.Header{
				{Key: "event_type", Value: []byte(evt.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events: %w", len(msgs), err)
	}
	p.logger.Debug().Int("events", len(msgs)).Str("type", string(events[0].Type)).Msg("events published")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
