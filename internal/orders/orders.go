// Package orders hands finalized chat orders to downstream fulfilment.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ashureev/chatcheckout/internal/domain"
)

// FinalizedOrder is the event published once payment is settled or promised.
type FinalizedOrder struct {
	SessionID   string             `json:"sessionId"`
	Order       *domain.OrderDraft `json:"order"`
	FinalizedAt time.Time          `json:"finalizedAt"`
}

// Sink receives finalized orders.
type Sink interface {
	Publish(ctx context.Context, order FinalizedOrder) error
	Close() error
}

// LogSink only logs orders. It is used when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish logs the order.
func (s *LogSink) Publish(_ context.Context, o FinalizedOrder) error {
	s.logger.Info("order finalized",
		"session_id", o.SessionID,
		"reference", o.Order.Reference,
		"product_id", o.Order.ProductID,
		"quantity", o.Order.Quantity,
		"total", o.Order.Total,
		"provider", o.Order.PaymentProvider)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes orders as JSON keyed by session id.
type KafkaSink struct {
	writer     messageWriter
	maxRetries int
	logger     *slog.Logger
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same session, same partition
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaSink(w, logger)
}

func newKafkaSink(w messageWriter, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{writer: w, maxRetries: 3, logger: logger}
}

// Publish writes the order, retrying transient failures.
func (s *KafkaSink) Publish(ctx context.Context, o FinalizedOrder) error {
	value, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(o.SessionID),
		Value: value,
		Time:  o.FinalizedAt,
	}

	var writeErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		writeErr = s.writer.WriteMessages(ctx, msg)
		if writeErr == nil {
			s.logger.Info("order published",
				"session_id", o.SessionID,
				"reference", o.Order.Reference)
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		backoff := time.Duration((attempt+1)*100) * time.Millisecond
		s.logger.Warn("order publish failed, retrying",
			"session_id", o.SessionID,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", writeErr)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
	}
	return fmt.Errorf("publish order %s: %w", o.Order.Reference, writeErr)
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
