package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/chatcheckout/internal/domain"
)

type fakeWriter struct {
	fail     int
	messages []kafka.Message
	calls    int
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.fail > 0 {
		f.fail--
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func order() FinalizedOrder {
	return FinalizedOrder{
		SessionID:   "sess-1",
		Order:       &domain.OrderDraft{ProductID: "p1", Quantity: 2, Total: 26600, Reference: "CMD-1"},
		FinalizedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestKafkaSinkPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	s := newKafkaSink(w, nil)

	require.NoError(t, s.Publish(context.Background(), order()))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "sess-1", string(w.messages[0].Key))

	var got FinalizedOrder
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &got))
	assert.Equal(t, "CMD-1", got.Order.Reference)
	assert.Equal(t, int64(26600), got.Order.Total)
}

func TestKafkaSinkRetries(t *testing.T) {
	w := &fakeWriter{fail: 1}
	s := newKafkaSink(w, nil)

	require.NoError(t, s.Publish(context.Background(), order()))
	assert.Equal(t, 2, w.calls)
}

func TestKafkaSinkGivesUp(t *testing.T) {
	w := &fakeWriter{fail: 10}
	s := newKafkaSink(w, nil)

	err := s.Publish(context.Background(), order())
	require.Error(t, err)
	assert.Equal(t, 3, w.calls)
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(nil)
	assert.NoError(t, s.Publish(context.Background(), order()))
	assert.NoError(t, s.Close())
}
