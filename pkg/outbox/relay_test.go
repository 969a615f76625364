package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/qr-order-flow/pkg/logging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	batch    []Event
	sent     []int64
	failed   []int64
	released []int64
}

func (s *fakeStore) LockBatch(_ context.Context, _ string, _ int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.batch
	s.batch = nil
	return b, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *fakeStore) Release(_ context.Context, _ string, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, ids...)
	return nil
}

type fakeProducer struct {
	msgs   []kafka.Message
	failOn map[string]bool
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if p.failOn[string(m.Value)] {
			return errors.New("broker down")
		}
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func TestDispatch_SetsKeyAndHeaders(t *testing.T) {
	producer := &fakeProducer{}
	d := NewDispatcher(logging.Discard(), producer, "order.status")

	err := d.Dispatch(context.Background(), Event{
		ID:           7,
		AggregateID:  "order-1",
		PartitionKey: "shop-1",
		Type:         "order.status_changed",
		Payload:      []byte(`{}`),
		Headers:      map[string]string{"source": "order-service"},
		Traceparent:  "00-abc-def-01",
	})
	require.NoError(t, err)
	require.Len(t, producer.msgs, 1)

	msg := producer.msgs[0]
	assert.Equal(t, "order.status", msg.Topic)
	assert.Equal(t, "shop-1", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "order.status_changed", headers[HeaderEventType])
	assert.Equal(t, "7", headers[HeaderEventID])
	assert.Equal(t, "00-abc-def-01", headers[HeaderTraceparent])
	assert.Equal(t, "order-service", headers["source"])
	assert.Equal(t, "7", Header(msg.Headers, HeaderEventID))
	assert.Empty(t, Header(msg.Headers, HeaderAggregateType))
}

func TestDispatch_FallsBackToAggregateKey(t *testing.T) {
	producer := &fakeProducer{}
	d := NewDispatcher(logging.Discard(), producer, "t")

	require.NoError(t, d.Dispatch(context.Background(), Event{AggregateID: "order-9"}))
	assert.Equal(t, "order-9", string(producer.msgs[0].Key))
}

func TestFlush_KeepsPerKeyOrderOnFailure(t *testing.T) {
	store := &fakeStore{batch: []Event{
		{ID: 1, PartitionKey: "shop-a", Payload: []byte("a1")},
		{ID: 2, PartitionKey: "shop-b", Payload: []byte("b1")},
		{ID: 3, PartitionKey: "shop-a", Payload: []byte("a2")},
		{ID: 4, PartitionKey: "shop-b", Payload: []byte("b2-bad")},
		{ID: 5, PartitionKey: "shop-b", Payload: []byte("b3")},
	}}
	producer := &fakeProducer{failOn: map[string]bool{"b2-bad": true}}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "t"), "relay-1")

	n := relay.Flush(context.Background())

	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3}, store.sent)
	assert.Equal(t, []int64{4}, store.failed)
	assert.Equal(t, []int64{5}, store.released)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), &fakeProducer{}, "t"), "relay-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
