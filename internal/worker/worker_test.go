package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rezervacia/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testEvent(t *testing.T) *events.Event {
	t.Helper()
	ev, err := events.NewJSONEvent(events.EventBookingCreated, events.BookingEventPayload{SessionID: "s1", BookingID: 7})
	require.NoError(t, err)
	return &ev
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))

	assert.Equal(t, 2*time.Second, RetryPolicy{}.NextDelay(1))
}

func TestDeliveryWorkerDelivers(t *testing.T) {
	w := NewDeliveryWorker(nil, RetryPolicy{}, nil)

	var got atomic.Int64
	w.Register("telegram", func(ev *events.Event) error {
		if ev.Type == events.EventBookingCreated {
			got.Add(1)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	bus := events.NewEventBus(nil)
	bus.Subscribe(events.EventBookingCreated, w.Handler("telegram"))
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{SessionID: "s1"}))

	assert.Eventually(t, func() bool { return got.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDeliveryWorkerEnqueueErrors(t *testing.T) {
	w := NewDeliveryWorker(nil, RetryPolicy{}, nil)

	assert.ErrorIs(t, w.Enqueue("amqp", testEvent(t)), ErrUnknownTarget)

	w.Register("amqp", func(*events.Event) error { return nil })
	w.queue = make(chan Delivery, 1)
	require.NoError(t, w.Enqueue("amqp", testEvent(t)))
	assert.ErrorIs(t, w.Enqueue("amqp", testEvent(t)), ErrQueueFull)
}

func TestDeliveryWorkerRetries(t *testing.T) {
	w := NewDeliveryWorker(nil, RetryPolicy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond}, nil)

	var calls atomic.Int64
	w.Register("amqp", func(*events.Event) error {
		if calls.Add(1) == 1 {
			return errors.New("connection reset")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.Enqueue("amqp", testEvent(t)))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDeliveryWorkerDeadLetter(t *testing.T) {
	client := newTestRedis(t)
	w := NewDeliveryWorker(client, RetryPolicy{MaxRetries: 1}, nil)
	w.Register("amqp", func(*events.Event) error { return errors.New("boom") })

	ctx := context.Background()
	w.process(ctx, Delivery{Target: "amqp", Event: *testEvent(t)})

	dead, err := w.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "amqp", dead[0].Target)
	assert.Equal(t, 1, dead[0].Attempt)
	assert.Equal(t, "boom", dead[0].LastError)
	assert.Equal(t, events.EventBookingCreated, dead[0].Event.Type)
	assert.JSONEq(t, `{"session_id":"s1","booking_id":7}`, string(dead[0].Event.Payload))
}

func TestDeadLettersWithoutRedis(t *testing.T) {
	w := NewDeliveryWorker(nil, RetryPolicy{}, nil)
	dead, err := w.DeadLetters(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
}
