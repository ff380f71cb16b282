// Package worker delivers bus events to outbound consumers (the broker, the
// salon's Telegram chats) off the request path, retrying failed deliveries
// with backoff.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rezervacia/internal/events"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueSize     = 128
	defaultDeadLetterKey = "events:deadletter"
)

var (
	ErrUnknownTarget = errors.New("unknown delivery target")
	ErrQueueFull     = errors.New("delivery queue is full")
)

// Delivery is one event on its way to a target.
type Delivery struct {
	Target    string       `json:"target"`
	Event     events.Event `json:"event"`
	Attempt   int          `json:"attempt"`
	LastError string       `json:"last_error,omitempty"`
}

// DeliveryWorker runs registered handlers for queued events. Deliveries that
// keep failing are pushed to a Redis dead-letter list when Redis is set.
type DeliveryWorker struct {
	mu            sync.RWMutex
	handlers      map[string]events.EventHandler
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan Delivery
	deadLetterKey string
	logger        *zerolog.Logger
}

func NewDeliveryWorker(redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *DeliveryWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DeliveryWorker{
		handlers:      make(map[string]events.EventHandler),
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan Delivery, defaultQueueSize),
		deadLetterKey: defaultDeadLetterKey,
		logger:        logger,
	}
}

// Register names a handler so events can be queued for it.
func (w *DeliveryWorker) Register(target string, handler events.EventHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[target] = handler
}

// Handler returns a bus handler that queues events for target.
func (w *DeliveryWorker) Handler(target string) events.EventHandler {
	return func(event *events.Event) error {
		return w.Enqueue(target, event)
	}
}

func (w *DeliveryWorker) Enqueue(target string, event *events.Event) error {
	if w.handler(target) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}

	select {
	case w.queue <- Delivery{Target: target, Event: *event}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start processes deliveries until ctx is done.
func (w *DeliveryWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("delivery worker started")
	defer w.logger.Info().Msg("delivery worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-w.queue:
			w.process(ctx, d)
		}
	}
}

func (w *DeliveryWorker) handler(target string) events.EventHandler {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.handlers[target]
}

func (w *DeliveryWorker) process(ctx context.Context, d Delivery) {
	err := w.handler(d.Target)(&d.Event)
	if err == nil {
		return
	}

	d.Attempt++
	d.LastError = err.Error()
	if d.Attempt >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(err).
			Str("target", d.Target).
			Str("event_type", d.Event.Type).
			Int("attempt", d.Attempt).
			Msg("delivery failed, giving up")
		w.pushDeadLetter(ctx, d)
		return
	}

	delay := w.retryPolicy.NextDelay(d.Attempt)
	w.logger.Warn().Err(err).
		Str("target", d.Target).
		Str("event_type", d.Event.Type).
		Int("attempt", d.Attempt).
		Dur("retry_in", delay).
		Msg("delivery failed, will retry")
	go w.retryLater(ctx, d, delay)
}

func (w *DeliveryWorker) retryLater(ctx context.Context, d Delivery, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		w.pushDeadLetter(context.WithoutCancel(ctx), d)
	case <-timer.C:
		select {
		case w.queue <- d:
		default:
			w.pushDeadLetter(ctx, d)
		}
	}
}

func (w *DeliveryWorker) pushDeadLetter(ctx context.Context, d Delivery) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		w.logger.Error().Err(err).Str("target", d.Target).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Str("target", d.Target).Msg("dead letter push failed")
	}
}

// DeadLetters returns up to limit abandoned deliveries, newest first.
func (w *DeliveryWorker) DeadLetters(ctx context.Context, limit int64) ([]Delivery, error) {
	if w.redis == nil {
		return nil, nil
	}
	raw, err := w.redis.LRange(ctx, w.deadLetterKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}

	out := make([]Delivery, 0, len(raw))
	for _, item := range raw {
		var d Delivery
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}
