package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/observability"
)

// Handler delivers one event. A returned error schedules a retry.
type Handler interface {
	Handle(ctx context.Context, e *repo.OutboxEvent) error
}

type HandlerFunc func(ctx context.Context, e *repo.OutboxEvent) error

func (f HandlerFunc) Handle(ctx context.Context, e *repo.OutboxEvent) error { return f(ctx, e) }

// DeadLetterer is implemented by handlers that need to react when an event
// is given up on.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, e *repo.OutboxEvent, cause error) error
}

// ErrUnrecoverable marks a delivery failure that retrying cannot fix.
var ErrUnrecoverable = errors.New("outbox: unrecoverable event")

type Store interface {
	ClaimOutboxEvents(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*repo.OutboxEvent, error)
	CompleteOutboxEvent(ctx context.Context, id uuid.UUID, at time.Time) error
	RetryOutboxEvent(ctx context.Context, id uuid.UUID, availableAt time.Time, lastErr string) error
	BuryOutboxEvent(ctx context.Context, id uuid.UUID, at time.Time, lastErr string) error
}

// Relay polls the outbox table and dispatches events to topic handlers.
type Relay struct {
	store       Store
	handlers    map[string]Handler
	batchSize   int
	lease       time.Duration
	maxAttempts int
	interval    time.Duration
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(store Store, cfg *config.Config) *Relay {
	oc := cfg.Outbox
	r := &Relay{
		store:       store,
		handlers:    map[string]Handler{},
		batchSize:   oc.BatchSize,
		lease:       time.Duration(oc.LeaseSeconds) * time.Second,
		maxAttempts: oc.MaxAttempts,
		interval:    time.Duration(oc.PollIntervalMs) * time.Millisecond,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if r.batchSize <= 0 {
		r.batchSize = 25
	}
	if r.lease <= 0 {
		r.lease = time.Minute
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 8
	}
	if r.interval <= 0 {
		r.interval = time.Second
	}
	return r
}

func (r *Relay) Register(topic string, h Handler) {
	r.handlers[topic] = h
}

// RetryDelay is the wait before attempt+1: 5s doubling up to 10 minutes.
func RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 10 * time.Minute
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// ProcessBatch claims and handles one batch. It returns the number of events
// claimed.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	events, err := r.store.ClaimOutboxEvents(ctx, r.now(), r.lease, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}
	for _, e := range events {
		r.dispatch(ctx, e)
	}
	return len(events), nil
}

func (r *Relay) dispatch(ctx context.Context, e *repo.OutboxEvent) {
	h, ok := r.handlers[e.Topic]
	if !ok {
		r.bury(ctx, e, fmt.Errorf("%w: no handler for topic %q", ErrUnrecoverable, e.Topic))
		return
	}

	herr := h.Handle(ctx, e)
	switch {
	case herr == nil:
		if err := r.store.CompleteOutboxEvent(ctx, e.ID, r.now()); err != nil {
			slog.Error("outbox_relay: complete failed", "event_id", e.ID, "err", err)
			return
		}
		observability.Domain().OutboxEvent(ctx, e.Topic, "done")
	case errors.Is(herr, ErrUnrecoverable) || e.Attempts >= r.maxAttempts:
		r.bury(ctx, e, herr)
	default:
		next := r.now().Add(RetryDelay(e.Attempts))
		if err := r.store.RetryOutboxEvent(ctx, e.ID, next, herr.Error()); err != nil {
			slog.Error("outbox_relay: reschedule failed", "event_id", e.ID, "err", err)
			return
		}
		observability.Domain().OutboxEvent(ctx, e.Topic, "retry")
		slog.Warn("outbox_relay: delivery failed, will retry",
			"event_id", e.ID, "topic", e.Topic, "attempt", e.Attempts, "next_at", next, "err", herr)
	}
}

func (r *Relay) bury(ctx context.Context, e *repo.OutboxEvent, cause error) {
	if dl, ok := r.handlers[e.Topic].(DeadLetterer); ok {
		if err := dl.DeadLetter(ctx, e, cause); err != nil {
			slog.Error("outbox_relay: dead-letter hook failed", "event_id", e.ID, "err", err)
		}
	}
	if err := r.store.BuryOutboxEvent(ctx, e.ID, r.now(), cause.Error()); err != nil {
		slog.Error("outbox_relay: bury failed", "event_id", e.ID, "err", err)
		return
	}
	observability.Domain().OutboxEvent(ctx, e.Topic, "dead")
	slog.Error("outbox_relay: event dead", "event_id", e.ID, "topic", e.Topic, "attempts", e.Attempts, "err", cause)
}

// Start polls until Stop is called. Batches are drained back to back while
// they come back full.
func (r *Relay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel, r.done = cancel, make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		slog.Info("outbox_relay: started", "interval", r.interval, "batch_size", r.batchSize)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					n, err := r.ProcessBatch(ctx)
					if err != nil {
						if ctx.Err() == nil {
							slog.Error("outbox_relay: batch failed", "err", err)
						}
						break
					}
					if n < r.batchSize {
						break
					}
				}
			}
		}
	}()
}

func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
