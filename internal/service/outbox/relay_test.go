package outbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/repo/repotest"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{12, 10 * time.Minute},
	}
	for _, tc := range tests {
		if got := RetryDelay(tc.attempt); got != tc.want {
			t.Errorf("RetryDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

type deadLetterHandler struct {
	err    error
	calls  int
	buried []uuid.UUID
}

func (h *deadLetterHandler) Handle(context.Context, *repo.OutboxEvent) error {
	h.calls++
	return h.err
}

func (h *deadLetterHandler) DeadLetter(_ context.Context, e *repo.OutboxEvent, _ error) error {
	h.buried = append(h.buried, e.AggregateID)
	return nil
}

func newRelay(store Store, maxAttempts int) *Relay {
	return NewRelay(store, &config.Config{Outbox: config.OutboxConfig{BatchSize: 10, MaxAttempts: maxAttempts}})
}

func enqueue(t *testing.T, store *repotest.Store, topic string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	st := &repo.Settlement{ID: id, UserID: uuid.New(), Type: repo.TypeRevenue, Amount: decimal.NewFromInt(100)}
	if err := Enqueue(context.Background(), store, topic, id, NewSettlementEvent(st, time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRelay_DeliversAndCompletes(t *testing.T) {
	store := repotest.New()
	id := enqueue(t, store, TopicSettlementPaid)

	var got SettlementEvent
	relay := newRelay(store, 3)
	relay.Register(TopicSettlementPaid, HandlerFunc(func(_ context.Context, e *repo.OutboxEvent) error {
		var err error
		got, err = DecodeSettlementEvent(e)
		return err
	}))

	n, err := relay.ProcessBatch(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ProcessBatch = %d, %v", n, err)
	}
	if got.SettlementID != id || !got.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("decoded %+v", got)
	}
	if e := store.Outbox()[0]; e.Status != repo.OutboxDone || e.ProcessedAt == nil {
		t.Fatalf("event status = %s", e.Status)
	}
	if n, _ := relay.ProcessBatch(context.Background()); n != 0 {
		t.Fatalf("completed event claimed again")
	}
}

func TestRelay_RetriesThenBuries(t *testing.T) {
	store := repotest.New()
	id := enqueue(t, store, TopicPayoutRequested)

	h := &deadLetterHandler{err: errors.New("rail timeout")}
	relay := newRelay(store, 2)
	relay.Register(TopicPayoutRequested, h)

	clock := time.Now().UTC()
	relay.now = func() time.Time { return clock }

	if _, err := relay.ProcessBatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	e := store.Outbox()[0]
	if e.Status != repo.OutboxPending || e.LastError == nil || *e.LastError != "rail timeout" {
		t.Fatalf("after first failure: status=%s last_error=%v", e.Status, e.LastError)
	}
	if want := clock.Add(RetryDelay(1)); !e.AvailableAt.Equal(want) {
		t.Fatalf("available_at = %s, want %s", e.AvailableAt, want)
	}

	// Not due yet.
	if n, _ := relay.ProcessBatch(context.Background()); n != 0 {
		t.Fatal("event redelivered before its retry delay")
	}

	clock = clock.Add(time.Minute)
	if _, err := relay.ProcessBatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e := store.Outbox()[0]; e.Status != repo.OutboxDead {
		t.Fatalf("status = %s, want dead after max attempts", e.Status)
	}
	if h.calls != 2 || len(h.buried) != 1 || h.buried[0] != id {
		t.Fatalf("calls=%d buried=%v", h.calls, h.buried)
	}
}

func TestRelay_UnrecoverableAndUnknownTopic(t *testing.T) {
	store := repotest.New()
	enqueue(t, store, TopicSettlementApproved)
	enqueue(t, store, "settlement.unknown")

	relay := newRelay(store, 5)
	relay.Register(TopicSettlementApproved, HandlerFunc(func(context.Context, *repo.OutboxEvent) error {
		return fmt.Errorf("bad recipient: %w", ErrUnrecoverable)
	}))

	if n, err := relay.ProcessBatch(context.Background()); err != nil || n != 2 {
		t.Fatalf("ProcessBatch = %d, %v", n, err)
	}
	for _, e := range store.Outbox() {
		if e.Status != repo.OutboxDead {
			t.Errorf("%s status = %s, want dead on first attempt", e.Topic, e.Status)
		}
	}
}

func TestRelay_StartStop(t *testing.T) {
	relay := newRelay(repotest.New(), 1)
	relay.interval = time.Millisecond
	relay.Start()
	relay.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := relay.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := relay.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
