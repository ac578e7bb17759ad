package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Alijeyrad/franchise_backend/config"
)

// Locker keeps several replicas from running the same tick. *redis.Locker
// satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

const tickLockKey = "scheduler:tick"

// Ticker calls RunDue on a fixed interval while holding the tick lock.
type Ticker struct {
	svc      Service
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTicker(svc Service, locker Locker, cfg *config.Config) *Ticker {
	t := &Ticker{
		svc:      svc,
		locker:   locker,
		interval: time.Duration(cfg.Scheduler.TickSeconds) * time.Second,
		lockTTL:  time.Duration(cfg.Scheduler.LockTTLSeconds) * time.Second,
	}
	if t.interval <= 0 {
		t.interval = time.Minute
	}
	if t.lockTTL <= 0 {
		t.lockTTL = 10 * time.Minute
	}
	return t
}

// Tick runs due schedules once. It is a no-op when another replica holds the
// lock.
func (t *Ticker) Tick(ctx context.Context, now time.Time) {
	if t.locker != nil {
		unlock, ok, err := t.locker.TryLock(ctx, tickLockKey, t.lockTTL)
		if err != nil {
			slog.Error("scheduler_ticker: lock failed", "err", err)
			return
		}
		if !ok {
			slog.Debug("scheduler_ticker: tick held elsewhere")
			return
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("scheduler_ticker: unlock failed", "err", err)
			}
		}()
	}

	runs, err := t.svc.RunDue(ctx, now)
	if err != nil {
		slog.Error("scheduler_ticker: due runs failed", "err", err, "runs", len(runs))
		return
	}
	if len(runs) > 0 {
		slog.Info("scheduler_ticker: due runs finished", "runs", len(runs))
	}
}

func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel, t.done = cancel, make(chan struct{})

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		slog.Info("scheduler_ticker: started", "interval", t.interval)
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.Tick(ctx, now.UTC())
			}
		}
	}()
}

func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.mu.Unlock()
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
