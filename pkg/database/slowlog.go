package database

import (
	"context"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
)

// slowDriver logs statements that take longer than threshold. Statements
// inside transactions are timed too.
type slowDriver struct {
	dialect.Driver
	threshold time.Duration
}

func withSlowLog(drv dialect.Driver, thresholdMs int) dialect.Driver {
	if thresholdMs <= 0 {
		return drv
	}
	return &slowDriver{Driver: drv, threshold: time.Duration(thresholdMs) * time.Millisecond}
}

func (d *slowDriver) Exec(ctx context.Context, query string, args, v any) error {
	defer d.observe(ctx, query, time.Now())
	return d.Driver.Exec(ctx, query, args, v)
}

func (d *slowDriver) Query(ctx context.Context, query string, args, v any) error {
	defer d.observe(ctx, query, time.Now())
	return d.Driver.Query(ctx, query, args, v)
}

func (d *slowDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &slowTx{Tx: tx, d: d}, nil
}

func (d *slowDriver) observe(ctx context.Context, query string, start time.Time) {
	if took := time.Since(start); took >= d.threshold {
		slog.WarnContext(ctx, "slow query", "took_ms", took.Milliseconds(), "query", query)
	}
}

type slowTx struct {
	dialect.Tx
	d *slowDriver
}

func (t *slowTx) Exec(ctx context.Context, query string, args, v any) error {
	defer t.d.observe(ctx, query, time.Now())
	return t.Tx.Exec(ctx, query, args, v)
}

func (t *slowTx) Query(ctx context.Context, query string, args, v any) error {
	defer t.d.observe(ctx, query, time.Now())
	return t.Tx.Query(ctx, query, args, v)
}
