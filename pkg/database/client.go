package database

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
)

// NewClient opens the ledger database from central config.
func NewClient(cfg config.DatabaseConfig) (*repo.Client, error) {
	return NewClientFromConfig(FromCentralConfig(cfg))
}

// NewClientFromConfig opens the ledger database. With query logging enabled
// every statement is written to slog at debug level and slow ones at warn.
func NewClientFromConfig(cfg Config) (*repo.Client, error) {
	db, err := openSQLDB(cfg)
	if err != nil {
		return nil, err
	}

	var drv dialect.Driver = sql.OpenDB(dialect.Postgres, db)
	if cfg.EnableLogging {
		drv = dialect.DebugWithContext(withSlowLog(drv, cfg.SlowQueryThresholdMs), func(ctx context.Context, v ...any) {
			slog.DebugContext(ctx, "sql", "query", fmt.Sprint(v...))
		})
	}
	return repo.NewClient(drv), nil
}

// Migrate brings the ledger tables up to date. Safe mode never drops columns
// or indexes.
func Migrate(ctx context.Context, client *repo.Client, safe bool) error {
	return repo.Migrate(ctx, client.Driver(),
		schema.WithDropColumn(!safe),
		schema.WithDropIndex(!safe),
	)
}
