package repo

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// pg builds Postgres statements with $n placeholders.
var pg = sql.Dialect(dialect.Postgres)

type scanner interface {
	Scan(dest ...any) error
}

func queryRows[T any](ctx context.Context, eq dialect.ExecQuerier, query string, args []any, scan func(scanner) (T, error)) ([]T, error) {
	var rows sql.Rows
	if err := eq.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(&rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryOne[T any](ctx context.Context, eq dialect.ExecQuerier, query string, args []any, scan func(scanner) (T, error)) (T, error) {
	var zero T
	list, err := queryRows(ctx, eq, query, args, scan)
	if err != nil {
		return zero, err
	}
	if len(list) == 0 {
		return zero, ErrNotFound
	}
	return list[0], nil
}

// exec runs a statement and returns the number of affected rows.
func exec(ctx context.Context, eq dialect.ExecQuerier, query string, args []any) (int64, error) {
	var res stdsql.Result
	if err := eq.Exec(ctx, query, args, &res); err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func strPtr(n stdsql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func timePtr(n stdsql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

// nullable maps the zero string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
