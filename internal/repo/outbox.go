package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const outboxColumns = "id, topic, aggregate_id, payload, status, attempts, available_at, locked_until, last_error, created_at, processed_at"

func scanOutboxEvent(s scanner) (*OutboxEvent, error) {
	var (
		e                 OutboxEvent
		locked, processed sql.NullTime
		lastErr           sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Topic, &e.AggregateID, &e.Payload, &e.Status, &e.Attempts,
		&e.AvailableAt, &locked, &lastErr, &e.CreatedAt, &processed); err != nil {
		return nil, err
	}
	e.LockedUntil, e.ProcessedAt = timePtr(locked), timePtr(processed)
	e.LastError = strPtr(lastErr)
	return &e, nil
}

func (q queries) InsertOutboxEvent(ctx context.Context, e *OutboxEvent) error {
	query, args := pg.Insert("outbox_events").
		Columns("id", "topic", "aggregate_id", "payload", "status", "attempts", "available_at", "created_at").
		Values(e.ID, e.Topic, e.AggregateID, e.Payload, string(OutboxPending), 0, e.AvailableAt, e.CreatedAt).
		Query()
	_, err := exec(ctx, q.eq, query, args)
	return err
}

// ClaimOutboxEvents leases up to limit due events. Events whose lease expired
// while processing are picked up again. SKIP LOCKED lets several relays poll
// the same table.
func (q queries) ClaimOutboxEvents(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*OutboxEvent, error) {
	return queryRows(ctx, q.eq, `UPDATE outbox_events SET
	status = 'processing', attempts = attempts + 1, locked_until = $2
WHERE id IN (
	SELECT id FROM outbox_events
	WHERE (status = 'pending' AND available_at <= $1)
		OR (status = 'processing' AND locked_until < $1)
	ORDER BY available_at
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
RETURNING `+outboxColumns,
		[]any{now, now.Add(lease), limit}, scanOutboxEvent)
}

func (q queries) CompleteOutboxEvent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := exec(ctx, q.eq, `UPDATE outbox_events
SET status = 'done', processed_at = $2, locked_until = NULL, last_error = NULL
WHERE id = $1`, []any{id, at})
	return err
}

func (q queries) RetryOutboxEvent(ctx context.Context, id uuid.UUID, availableAt time.Time, lastErr string) error {
	_, err := exec(ctx, q.eq, `UPDATE outbox_events
SET status = 'pending', available_at = $2, locked_until = NULL, last_error = $3
WHERE id = $1`, []any{id, availableAt, truncate(lastErr, 1024)})
	return err
}

func (q queries) BuryOutboxEvent(ctx context.Context, id uuid.UUID, at time.Time, lastErr string) error {
	_, err := exec(ctx, q.eq, `UPDATE outbox_events
SET status = 'dead', processed_at = $2, locked_until = NULL, last_error = $3
WHERE id = $1`, []any{id, at, truncate(lastErr, 1024)})
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
