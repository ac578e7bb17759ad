package repo

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"strings"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var scheduleColumns = []string{
	"id", "schedule_type", "target_role", "status", "last_run_at", "next_run_at", "created_at", "updated_at",
}

func scanSchedule(s scanner) (*Schedule, error) {
	var (
		sc            Schedule
		lastRun, next stdsql.NullTime
	)
	if err := s.Scan(&sc.ID, &sc.Type, &sc.TargetRole, &sc.Status, &lastRun, &next, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	sc.LastRunAt, sc.NextRunAt = timePtr(lastRun), timePtr(next)
	return &sc, nil
}

var upsertScheduleSQL = `INSERT INTO settlement_schedules
	(id, schedule_type, target_role, status, next_run_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (schedule_type, target_role) DO UPDATE SET
	status = EXCLUDED.status,
	next_run_at = COALESCE(EXCLUDED.next_run_at, settlement_schedules.next_run_at),
	updated_at = EXCLUDED.updated_at
RETURNING ` + strings.Join(scheduleColumns, ", ")

// UpsertSchedule creates the (type, role) schedule or updates its status.
func (q queries) UpsertSchedule(ctx context.Context, s *Schedule) (*Schedule, error) {
	args := []any{s.ID, string(s.Type), string(s.TargetRole), string(s.Status), s.NextRunAt, s.UpdatedAt}
	out, err := queryOne(ctx, q.eq, upsertScheduleSQL, args, scanSchedule)
	return out, mapErr(err)
}

func (q queries) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	query, args := pg.Select(scheduleColumns...).
		From(sql.Table("settlement_schedules")).
		Where(sql.EQ("id", id)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanSchedule)
}

func (q queries) ListSchedules(ctx context.Context, f ScheduleFilter) ([]*Schedule, error) {
	sel := pg.Select(scheduleColumns...).From(sql.Table("settlement_schedules"))
	if f.Type != nil {
		sel.Where(sql.EQ("schedule_type", string(*f.Type)))
	}
	if f.Status != nil {
		sel.Where(sql.EQ("status", string(*f.Status)))
	}
	if f.DueBefore != nil {
		sel.Where(sql.Or(
			sql.IsNull("next_run_at"),
			sql.LTE("next_run_at", *f.DueBefore),
		))
	}
	sel.OrderBy("schedule_type", "target_role")
	query, args := sel.Query()
	return queryRows(ctx, q.eq, query, args, scanSchedule)
}

func (q queries) AdvanceSchedule(ctx context.Context, id uuid.UUID, ranAt, next time.Time) error {
	n, err := exec(ctx, q.eq, `UPDATE settlement_schedules
SET last_run_at = $2, next_run_at = $3, updated_at = $2
WHERE id = $1 AND (next_run_at IS NULL OR next_run_at < $3)`, []any{id, ranAt, next})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}

var scheduleRunColumns = []string{
	"id", "schedule_id", "schedule_type", "window_start", "window_end",
	"created_count", "skipped_count", "failed_count", "failures", "status", "started_at", "finished_at",
}

func scanScheduleRun(s scanner) (*ScheduleRun, error) {
	var (
		r        ScheduleRun
		failures stdsql.NullString
	)
	if err := s.Scan(&r.ID, &r.ScheduleID, &r.ScheduleType, &r.WindowStart, &r.WindowEnd,
		&r.CreatedCount, &r.SkippedCount, &r.FailedCount, &failures, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	if failures.Valid && failures.String != "" {
		if err := json.Unmarshal([]byte(failures.String), &r.Failures); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (q queries) InsertScheduleRun(ctx context.Context, r *ScheduleRun) error {
	var failures any
	if len(r.Failures) > 0 {
		b, err := json.Marshal(r.Failures)
		if err != nil {
			return err
		}
		failures = string(b)
	}
	query, args := pg.Insert("schedule_runs").
		Columns(scheduleRunColumns...).
		Values(r.ID, r.ScheduleID, string(r.ScheduleType), r.WindowStart, r.WindowEnd,
			r.CreatedCount, r.SkippedCount, r.FailedCount, failures, string(r.Status), r.StartedAt, r.FinishedAt).
		Query()
	_, err := exec(ctx, q.eq, query, args)
	return err
}

func (q queries) ListScheduleRuns(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*ScheduleRun, error) {
	sel := pg.Select(scheduleRunColumns...).
		From(sql.Table("schedule_runs")).
		Where(sql.EQ("schedule_id", scheduleID)).
		OrderBy(sql.Desc("started_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	return queryRows(ctx, q.eq, query, args, scanScheduleRun)
}
