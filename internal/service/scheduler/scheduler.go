// Package scheduler settles every tier owner of a role once per cadence.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/settlement"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type ScheduleInput struct {
	Type       repo.ScheduleType   `json:"schedule_type"`
	TargetRole authorize.Role      `json:"target_role"`
	Status     repo.ScheduleStatus `json:"status"`
}

// BatchResult sums the runs of one RunBatch call.
type BatchResult struct {
	Created int                 `json:"created_count"`
	Skipped int                 `json:"skipped_count"`
	Failed  int                 `json:"failed_count"`
	Runs    []*repo.ScheduleRun `json:"runs"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Upsert(ctx context.Context, caller authorize.Caller, in ScheduleInput) (*repo.Schedule, error)
	List(ctx context.Context, caller authorize.Caller) ([]*repo.Schedule, error)
	Runs(ctx context.Context, caller authorize.Caller, scheduleID uuid.UUID, limit int) ([]*repo.ScheduleRun, error)

	// RunBatch settles the most recent complete window of every active
	// schedule of typ. Safe to repeat for the same window.
	RunBatch(ctx context.Context, typ repo.ScheduleType, now time.Time) (*BatchResult, error)
	// RunDue runs every active schedule whose next_run_at has passed.
	RunDue(ctx context.Context, now time.Time) ([]*repo.ScheduleRun, error)
}

type Store interface {
	UpsertSchedule(ctx context.Context, s *repo.Schedule) (*repo.Schedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*repo.Schedule, error)
	ListSchedules(ctx context.Context, f repo.ScheduleFilter) ([]*repo.Schedule, error)
	AdvanceSchedule(ctx context.Context, id uuid.UUID, ranAt, next time.Time) error
	InsertScheduleRun(ctx context.Context, r *repo.ScheduleRun) error
	ListScheduleRuns(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*repo.ScheduleRun, error)
	ListActiveMembersByRole(ctx context.Context, role authorize.Role) ([]*repo.Member, error)
}

// Requester is the part of the settlement lifecycle a run drives.
type Requester interface {
	Request(ctx context.Context, caller authorize.Caller, in settlement.RequestInput) (*repo.Settlement, error)
}

// ReportUploader stores run reports. *s3.Client satisfies it.
type ReportUploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type schedulerService struct {
	store        Store
	settlements  Requester
	reports      ReportUploader
	reportPrefix string
	batchTimeout time.Duration
	now          func() time.Time
	newBackOff   func() backoff.BackOff
}

// New builds the scheduler. reports may be nil, in which case run reports
// are only kept in schedule_runs.
func New(store Store, settlements Requester, reports ReportUploader, cfg *config.Config) Service {
	sc := cfg.Scheduler
	prefix := strings.Trim(sc.ReportPrefix, "/")
	if prefix == "" {
		prefix = "settlement-runs"
	}
	return &schedulerService{
		store:        store,
		settlements:  settlements,
		reports:      reports,
		reportPrefix: prefix,
		batchTimeout: time.Duration(sc.BatchTimeoutSeconds) * time.Second,
		now:          func() time.Time { return time.Now().UTC() },
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Window returns the accrual window a run at now settles and when the next
// run is due. Windows are aligned to UTC calendar boundaries so every run
// inside one cadence unit targets the same window.
func Window(typ repo.ScheduleType, now time.Time) (start, end, next time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch typ {
	case repo.ScheduleWeekly:
		return day.AddDate(0, 0, -7), day, day.AddDate(0, 0, 7)
	case repo.ScheduleMonthly:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first.AddDate(0, -1, 0), first, first.AddDate(0, 1, 0)
	default:
		return day.AddDate(0, 0, -1), day, day.AddDate(0, 0, 1)
	}
}

func (s *schedulerService) Upsert(ctx context.Context, caller authorize.Caller, in ScheduleInput) (*repo.Schedule, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if _, ok := authorize.TierForRole(in.TargetRole); !ok || !in.TargetRole.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetRole, in.TargetRole)
	}
	switch in.Status {
	case "":
		in.Status = repo.ScheduleActive
	case repo.ScheduleActive, repo.SchedulePaused:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	now := s.now()
	out, err := s.store.UpsertSchedule(ctx, &repo.Schedule{
		ID:         uuid.Must(uuid.NewV7()),
		Type:       in.Type,
		TargetRole: in.TargetRole,
		Status:     in.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert %s schedule for %s: %w", in.Type, in.TargetRole, err)
	}
	slog.Info("settlement schedule saved", "schedule_id", out.ID, "type", out.Type, "role", out.TargetRole, "status", out.Status)
	return out, nil
}

func (s *schedulerService) List(ctx context.Context, caller authorize.Caller) ([]*repo.Schedule, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	return s.store.ListSchedules(ctx, repo.ScheduleFilter{})
}

func (s *schedulerService) Runs(ctx context.Context, caller authorize.Caller, scheduleID uuid.UUID, limit int) ([]*repo.ScheduleRun, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	if _, err := s.store.GetSchedule(ctx, scheduleID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListScheduleRuns(ctx, scheduleID, limit)
}

func (s *schedulerService) RunBatch(ctx context.Context, typ repo.ScheduleType, now time.Time) (*BatchResult, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	active := repo.ScheduleActive
	schedules, err := s.store.ListSchedules(ctx, repo.ScheduleFilter{Type: &typ, Status: &active})
	if err != nil {
		return nil, fmt.Errorf("list %s schedules: %w", typ, err)
	}
	if len(schedules) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoActiveSchedule, typ)
	}

	res := &BatchResult{}
	var errs []error
	for _, sc := range schedules {
		run, err := s.runSchedule(ctx, sc, now)
		if run != nil {
			res.Runs = append(res.Runs, run)
			res.Created += run.CreatedCount
			res.Skipped += run.SkippedCount
			res.Failed += run.FailedCount
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return res, errors.Join(errs...)
}

func (s *schedulerService) RunDue(ctx context.Context, now time.Time) ([]*repo.ScheduleRun, error) {
	active := repo.ScheduleActive
	due, err := s.store.ListSchedules(ctx, repo.ScheduleFilter{Status: &active, DueBefore: &now})
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	var (
		runs []*repo.ScheduleRun
		errs []error
	)
	for _, sc := range due {
		run, err := s.runSchedule(ctx, sc, now)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return runs, errors.Join(errs...)
}

// runSchedule requests a settlement for every active member of the target
// role. Empty and already settled owners are skipped; other per-owner
// failures are reported without stopping the run. next_run_at only moves
// when the whole cohort was visited.
func (s *schedulerService) runSchedule(ctx context.Context, sc *repo.Schedule, now time.Time) (*repo.ScheduleRun, error) {
	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	start, end, next := Window(sc.Type, now)
	run := &repo.ScheduleRun{
		ID:           uuid.Must(uuid.NewV7()),
		ScheduleID:   sc.ID,
		ScheduleType: sc.Type,
		WindowStart:  start,
		WindowEnd:    end,
		StartedAt:    s.now(),
	}
	log := slog.With("schedule_id", sc.ID, "type", sc.Type, "role", sc.TargetRole,
		"window_start", start, "window_end", end)

	var fatal error
	members, err := s.store.ListActiveMembersByRole(ctx, sc.TargetRole)
	if err != nil {
		fatal = fmt.Errorf("list %s members: %w", sc.TargetRole, err)
	}
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			fatal = fmt.Errorf("run interrupted: %w", err)
			break
		}
		err := s.request(ctx, m, start, end)
		switch {
		case err == nil:
			run.CreatedCount++
		case errors.Is(err, settlement.ErrNothingToSettle), errors.Is(err, settlement.ErrDuplicatePeriod):
			run.SkippedCount++
		default:
			run.FailedCount++
			run.Failures = append(run.Failures, repo.RunFailure{UserID: m.ID, Error: err.Error()})
			log.Warn("scheduler: settlement request failed", "user_id", m.ID, "err", err)
		}
	}

	run.FinishedAt = s.now()
	run.Status = repo.RunSucceeded
	if fatal != nil {
		run.Status = repo.RunFailed
	}

	// The run is recorded even when ctx has expired.
	bg := context.WithoutCancel(ctx)
	if err := s.store.InsertScheduleRun(bg, run); err != nil {
		log.Error("scheduler: record run failed", "run_id", run.ID, "err", err)
	}
	s.upload(bg, run)

	if fatal != nil {
		log.Error("scheduler: run failed, schedule not advanced", "err", fatal, "created", run.CreatedCount)
		return run, fmt.Errorf("schedule %s (%s, %s): %w", sc.ID, sc.Type, sc.TargetRole, fatal)
	}
	if err := s.store.AdvanceSchedule(bg, sc.ID, now, next); err != nil {
		if !errors.Is(err, repo.ErrStale) {
			return run, fmt.Errorf("advance schedule %s: %w", sc.ID, err)
		}
		log.Info("scheduler: schedule already advanced past this run")
	}
	log.Info("scheduler: run finished",
		"created", run.CreatedCount, "skipped", run.SkippedCount, "failed", run.FailedCount, "next_run_at", next)
	return run, nil
}

func (s *schedulerService) request(ctx context.Context, m *repo.Member, start, end time.Time) error {
	caller := authorize.Caller{UserID: m.ID, Role: m.Role, RegionCode: m.RegionCode}
	_, err := backoff.Retry(ctx, func() (*repo.Settlement, error) {
		st, err := s.settlements.Request(ctx, caller, settlement.RequestInput{
			Type:        repo.TypeRevenue,
			PeriodStart: start,
			PeriodEnd:   end,
			Source:      "schedule",
		})
		if err != nil && !transient(err) {
			return nil, backoff.Permanent(err)
		}
		return st, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(3))
	return err
}

// transient reports whether err may succeed on a second attempt. Domain
// outcomes never do.
func transient(err error) bool {
	for _, domain := range []error{
		settlement.ErrNothingToSettle,
		settlement.ErrDuplicatePeriod,
		settlement.ErrInvalidPeriod,
		settlement.ErrInvalidType,
		settlement.ErrNoTier,
		settlement.ErrNotInfluencer,
		authorize.ErrForbidden,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, domain) {
			return false
		}
	}
	return true
}

func (s *schedulerService) upload(ctx context.Context, run *repo.ScheduleRun) {
	if s.reports == nil {
		return
	}
	body, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		slog.Error("scheduler: encode report failed", "run_id", run.ID, "err", err)
		return
	}
	key := fmt.Sprintf("%s/%s/%s/%s.json",
		s.reportPrefix, run.ScheduleType, run.WindowStart.Format(time.DateOnly), run.ID)
	if err := s.reports.Upload(ctx, key, "application/json", bytes.NewReader(body), int64(len(body))); err != nil {
		slog.Error("scheduler: upload report failed", "run_id", run.ID, "key", key, "err", err)
	}
}
