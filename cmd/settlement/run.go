package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/app"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/scheduler"
	"github.com/Alijeyrad/franchise_backend/pkg/logs"
)

// NewRunCommand runs one settlement batch outside the server, for cron-driven
// deployments that keep the in-process scheduler disabled.
func NewRunCommand() *cobra.Command {
	var (
		scheduleType string
		at           string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Settle the last complete window of every active schedule of a type",
		RunE: func(cmd *cobra.Command, args []string) error {
			typ := repo.ScheduleType(scheduleType)
			if !typ.Valid() {
				return fmt.Errorf("unknown schedule type %q (daily, weekly, monthly)", scheduleType)
			}
			now := time.Now().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = t.UTC()
			}

			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfigFile(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			logger, stopLogs := logs.New(cfg)
			defer stopLogs()
			slog.SetDefault(logger)

			var svc scheduler.Service
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				fx.Populate(&svc),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)
			if err := fxApp.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := fxApp.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
				defer stop()
				_ = fxApp.Stop(stopCtx)
			}()

			res, runErr := svc.RunBatch(ctx, typ, now)
			if res != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("settlement run: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scheduleType, "schedule", string(repo.ScheduleDaily), "Schedule type to run: daily, weekly or monthly")
	cmd.Flags().StringVar(&at, "at", "", "Reference time (RFC3339); defaults to now")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum time for the whole batch")

	return cmd
}
