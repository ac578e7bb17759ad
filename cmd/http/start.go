package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/api/http"
	"github.com/Alijeyrad/franchise_backend/internal/app"
	"github.com/Alijeyrad/franchise_backend/pkg/logs"
)

func NewStartCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API server and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.ReadConfigFile(cfgPath)
			if err != nil {
				return err
			}

			logger, stopLogs := logs.New(cfg)
			defer stopLogs()
			slog.SetDefault(logger)

			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				app.WorkerModule,
				http.Module,
				fx.Invoke(func(*fiber.App) {}),
				fx.StopTimeout(shutdownTimeout),
				fx.WithLogger(func() fxevent.Logger {
					if strings.EqualFold(cfg.Logging.Level, "debug") {
						return &fxevent.SlogLogger{Logger: logger}
					}
					return fxevent.NopLogger
				}),
			)

			fxApp.Run()
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to wait for graceful shutdown")

	return cmd
}
