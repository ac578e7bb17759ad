package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/database"
	"github.com/Alijeyrad/franchise_backend/pkg/email"
	"github.com/Alijeyrad/franchise_backend/pkg/observability"
	pasetotoken "github.com/Alijeyrad/franchise_backend/pkg/paseto"
	"github.com/Alijeyrad/franchise_backend/pkg/payrail"
	redispkg "github.com/Alijeyrad/franchise_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/franchise_backend/pkg/s3"
	"github.com/Alijeyrad/franchise_backend/pkg/sms"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideRepoClient),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvidePasetoManager),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideSMSClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideS3Client),
	fx.Provide(ProvidePayRailClient),
	fx.Provide(ProvideNatsClient),
)

func ProvideRepoClient(lc fx.Lifecycle, cfg *config.Config) (*repo.Client, error) {
	client, err := database.NewClient(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrations.AutoMigrate {
		if err := database.Migrate(context.Background(), client, cfg.Database.Migrations.SafeMode); err != nil {
			_ = client.Close()
			return nil, err
		}
		slog.Info("database schema migrated")
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return client.Close()
		},
	})
	return client, nil
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewFromConfig(cfg)
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config) (*authorize.Enforcer, error) {
	enforcer, err := authorize.NewEnforcer(cfg.Authorization, database.NewDSN(cfg.Database))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing authorization policy watcher")
			enforcer.Close()
			return nil
		},
	})
	return enforcer, nil
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.NewFromCentral(cfg.Email)
}

func ProvideSMSClient(cfg *config.Config) (*sms.Client, error) {
	return sms.NewFromConfig(cfg.SMS)
}

// ProvideS3Client returns nil when object storage is disabled.
func ProvideS3Client(cfg *config.Config) (*s3pkg.Client, error) {
	return s3pkg.New(cfg.S3)
}

func ProvidePayRailClient(cfg *config.Config) *payrail.Client {
	return payrail.New(cfg.PayRail)
}

// ProvideNatsClient returns nil when no NATS URL is configured; the
// notifier and the transaction subscriber then stay off.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if cfg.Nats.URL == "" {
		slog.Warn("nats url not configured, event publishing disabled")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL,
		nats.Name(cfg.Observability.ServiceName),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Observability.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.Tracing.OTLPInsecure,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
