package app

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/commission"
	"github.com/Alijeyrad/franchise_backend/internal/service/directory"
	"github.com/Alijeyrad/franchise_backend/internal/service/influencer"
	"github.com/Alijeyrad/franchise_backend/internal/service/revenue"
	"github.com/Alijeyrad/franchise_backend/internal/service/scheduler"
	"github.com/Alijeyrad/franchise_backend/internal/service/settlement"
	"github.com/Alijeyrad/franchise_backend/internal/service/stats"
	redispkg "github.com/Alijeyrad/franchise_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/franchise_backend/pkg/s3"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideCommissionService,
		ProvideRevenueService,
		ProvideSettlementService,
		ProvideSchedulerService,
		ProvideDirectoryService,
		ProvideInfluencerService,
		ProvideStatsService,
	),
)

func ProvideCommissionService(db *repo.Client) commission.Service {
	return commission.New(db)
}

func ProvideRevenueService(db *repo.Client, rules commission.Service, cfg *config.Config) revenue.Service {
	return revenue.New(db, rules, cfg)
}

func ProvideSettlementService(db *repo.Client) settlement.Service {
	return settlement.New(db)
}

func ProvideSchedulerService(db *repo.Client, settlements settlement.Service, s3c *s3pkg.Client, cfg *config.Config) scheduler.Service {
	var reports scheduler.ReportUploader
	if s3c != nil {
		reports = s3c
	}
	return scheduler.New(db, settlements, reports, cfg)
}

func ProvideDirectoryService(db *repo.Client, cfg *config.Config) (directory.Service, error) {
	return directory.New(db, cfg)
}

func ProvideInfluencerService(db *repo.Client, cfg *config.Config) influencer.Service {
	return influencer.New(db, cfg)
}

func ProvideStatsService(db *repo.Client, rdb *redis.Client, cfg *config.Config) stats.Service {
	return stats.New(db, redispkg.NewCache(rdb, redispkg.FromCentralConfig(cfg.Redis).CachePrefix()))
}
