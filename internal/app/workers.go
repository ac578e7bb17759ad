package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/directory"
	"github.com/Alijeyrad/franchise_backend/internal/service/notification"
	"github.com/Alijeyrad/franchise_backend/internal/service/outbox"
	"github.com/Alijeyrad/franchise_backend/internal/service/payout"
	"github.com/Alijeyrad/franchise_backend/internal/service/revenue"
	"github.com/Alijeyrad/franchise_backend/internal/service/scheduler"
	"github.com/Alijeyrad/franchise_backend/pkg/email"
	"github.com/Alijeyrad/franchise_backend/pkg/payrail"
	redispkg "github.com/Alijeyrad/franchise_backend/pkg/redis"
	"github.com/Alijeyrad/franchise_backend/pkg/sms"
)

// WorkerModule registers the background workers: the outbox relay, the
// schedule ticker and the transaction event subscriber.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterRelay),
	fx.Invoke(RegisterTicker),
	fx.Invoke(RegisterTransactionSubscriber),
)

type RelayParams struct {
	fx.In

	Lc        fx.Lifecycle
	Cfg       *config.Config
	DB        *repo.Client
	NC        *nats.Conn `optional:"true"`
	Email     *email.Client
	SMS       *sms.Client
	Rail      *payrail.Client
	Directory directory.Service
}

// NewRelay wires the notification and payout handlers onto an outbox relay.
func NewRelay(p RelayParams) *outbox.Relay {
	var pub notification.Publisher
	if p.NC != nil {
		pub = p.NC
	}
	notifier := notification.New(p.DB, pub, p.Email, p.SMS, p.Cfg)
	relay := outbox.NewRelay(p.DB, p.Cfg)
	relay.Register(outbox.TopicSettlementApproved, notifier)
	relay.Register(outbox.TopicSettlementPaid, notifier)
	relay.Register(outbox.TopicPayoutRequested, payout.New(p.DB, p.Directory, p.Rail))
	return relay
}

func RegisterRelay(p RelayParams) {
	if !p.Cfg.Outbox.Enabled {
		slog.Info("outbox relay disabled")
		return
	}
	relay := NewRelay(p)
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			relay.Start()
			slog.Info("outbox relay started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return relay.Stop(ctx)
		},
	})
}

func RegisterTicker(lc fx.Lifecycle, cfg *config.Config, svc scheduler.Service, rdb *redis.Client) {
	if !cfg.Scheduler.Enabled {
		slog.Info("settlement scheduler disabled")
		return
	}
	ticker := scheduler.NewTicker(svc, redispkg.NewLocker(rdb, redispkg.FromCentralConfig(cfg.Redis).LockPrefix()), cfg)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ticker.Start()
			slog.Info("settlement scheduler started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return ticker.Stop(ctx)
		},
	})
}

type SubscriberParams struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     *config.Config
	NC      *nats.Conn `optional:"true"`
	Revenue revenue.Service
}

func RegisterTransactionSubscriber(p SubscriberParams) {
	if p.NC == nil {
		return
	}
	subject := TransactionSubject(p.Cfg)
	var sub *nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			sub, err = p.NC.QueueSubscribe(subject, transactionQueue, func(msg *nats.Msg) {
				handleTransaction(p.Revenue, msg)
			})
			if err != nil {
				return err
			}
			slog.Info("transaction subscriber started", "subject", subject)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if sub == nil {
				return nil
			}
			return sub.Drain()
		},
	})
}
