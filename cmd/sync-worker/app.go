package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/ShopShip/config"
	"github.com/BearBump/ShopShip/internal/broker"
	"github.com/BearBump/ShopShip/internal/broker/kafka"
	"github.com/BearBump/ShopShip/internal/cache"
	"github.com/BearBump/ShopShip/internal/cache/rediscache"
	"github.com/BearBump/ShopShip/internal/integrations/payment/razorpay"
	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/integrations/shipping/providers"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/BearBump/ShopShip/internal/services/orders"
	"github.com/BearBump/ShopShip/internal/services/poller"
	"github.com/BearBump/ShopShip/internal/storage/pgorders"
	"go.uber.org/zap"
)

// workerStore is what both the poller and the order workflow need from storage.
type workerStore interface {
	poller.Repository
	orders.Repository
}

type workerFactories struct {
	newStorage        func(cfg *config.Config) (store workerStore, closeFn func(), err error)
	newPublisher      func(cfg *config.Config) (pub broker.Publisher, closeFn func())
	newRateLimiter    func(cfg *config.Config) cache.Limiter
	newShippingClient func(cfg *config.Config, logger *zap.Logger) shipping.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgorders.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newPublisher: func(cfg *config.Config) (broker.Publisher, func()) {
			if cfg.Kafka.Host == "" {
				return broker.Noop{}, func() {}
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			p := kafka.NewProducer(brokers)
			return p, func() { _ = p.Close() }
		},
		newRateLimiter: func(cfg *config.Config) cache.Limiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newShippingClient: func(cfg *config.Config, logger *zap.Logger) shipping.Client {
			return providers.New(cfg.Shipping, logger)
		},
	}
}

func plannerConfig(w config.WorkerConfig) poller.PlannerConfig {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return poller.PlannerConfig{
		InTransitMinDelay: sec(w.NextSyncInTransitMinSeconds),
		InTransitMaxDelay: sec(w.NextSyncInTransitMaxSeconds),
		UnknownDelay:      sec(w.NextSyncUnknownSeconds),
		Backoff1:          sec(w.Backoff1Seconds),
		Backoff2:          sec(w.Backoff2Seconds),
		Backoff3:          sec(w.Backoff3Seconds),
		Backoff4:          sec(w.Backoff4Seconds),
	}
}

func buildPoller(cfg *config.Config, store workerStore, pub broker.Publisher, rl cache.Limiter, ship shipping.Client, logger *zap.Logger) *poller.Poller {
	topic := cfg.Kafka.ShippingUpdatedTopicName
	if topic == "" {
		topic = "shipping.updated"
	}

	pollInterval := time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}
	batchSize := cfg.Worker.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	lease := time.Duration(cfg.Worker.LeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.Worker.RateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 30
	}

	svc := orders.New(store, ship, razorpay.NewVerifier(cfg.Payment.KeySecret), pub, topic, logger)
	return poller.New(store, svc, rl, logger).
		WithSettings(pollInterval, batchSize, lease, rlPerMin).
		WithPlanner(poller.NewPlanner(plannerConfig(cfg.Worker), nil))
}

// RunSyncWorker runs the poller and, when opts carry an address, the ops HTTP server.
// It returns when ctx is done or either of them fails.
func RunSyncWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerHTTPOpts, logger *zap.Logger) error {
	log := logging.OrNop(logger)

	store, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	pub, closePub := f.newPublisher(cfg)
	if closePub != nil {
		defer closePub()
	}
	rl := f.newRateLimiter(cfg)
	ship := f.newShippingClient(cfg, log)

	p := buildPoller(cfg, store, pub, rl, ship, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	if opts.httpAddr != "" {
		opts.poller = p
		opts.cfg = cfg
		go func() {
			httpErr <- runWorkerHTTPServer(runCtx, opts)
		}()
	}

	pollErr := make(chan error, 1)
	go func() { pollErr <- p.Run(runCtx) }()

	select {
	case err := <-pollErr:
		return err
	case err := <-httpErr:
		cancel()
		<-pollErr
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
}
