package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ShopShip/config"
	"github.com/BearBump/ShopShip/internal/api/httpapi"
	"github.com/BearBump/ShopShip/internal/broker"
	"github.com/BearBump/ShopShip/internal/broker/kafka"
	"github.com/BearBump/ShopShip/internal/cache/rediscache"
	"github.com/BearBump/ShopShip/internal/integrations/payment/razorpay"
	"github.com/BearBump/ShopShip/internal/integrations/shipping/providers"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/BearBump/ShopShip/internal/services/keepalive"
	"github.com/BearBump/ShopShip/internal/services/orders"
	"github.com/BearBump/ShopShip/internal/storage/pgorders"
	"go.uber.org/zap"
)

const (
	defaultHTTPAddr = ":5000"
	defaultTopic    = "shipping.updated"
)

type shopAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      shopAPIOpts
	api       *httpapi.API
	consumer  *kafka.Consumer
	producer  *kafka.Producer
	cache     *rediscache.RedisCache
	keepAlive keepalive.KeepAlive
	log       *zap.Logger
	closeDB   func()
}

func mustBootstrapShopAPI() *shopAPIApp {
	// without configPath everything comes from the environment
	cfgPath := os.Getenv("configPath")
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	log, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		panic(fmt.Sprintf("logger init error, %v", err))
	}

	httpAddr := cfg.App.HTTPAddr
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}
	consumerGroup := cfg.App.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "shop-api"
	}
	topic := cfg.Kafka.ShippingUpdatedTopicName
	if topic == "" {
		topic = defaultTopic
	}
	cacheTTL := time.Duration(cfg.App.TrackingCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	st := mustOpenPostgresWithRetry(postgresConnString(cfg), 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	app := &shopAPIApp{log: log, cache: rc, closeDB: st.Close}

	var pub broker.Publisher = broker.Noop{}
	if cfg.Kafka.Host != "" {
		brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
		app.producer = kafka.NewProducer(brokers)
		app.consumer = kafka.NewConsumer(brokers, topic, consumerGroup).WithLogger(log)
		pub = app.producer
	} else {
		log.Warn("kafka not configured, shipping events are not published")
	}

	ship := providers.New(cfg.Shipping, log)
	pay := razorpay.New(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.KeySecret,
		time.Duration(cfg.Payment.TimeoutSeconds)*time.Second, log)
	verifier := razorpay.NewVerifier(cfg.Payment.KeySecret)

	svc := orders.New(st, ship, verifier, pub, topic, log)

	app.keepAlive = keepalive.New(cfg.KeepAlive.Enabled || cfg.App.Env == "production", keepalive.Config{
		BackendURL:          cfg.KeepAlive.BackendURL,
		PingInterval:        time.Duration(cfg.KeepAlive.PingIntervalMs) * time.Millisecond,
		HealthCheckInterval: time.Duration(cfg.KeepAlive.HealthCheckIntervalMs) * time.Millisecond,
	}, log)

	app.api = httpapi.New(httpapi.Deps{
		Orders:    svc,
		Shipping:  ship,
		Payments:  pay,
		Verifier:  verifier,
		Cache:     rc,
		Limiter:   rl,
		KeepAlive: app.keepAlive,
		Logger:    log,
	}, httpapi.Options{
		Version:            cfg.App.Version,
		ClientURL:          cfg.App.ClientURL,
		SwaggerPath:        swaggerPath,
		CacheTTL:           cacheTTL,
		RateLimitPerMinute: int64(cfg.App.RateLimitPerMinute),
	})

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = shopAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		topic:         topic,
		consumerGroup: consumerGroup,
	}
	return app
}

func postgresConnString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *shopAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.keepAlive != nil {
		a.keepAlive.Stop()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
	_ = a.log.Sync()
}

func (a *shopAPIApp) Run() error {
	a.keepAlive.Start(a.ctx)
	var consumer shippingConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runShopAPI(a.ctx, a.opts, a.api.Handler(), consumer, a.cache, a.log)
}
