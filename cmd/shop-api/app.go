package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/ShopShip/internal/broker/messages"
	"github.com/BearBump/ShopShip/internal/cache"
	"github.com/BearBump/ShopShip/internal/logging"
	"go.uber.org/zap"
)

type shopAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type shippingConsumer interface {
	ConsumeShippingUpdated(ctx context.Context, handler func(ctx context.Context, ev messages.ShippingUpdated) error) error
}

// runShopAPI serves handler until ctx is done. When consumer is set, shipping events drop the
// cached tracking response of the affected AWB.
func runShopAPI(ctx context.Context, opts shopAPIOpts, handler http.Handler, consumer shippingConsumer, c cache.BytesCache, logger *zap.Logger) error {
	log := logging.OrNop(logger)
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, handler, log)
	}()

	if consumer != nil {
		go func() {
			log.Info("kafka consumer started", zap.String("topic", opts.topic), zap.String("group", opts.consumerGroup))
			err := consumer.ConsumeShippingUpdated(ctx, func(ctx context.Context, ev messages.ShippingUpdated) error {
				return dropTracking(ctx, c, ev)
			})
			if err != nil && ctx.Err() == nil {
				log.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func dropTracking(ctx context.Context, c cache.BytesCache, ev messages.ShippingUpdated) error {
	if c == nil || ev.AWBCode == "" {
		return nil
	}
	return c.Delete(ctx, cache.TrackingKey(ev.AWBCode))
}

func runHTTPServer(ctx context.Context, lis net.Listener, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
	return srv.Serve(lis)
}
