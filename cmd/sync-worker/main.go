package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/ShopShip/config"
	"github.com/BearBump/ShopShip/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	log, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		panic(fmt.Sprintf("logger init error, %v", err))
	}
	defer func() { _ = log.Sync() }()

	httpAddr := cfg.Worker.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunSyncWorker(ctx, cfg, defaultWorkerFactories(), workerHTTPOpts{
		httpAddr:    httpAddr,
		swaggerPath: os.Getenv("swaggerPath"),
	}, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
