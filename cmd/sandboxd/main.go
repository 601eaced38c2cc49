package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tallgy/qiankun/internal/config"
	"github.com/tallgy/qiankun/internal/engine"
	"github.com/tallgy/qiankun/internal/lifecycle"
	"github.com/tallgy/qiankun/internal/logging"
	"github.com/tallgy/qiankun/internal/monitoring"
	"github.com/tallgy/qiankun/internal/sandbox"
	"github.com/tallgy/qiankun/internal/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()

	realm, eng := engine.NewBrowserRealm(engine.Config{
		FetchTimeout: cfg.Sandbox.FetchTimeout,
		LocationHref: cfg.Sandbox.LocationHref,
		UserAgent:    "sandboxd/1.0 (goja)",
	}, logger.Logger,
		sandbox.WithWhitelist(cfg.Sandbox.Whitelist...),
		sandbox.WithEagerRestore(cfg.Sandbox.EagerRestore),
		sandbox.WithRecorder(metrics),
	)

	ctrl := lifecycle.New(realm, eng,
		lifecycle.WithSingular(cfg.Sandbox.Singular),
		lifecycle.WithLogger(logger.Named("lifecycle").Logger),
	)

	srv := server.New(cfg, ctrl, realm, metrics, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error: " + err.Error())
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
