// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VA7DBI/skillswap/auth"
	"github.com/VA7DBI/skillswap/backend"
	"github.com/VA7DBI/skillswap/config"
	_ "github.com/VA7DBI/skillswap/docs"
	"github.com/VA7DBI/skillswap/logging"
	"github.com/VA7DBI/skillswap/session"
	"github.com/VA7DBI/skillswap/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
)

// @title           SkillSwap Session Gateway
// @version         1.0
// @description     Local gateway owning the SkillSwap client authentication state.
// @host            localhost:8081
// @BasePath        /
func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, App: "skillswap"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	durable, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	if c, ok := durable.(interface{ Close() error }); ok {
		defer c.Close()
	}

	cache := auth.NewTokenCache(auth.CacheOptions{
		Capacity:     cfg.Cache.Capacity,
		DefaultTTL:   cfg.Cache.DefaultTTL,
		SafetyMargin: *cfg.Cache.SafetyMargin,
	})
	go cache.Run(ctx, cfg.Cache.SweepInterval)

	mgr, err := session.New(session.Options{
		Durable:   durable,
		Ephemeral: storage.NewMemoryStore(),
		Backend:   backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout),
		Cache:     cache,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	mgr.InitializeStore(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	registerRoutes(r, NewGateway(mgr, logger), cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr), zap.String("storage", cfg.Storage.Driver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
