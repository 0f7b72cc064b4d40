package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/Jobalyzer/internal/cache"
	"github.com/JonMunkholm/Jobalyzer/internal/config"
	"github.com/JonMunkholm/Jobalyzer/internal/core"
	"github.com/JonMunkholm/Jobalyzer/internal/logging"
	"github.com/JonMunkholm/Jobalyzer/internal/store"
	"github.com/JonMunkholm/Jobalyzer/internal/web"
)

func main() {
	// Overload lets .env win over variables already in the environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("connected to store", "driver", cfg.Store.Driver)

	svcCfg := cfg.ServiceConfig()
	if cfg.Cache.Enabled {
		reports := cache.New(cache.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.Prefix,
		})
		defer reports.Close()
		if err := reports.Ping(ctx); err != nil {
			slog.Warn("report cache unreachable, serving reports uncached", "addr", cfg.Cache.Addr, "error", err)
		} else {
			svcCfg.Cache = reports
			slog.Info("report cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	service := core.NewService(st, svcCfg)
	server := web.NewServer(service, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.RunLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for ingestion runs to complete", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("ingestion runs did not complete in time", "error", err)
			} else {
				slog.Info("all ingestion runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
