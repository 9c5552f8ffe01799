// Command fleetmon runs the agent-fleet monitor: it tails Claude Code's
// local history/session/stats-cache files, aggregates derived events into
// the shared state store, and serves the dashboard snapshot, alerts feed,
// SSE stream, and push endpoint described in spec.md.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/adred-codev/fleetmon/internal/clock"
	"github.com/adred-codev/fleetmon/internal/collector"
	"github.com/adred-codev/fleetmon/internal/config"
	"github.com/adred-codev/fleetmon/internal/httpapi"
	"github.com/adred-codev/fleetmon/internal/logging"
	"github.com/adred-codev/fleetmon/internal/ratelimit"
	"github.com/adred-codev/fleetmon/internal/sse"
	"github.com/adred-codev/fleetmon/internal/store"
	"github.com/adred-codev/fleetmon/internal/telemetry"
)

const processSampleInterval = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("automaxprocs: failed to set GOMAXPROCS", zap.Error(err))
	}

	registry := telemetry.NewRegistry()
	ids := clock.New()
	hub := sse.NewHub(registry)
	hub.StartSweeper()
	defer hub.Stop()

	st := store.New(ids, hub, registry)

	limiter := ratelimit.New(cfg.Push.RateRPS, cfg.Push.RateBurst)

	col := collector.New(collector.Config{
		ClaudeHome:    cfg.Claude.Home,
		PollInterval:  cfg.Claude.PollInterval,
		BackfillLines: cfg.Claude.BackfillLines,
	}, st, ids, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go registry.StartProcessSampler(ctx, processSampleInterval)
	go col.Run(ctx)
	go reapLimiterPeriodically(ctx, limiter)

	srv := httpapi.NewServer(httpapi.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		PublicDir:   cfg.Server.PublicDir,
		ReadTimeout: cfg.Server.ReadTimeout,
		APIKey:      cfg.Push.APIKey,
	}, logger, st, hub, ids, limiter)

	if cfg.Metrics.ListenAddr == "" {
		srv.SetMetricsHandler(httpapi.MetricsAdapter(registry.Handler()))
	} else {
		metricsSrv := newMetricsServer(cfg.Metrics.ListenAddr, registry)
		go func() {
			logger.Info("metrics http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics http server error", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	if err := srv.Start(); err != nil {
		logger.Fatal("http surface failed to start", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	srv.Stop()
	logger.Info("http surface stopped")
}

func newMetricsServer(addr string, registry *telemetry.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func reapLimiterPeriodically(ctx context.Context, limiter *ratelimit.Limiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Reap()
		}
	}
}
