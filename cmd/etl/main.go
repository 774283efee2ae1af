package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/buoy-data-etl/internal/adapter/http"
	"github.com/couchcryptid/buoy-data-etl/internal/adapter/inbox"
	kafkaadapter "github.com/couchcryptid/buoy-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/buoy-data-etl/internal/adapter/ledger"
	"github.com/couchcryptid/buoy-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/buoy-data-etl/internal/config"
	"github.com/couchcryptid/buoy-data-etl/internal/domain"
	"github.com/couchcryptid/buoy-data-etl/internal/observability"
	"github.com/couchcryptid/buoy-data-etl/internal/pipeline"

	_ "time/tzdata"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	stations, err := config.LoadStations(cfg.StationsFile)
	if err != nil {
		logger.Error("failed to load stations", "error", err)
		os.Exit(1)
	}
	for _, s := range stations {
		logger.Info("station configured", "station", s.ID, "mode", s.Mode(), "pattern", s.FilePattern, "timezone", s.Timezone)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	var processed pipeline.Ledger
	switch cfg.LedgerBackend {
	case config.LedgerSQLite:
		db, err := sqlite.Open(ctx, cfg.LedgerSQLitePath, clock)
		if err != nil {
			logger.Error("failed to open sqlite ledger", "path", cfg.LedgerSQLitePath, "error", err)
			os.Exit(1)
		}
		defer db.Close() //nolint:errcheck // process exit
		processed = db
		logger.Info("sqlite ledger enabled", "path", cfg.LedgerSQLitePath)
	default:
		processed = ledger.NewMemory(cfg.LedgerCacheSize)
		logger.Info("in-memory ledger enabled", "max_entries", cfg.LedgerCacheSize)
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	var loader pipeline.BatchLoader = writer
	if cfg.PublishRate > 0 {
		loader = pipeline.NewRateLimitedLoader(writer, cfg.PublishRate, cfg.PublishBurst)
		logger.Info("publish rate limit enabled", "rate", cfg.PublishRate, "burst", cfg.PublishBurst)
	}

	decoder := domain.NewBuoyDecoder(domain.PatternMatcher{}, clock)
	transformer := pipeline.NewTransformer(decoder, clock)

	p := pipeline.New(stations, inbox.NewDir(cfg.InboxDir), transformer, processed, loader, logger, metrics,
		pipeline.Options{PollInterval: cfg.PollInterval, Clock: clock})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
