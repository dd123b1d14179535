// Command reporter runs the daily donation report. By default it starts the
// cron scheduler and the small ops HTTP endpoint and waits; --now runs one
// report synchronously and exits, --test swaps the warehouse for fabricated
// sample data so the render-and-email path can be verified by hand.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	_ "github.com/microsoft/go-mssqldb" // sqlserver driver

	"github.com/goodsteward/donation-reporter/internal/api"
	"github.com/goodsteward/donation-reporter/internal/config"
	"github.com/goodsteward/donation-reporter/internal/dispatch"
	"github.com/goodsteward/donation-reporter/internal/email"
	"github.com/goodsteward/donation-reporter/internal/warehouse"
)

func main() {
	runNow := flag.Bool("now", false, "run one report immediately and exit")
	testData := flag.Bool("test", false, "use fabricated sample data instead of the warehouse")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger, *runNow, *testData); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, runNow, testData bool) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "schedule", cfg.CronSchedule, "test_mode", cfg.TestMode)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	// ── Email (Resend) ────────────────────────────────────────────────────────
	mailer := email.NewResendClient(email.ClientConfig{
		APIKey:         cfg.ResendAPIKey,
		FromAddr:       cfg.EmailFromAddr,
		FromName:       cfg.EmailFromName,
		AlertRecipient: cfg.AlertRecipient,
		TestMode:       cfg.TestMode,
		TestRecipient:  cfg.TestRecipient,
	})

	// ── Warehouse ─────────────────────────────────────────────────────────────
	var fetcher warehouse.Fetcher
	if testData {
		fetcher = warehouse.SampleFetcher{}
		logger.Info("warehouse: using fabricated sample data")
	} else {
		pool, err := openDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		fetcher = warehouse.NewClient(pool, warehouse.Config{
			ProcName:     cfg.StoredProc,
			WarmUpDelay:  cfg.WarmUpDelay,
			CoolDown:     cfg.CoolDown,
			MaxAttempts:  cfg.MaxAttempts,
			QueryTimeout: cfg.QueryTimeout,
		}, logger)
	}

	// ── Dispatcher ────────────────────────────────────────────────────────────
	dispatcher := dispatch.New(fetcher, mailer, dispatch.Config{
		OutputDir:     cfg.OutputDir,
		Recipients:    cfg.Recipients,
		RetentionDays: cfg.RetentionDays,
	}, logger)

	// Root context cancelled by OS signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── One-shot mode ─────────────────────────────────────────────────────────
	if runNow {
		res := dispatcher.Run(ctx)
		if !res.Success {
			return fmt.Errorf("report run failed: %s", res.Message)
		}
		logger.Info("report run complete", "records", res.RecordCount, "files", res.FilePaths)
		return nil
	}

	// ── Scheduled mode ────────────────────────────────────────────────────────
	status := api.NewStatusStore()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CronSchedule, func() {
		status.Set(dispatcher.Run(ctx))
	}); err != nil {
		return fmt.Errorf("cron schedule %q: %w", cfg.CronSchedule, err)
	}
	scheduler.Start()
	logger.Info("scheduler started", "schedule", cfg.CronSchedule)

	// Ops HTTP endpoint.
	srv := &http.Server{
		Addr:         cfg.StatusAddr,
		Handler:      api.NewServer(status, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("status endpoint listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("status server error: %w", err)
	}

	// Let an in-flight run finish: cron.Stop returns a context that is done
	// once running jobs complete.
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the warehouse connection pool. There is deliberately no
// startup ping: the serverless instance may be paused, and each run wakes it
// through the warehouse client's warm-up instead.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// One scheduled run at a time needs very little of a pool.
	pool.SetMaxOpenConns(4)
	pool.SetMaxIdleConns(1)
	pool.SetConnMaxLifetime(30 * time.Minute)
	pool.SetConnMaxIdleTime(5 * time.Minute)

	return pool, nil
}
