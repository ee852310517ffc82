package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/verdict/internal/advisor"
	"github.com/hyperengineering/verdict/internal/api"
	"github.com/hyperengineering/verdict/internal/archive"
	"github.com/hyperengineering/verdict/internal/config"
	"github.com/hyperengineering/verdict/internal/decision"
	"github.com/hyperengineering/verdict/internal/llm"
	"github.com/hyperengineering/verdict/internal/store"
	"github.com/hyperengineering/verdict/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

// devJWTSecret signs tokens when VERDICT_DEV_MODE is set and no secret is
// configured. Never use outside local development.
const devJWTSecret = "verdict-dev-secret-do-not-use"

var rootCmd = &cobra.Command{
	Use:   "verdict",
	Short: "Verdict - guided decision service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(frameworkCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "level", cfg.Log.Level, "dev_mode", config.DevMode())

	secret := jwtSecret(cfg)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	completer := llm.NewRetrying(
		llm.NewOpenAI(llm.OpenAIOptions{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: time.Duration(cfg.LLM.RequestTimeout),
		}),
		cfg.LLM.Retries,
		time.Duration(cfg.LLM.RetryPause),
	)
	adv := advisor.New(completer, advisor.Options{
		StepMaxTokens:    cfg.LLM.StepMaxTokens,
		SummaryMaxTokens: cfg.LLM.SummaryMaxTokens,
		QuickMaxTokens:   cfg.LLM.QuickMaxTokens,
	}, logger)
	slog.Info("advisor initialized", "model", cfg.LLM.Model)

	arc, err := archive.New(cfg.Archive)
	if err != nil {
		db.Close()
		return err
	}
	slog.Info("archive initialized", "enabled", arc.Enabled(), "bucket", cfg.Archive.Bucket)

	// Whoever is generating a summary keeps it until every model attempt
	// could have finished.
	summaryLease := cfg.LLM.CallBudget() + time.Minute
	svc := decision.NewService(db, adv, arc, summaryLease, logger)

	handler := api.NewHandler(svc, adv, db, api.Options{
		Version:                Version,
		Model:                  cfg.LLM.Model,
		JWTSecret:              secret,
		JWTIssuer:              cfg.Auth.Issuer,
		ArchiveEnabled:         arc.Enabled(),
		ModelRequestsPerMinute: cfg.Server.ModelRequestsPerMinute,
		ModelBurst:             cfg.Server.ModelBurst,
	})
	router := api.NewRouter(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	var wg sync.WaitGroup
	summaryWorker := worker.NewSummaryRetryWorker(
		db, svc,
		time.Duration(cfg.Worker.SummaryRetryInterval),
		cfg.Worker.SummaryRetryMaxAttempts,
		cfg.Worker.SummaryRetryBatchSize,
		summaryLease,
	)
	startWorker(ctx, &wg, "summary-retry", summaryWorker.Run)

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error after Shutdown().
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	wg.Wait()

	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// jwtSecret returns the configured signing secret, falling back to
// devJWTSecret in dev mode.
func jwtSecret(cfg *config.Config) string {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret
	}
	slog.Warn("VERDICT_JWT_SECRET not set, using the development secret")
	return devJWTSecret
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
