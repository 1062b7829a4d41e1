// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mindyard/internal/api"
	"github.com/starford/mindyard/internal/mcpserver"
	"github.com/starford/mindyard/internal/models"
	"github.com/starford/mindyard/internal/pipeline"
	"github.com/starford/mindyard/internal/sse"
	pkgconfig "github.com/starford/mindyard/pkg/config"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout, output: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	return app, nil
}

// newLogger initializes the structured JSON logger.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := build(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.service.Start(ctx); err != nil {
		return err
	}

	apiRouter := api.NewRouter(c.service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.service.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Hot reload of sanitizer and matcher tunables.
	if app.configPath != "" {
		g.Go(func() error {
			return pkgconfig.Watch(gCtx, app.configPath, 0, logger, func() {
				reloadTunables(app.configPath, c, logger)
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if err := c.service.Stop(shutdownCtx); err != nil {
			logger.Error("Worker pool shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the config watcher exits with the server.
var errShutdown = errors.New("shutdown")

// reloadTunables re-reads the config file and swaps the hot-reloadable
// settings. An invalid file is logged and the last good settings stay.
func reloadTunables(path string, c *components, logger *slog.Logger) {
	fresh := NewDefaultConfig()
	if err := pkgconfig.Load(path, fresh); err != nil {
		logger.Warn("config reload rejected", slog.String("error", err.Error()))
		return
	}
	c.applyTunables(fresh)
	logger.Info("config reloaded",
		slog.Float64("confidence_threshold", fresh.Sanitizer.ConfidenceThreshold),
		slog.Float64("min_score", fresh.Matcher.MinScore))
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// redirected, since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := build(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.service.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.service.Stop(stopCtx)
	}()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.service, app.version).ServeStdio()
}

// DistillReport is the output of a one-shot Distill run.
type DistillReport struct {
	SubmissionID string                       `json:"submission_id"`
	Verdicts     []models.SanitizationVerdict `json:"verdicts"`
	Records      []models.InsightRecord       `json:"records"`
}

// Distill runs a single note synchronously through the pipeline for userID,
// stores the resulting records and writes a JSON report to the output.
func Distill(ctx context.Context, userID string, note []byte, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	if userID == "" {
		return errors.New("distill: user id is required")
	}
	logger := app.newLogger()

	c, err := build(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id := uuid.NewString()
	res, err := c.pipeline.Run(ctx, pipeline.Input{
		SubmissionID: id,
		OwnerRef:     c.hasher.Owner(userID),
		Text:         string(note),
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("distill: %w", err)
	}

	report := DistillReport{SubmissionID: id, Verdicts: res.Verdicts, Records: res.Records}
	if report.Verdicts == nil {
		report.Verdicts = []models.SanitizationVerdict{}
	}
	if report.Records == nil {
		report.Records = []models.InsightRecord{}
	}
	enc := json.NewEncoder(app.output)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
