// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/quill/internal/aibridge"
	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/chat"
	"github.com/starford/quill/internal/dialogue"
	"github.com/starford/quill/internal/images"
	"github.com/starford/quill/internal/jobs"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/notestore"
	"github.com/starford/quill/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logWriter: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the JSON logger, teeing into a rotated file when
// app.log_file is set.
func newLogger(cfg ApplicationConfig, w io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = io.NopCloser(nil)
	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(w, rotated)
		closer = rotated
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})), closer
}

// openStores prepares the data root and opens the note store.
func openStores(cfg *Config) (*storage.FS, *notestore.Store, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create storage dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	repo, err := notestore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init note store: %w", err)
	}
	return fs, repo, nil
}

func newBridge(ctx context.Context, cfg AIConfig, logger *slog.Logger) (aibridge.Bridge, error) {
	if cfg.Provider != AIProviderGemini {
		logger.Info("AI bridge disabled")
		return aibridge.Disabled{}, nil
	}
	g, err := aibridge.NewGemini(ctx, aibridge.GeminiConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		BaseURL: cfg.BaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init AI bridge: %w", err)
	}
	return g, nil
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Run starts the chat server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, logCloser := newLogger(cfg.App, app.logWriter)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ai_provider", cfg.AI.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	fs, repo, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("Storage ready", slog.String("data_root", fs.Root()))

	bridge, err := newBridge(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}

	hub := chat.NewHub(logger)
	defer hub.Close()

	machine := dialogue.NewMachine(repo, bridge, hub, logger)
	attacher := images.NewAttacher(repo, fs, cfg.Images.MaxPerNote, logger)
	auth := api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthHandler(nil))
	r.Get("/health/ready", healthHandler(repo.Ping))

	r.Mount("/api", api.NewRouter(repo, attacher, fs, cfg.Auth.AuthEnabled(), cfg.Auth.Token))
	r.With(auth).Get("/attachments/{filename}", api.NewAttachmentHandler(fs).ServeFile)
	r.With(auth).Handle("/ws", chat.NewServer(hub, machine, repo, logger).Handler())

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Summary.Enabled {
		summary := &jobs.Summary{Repo: repo, Bridge: bridge, Out: hub, Window: cfg.Summary.Window, Logger: logger}
		g.Go(func() error { return summary.Run(gCtx, cfg.Summary.Interval) })
	}

	snapshot := &jobs.Snapshot{Repo: repo, Dst: fs, Logger: logger}
	g.Go(func() error { return snapshot.Run(gCtx, cfg.Snapshot.Interval) })

	if cfg.Images.InboxDir != "" {
		g.Go(func() error {
			return images.WatchInbox(gCtx, cfg.Images.InboxDir, attacher, logger, func(n models.Note, _ string) {
				hub.Broadcast(fmt.Sprintf("🖼️ Image added to note '%s' (ID: %d).", n.Title, n.ID))
			})
		})
	}

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
		cancel()

		logger.Info("Shutting down server...")
		// Open WebSocket connections are hijacked and not tracked by
		// Shutdown; closing the hub ends them.
		hub.Close()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to the configured
// writer (stderr from the CLI) since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, logCloser := newLogger(cfg.App, app.logWriter)
	defer logCloser.Close()
	slog.SetDefault(logger)

	fs, repo, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	attacher := images.NewAttacher(repo, fs, cfg.Images.MaxPerNote, logger)
	srv := mcpserver.New(repo, attacher)

	logger.Info("MCP server starting on stdio")
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
