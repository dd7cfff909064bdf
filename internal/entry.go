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

	"github.com/starford/planner/internal/api"
	"github.com/starford/planner/internal/deckservice"
	"github.com/starford/planner/internal/index"
	"github.com/starford/planner/internal/mcpserver"
	"github.com/starford/planner/internal/sse"
	"github.com/starford/planner/internal/storage"
	"github.com/starford/planner/internal/tree"
)

// components are the wired domain services shared by every entry point.
type components struct {
	logger *slog.Logger
	svc    *deckservice.Service
	db     *index.DB
}

func (c *components) Close() {
	if c.db != nil {
		c.db.Close()
	}
}

// setup builds the logger, storage, tree cache, index and service.
// Log output goes to logOut.
func (a *application) setup(logOut io.Writer, opts ...deckservice.Option) (*components, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("planner_root", cfg.Planner.Root),
		slog.String("index_dsn", cfg.Index.DSN),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize storage. An empty root means an empty planner.
	var (
		store storage.DocumentStore
		root  string
	)
	if cfg.Planner.Root != "" {
		if err := os.MkdirAll(cfg.Planner.Root, 0o755); err != nil {
			return nil, fmt.Errorf("create planner root: %w", err)
		}
		fs, err := storage.NewFS(cfg.Planner.Root)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		store, root = fs, fs.Root()
	} else {
		logger.Warn("no planner root configured, the tree is empty")
	}

	// Initialize the search index.
	db, err := index.Open(cfg.Index.DSN)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	cache := tree.NewCache(tree.NewBuilder(store, cfg.Planner.Icons()), root)
	svc := deckservice.NewService(store, cache, append([]deckservice.Option{
		deckservice.WithLogger(logger),
		deckservice.WithIndex(db),
	}, opts...)...)

	return &components{logger: logger, svc: svc, db: db}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	c, err := app.setup(os.Stdout, deckservice.WithOnChange(broker.Notify))
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger

	// Run initial sync.
	if err := c.svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
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

	g, gCtx := errgroup.WithContext(ctx)

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
		// Open SSE streams only end when the broker closes.
		broker.Close()
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

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	c, err := app.setup(os.Stderr)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.svc.Sync(ctx); err != nil {
		c.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	c.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// PrintTree writes the forest as an outline to the configured output.
func PrintTree(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	c, err := app.setup(io.Discard)
	if err != nil {
		return err
	}
	defer c.Close()

	roots, err := c.svc.Roots(ctx)
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	return tree.Render(app.out, roots)
}
