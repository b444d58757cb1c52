// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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
	"golang.org/x/sync/errgroup"

	"github.com/starford/designtrail/internal/api"
	"github.com/starford/designtrail/internal/bridge"
	"github.com/starford/designtrail/internal/host"
	"github.com/starford/designtrail/internal/index"
	"github.com/starford/designtrail/internal/kvstore"
	"github.com/starford/designtrail/internal/mcpserver"
	"github.com/starford/designtrail/internal/metadata"
	"github.com/starford/designtrail/internal/preferences"
	"github.com/starford/designtrail/internal/recordservice"
	"github.com/starford/designtrail/internal/session"
	"github.com/starford/designtrail/internal/sse"
)

// services is the wiring shared by the HTTP server and the MCP server.
type services struct {
	store   kvstore.Store
	doc     *host.Document
	repo    *metadata.Repository
	index   *index.Service
	prefs   *preferences.Service
	records *recordservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openServices opens the store and the host document. events may be nil.
func openServices(cfg *Config, logger *slog.Logger, events recordservice.Events) (*services, error) {
	store, err := kvstore.Open(cfg.Store.Options())
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	var doc *host.Document
	if cfg.Host.Document != "" {
		doc, err = host.Load(cfg.Host.Document, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("load host document: %w", err)
		}
	} else {
		logger.Warn("no host document configured, starting empty")
		doc = host.NewDocument(logger)
	}

	repo := metadata.New(store,
		metadata.WithLogger(logger),
		metadata.WithCommitRetry(cfg.Commit.Retries, cfg.Commit.Backoff),
	)
	idx := index.NewService(repo, doc, logger)

	return &services{
		store:   store,
		doc:     doc,
		repo:    repo,
		index:   idx,
		prefs:   preferences.NewService(store, logger),
		records: recordservice.NewService(repo, idx, doc, events),
	}, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("host_document", cfg.Host.Document),
		slog.Duration("autosave_delay", cfg.Autosave.Delay),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, err := openServices(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer svc.store.Close()

	// Outbound messages go to SSE clients and to the server-side session.
	var sess *session.Session
	b := bridge.New(bridge.Deps{
		Host:   svc.doc,
		Repo:   svc.repo,
		Index:  svc.index,
		Prefs:  svc.prefs,
		Logger: logger,
		Emitter: bridge.EmitterFunc(func(m bridge.Outbound) {
			broker.Emit(m)
			sess.Emit(m)
		}),
		OnCommit: func(id string) {
			broker.PublishRecordEvent(sse.RecordCommitted, id)
		},
	})
	sess = session.New(b,
		session.WithLogger(logger),
		session.WithAutosaveDelay(cfg.Autosave.Delay),
	)
	svc.doc.OnSelectionChange(b.SelectionChanged)

	apiRouter := api.NewRouter(api.Deps{
		Records:     svc.records,
		Prefs:       svc.prefs,
		Host:        svc.doc,
		Bridge:      b,
		Session:     sess,
		Events:      broker,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
	})

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.prefs.Get(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"store unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Bridge loop; the session asks for its initial state once it runs.
	g.Go(func() error {
		return b.Run(gCtx)
	})
	g.Go(func() error {
		if err := sess.Open(gCtx); err != nil && gCtx.Err() == nil {
			logger.Warn("session open failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Host document watcher.
	if cfg.Host.Watch && svc.doc.Path() != "" {
		g.Go(func() error {
			return svc.doc.Watch(gCtx)
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

		if sess.FlushAutosave() {
			logger.Info("Flushed pending draft")
		}

		// Closing the broker ends open SSE streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
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

// errShutdown cancels the group so the bridge loop and watcher stop.
var errShutdown = errors.New("shutdown requested")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	svc, err := openServices(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer svc.store.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	if app.config.Host.Watch && svc.doc.Path() != "" {
		g.Go(func() error {
			return svc.doc.Watch(gCtx)
		})
	}
	g.Go(func() error {
		// The watcher stops once stdin closes.
		defer cancel()
		logger.Info("Starting MCP server on stdio", slog.String("version", app.version))
		return mcpserver.New(svc.records, svc.prefs, app.version).ServeStdio()
	})

	return g.Wait()
}
