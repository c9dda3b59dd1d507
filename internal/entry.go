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

	"github.com/dih-project/wishonia/internal/api"
	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/mcpserver"
	"github.com/dih-project/wishonia/internal/search"
	"github.com/dih-project/wishonia/internal/sse"
	"github.com/dih-project/wishonia/internal/watch"
)

// Serve starts the HTTP API, the SSE broker and a file watcher. Changed
// files are re-indexed, and the checks named by selectors (none by default)
// are re-run on them.
func (a *App) Serve(ctx context.Context, selectors []string) error {
	cfg := a.cfg

	var cs []checks.Check
	if len(selectors) > 0 {
		var err error
		if cs, err = a.resolveMany(selectors); err != nil {
			return err
		}
	}

	ix, err := a.openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	// Run initial sync.
	if _, err := a.syncIndex(ctx, ix); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Checks run by the watcher announce what they record.
	a.runner.Recorder = &sse.Recorder{Inner: a.ledger, Broker: broker}

	svc := api.NewService(a.ledger, cfg.TodoFiles(), cfg.Path(cfg.Todos.Report), ix)
	apiRouter := api.NewRouter(svc, cfg.HTTP.Auth.AuthEnabled(), cfg.HTTP.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	w := &watch.Watcher{
		Root:     a.files.Root(),
		Ignore:   a.ignore,
		Debounce: cfg.App.WatchDebounce,
		Logger:   a.logger,
	}
	g.Go(func() error {
		return w.Run(gCtx, a.watcher(cs, ix, broker.PublishSummary))
	})

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", slog.String("address", cfg.HTTP.Address()))
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
			a.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			a.logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Returning an error cancels gCtx, which stops the watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		a.logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	a.logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// ServeMCP exposes todos, content search and staleness over stdio.
func (a *App) ServeMCP(ctx context.Context) error {
	var searcher search.Searcher
	ix, err := a.openIndex()
	if err != nil {
		a.logger.Warn("search disabled", slog.String("error", err.Error()))
	} else {
		defer ix.Close()
		if _, err := a.syncIndex(ctx, ix); err != nil {
			a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		searcher = ix
	}

	deps := mcpserver.Deps{
		Ledger:    a.ledger,
		Files:     a.cfg.TodoFiles(),
		Searcher:  searcher,
		Registry:  a.registry,
		Stale:     a.runner,
		Enumerate: func() ([]corpus.Entry, error) { return a.entries(nil) },
	}
	if searcher != nil {
		deps.Chat = a.chat(searcher)
	}
	return mcpserver.New(deps, a.version).ServeStdio()
}
