// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/dih-project/wishonia/internal/apperr"
	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/hashstore"
	"github.com/dih-project/wishonia/internal/journal"
	"github.com/dih-project/wishonia/internal/llm"
	"github.com/dih-project/wishonia/internal/review"
	"github.com/dih-project/wishonia/internal/runner"
	"github.com/dih-project/wishonia/internal/storage"
	"github.com/dih-project/wishonia/internal/todo"
)

// App holds the long-lived components every command shares.
type App struct {
	cfg     *Config
	logger  *slog.Logger
	version string

	files    storage.Provider
	store    hashstore.Store
	ledger   *todo.Ledger
	manifest *corpus.Manifest
	ignore   *corpus.IgnoreRules
	journal  *journal.Journal

	completer llm.Completer
	// llmErr is why no completer could be built. It only matters when a
	// selected check needs one.
	llmErr error

	registry *checks.Registry
	runner   *runner.Runner
}

// New builds the application from options. Failures here are structural:
// nothing has been run yet.
func New(opts ...Option) (*App, error) {
	o := &application{}
	for _, opt := range opts {
		opt(o)
	}
	if o.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := o.config

	logger := o.logger
	if logger == nil {
		out := o.logOut
		if out == nil {
			out = os.Stderr
		}
		logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}
	getenv := o.getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	logger.Debug("Configuration loaded",
		slog.String("root", cfg.Project.Root),
		slog.String("hash_backend", cfg.HashStore.Backend),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	a := &App{cfg: cfg, logger: logger, version: o.version}
	if a.version == "" {
		a.version = "dev"
	}

	files, err := storage.NewFS(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("open project root: %w: %w", err, apperr.ErrStructural)
	}
	a.files = files

	if err := a.loadCorpusRules(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Path(cfg.Project.StateDir), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w: %w", err, apperr.ErrStructural)
	}

	store, err := hashstore.Open(cfg.HashStore.Backend, cfg.Path(cfg.HashStore.Path), files, logger)
	if err != nil {
		return nil, fmt.Errorf("open hash store: %w: %w", err, apperr.ErrStructural)
	}
	a.store = store

	a.ledger = todo.NewLedger()
	if err := a.ledger.LoadFromFile(cfg.Path(cfg.Todos.JSON)); err != nil {
		store.Close()
		return nil, fmt.Errorf("load todos: %w: %w", err, apperr.ErrStructural)
	}

	if cfg.Todos.Journal != "" {
		if a.journal, err = journal.Open(cfg.Path(cfg.Todos.Journal)); err != nil {
			logger.Warn("journal disabled", slog.String("error", err.Error()))
		}
	}

	a.completer, a.llmErr = a.buildCompleter(getenv)

	a.registry, err = checks.DefaultRegistry(checks.Deps{Completer: a.completer, Files: files})
	if err != nil {
		store.Close()
		return nil, err
	}

	a.runner = &runner.Runner{
		Store:    store,
		Files:    files,
		Logger:   logger,
		Recorder: a.ledger,
		Delay:    cfg.App.Delay,
		Limit:    cfg.App.Concurrency,
	}
	return a, nil
}

func (a *App) loadCorpusRules() error {
	cfg := a.cfg
	if cfg.Project.Manifest != "" {
		m, err := corpus.LoadManifest(cfg.Path(cfg.Project.Manifest))
		switch {
		case err == nil:
			a.manifest = m
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Debug("no manifest, using sorted file order", slog.String("manifest", cfg.Project.Manifest))
		default:
			return err
		}
	}
	files := make([]string, len(cfg.Project.IgnoreFiles))
	for i, f := range cfg.Project.IgnoreFiles {
		files[i] = cfg.Path(f)
	}
	rules, err := corpus.LoadIgnore(files...)
	if err != nil {
		return err
	}
	a.ignore = rules
	return nil
}

func (a *App) buildCompleter(getenv func(string) string) (llm.Completer, error) {
	c, err := llm.New(a.cfg.LLM.ClientConfig(getenv))
	if err != nil {
		return llm.Func(func(context.Context, llm.Request) (llm.Response, error) {
			return llm.Response{}, err
		}), err
	}
	if a.cfg.LLM.CacheDir == "" || a.cfg.LLM.Provider == "none" {
		return c, nil
	}
	cache, cerr := llm.NewCache(a.cfg.Path(a.cfg.LLM.CacheDir), a.cfg.LLM.CacheTTL)
	if cerr != nil {
		a.logger.Warn("llm cache disabled", slog.String("error", cerr.Error()))
		return c, nil
	}
	return llm.NewCached(c, a.cfg.LLM.Model, cache, a.logger), nil
}

// Close releases the hash store.
func (a *App) Close() error {
	return a.store.Close()
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Registry returns the check registry.
func (a *App) Registry() *checks.Registry { return a.registry }

// Ledger returns the todo ledger.
func (a *App) Ledger() *todo.Ledger { return a.ledger }

// Journal returns the run journal; nil when disabled.
func (a *App) Journal() *journal.Journal { return a.journal }

// entries enumerates the corpus with the configured rules. globs override
// the configured ones when non-empty.
func (a *App) entries(globs []string) ([]corpus.Entry, error) {
	if len(globs) == 0 {
		globs = a.cfg.Project.Globs
	}
	return corpus.Enumerate(a.files.Root(), corpus.Options{
		Globs:    globs,
		Ignore:   a.ignore,
		Manifest: a.manifest,
		Logger:   a.logger,
	})
}

// resolve turns a selector into checks and verifies LLM availability for them.
func (a *App) resolve(selector string) ([]checks.Check, error) {
	cs, err := a.registry.Resolve(selector)
	if err != nil {
		return nil, fmt.Errorf("%w (known: %v)", err, a.registry.Names())
	}
	if checks.NeedLLM(cs) && a.llmErr != nil {
		return nil, fmt.Errorf("check needs an LLM provider: %w: %w", a.llmErr, apperr.ErrStructural)
	}
	return cs, nil
}

func (a *App) orchestrator(onSummary func(runner.Summary)) *review.Orchestrator {
	o := review.New(a.runner, a.logger, a.journal)
	o.OnSummary = onSummary
	return o
}

// PersistTodos writes every configured ledger rendering.
func (a *App) PersistTodos() error {
	return a.ledger.Persist(a.cfg.TodoFiles())
}

// persist is PersistTodos after a run: failures are logged, not returned,
// because the checks themselves already completed.
func (a *App) persist() {
	if err := a.PersistTodos(); err != nil {
		a.logger.Error("persist todos failed", slog.String("error", err.Error()))
	}
}
