package internal

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dih-project/wishonia/internal/agent"
	"github.com/dih-project/wishonia/internal/apperr"
	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/hashstore"
	"github.com/dih-project/wishonia/internal/review"
	"github.com/dih-project/wishonia/internal/runner"
	"github.com/dih-project/wishonia/internal/search"
	"github.com/dih-project/wishonia/internal/storage"
	"github.com/dih-project/wishonia/internal/watch"
)

// RunOptions mirror the flags of the run command.
type RunOptions struct {
	// Glob replaces the configured content globs.
	Glob string
	// File restricts the run to one file. It wins over Glob.
	File string
	Full bool
}

// RunChecks runs the selected checks over the corpus, persists the todo
// ledger and saves the report. Per-file failures are in the report, not in
// the returned error.
func (a *App) RunChecks(ctx context.Context, selector string, ro RunOptions) (review.Report, error) {
	cs, err := a.resolve(selector)
	if err != nil {
		return review.Report{}, err
	}
	entries, err := a.selectEntries(ro)
	if err != nil {
		return review.Report{}, err
	}
	a.logger.Info("run started",
		slog.String("selector", selector),
		slog.Int("checks", len(cs)),
		slog.Int("files", len(entries)),
		slog.Bool("full", ro.Full))

	rep := a.orchestrator(nil).Run(ctx, cs, entries, runner.Options{Full: ro.Full})
	a.finish(rep)
	return rep, nil
}

func (a *App) finish(rep review.Report) {
	a.persist()
	if err := rep.Save(a.cfg.Path(a.cfg.Todos.Report)); err != nil {
		a.logger.Warn("save report failed", slog.String("error", err.Error()))
	}
}

func (a *App) selectEntries(ro RunOptions) ([]corpus.Entry, error) {
	if ro.File == "" {
		var globs []string
		if ro.Glob != "" {
			globs = []string{ro.Glob}
		}
		return a.entries(globs)
	}
	rel := ro.File
	if filepath.IsAbs(rel) {
		rel = hashstore.NormalizePath(filepath.ToSlash(a.files.Root()), filepath.ToSlash(rel))
	}
	if !storage.IsContentFile(rel) {
		return nil, fmt.Errorf("%s is not a content file: %w", ro.File, apperr.ErrStructural)
	}
	if !a.files.Exists(rel) {
		return nil, fmt.Errorf("%s: %w", ro.File, apperr.ErrNotFound)
	}
	return []corpus.Entry{corpus.Single(rel, a.manifest)}, nil
}

// CheckStatus is how far one check is behind the corpus.
type CheckStatus struct {
	Check     string   `json:"check"`
	HashField string   `json:"hashField"`
	Total     int      `json:"total"`
	Stale     []string `json:"stale"`
}

// Status reports the files each selected check would process next.
func (a *App) Status(ctx context.Context, selector string) ([]CheckStatus, error) {
	cs, err := a.registry.Resolve(selector)
	if err != nil {
		return nil, err
	}
	entries, err := a.entries(nil)
	if err != nil {
		return nil, err
	}
	out := make([]CheckStatus, 0, len(cs))
	for _, c := range cs {
		stale, err := a.runner.Stale(ctx, c, entries)
		if err != nil {
			return nil, fmt.Errorf("status %s: %w", c.Name, err)
		}
		out = append(out, CheckStatus{Check: c.Name, HashField: c.HashField, Total: len(entries), Stale: stale})
	}
	return out, nil
}

// Checks lists the registered checks in execution order.
func (a *App) Checks() []checks.Check {
	return a.registry.All()
}

// MigrateHashes moves hashes embedded in frontmatter into the configured
// store, optionally stripping them from the files.
func (a *App) MigrateHashes(strip bool) (hashstore.MigrateStats, error) {
	if a.cfg.HashStore.Backend == hashstore.BackendFrontmatter {
		return hashstore.MigrateStats{}, fmt.Errorf("hash store backend is already frontmatter: %w", apperr.ErrConflict)
	}
	entries, err := a.entries(nil)
	if err != nil {
		return hashstore.MigrateStats{}, err
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return hashstore.Migrate(a.files, a.store, paths, strip, a.logger), nil
}

func (a *App) openIndex() (*search.Index, error) {
	ix, err := search.Open(a.cfg.Path(a.cfg.Search.Path))
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return ix, nil
}

// Index brings the content index up to date.
func (a *App) Index(ctx context.Context) (search.SyncStats, error) {
	ix, err := a.openIndex()
	if err != nil {
		return search.SyncStats{}, err
	}
	defer ix.Close()
	return a.syncIndex(ctx, ix)
}

func (a *App) syncIndex(ctx context.Context, ix *search.Index) (search.SyncStats, error) {
	entries, err := a.entries(nil)
	if err != nil {
		return search.SyncStats{}, err
	}
	st, err := search.Sync(ctx, ix, a.files, entries, a.logger)
	if err != nil {
		return st, err
	}
	a.logger.Info("index synced",
		slog.Int("indexed", st.Indexed),
		slog.Int("unchanged", st.Unchanged),
		slog.Int("removed", st.Removed),
		slog.Int("failed", st.Failed))
	return st, nil
}

func (a *App) chat(ix search.Searcher) *agent.Chat {
	if a.llmErr != nil {
		return nil
	}
	return &agent.Chat{Searcher: ix, Completer: a.completer, TopK: a.cfg.Search.TopK}
}

// Ask answers a question from the book. The index is synced first so the
// answer reflects the files on disk.
func (a *App) Ask(ctx context.Context, question string) (agent.Answer, error) {
	if a.llmErr != nil {
		return agent.Answer{}, fmt.Errorf("ask needs an LLM provider: %w: %w", a.llmErr, apperr.ErrStructural)
	}
	ix, err := a.openIndex()
	if err != nil {
		return agent.Answer{}, err
	}
	defer ix.Close()
	if _, err := a.syncIndex(ctx, ix); err != nil {
		return agent.Answer{}, err
	}
	return a.chat(ix).Ask(ctx, question)
}

// watcher returns a change handler that runs cs on changed corpus files,
// forgets removed ones and keeps ix (when non-nil) current. With no checks
// selected the saved report is left alone.
func (a *App) watcher(cs []checks.Check, ix *search.Index, onSummary func(runner.Summary)) watch.Handler {
	orch := a.orchestrator(onSummary)
	return func(ctx context.Context, b watch.Batch) {
		for _, p := range b.Removed {
			if err := a.store.RemoveAll(p); err != nil {
				a.logger.Warn("forget hashes failed", slog.String("path", p), slog.String("error", err.Error()))
			}
			if ix != nil {
				if err := ix.Delete(p); err != nil {
					a.logger.Warn("unindex failed", slog.String("path", p), slog.String("error", err.Error()))
				}
			}
		}
		if len(b.Changed) == 0 {
			return
		}

		// Only files the enumerated corpus holds are checked or indexed.
		all, err := a.entries(nil)
		if err != nil {
			a.logger.Warn("enumerate failed", slog.String("error", err.Error()))
			return
		}
		entries := corpus.Restrict(all, b.Changed)
		if len(entries) == 0 {
			a.logger.Debug("changed files outside the corpus", slog.Int("count", len(b.Changed)))
			return
		}
		a.logger.Info("files changed", slog.Int("count", len(entries)))
		if len(cs) > 0 {
			a.finish(orch.Run(ctx, cs, entries, runner.Options{}))
		}

		if ix == nil {
			return
		}
		// Reindex after the checks so rewritten content is what gets searched.
		for _, e := range entries {
			data, err := a.files.Read(e.Path)
			if err != nil {
				continue
			}
			if err := search.IndexFile(ix, e, data); err != nil {
				a.logger.Warn("reindex failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			}
		}
	}
}

// Watch re-runs the selected checks whenever content files change, until
// ctx is cancelled.
func (a *App) Watch(ctx context.Context, selectors []string) error {
	cs, err := a.resolveMany(selectors)
	if err != nil {
		return err
	}
	w := &watch.Watcher{
		Root:     a.files.Root(),
		Ignore:   a.ignore,
		Debounce: a.cfg.App.WatchDebounce,
		Logger:   a.logger,
	}
	return w.Run(ctx, a.watcher(cs, nil, nil))
}

// resolveMany resolves several selectors, de-duplicating checks while
// keeping registry order. No selectors means all.
func (a *App) resolveMany(selectors []string) ([]checks.Check, error) {
	if len(selectors) == 0 {
		return a.resolve(checks.All)
	}
	want := map[string]bool{}
	for _, s := range selectors {
		cs, err := a.resolve(s)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			want[c.Name] = true
		}
	}
	var out []checks.Check
	for _, c := range a.registry.All() {
		if want[c.Name] {
			out = append(out, c)
		}
	}
	return out, nil
}
