// Package runner executes one check over a corpus, processing only the
// files whose body changed since the check last succeeded on them.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/checksum"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/document"
	"github.com/dih-project/wishonia/internal/hashstore"
	"github.com/dih-project/wishonia/internal/storage"
	"github.com/dih-project/wishonia/internal/todo"
)

// Recorder receives the issues a check reports for a file.
type Recorder interface {
	RecordIssues(path string, issues []todo.RawIssue, agentID string) ([]todo.Todo, error)
}

// Options tune a single run.
type Options struct {
	// Full ignores recorded hashes and processes every applicable file.
	Full bool
}

// Failure is a file the check could not complete.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// Summary is the outcome of running one check.
type Summary struct {
	Check     string        `json:"check"`
	Examined  int           `json:"examined"`
	Skipped   int           `json:"skipped"`
	Processed []string      `json:"processed"`
	Succeeded []string      `json:"succeeded"`
	Updated   []string      `json:"updated"`
	Failed    []Failure     `json:"failed"`
	Issues    int           `json:"issues"`
	Cancelled bool          `json:"cancelled,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Runner ties a hash store and a file provider to check execution.
type Runner struct {
	Store    hashstore.Store
	Files    storage.Provider
	Logger   *slog.Logger
	Recorder Recorder
	// Delay is the minimum gap before a file starts, measured from the
	// latest start or finish of another file. It keeps a run under provider
	// rate limits.
	Delay time.Duration
	// Limit is how many files may be in flight at once. Zero means one.
	Limit int64
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// state is what the staleness scan learned about one entry.
type state int

const (
	stateCurrent state = iota
	stateStale
	stateExcluded
)

type scanned struct {
	entry corpus.Entry
	state state
	err   error
}

// scan classifies entries without running anything.
func (r *Runner) scan(check checks.Check, entries []corpus.Entry, full bool) []scanned {
	out := make([]scanned, 0, len(entries))
	for _, e := range entries {
		s := scanned{entry: e, state: stateStale}
		switch {
		case !check.Applies(e.Section):
			s.state = stateExcluded
		case full:
		default:
			current, err := r.isCurrent(e.Path, check.HashField)
			if err != nil {
				s.err = err
			} else if current {
				s.state = stateCurrent
			}
		}
		out = append(out, s)
	}
	return out
}

func (r *Runner) isCurrent(path, field string) (bool, error) {
	data, err := r.Files.Read(path)
	if err != nil {
		return false, err
	}
	digest, err := checksum.Body(data)
	if err != nil {
		return false, err
	}
	stored, ok, err := r.Store.Get(path, field)
	if err != nil {
		return false, fmt.Errorf("runner: hash store get %s: %w", path, err)
	}
	return ok && stored == digest, nil
}

// Stale lists the entries check would process, in entry order. Files that
// cannot be read or parsed are listed too, since a run would attempt them.
func (r *Runner) Stale(_ context.Context, check checks.Check, entries []corpus.Entry) ([]string, error) {
	var out []string
	for _, s := range r.scan(check, entries, false) {
		if s.state == stateStale {
			out = append(out, s.entry.Path)
		}
	}
	return out, nil
}

// Run executes check on the stale subset of entries. Per-file failures are
// collected in the summary and never abort the batch; the hash store entry
// of a failed file is left as it was.
func (r *Runner) Run(ctx context.Context, check checks.Check, entries []corpus.Entry, opts Options) Summary {
	start := time.Now()
	log := r.logger().With(slog.String("check", check.Name))
	sum := Summary{Check: check.Name, Examined: len(entries)}

	var queue []corpus.Entry
	for _, s := range r.scan(check, entries, opts.Full) {
		switch {
		case s.err != nil:
			sum.Processed = append(sum.Processed, s.entry.Path)
			sum.Failed = append(sum.Failed, failure(s.entry.Path, s.err))
			log.Warn("stale check failed", slog.String("path", s.entry.Path), slog.String("error", s.err.Error()))
		case s.state == stateStale:
			queue = append(queue, s.entry)
		default:
			sum.Skipped++
		}
	}
	log.Info("check started", slog.Int("examined", len(entries)), slog.Int("stale", len(queue)), slog.Bool("full", opts.Full))

	limit := r.Limit
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
		// last is when a file most recently started or finished.
		last time.Time
	)
	for i, e := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			sum.Cancelled = true
			break
		}
		if i > 0 && r.Delay > 0 {
			mu.Lock()
			wait := time.Until(last.Add(r.Delay))
			mu.Unlock()
			if wait > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
			}
		}
		if ctx.Err() != nil {
			sem.Release(1)
			sum.Cancelled = true
			break
		}
		mu.Lock()
		last = time.Now()
		sum.Processed = append(sum.Processed, e.Path)
		mu.Unlock()

		wg.Add(1)
		go func(e corpus.Entry) {
			defer wg.Done()
			updated, issues, err := r.process(ctx, check, e)

			mu.Lock()
			last = time.Now()
			if err != nil {
				sum.Failed = append(sum.Failed, failure(e.Path, err))
				log.Warn("file failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			} else {
				sum.Succeeded = append(sum.Succeeded, e.Path)
				sum.Issues += issues
				if updated {
					sum.Updated = append(sum.Updated, e.Path)
				}
			}
			mu.Unlock()
			sem.Release(1)
		}(e)
	}
	wg.Wait()
	if ctx.Err() != nil {
		sum.Cancelled = true
	}

	sum.Duration = time.Since(start)
	log.Info("check finished",
		slog.Int("processed", len(sum.Processed)),
		slog.Int("succeeded", len(sum.Succeeded)),
		slog.Int("updated", len(sum.Updated)),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", len(sum.Failed)),
		slog.Duration("duration", sum.Duration),
	)
	return sum
}

// process runs check on one file, writes any new content and records the
// hash of the body as it is after the check.
func (r *Runner) process(ctx context.Context, check checks.Check, e corpus.Entry) (updated bool, issues int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("runner: %s panicked on %s: %v", check.Name, e.Path, p)
		}
	}()

	content, err := r.Files.Read(e.Path)
	if err != nil {
		return false, 0, err
	}
	doc, err := document.Parse(content)
	if err != nil {
		return false, 0, err
	}

	res, err := check.Func(ctx, checks.Input{Path: e.Path, Content: content, Doc: doc, Section: e.Section})
	if err != nil {
		return false, 0, err
	}
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	final := content
	if res.Content != nil && !bytes.Equal(res.Content, content) {
		final = res.Content
	}
	// Hash before writing so unparsable output never reaches disk.
	digest, err := checksum.Body(final)
	if err != nil {
		return false, 0, &checks.ValidationError{Check: check.Name, Path: e.Path, Reason: err.Error()}
	}
	if !bytes.Equal(final, content) {
		if err := r.Files.Write(e.Path, final); err != nil {
			return false, 0, err
		}
		updated = true
	}
	if err := r.Store.Set(e.Path, check.HashField, digest); err != nil {
		return updated, 0, fmt.Errorf("runner: hash store set %s: %w", e.Path, err)
	}

	if len(res.Issues) > 0 && r.Recorder != nil {
		created, rerr := r.Recorder.RecordIssues(e.Path, res.Issues, check.Name)
		if rerr != nil {
			r.logger().Warn("some issues rejected",
				slog.String("check", check.Name), slog.String("path", e.Path), slog.String("error", rerr.Error()))
		}
		issues = len(created)
	}
	return updated, issues, nil
}

func failure(path string, err error) Failure {
	return Failure{Path: path, Error: err.Error(), Err: err}
}

// FailedPaths lists the paths in s.Failed.
func (s Summary) FailedPaths() []string {
	out := make([]string, len(s.Failed))
	for i, f := range s.Failed {
		out[i] = f.Path
	}
	return out
}

// Err returns the joined per-file errors, or nil.
func (s Summary) Err() error {
	errs := make([]error, len(s.Failed))
	for i, f := range s.Failed {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}
