// Package review runs several checks over the same corpus, one after the
// other, and reports what each one did.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/journal"
	"github.com/dih-project/wishonia/internal/runner"
)

// Executor runs one check. *runner.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, check checks.Check, entries []corpus.Entry, opts runner.Options) runner.Summary
}

// Orchestrator sequences checks. A check that fails entirely, even by
// panicking, never stops the checks after it, and nothing is rolled back.
type Orchestrator struct {
	Runner  Executor
	Logger  *slog.Logger
	Journal *journal.Journal
	// OnSummary, when set, is called after each check completes.
	OnSummary func(runner.Summary)

	now func() time.Time
}

// New returns an orchestrator over r.
func New(r Executor, logger *slog.Logger, j *journal.Journal) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Runner: r, Logger: logger, Journal: j, now: time.Now}
}

// Run executes cs in order over entries.
func (o *Orchestrator) Run(ctx context.Context, cs []checks.Check, entries []corpus.Entry, opts runner.Options) Report {
	now := o.now
	if now == nil {
		now = time.Now
	}
	rep := Report{StartedAt: now().UTC()}
	for _, c := range cs {
		if ctx.Err() != nil {
			o.Logger.Warn("run cancelled", slog.String("next_check", c.Name))
			break
		}
		s := o.runOne(ctx, c, entries, opts)
		rep.Summaries = append(rep.Summaries, s)
		o.journal(s)
		if o.OnSummary != nil {
			o.OnSummary(s)
		}
	}
	rep.FinishedAt = now().UTC()
	return rep
}

func (o *Orchestrator) runOne(ctx context.Context, c checks.Check, entries []corpus.Entry, opts runner.Options) (s runner.Summary) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("review: check %s panicked: %v", c.Name, p)
			o.Logger.Error("check aborted", slog.String("check", c.Name), slog.String("error", err.Error()))
			s = runner.Summary{Check: c.Name, Examined: len(entries), Duration: time.Since(start)}
			for _, e := range entries {
				s.Processed = append(s.Processed, e.Path)
				s.Failed = append(s.Failed, runner.Failure{Path: e.Path, Error: err.Error(), Err: err})
			}
		}
	}()
	return o.Runner.Run(ctx, c, entries, opts)
}

func (o *Orchestrator) journal(s runner.Summary) {
	if o.Journal == nil {
		return
	}
	var err error
	if len(s.Failed) > 0 {
		err = o.Journal.Warn("%s: processed=%d updated=%d skipped=%d failed=%d issues=%d",
			s.Check, len(s.Processed), len(s.Updated), s.Skipped, len(s.Failed), s.Issues)
	} else {
		err = o.Journal.Info("%s: processed=%d updated=%d skipped=%d failed=0 issues=%d",
			s.Check, len(s.Processed), len(s.Updated), s.Skipped, s.Issues)
	}
	if err != nil {
		o.Logger.Warn("journal write failed", slog.String("error", err.Error()))
	}
}
