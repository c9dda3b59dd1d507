package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dih-project/wishonia/internal/runner"
	"github.com/dih-project/wishonia/internal/storage"
)

// Report is the outcome of one orchestrated run.
type Report struct {
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Summaries  []runner.Summary `json:"summaries"`
}

// Totals sums counts across every check in a report.
type Totals struct {
	Checks    int `json:"checks"`
	Examined  int `json:"examined"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Issues    int `json:"issues"`
}

func (r Report) Totals() Totals {
	t := Totals{Checks: len(r.Summaries)}
	for _, s := range r.Summaries {
		t.Examined += s.Examined
		t.Processed += len(s.Processed)
		t.Succeeded += len(s.Succeeded)
		t.Updated += len(s.Updated)
		t.Skipped += s.Skipped
		t.Failed += len(s.Failed)
		t.Issues += s.Issues
	}
	return t
}

// WriteText renders a per-check table followed by the failures.
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tEXAMINED\tPROCESSED\tUPDATED\tSKIPPED\tFAILED\tISSUES\tDURATION")
	for _, s := range r.Summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Check, s.Examined, len(s.Processed), len(s.Updated), s.Skipped, len(s.Failed), s.Issues,
			s.Duration.Round(time.Millisecond))
	}
	t := r.Totals()
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
		t.Examined, t.Processed, t.Updated, t.Skipped, t.Failed, t.Issues,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range r.Summaries {
		for _, f := range s.Failed {
			if _, err := fmt.Fprintf(w, "FAILED %s %s: %s\n", s.Check, f.Path, f.Error); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteJSON renders the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Report
		Totals Totals `json:"totals"`
	}{r, r.Totals()})
}

// Save writes the report to path atomically.
func (r Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("review: marshal report: %w", err)
	}
	if err := storage.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("review: save report: %w", err)
	}
	return nil
}

// LoadReport reads a report written by Save. A missing file returns an
// empty report and fs.ErrNotExist.
func LoadReport(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, err
		}
		return r, fmt.Errorf("review: read report: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("review: decode report: %w", err)
	}
	return r, nil
}
