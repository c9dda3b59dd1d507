// Package checks defines the check types the review pipeline can run and
// the registry that keeps their hash fields distinct.
package checks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/document"
	"github.com/dih-project/wishonia/internal/todo"
)

// Input is what a check sees for one file.
type Input struct {
	Path    string
	Content []byte
	Doc     *document.Document
	Section corpus.Section
}

// LineOffset is the number of lines before the body starts, so that a body
// line number can be turned into a file line number.
func (in Input) LineOffset() int {
	if in.Doc == nil || len(in.Doc.Body) > len(in.Content) {
		return 0
	}
	return bytes.Count(in.Content[:len(in.Content)-len(in.Doc.Body)], []byte("\n"))
}

// Result is the outcome of a successful check. A nil Content means the
// file is unchanged.
type Result struct {
	Content []byte
	Issues  []todo.RawIssue
}

// CheckFunc runs one check against one file. Returning an error leaves the
// file stale.
type CheckFunc func(ctx context.Context, in Input) (Result, error)

// Check describes one independent check type.
type Check struct {
	Name        string
	Description string
	// HashField is the hash store field that tracks this check. Unique per registry.
	HashField string
	// Sections limits the check to these book sections. Empty means all.
	Sections []corpus.Section
	// UsesLLM marks checks that call the completer.
	UsesLLM bool
	Func    CheckFunc
}

// NeedLLM reports whether any of cs calls the completer.
func NeedLLM(cs []Check) bool {
	for _, c := range cs {
		if c.UsesLLM {
			return true
		}
	}
	return false
}

// Applies reports whether the check runs on files in section s.
func (c Check) Applies(s corpus.Section) bool {
	if len(c.Sections) == 0 {
		return true
	}
	for _, allowed := range c.Sections {
		if allowed == s {
			return true
		}
	}
	return false
}

// HashFieldFor derives the conventional hash field name for a check:
// "fact-check" becomes "lastFactCheckHash".
func HashFieldFor(name string) string {
	var b strings.Builder
	b.WriteString("last")
	upper := true
	for _, r := range name {
		if r == '-' || r == '_' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	b.WriteString("Hash")
	return b.String()
}

// ValidationError means a transform produced output that fails the check's
// expectations. The output is discarded and the file stays stale.
type ValidationError struct {
	Check  string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checks: %s: %s: %s", e.Check, e.Path, e.Reason)
}
