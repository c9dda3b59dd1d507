package todo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dih-project/wishonia/internal/apperr"
	"github.com/dih-project/wishonia/internal/storage"
)

// Ledger is the in-memory todo set. Every export is rendered from it.
type Ledger struct {
	mu    sync.RWMutex
	todos map[string]*Todo
	order []string
	byFP  map[string]string

	now    func() time.Time
	newID  func() string
	dedupe bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDFunc overrides id generation.
func WithIDFunc(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// WithoutDedupe records every reported issue as a new todo, even when an
// equivalent one already exists.
func WithoutDedupe() Option {
	return func(l *Ledger) { l.dedupe = false }
}

// NewLedger returns an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		todos:  map[string]*Todo{},
		byFP:   map[string]string{},
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		dedupe: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fingerprint identifies the logical issue behind a todo so that re-scans
// do not pile up duplicates.
func Fingerprint(path string, t Type, line int, issue string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(issue), " "))
	norm = strings.TrimRight(norm, ".!?;: ")
	h := sha256.Sum256([]byte(path + "\x00" + string(t) + "\x00" + strconv.Itoa(line) + "\x00" + norm))
	return hex.EncodeToString(h[:8])
}

// RecordIssues turns raw issues into todos for path. Invalid issues are
// skipped and reported in the returned error; valid ones are still recorded.
// An issue equivalent to an existing todo refreshes that todo instead of
// creating a new one, and never resets its status.
func (l *Ledger) RecordIssues(path string, issues []RawIssue, agentID string) ([]Todo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		created []Todo
		errs    []error
	)
	for i, raw := range issues {
		if err := raw.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("issue %d: %w", i, err))
			continue
		}
		now := l.now()
		fp := Fingerprint(path, raw.Type, raw.Line, raw.Issue)
		if l.dedupe {
			if id, ok := l.byFP[fp]; ok {
				existing := l.todos[id]
				existing.UpdatedAt = now
				if existing.Status == StatusPending {
					existing.Confidence = raw.Confidence
					existing.Priority = DerivePriority(raw.Type, raw.Confidence)
					existing.SuggestedFix = raw.SuggestedFix
				}
				continue
			}
		}
		t := &Todo{
			ID:           l.newID(),
			Type:         raw.Type,
			Priority:     DerivePriority(raw.Type, raw.Confidence),
			FilePath:     path,
			Line:         raw.Line,
			Issue:        strings.TrimSpace(raw.Issue),
			SuggestedFix: raw.SuggestedFix,
			Confidence:   raw.Confidence,
			Status:       StatusPending,
			AgentID:      agentID,
			Fingerprint:  fp,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		l.put(t)
		created = append(created, *t)
	}
	return created, errors.Join(errs...)
}

// put inserts or replaces t. Callers hold the lock.
func (l *Ledger) put(t *Todo) {
	if _, ok := l.todos[t.ID]; !ok {
		l.order = append(l.order, t.ID)
	}
	l.todos[t.ID] = t
	if t.Fingerprint != "" {
		l.byFP[t.Fingerprint] = t.ID
	}
}

// Upsert stores t keyed by its id.
func (l *Ledger) Upsert(t Todo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.Fingerprint == "" {
		t.Fingerprint = Fingerprint(t.FilePath, t.Type, t.Line, t.Issue)
	}
	l.put(&t)
}

// Get returns the todo with id.
func (l *Ledger) Get(id string) (Todo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.todos[id]
	if !ok {
		return Todo{}, fmt.Errorf("todo %s: %w", id, apperr.ErrNotFound)
	}
	return *t, nil
}

// Len returns the number of todos.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Filter narrows a query; zero fields match everything.
type Filter struct {
	Status   Status
	Type     Type
	Priority Priority
	FilePath string
}

func (f Filter) match(t *Todo) bool {
	return (f.Status == "" || t.Status == f.Status) &&
		(f.Type == "" || t.Type == f.Type) &&
		(f.Priority == "" || t.Priority == f.Priority) &&
		(f.FilePath == "" || t.FilePath == f.FilePath)
}

// Query returns the todos matching f in insertion order.
func (l *Ledger) Query(f Filter) []Todo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Todo, 0, len(l.order))
	for _, id := range l.order {
		if t := l.todos[id]; f.match(t) {
			out = append(out, *t)
		}
	}
	return out
}

// All returns every todo in insertion order.
func (l *Ledger) All() []Todo { return l.Query(Filter{}) }

// ByStatus returns todos with status s.
func (l *Ledger) ByStatus(s Status) []Todo { return l.Query(Filter{Status: s}) }

// ByType returns todos of type t.
func (l *Ledger) ByType(t Type) []Todo { return l.Query(Filter{Type: t}) }

// ByPriority returns todos with priority p.
func (l *Ledger) ByPriority(p Priority) []Todo { return l.Query(Filter{Priority: p}) }

// SetStatus moves a todo forward through the workflow. Backward moves
// (e.g. fixed -> pending) are rejected with apperr.ErrInvalidTransition.
func (l *Ledger) SetStatus(id string, s Status) (Todo, error) {
	if !ValidStatus(s) {
		return Todo{}, fmt.Errorf("unknown status %q: %w", s, apperr.ErrInvalidTransition)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.todos[id]
	if !ok {
		return Todo{}, fmt.Errorf("todo %s: %w", id, apperr.ErrNotFound)
	}
	if !CanTransition(t.Status, s) {
		return Todo{}, fmt.Errorf("todo %s: %s -> %s: %w", id, t.Status, s, apperr.ErrInvalidTransition)
	}
	if t.Status != s {
		t.Status = s
		t.UpdatedAt = l.now()
	}
	return *t, nil
}

// Reopen returns a fixed, rejected or reviewed todo to pending.
func (l *Ledger) Reopen(id string) (Todo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.todos[id]
	if !ok {
		return Todo{}, fmt.Errorf("todo %s: %w", id, apperr.ErrNotFound)
	}
	switch t.Status {
	case StatusPending:
		return *t, nil
	case StatusInProgress:
		return Todo{}, fmt.Errorf("todo %s is in progress: %w", id, apperr.ErrInvalidTransition)
	}
	t.Status = StatusPending
	t.UpdatedAt = l.now()
	return *t, nil
}

// Move applies a requested status: pending goes through Reopen, anything
// else through SetStatus.
func (l *Ledger) Move(id string, s Status) (Todo, error) {
	if s == StatusPending {
		return l.Reopen(id)
	}
	return l.SetStatus(id, s)
}

// Counts returns the number of todos per status and per priority.
func (l *Ledger) Counts() (map[Status]int, map[Priority]int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	byStatus := map[Status]int{}
	byPriority := map[Priority]int{}
	for _, t := range l.todos {
		byStatus[t.Status]++
		byPriority[t.Priority]++
	}
	return byStatus, byPriority
}

// Save writes the ledger as a JSON array, atomically.
func (l *Ledger) Save(path string) error {
	data, err := l.ExportJSON()
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("todo: save: %w", err)
	}
	return nil
}

// LoadFromFile replaces the ledger contents with the array stored at path.
// A missing file leaves the ledger empty and is not an error.
func (l *Ledger) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("todo: load %s: %w", path, err)
	}
	var list []Todo
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("todo: decode %s: %w", path, err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	l.mu.Lock()
	defer l.mu.Unlock()
	l.todos = map[string]*Todo{}
	l.byFP = map[string]string{}
	l.order = nil
	for i := range list {
		t := list[i]
		if t.Fingerprint == "" {
			t.Fingerprint = Fingerprint(t.FilePath, t.Type, t.Line, t.Issue)
		}
		l.put(&t)
	}
	return nil
}
