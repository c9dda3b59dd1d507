package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dih-project/wishonia/internal/apperr"
	"github.com/dih-project/wishonia/internal/review"
	"github.com/dih-project/wishonia/internal/search"
	"github.com/dih-project/wishonia/internal/todo"
)

// Service coordinates the todo ledger, the last run report and the content
// index for the API layer.
type Service struct {
	ledger     *todo.Ledger
	files      todo.Files
	reportPath string
	searcher   search.Searcher
}

// NewService creates a new API service. searcher may be nil, in which case
// search requests report the index as unavailable.
func NewService(ledger *todo.Ledger, files todo.Files, reportPath string, searcher search.Searcher) *Service {
	return &Service{ledger: ledger, files: files, reportPath: reportPath, searcher: searcher}
}

// errSearchUnavailable is returned when no index is configured.
var errSearchUnavailable = errors.New("search index unavailable")

// ListTodos returns the todos matching f.
func (s *Service) ListTodos(f todo.Filter) []todo.Todo {
	return s.ledger.Query(f)
}

// GetTodo returns one todo by id.
func (s *Service) GetTodo(id string) (todo.Todo, error) {
	return s.ledger.Get(id)
}

// UpdateStatus moves a todo and persists the ledger.
func (s *Service) UpdateStatus(id string, status todo.Status) (todo.Todo, error) {
	t, err := s.ledger.Move(id, status)
	if err != nil {
		return todo.Todo{}, err
	}
	if err := s.ledger.Persist(s.files); err != nil {
		return todo.Todo{}, fmt.Errorf("persist todos: %w", err)
	}
	return t, nil
}

// Report returns the last saved run report.
func (s *Service) Report() (review.Report, error) {
	rep, err := review.LoadReport(s.reportPath)
	if errors.Is(err, fs.ErrNotExist) {
		return review.Report{}, fmt.Errorf("report: %w", apperr.ErrNotFound)
	}
	return rep, err
}

// Search queries the content index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if s.searcher == nil {
		return nil, errSearchUnavailable
	}
	return s.searcher.Search(ctx, query, limit)
}
