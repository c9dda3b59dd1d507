package api

import (
	"github.com/dih-project/wishonia/internal/review"
	"github.com/dih-project/wishonia/internal/search"
	"github.com/dih-project/wishonia/internal/todo"
)

// TodoListResponse wraps a filtered todo listing.
type TodoListResponse struct {
	Todos []todo.Todo `json:"todos"`
	Total int         `json:"total" example:"42"`
}

// UpdateTodoRequest is the PATCH body for a todo.
type UpdateTodoRequest struct {
	Status todo.Status `json:"status" example:"fixed" validate:"required"`
}

// ReportResponse is the last run report with computed totals.
type ReportResponse struct {
	review.Report
	Totals review.Totals `json:"totals"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Result `json:"results"`
}
