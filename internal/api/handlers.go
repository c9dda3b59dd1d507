package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dih-project/wishonia/internal/search"
	"github.com/dih-project/wishonia/internal/todo"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListTodos handles GET /api/todos.
//
//	@Summary		List todos with optional filtering
//	@Tags			todos
//	@Produce		json
//	@Param			status		query		string	false	"Filter by status"
//	@Param			type		query		string	false	"Filter by issue type"
//	@Param			priority	query		string	false	"Filter by priority"
//	@Param			file		query		string	false	"Filter by file path"
//	@Success		200			{object}	TodoListResponse
//	@Security		BearerAuth
//	@Router			/todos [get]
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := todo.Filter{
		Status:   todo.Status(q.Get("status")),
		Type:     todo.Type(q.Get("type")),
		Priority: todo.Priority(q.Get("priority")),
		FilePath: q.Get("file"),
	}
	if f.Status != "" && !todo.ValidStatus(f.Status) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown status"))
		return
	}
	items := h.svc.ListTodos(f)
	writeJSON(w, http.StatusOK, TodoListResponse{Todos: items, Total: len(items)})
}

// GetTodo handles GET /api/todos/{id}.
//
//	@Summary		Get a single todo
//	@Tags			todos
//	@Produce		json
//	@Param			id	path		string	true	"Todo id"
//	@Success		200	{object}	todo.Todo
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos/{id} [get]
func (h *Handler) GetTodo(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTodo(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get todo", err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTodo handles PATCH /api/todos/{id}.
//
//	@Summary		Change the status of a todo
//	@Tags			todos
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Todo id"
//	@Param			body	body		UpdateTodoRequest	true	"New status"
//	@Success		200		{object}	todo.Todo
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos/{id} [patch]
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	var req UpdateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if !todo.ValidStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown status"))
		return
	}

	id := chi.URLParam(r, "id")
	t, err := h.svc.UpdateStatus(id, req.Status)
	if err != nil {
		writeError(w, "update todo "+id, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Report handles GET /api/report.
//
//	@Summary		Last run report
//	@Tags			report
//	@Produce		json
//	@Success		200	{object}	ReportResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Report()
	if err != nil {
		writeError(w, "load report", err, "no run recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{Report: rep, Totals: rep.Totals()})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across book content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		if errors.Is(err, errSearchUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
			return
		}
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
