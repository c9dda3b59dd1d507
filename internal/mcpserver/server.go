// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes review todos and book content to assistants over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dih-project/wishonia/internal/agent"
	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/search"
	"github.com/dih-project/wishonia/internal/todo"
)

const workflowURI = "wishonia://todo-workflow"

// StaleChecker reports which entries a check would process next.
type StaleChecker interface {
	Stale(ctx context.Context, check checks.Check, entries []corpus.Entry) ([]string, error)
}

// Deps are the collaborators exposed through the tools. Chat may be nil
// when no LLM provider is configured.
type Deps struct {
	Ledger    *todo.Ledger
	Files     todo.Files
	Searcher  search.Searcher
	Chat      *agent.Chat
	Registry  *checks.Registry
	Stale     StaleChecker
	Enumerate func() ([]corpus.Entry, error)
}

// Server wraps the MCP server with review tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
}

// New creates a new MCP server with all tools registered.
func New(deps Deps, version string) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"Wishonia",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List review todos, optionally filtered. Read the "+workflowURI+" resource for the status workflow."),
		mcp.WithString("status", mcp.Description("pending, in_progress, fixed, rejected or reviewed")),
		mcp.WithString("type", mcp.Description("parameter, math, claim, reference or consistency")),
		mcp.WithString("priority", mcp.Description("critical, high, medium or low")),
		mcp.WithString("file", mcp.Description("Book-relative file path")),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("update_todo_status",
		mcp.WithDescription("Move a todo to a new status. Setting pending reopens it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Todo id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status")),
	), s.updateTodoStatus)

	s.mcp.AddTool(mcp.NewTool("search_content",
		mcp.WithDescription("Full-text search through the book's chapters. Returns passages with file and line."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchContent)

	s.mcp.AddTool(mcp.NewTool("stale_files",
		mcp.WithDescription("List files whose content changed since a check last processed them."),
		mcp.WithString("check", mcp.Required(), mcp.Description("Check name, e.g. fact-check")),
	), s.staleFiles)

	if deps.Chat != nil {
		s.mcp.AddTool(mcp.NewTool("ask_book",
			mcp.WithDescription("Answer a question from the book's own passages, with citations."),
			mcp.WithString("question", mcp.Required(), mcp.Description("Question to answer")),
		), s.askBook)
	}

	s.mcp.AddResource(
		mcp.NewResource(workflowURI, "Todo Workflow",
			mcp.WithResourceDescription("Statuses, allowed transitions and priority rules for review todos."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readWorkflowResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listTodos(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := todo.Filter{
		Status:   todo.Status(req.GetString("status", "")),
		Type:     todo.Type(req.GetString("type", "")),
		Priority: todo.Priority(req.GetString("priority", "")),
		FilePath: req.GetString("file", ""),
	}
	if f.Status != "" && !todo.ValidStatus(f.Status) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", f.Status)), nil
	}
	return jsonResult(s.deps.Ledger.Query(f))
}

func (s *Server) updateTodoStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.deps.Ledger.Move(id, todo.Status(status))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.deps.Ledger.Persist(s.deps.Files); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t)
}

func (s *Server) searchContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.deps.Searcher == nil {
		return mcp.NewToolResultError("search index unavailable; run `wishonia index` first"), nil
	}
	results, err := s.deps.Searcher.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(results)
}

func (s *Server) staleFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("check")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.deps.Registry.Get(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v (known: %s)", err, strings.Join(s.deps.Registry.Names(), ", "))), nil
	}
	entries, err := s.deps.Enumerate()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stale, err := s.deps.Stale.Stale(ctx, c, entries)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(stale) == 0 {
		return mcp.NewToolResultText("up to date"), nil
	}
	return mcp.NewToolResultText(strings.Join(stale, "\n")), nil
}

func (s *Server) askBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ans, err := s.deps.Chat.Ask(ctx, q)
	if err != nil {
		if errors.Is(err, agent.ErrNoContext) {
			return mcp.NewToolResultText("the book has no passages about that"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ans)
}

func (s *Server) readWorkflowResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      workflowURI,
			MIMEType: "text/markdown",
			Text:     WorkflowContract,
		},
	}, nil
}
