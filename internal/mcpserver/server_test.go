package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dih-project/wishonia/internal/agent"
	"github.com/dih-project/wishonia/internal/checks"
	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/hashstore"
	"github.com/dih-project/wishonia/internal/llm"
	"github.com/dih-project/wishonia/internal/runner"
	"github.com/dih-project/wishonia/internal/search"
	"github.com/dih-project/wishonia/internal/testutil"
	"github.com/dih-project/wishonia/internal/todo"
)

type fixture struct {
	srv    *Server
	ledger *todo.Ledger
	files  todo.Files
	store  hashstore.Store
}

func testServer(t *testing.T, completer llm.Completer) *fixture {
	t.Helper()

	root, files := testutil.TestBook(t, map[string]string{
		"index.qmd":          "---\ntitle: Home\n---\n\n# Home\n\nWelcome.\n",
		"chapters/costs.qmd": "---\ntitle: Costs\n---\n\n# Costs\n\nPragmatic trials are cheap.\n",
	})
	store := hashstore.NewJSON(filepath.Join(t.TempDir(), "hashes.json"), root, testutil.Logger())

	ledger := todo.NewLedger()
	_, _ = ledger.RecordIssues("chapters/costs.qmd", []todo.RawIssue{
		{Type: todo.TypeMath, Line: 7, Issue: "sum is wrong", Confidence: todo.ConfidenceHigh},
		{Type: todo.TypeClaim, Line: 7, Issue: "needs a source", Confidence: todo.ConfidenceMedium},
	}, "fact-check")

	ix := testutil.TestIndex(t)
	entries, err := corpus.Enumerate(root, corpus.Options{})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if _, err := search.Sync(context.Background(), ix, files, entries, testutil.Logger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	reg, err := checks.DefaultRegistry(checks.Deps{Files: files})
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}

	deps := Deps{
		Ledger:    ledger,
		Files:     todo.Files{JSON: filepath.Join(t.TempDir(), "todos.json")},
		Searcher:  ix,
		Registry:  reg,
		Stale:     &runner.Runner{Store: store, Files: files, Logger: testutil.Logger()},
		Enumerate: func() ([]corpus.Entry, error) { return corpus.Enumerate(root, corpus.Options{}) },
	}
	if completer != nil {
		deps.Chat = &agent.Chat{Searcher: ix, Completer: completer}
	}
	return &fixture{srv: New(deps, "test"), ledger: ledger, files: deps.Files, store: store}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_todos":
		result, err = srv.listTodos(ctx, req)
	case "update_todo_status":
		result, err = srv.updateTodoStatus(ctx, req)
	case "search_content":
		result, err = srv.searchContent(ctx, req)
	case "stale_files":
		result, err = srv.staleFiles(ctx, req)
	case "ask_book":
		result, err = srv.askBook(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListTodos_Filter(t *testing.T) {
	f := testServer(t, nil)

	var all []todo.Todo
	_ = json.Unmarshal([]byte(resultText(callTool(t, f.srv, "list_todos", map[string]any{}))), &all)
	if len(all) != 2 {
		t.Fatalf("all = %d todos", len(all))
	}

	var critical []todo.Todo
	_ = json.Unmarshal([]byte(resultText(callTool(t, f.srv, "list_todos", map[string]any{"priority": "critical"}))), &critical)
	if len(critical) != 1 || critical[0].Type != todo.TypeMath {
		t.Errorf("critical = %+v", critical)
	}

	if r := callTool(t, f.srv, "list_todos", map[string]any{"status": "done"}); !r.IsError {
		t.Error("expected error for unknown status")
	}
}

func TestUpdateTodoStatus(t *testing.T) {
	f := testServer(t, nil)
	id := f.ledger.All()[0].ID

	r := callTool(t, f.srv, "update_todo_status", map[string]any{"id": id, "status": "fixed"})
	if r.IsError {
		t.Fatalf("update failed: %s", resultText(r))
	}
	reloaded := todo.NewLedger()
	if err := reloaded.LoadFromFile(f.files.JSON); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if got, _ := reloaded.Get(id); got.Status != todo.StatusFixed {
		t.Errorf("persisted status = %s", got.Status)
	}

	if r := callTool(t, f.srv, "update_todo_status", map[string]any{"id": id, "status": "in_progress"}); !r.IsError {
		t.Error("fixed -> in_progress should be rejected")
	}
	if r := callTool(t, f.srv, "update_todo_status", map[string]any{"id": id}); !r.IsError {
		t.Error("missing status should be an error")
	}
}

func TestSearchContent(t *testing.T) {
	f := testServer(t, nil)

	text := resultText(callTool(t, f.srv, "search_content", map[string]any{"query": "pragmatic"}))
	if !strings.Contains(text, "chapters/costs.qmd") {
		t.Errorf("search result = %q", text)
	}
	if text := resultText(callTool(t, f.srv, "search_content", map[string]any{"query": "zeppelin"})); text != "no results" {
		t.Errorf("empty search = %q", text)
	}
}

func TestStaleFiles(t *testing.T) {
	f := testServer(t, nil)

	text := resultText(callTool(t, f.srv, "stale_files", map[string]any{"check": "links"}))
	if !strings.Contains(text, "index.qmd") || !strings.Contains(text, "chapters/costs.qmd") {
		t.Fatalf("stale = %q", text)
	}

	if r := callTool(t, f.srv, "stale_files", map[string]any{"check": "nope"}); !r.IsError {
		t.Error("unknown check should be an error")
	}
}

func TestAskBook(t *testing.T) {
	var prompt string
	f := testServer(t, llm.Func(func(_ context.Context, req llm.Request) (llm.Response, error) {
		prompt = req.User
		return llm.Response{Content: "They are cheap [1]."}, nil
	}))

	text := resultText(callTool(t, f.srv, "ask_book", map[string]any{"question": "pragmatic trials"}))
	if !strings.Contains(text, "cheap [1]") {
		t.Errorf("answer = %q", text)
	}
	if !strings.Contains(prompt, "Pragmatic trials are cheap") {
		t.Errorf("prompt missing passage: %q", prompt)
	}
}
