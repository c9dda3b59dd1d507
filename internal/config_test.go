package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dih-project/wishonia/internal/hashstore"
	pkgconfig "github.com/dih-project/wishonia/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.HTTP.Auth.Mode = "token"
	cfg.HTTP.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestProjectConfig_IgnoreFilesAndGlobs(t *testing.T) {
	cfg := NewDefaultConfig()
	if len(cfg.Project.IgnoreFiles) == 0 || cfg.Project.IgnoreFiles[0] != ".gitignore" {
		t.Errorf("IgnoreFiles = %v, want .gitignore first", cfg.Project.IgnoreFiles)
	}
	cfg.Project.Globs = []string{"chapters/**/*.qmd"}
	if err := cfg.Project.Validate(); err != nil {
		t.Errorf("valid glob rejected: %v", err)
	}
	cfg.Project.Globs = []string{"chapters/[abc"}
	if err := cfg.Project.Validate(); err == nil {
		t.Error("malformed glob accepted")
	}
}

func TestHashStoreConfig(t *testing.T) {
	cases := []struct {
		cfg     HashStoreConfig
		wantErr bool
	}{
		{HashStoreConfig{Backend: hashstore.BackendJSON, Path: "h.json"}, false},
		{HashStoreConfig{Backend: hashstore.BackendSQLite, Path: "h.db"}, false},
		{HashStoreConfig{Backend: hashstore.BackendFrontmatter}, false},
		{HashStoreConfig{Backend: hashstore.BackendJSON}, true},
		{HashStoreConfig{Backend: "redis", Path: "x"}, true},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%+v: err = %v, wantErr %v", c.cfg, err, c.wantErr)
		}
	}
}

func TestLLMConfig(t *testing.T) {
	cfg := LLMConfig{Provider: "gemini", Model: "x"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown provider should fail")
	}
	cfg = LLMConfig{Provider: "openai"}
	if err := cfg.Validate(); err == nil {
		t.Error("provider without model should fail")
	}
	cfg = LLMConfig{Provider: "none"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("none needs no model: %v", err)
	}

	cfg = LLMConfig{Provider: "openai", Model: "gpt-4o", APIKeyEnv: "MY_KEY", MaxRetries: 2}
	cc := cfg.ClientConfig(func(k string) string {
		if k == "MY_KEY" {
			return "sk-test"
		}
		return ""
	})
	if cc.APIKey != "sk-test" || cc.Model != "gpt-4o" || cc.MaxRetries != 2 {
		t.Errorf("client config = %+v", cc)
	}
}

func TestConfig_PathResolution(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Project.Root = "/book"
	if got := cfg.Path(".wishonia/hashes.json"); got != filepath.Join("/book", ".wishonia/hashes.json") {
		t.Errorf("relative = %q", got)
	}
	if got := cfg.Path("/var/state.json"); got != "/var/state.json" {
		t.Errorf("absolute = %q", got)
	}
	if got := cfg.TodoFiles(); got.JSON != filepath.Join("/book", ".wishonia/todos.json") || got.Markdown != filepath.Join("/book", "TODOS.md") {
		t.Errorf("todo files = %+v", got)
	}
	cfg.Todos.YAML = ""
	if got := cfg.TodoFiles(); got.YAML != "" {
		t.Errorf("empty yaml path should stay empty, got %q", got.YAML)
	}
}

func TestConfig_LoadYAMLOverDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  delay: 2s
  concurrency: 2
project:
  root: ./book
hash_store:
  backend: sqlite
  path: .wishonia/hashes.db
http:
  port: 9090
`
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.Delay != 2*time.Second || cfg.App.Concurrency != 2 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.HashStore.Backend != hashstore.BackendSQLite || cfg.HTTP.Port != 9090 {
		t.Errorf("hash_store = %+v, http = %+v", cfg.HashStore, cfg.HTTP)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.Todos.Markdown != "TODOS.md" {
		t.Error("unset sections should keep defaults")
	}
}
