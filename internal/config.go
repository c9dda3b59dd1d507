package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/hashstore"
	"github.com/dih-project/wishonia/internal/llm"
	"github.com/dih-project/wishonia/internal/todo"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Project   ProjectConfig     `yaml:"project"`
	HashStore HashStoreConfig   `yaml:"hash_store"`
	LLM       LLMConfig         `yaml:"llm"`
	Todos     TodosConfig       `yaml:"todos"`
	Search    SearchConfig      `yaml:"search"`
	HTTP      HTTPConfig        `yaml:"http"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Project, &c.HashStore, &c.LLM, &c.Todos, &c.Search, &c.HTTP} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Path resolves a state path against the project root unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// TodoFiles returns the resolved ledger file locations.
func (c *Config) TodoFiles() todo.Files {
	return todo.Files{
		JSON:     c.Path(c.Todos.JSON),
		YAML:     c.Path(c.Todos.YAML),
		Markdown: c.Path(c.Todos.Markdown),
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// Delay is slept between files to stay under provider rate limits.
	Delay       time.Duration `yaml:"delay"`
	Concurrency int64         `yaml:"concurrency"`
	// WatchDebounce batches file events in watch and serve.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Delay, validation.Min(time.Duration(0))),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(int64(1)), validation.Max(int64(32))),
		validation.Field(&c.WatchDebounce, validation.Min(time.Duration(0))),
	)
}

// ProjectConfig locates the book and the tool's own state.
type ProjectConfig struct {
	Root string `yaml:"root"`
	// Globs select content files; empty means every .md and .qmd file.
	Globs      []string `yaml:"globs"`
	Manifest string `yaml:"manifest"`
	// IgnoreFiles are read in order; missing ones are skipped.
	IgnoreFiles []string `yaml:"ignore_files"`
	StateDir    string   `yaml:"state_dir"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Globs, validation.Each(validation.By(validGlob))),
		validation.Field(&c.StateDir, validation.Required),
	)
}

func validGlob(v any) error {
	if p, _ := v.(string); !corpus.ValidGlob(p) {
		return fmt.Errorf("invalid glob %q", p)
	}
	return nil
}

// HashStoreConfig selects where per-check content hashes live.
type HashStoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Validate validates the hash store configuration.
func (c *HashStoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(hashstore.BackendJSON, hashstore.BackendSQLite, hashstore.BackendFrontmatter)),
		validation.Field(&c.Path, validation.When(c.Backend != hashstore.BackendFrontmatter, validation.Required)),
	)
}

// LLMConfig configures the completion provider used by the LLM checks.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv  string        `yaml:"api_key_env"`
	BaseURL    string        `yaml:"base_url"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	CacheDir   string        `yaml:"cache_dir"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In("anthropic", "openai", "none")),
		validation.Field(&c.Model, validation.When(c.Provider != "none" && c.Provider != "", validation.Required)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
	)
}

// ClientConfig converts to the llm package's configuration, reading the key
// through getenv.
func (c *LLMConfig) ClientConfig(getenv func(string) string) llm.Config {
	cfg := llm.Config{
		Provider:   c.Provider,
		Model:      c.Model,
		BaseURL:    c.BaseURL,
		MaxTokens:  c.MaxTokens,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
	}
	if c.APIKeyEnv != "" {
		cfg.APIKey = getenv(c.APIKeyEnv)
	}
	return cfg
}

// TodosConfig names the ledger renderings. JSON is the source of truth.
type TodosConfig struct {
	JSON     string `yaml:"json"`
	YAML     string `yaml:"yaml"`
	Markdown string `yaml:"markdown"`
	// Report is where the last run summary is saved.
	Report  string `yaml:"report"`
	Journal string `yaml:"journal"`
}

// Validate validates the todos configuration.
func (c *TodosConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JSON, validation.Required),
		validation.Field(&c.Report, validation.Required),
	)
}

// SearchConfig holds the content index location.
type SearchConfig struct {
	Path string `yaml:"path"`
	TopK int    `yaml:"top_k"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TopK, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:      slog.LevelInfo,
			Concurrency:   1,
			WatchDebounce: 500 * time.Millisecond,
		},
		Project: ProjectConfig{
			Root:        ".",
			Manifest:    "_quarto.yml",
			IgnoreFiles: []string{".gitignore", ".wishoniaignore"},
			StateDir:    ".wishonia",
		},
		HashStore: HashStoreConfig{
			Backend: hashstore.BackendJSON,
			Path:    ".wishonia/hashes.json",
		},
		LLM: LLMConfig{
			Provider:   "anthropic",
			Model:      "claude-sonnet-4-20250514",
			APIKeyEnv:  "ANTHROPIC_API_KEY",
			MaxTokens:  8192,
			Timeout:    180 * time.Second,
			MaxRetries: 3,
			CacheDir:   ".wishonia/llm-cache",
			CacheTTL:   7 * 24 * time.Hour,
		},
		Todos: TodosConfig{
			JSON:     ".wishonia/todos.json",
			YAML:     ".wishonia/todos.yaml",
			Markdown: "TODOS.md",
			Report:   ".wishonia/last-run.json",
			Journal:  ".wishonia/journal.log",
		},
		Search: SearchConfig{
			Path: ".wishonia/search.db",
			TopK: 6,
		},
		HTTP: HTTPConfig{
			Port: 8080,
			Auth: AuthConfig{Mode: AuthModeDisabled},
		},
	}
}
