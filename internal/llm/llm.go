// Package llm talks to hosted language models. Checks see only the
// Completer interface; providers, retries and the response cache live here.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Request is one prompt sent to a model.
type Request struct {
	System    string
	User      string
	MaxTokens int
	// JSON asks the provider to answer with a single JSON object.
	JSON bool
	// Accept, when set, reports whether an answer is usable. Caching
	// layers keep and serve only accepted answers.
	Accept func(content string) error
}

// Response is the raw model output.
type Response struct {
	Content    string
	TokensUsed int
}

// Completer produces a completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Func adapts a plain function to Completer.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Complete(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

func (f Func) Name() string { return "func" }

// ErrDisabled is returned by the completer of the "none" provider.
var ErrDisabled = errors.New("llm: provider disabled")

type disabled struct{}

func (disabled) Complete(context.Context, Request) (Response, error) { return Response{}, ErrDisabled }

func (disabled) Name() string { return "none" }

// Config selects and tunes a provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

const (
	defaultMaxTokens  = 8192
	defaultTimeout    = 180 * time.Second
	defaultMaxRetries = 3
)

// New builds the completer named by cfg.Provider. When APIKey is empty the
// provider's conventional environment variable is consulted.
func New(cfg Config) (Completer, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, &AuthError{Provider: "anthropic", Message: "ANTHROPIC_API_KEY is not set"}
		}
		return NewAnthropic(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			return nil, &AuthError{Provider: "openai", Message: "OPENAI_API_KEY is not set"}
		}
		return NewOpenAI(cfg), nil
	case "none", "":
		return disabled{}, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
