package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	jsonInstruction     = "Respond with a single JSON object and nothing else."
)

// Anthropic calls the Messages API.
type Anthropic struct {
	apiKey     string
	model      string
	url        string
	maxTokens  int
	maxRetries int
	retryBase  time.Duration
	client     *http.Client
}

// NewAnthropic builds the provider from cfg. cfg.APIKey must be set.
func NewAnthropic(cfg Config) *Anthropic {
	url := cfg.BaseURL
	if url == "" {
		url = anthropicAPIURL
	}
	return &Anthropic{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		url:        url,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		retryBase:  time.Second,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	payload, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
	var resp Response
	err = retry(ctx, a.maxRetries, a.retryBase, func() error {
		body, err := post(ctx, a.client, "anthropic", a.url, headers, payload)
		if err != nil {
			return err
		}
		var result anthropicResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("llm: parse anthropic response: %w", err)
		}
		var b strings.Builder
		for _, block := range result.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return fmt.Errorf("llm: anthropic returned no text content")
		}
		resp = Response{
			Content:    b.String(),
			TokensUsed: result.Usage.InputTokens + result.Usage.OutputTokens,
		}
		return nil
	})
	return resp, err
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
