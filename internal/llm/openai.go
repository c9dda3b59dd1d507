package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const openAIAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI calls the Chat Completions API, or any compatible endpoint via
// Config.BaseURL.
type OpenAI struct {
	apiKey     string
	model      string
	url        string
	maxTokens  int
	maxRetries int
	retryBase  time.Duration
	client     *http.Client
}

// NewOpenAI builds the provider from cfg. cfg.APIKey must be set.
func NewOpenAI(cfg Config) *OpenAI {
	url := cfg.BaseURL
	if url == "" {
		url = openAIAPIURL
	}
	return &OpenAI{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		url:        url,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		retryBase:  time.Second,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.maxTokens
	}
	body := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens: maxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	var resp Response
	err = retry(ctx, o.maxRetries, o.retryBase, func() error {
		raw, err := post(ctx, o.client, "openai", o.url, headers, payload)
		if err != nil {
			return err
		}
		var result openaiResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("llm: parse openai response: %w", err)
		}
		if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
			return fmt.Errorf("llm: openai returned no content")
		}
		resp = Response{
			Content:    result.Choices[0].Message.Content,
			TokensUsed: result.Usage.TotalTokens,
		}
		return nil
	})
	return resp, err
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}
