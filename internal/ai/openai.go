package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/videocampaign/internal/pkg/httpretry"
)

const (
	defaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	cfg  OpenAIConfig
	http httpretry.HTTPDoer
}

// NewOpenAIClient creates a client. doer is usually a *httpretry.RetryClient.
func NewOpenAIClient(cfg OpenAIConfig, doer httpretry.HTTPDoer) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if doer == nil {
		doer = httpretry.NewRetryClient(nil, 0)
	}
	return &OpenAIClient{cfg: cfg, http: doer}
}

// Name identifies the provider in logs.
func (c *OpenAIClient) Name() string { return "openai" }

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat *openAIRespFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRespFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GenerateText sends prompt as a single user message. JSON mode uses the
// native json_object response format; json_object only yields objects, so
// the strict-JSON instruction is appended as well for array answers.
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string, mode ResponseMode) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("openai: %w", ErrNoProvider)
	}

	reqBody := openAIRequest{
		Model:     c.cfg.Model,
		Messages:  []openAIMessage{{Role: "user", Content: promptFor(prompt, mode)}},
		MaxTokens: c.cfg.MaxTokens,
	}
	if mode == ModeJSON && !expectsArray(prompt) {
		reqBody.ResponseFormat = &openAIRespFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("openai: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

// expectsArray reports whether the prompt asks for a top-level JSON array,
// which the json_object response format cannot express.
func expectsArray(prompt string) bool {
	return strings.Contains(strings.ToLower(prompt), "json array")
}
