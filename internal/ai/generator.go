// Package ai provides the generative-text capability consumed by the
// personalization engine, with Anthropic, OpenAI and AWS Bedrock backends.
//
// Every call may fail (timeouts, quota, malformed output). Callers own the
// fallback policy; clients in this package only report errors.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ResponseMode selects free-text or strict-JSON output.
type ResponseMode int

const (
	ModeText ResponseMode = iota
	ModeJSON
)

func (m ResponseMode) String() string {
	if m == ModeJSON {
		return "json"
	}
	return "text"
}

// TextGenerator generates text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, mode ResponseMode) (string, error)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt string, mode ResponseMode) (string, error)

// GenerateText calls f.
func (f GeneratorFunc) GenerateText(ctx context.Context, prompt string, mode ResponseMode) (string, error) {
	return f(ctx, prompt, mode)
}

var (
	// ErrNoProvider is returned when no provider is configured.
	ErrNoProvider = errors.New("ai: no text provider configured")
	// ErrEmptyResponse is returned when a provider answers without content.
	ErrEmptyResponse = errors.New("ai: provider returned no content")
)

const jsonInstruction = "\n\nRespond with valid JSON only. Do not wrap it in Markdown or add any commentary."

// promptFor appends the strict-JSON instruction in JSON mode.
func promptFor(prompt string, mode ResponseMode) string {
	if mode == ModeJSON {
		return prompt + jsonInstruction
	}
	return prompt
}

// StripCodeFence removes a surrounding Markdown code block (``` or ```json)
// that models commonly wrap JSON answers in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON strips any code fence from raw and unmarshals it into v.
func DecodeJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), v); err != nil {
		return fmt.Errorf("ai: decode json response: %w", err)
	}
	return nil
}
