// Package llm is the provider abstraction behind card generation. Every
// provider answers a single-turn prompt with JSON that conforms to the
// request's schema.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider generates structured output from a prompt.
type Provider interface {
	// Generate sends req and returns the model output. When req.Schema is
	// set the Content is JSON that has been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the configured model identifier.
	ModelID() string
}

// Request is one single-turn generation.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Prompt is the user message.
	Prompt string

	// Schema, when set, selects the provider's native structured output mode.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the provider default.
	Temperature float64
}

// Schema is a named JSON Schema for structured output.
type Schema struct {
	// Name is kebab-case, e.g. "learning-card". Providers use it as the
	// schema or tool name and validation caches compiled schemas by it.
	Name        string
	Description string
	Definition  map[string]any
}

// StopReason is the normalized reason generation ended.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max_tokens"
)

// Response holds the model output.
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason StopReason
}

// Decode unmarshals Content into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Content, v); err != nil {
		return &Error{Kind: KindInvalidResponse, Content: r.Content, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// Usage is the token consumption of one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// finish turns raw provider output into a Response. Truncated structured
// output is rejected before validation since it can never be complete JSON.
func finish(provider string, req Request, raw json.RawMessage, usage Usage, model string, stop StopReason) (*Response, error) {
	if req.Schema != nil && stop == StopMaxTokens {
		return nil, &Error{Provider: provider, Kind: KindTruncated, Content: raw}
	}
	if err := validateResponse(req.Schema, raw); err != nil {
		err.Provider = provider
		return nil, err
	}
	return &Response{Content: raw, Usage: usage, Model: model, StopReason: stop}, nil
}

// resolveModel maps a friendly model name to a provider model ID. Unknown
// names pass through so full model IDs work too.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
