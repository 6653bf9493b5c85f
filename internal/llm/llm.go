// Package llm provides the pluggable chat-completion clients the interviewer
// brain runs on. Providers are selected by a "provider/model" string so the
// deployment can switch vendors without code changes.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Interview turns are short spoken replies, not documents: cap generation
// at a turn-sized budget and keep enough sampling variation that the
// interviewer does not repeat itself verbatim across candidates.
const (
	turnTemperature = 0.7
	turnMaxTokens   = 1024
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

// WithBaseURL points the client at an alternate API endpoint. Used by tests
// and proxy deployments.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// ParseModel splits a "provider/model_name" string.
func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are gemini, openai, anthropic", provider)
	}
}
