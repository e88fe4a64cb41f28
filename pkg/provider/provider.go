// Package provider adapts model provider SDKs to the single completion call a
// conversation turn needs.
package provider

import (
	"context"
	"fmt"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/pkg/auth"
)

const defaultMaxTokens = 4096

// Message is one entry of the conversation history sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the request parameters for a completion.
type Request struct {
	Model        string
	Instructions string
	Messages     []Message
	Effort       config.ReasoningEffort
	Summary      config.ReasoningSummary
	MaxTokens    int
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Response contains the model's reply.
type Response struct {
	Content string
	Usage   Usage
}

// ModelClient is an interface for model API providers
type ModelClient interface {
	// Complete runs one request/response exchange
	Complete(ctx context.Context, request Request) (*Response, error)

	// Provider returns the provider id
	Provider() string
}

// Factory creates model clients for a resolved provider.
type Factory interface {
	NewClient(id string, info config.ModelProviderInfo, a *auth.CodexAuth, env config.EnvLookup) (ModelClient, error)
}

// DefaultFactory builds SDK-backed clients based on the provider's wire API.
type DefaultFactory struct{}

// NewClient creates a new model client for the provider
func (DefaultFactory) NewClient(id string, info config.ModelProviderInfo, a *auth.CodexAuth, env config.EnvLookup) (ModelClient, error) {
	apiKey, err := auth.APIKeyFor(id, info, a, env)
	if err != nil {
		return nil, err
	}

	switch info.WireAPI {
	case config.WireAPIChat, "":
		if info.BaseURL == "" {
			return nil, fmt.Errorf("provider %s has no base_url", id)
		}
		return NewOpenAIClient(id, info.BaseURL, apiKey), nil
	case config.WireAPIAnthropic:
		return NewAnthropicClient(id, info.BaseURL, apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported wire api %q for provider %s", info.WireAPI, id)
	}
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(id string, info config.ModelProviderInfo, a *auth.CodexAuth, env config.EnvLookup) (ModelClient, error)

func (f FactoryFunc) NewClient(id string, info config.ModelProviderInfo, a *auth.CodexAuth, env config.EnvLookup) (ModelClient, error) {
	return f(id, info, a, env)
}
