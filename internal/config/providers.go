package config

import (
	"fmt"
	"strconv"
)

const (
	// BuiltInOSSModelProviderID is the local provider used when nothing else
	// selects one.
	BuiltInOSSModelProviderID = "oss"
	// BuiltInOpenAIModelProviderID is the hosted provider selected when an
	// OpenAI credential is present.
	BuiltInOpenAIModelProviderID = "openai"
	// BuiltInAnthropicModelProviderID talks to the Anthropic Messages API.
	BuiltInAnthropicModelProviderID = "anthropic"

	// DefaultOSSModel is the model served by the local provider by default.
	DefaultOSSModel = "gpt-oss:20b"
	// DefaultOpenAIModel is the model used with the hosted provider when no
	// model is configured.
	DefaultOpenAIModel = "gpt-5"
	// DefaultAnthropicModel is the model used with the Anthropic provider when
	// no model is configured.
	DefaultAnthropicModel = "claude-sonnet-4-0"

	// DefaultOSSPort is the port an Ollama-compatible server listens on.
	DefaultOSSPort = 11434
)

// WireAPI names the request protocol a provider speaks.
type WireAPI string

const (
	WireAPIChat      WireAPI = "chat"
	WireAPIAnthropic WireAPI = "anthropic"
)

// ModelProviderInfo describes how to reach a model provider.
type ModelProviderInfo struct {
	Name    string  `json:"name" mapstructure:"name"`
	BaseURL string  `json:"base_url,omitempty" mapstructure:"base_url"`
	EnvKey  string  `json:"env_key,omitempty" mapstructure:"env_key"`
	WireAPI WireAPI `json:"wire_api" mapstructure:"wire_api"`
	// RequiresAuth is false for local servers that accept any key.
	RequiresAuth bool `json:"requires_auth" mapstructure:"requires_auth"`
}

// BuiltInModelProviders returns the providers known without configuration.
func BuiltInModelProviders(env EnvLookup) map[string]ModelProviderInfo {
	return map[string]ModelProviderInfo{
		BuiltInOpenAIModelProviderID: {
			Name:         "OpenAI",
			BaseURL:      "https://api.openai.com/v1",
			EnvKey:       EnvOpenAIAPIKey,
			WireAPI:      WireAPIChat,
			RequiresAuth: true,
		},
		BuiltInOSSModelProviderID: {
			Name:    "Open Source",
			BaseURL: ossBaseURL(env),
			WireAPI: WireAPIChat,
		},
		BuiltInAnthropicModelProviderID: {
			Name:         "Anthropic",
			BaseURL:      "https://api.anthropic.com",
			EnvKey:       EnvAnthropicAPIKey,
			WireAPI:      WireAPIAnthropic,
			RequiresAuth: true,
		},
	}
}

func ossBaseURL(env EnvLookup) string {
	if url, ok := env.Get(EnvOSSBaseURL); ok {
		return url
	}
	port := DefaultOSSPort
	if raw, ok := env.Get(EnvOSSPort); ok {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			port = p
		}
	}
	return fmt.Sprintf("http://localhost:%d/v1", port)
}

// DefaultModelForProvider returns the model intrinsically associated with a
// provider id.
func DefaultModelForProvider(providerID string) string {
	switch providerID {
	case BuiltInOSSModelProviderID:
		return DefaultOSSModel
	case BuiltInAnthropicModelProviderID:
		return DefaultAnthropicModel
	default:
		return DefaultOpenAIModel
	}
}
