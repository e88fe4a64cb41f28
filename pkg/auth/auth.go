// Package auth holds the credentials a conversation manager hands to its
// sessions.
package auth

import (
	"errors"
	"fmt"

	"github.com/GaaneshT/codex/internal/config"
)

// Mode identifies how a credential was obtained.
type Mode string

const (
	ModeAPIKey Mode = "api_key"
)

// ErrNoCredential is returned when no API key is available.
var ErrNoCredential = errors.New("no API key available")

// CodexAuth is an immutable credential shared read-only by every session
// of a manager.
type CodexAuth struct {
	mode   Mode
	apiKey string
}

// FromAPIKey wraps an API key.
func FromAPIKey(apiKey string) *CodexAuth {
	return &CodexAuth{mode: ModeAPIKey, apiKey: apiKey}
}

// FromEnv reads OPENAI_API_KEY. It returns nil when the variable is unset.
func FromEnv(env config.EnvLookup) *CodexAuth {
	key, ok := env.Get(config.EnvOpenAIAPIKey)
	if !ok {
		return nil
	}
	return FromAPIKey(key)
}

// Mode returns the credential mode.
func (a *CodexAuth) Mode() Mode {
	return a.mode
}

// APIKey returns the wrapped key.
func (a *CodexAuth) APIKey() string {
	if a == nil {
		return ""
	}
	return a.apiKey
}

// String never prints the key.
func (a *CodexAuth) String() string {
	if a == nil {
		return "CodexAuth(none)"
	}
	return fmt.Sprintf("CodexAuth(%s)", a.mode)
}

// APIKeyFor picks the key used to talk to a provider: the provider's own
// env_key first, then the shared credential for OpenAI-style providers.
// Providers that do not require auth get an empty key and no error.
func APIKeyFor(providerID string, info config.ModelProviderInfo, a *CodexAuth, env config.EnvLookup) (string, error) {
	if info.EnvKey != "" {
		if key, ok := env.Get(info.EnvKey); ok {
			return key, nil
		}
	}
	if info.WireAPI == config.WireAPIChat && a.APIKey() != "" && (providerID == config.BuiltInOpenAIModelProviderID || info.EnvKey == config.EnvOpenAIAPIKey) {
		return a.APIKey(), nil
	}
	if !info.RequiresAuth {
		return "", nil
	}
	if info.EnvKey != "" {
		return "", fmt.Errorf("%w for provider %s: set %s", ErrNoCredential, providerID, info.EnvKey)
	}
	return "", fmt.Errorf("%w for provider %s", ErrNoCredential, providerID)
}
