package config

import (
	"os"
	"strings"
)

// Environment signals consulted during resolution.
const (
	// EnvProvider names the model provider to use when neither overrides nor
	// config.toml pick one.
	EnvProvider = "CODEX_PROVIDER"
	// EnvModel names the model to use when neither overrides nor config.toml
	// pick one.
	EnvModel = "CODEX_MODEL"
	// EnvOpenAIAPIKey signals that an OpenAI credential is available.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvAnthropicAPIKey carries the Anthropic credential.
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	// EnvCodexHome relocates the codex home directory.
	EnvCodexHome = "CODEX_HOME"
	// EnvOSSBaseURL replaces the base URL of the local provider.
	EnvOSSBaseURL = "CODEX_OSS_BASE_URL"
	// EnvOSSPort replaces the port of the local provider's default base URL.
	EnvOSSPort = "CODEX_OSS_PORT"

	EnvHome = "HOME"
	EnvPWD  = "PWD"
)

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(key string) (string, bool)

// OSEnv delegates to the process environment.
func OSEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv returns a lookup backed by a fixed map.
func MapEnv(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// Get returns the trimmed value for key. Empty values count as unset.
func (e EnvLookup) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// HasOpenAIAPIKey reports whether the OpenAI credential signal is present.
func (e EnvLookup) HasOpenAIAPIKey() bool {
	_, ok := e.Get(EnvOpenAIAPIKey)
	return ok
}
