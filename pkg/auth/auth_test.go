package auth

import (
	"testing"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("key present", func(t *testing.T) {
		a := FromEnv(config.MapEnv(map[string]string{config.EnvOpenAIAPIKey: "sk-env"}))
		require.NotNil(t, a)
		assert.Equal(t, "sk-env", a.APIKey())
		assert.Equal(t, ModeAPIKey, a.Mode())
	})

	t.Run("key absent", func(t *testing.T) {
		assert.Nil(t, FromEnv(config.MapEnv(nil)))
	})
}

func TestStringHidesKey(t *testing.T) {
	a := FromAPIKey("sk-secret")
	assert.NotContains(t, a.String(), "sk-secret")

	var none *CodexAuth
	assert.Equal(t, "CodexAuth(none)", none.String())
	assert.Empty(t, none.APIKey())
}

func TestAPIKeyFor(t *testing.T) {
	providers := config.BuiltInModelProviders(nil)

	t.Run("openai uses shared credential", func(t *testing.T) {
		key, err := APIKeyFor("openai", providers["openai"], FromAPIKey("sk-shared"), config.MapEnv(nil))
		require.NoError(t, err)
		assert.Equal(t, "sk-shared", key)
	})

	t.Run("provider env key wins", func(t *testing.T) {
		env := config.MapEnv(map[string]string{config.EnvAnthropicAPIKey: "sk-ant"})
		key, err := APIKeyFor("anthropic", providers["anthropic"], FromAPIKey("sk-shared"), env)
		require.NoError(t, err)
		assert.Equal(t, "sk-ant", key)
	})

	t.Run("anthropic does not borrow the openai key", func(t *testing.T) {
		_, err := APIKeyFor("anthropic", providers["anthropic"], FromAPIKey("sk-shared"), config.MapEnv(nil))
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("local provider needs no key", func(t *testing.T) {
		key, err := APIKeyFor("oss", providers["oss"], nil, config.MapEnv(nil))
		require.NoError(t, err)
		assert.Empty(t, key)
	})

	t.Run("missing key for openai", func(t *testing.T) {
		_, err := APIKeyFor("openai", providers["openai"], nil, config.MapEnv(nil))
		assert.ErrorIs(t, err, ErrNoCredential)
	})
}
