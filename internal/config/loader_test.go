package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigToml(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigTomlFile)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("missing file yields empty config", func(t *testing.T) {
		home := t.TempDir()

		cfg, err := NewLoader(home).Load()
		require.NoError(t, err)
		assert.Nil(t, cfg.Model)
		assert.Nil(t, cfg.ModelProvider)

		_, err = os.Stat(filepath.Join(home, ConfigTomlFile))
		assert.True(t, os.IsNotExist(err), "loading must not create config.toml")
	})

	t.Run("reads toml fields", func(t *testing.T) {
		home := t.TempDir()
		writeConfigToml(t, home, `
model = "gpt-4o"
model_provider = "openai"
approval_policy = "never"
sandbox_mode = "workspace-write"
notify = ["notify-send", "codex"]

[sandbox_workspace_write]
writable_roots = ["/tmp"]
network_access = true

[profiles.fast]
model = "gpt-4o-mini"

[model_providers.local]
name = "Local"
base_url = "http://localhost:1234/v1"
`)

		cfg, err := LoadConfigToml(home)
		require.NoError(t, err)
		require.NotNil(t, cfg.Model)
		assert.Equal(t, "gpt-4o", *cfg.Model)
		assert.Equal(t, "openai", *cfg.ModelProvider)
		assert.Equal(t, "never", *cfg.ApprovalPolicy)
		assert.Equal(t, []string{"notify-send", "codex"}, cfg.Notify)
		require.NotNil(t, cfg.SandboxWorkspaceWrite)
		assert.Equal(t, []string{"/tmp"}, cfg.SandboxWorkspaceWrite.WritableRoots)
		assert.True(t, cfg.SandboxWorkspaceWrite.NetworkAccess)
		require.Contains(t, cfg.Profiles, "fast")
		assert.Equal(t, "gpt-4o-mini", *cfg.Profiles["fast"].Model)
		assert.Equal(t, "http://localhost:1234/v1", cfg.ModelProviders["local"].BaseURL)
	})

	t.Run("cli overrides layer over the file", func(t *testing.T) {
		home := t.TempDir()
		writeConfigToml(t, home, "model = \"gpt-4o\"\n")

		cfg, err := LoadConfigToml(home, `model="o3"`, "hide_agent_reasoning=true")
		require.NoError(t, err)
		assert.Equal(t, "o3", *cfg.Model)
		require.NotNil(t, cfg.HideAgentReasoning)
		assert.True(t, *cfg.HideAgentReasoning)
	})

	t.Run("malformed override", func(t *testing.T) {
		_, err := LoadConfigToml(t.TempDir(), "model")
		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "-c", cfgErr.Field)
	})

	t.Run("invalid toml is a config error", func(t *testing.T) {
		home := t.TempDir()
		writeConfigToml(t, home, "model = \n[[[")

		_, err := LoadConfigToml(home)
		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("load leaves the file untouched", func(t *testing.T) {
		home := t.TempDir()
		path := writeConfigToml(t, home, "model = \"gpt-4o\"\n")

		_, err := LoadConfigToml(home, `model="o3"`)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "model = \"gpt-4o\"\n", string(data))
	})
}

func TestLoadWithOverrides(t *testing.T) {
	home := t.TempDir()
	writeConfigToml(t, home, "model = \"gpt-4o\"\nmodel_provider = \"openai\"\n")

	cfg, err := LoadWithOverrides(ConfigOverrides{}, MapEnv(map[string]string{
		EnvCodexHome: home,
	}))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "openai", cfg.ModelProviderID)
	assert.Equal(t, home, cfg.CodexHome)
}

func TestLoadFromBaseConfigWithOverrides(t *testing.T) {
	home := t.TempDir()

	cfg, err := LoadFromBaseConfigWithOverrides(ConfigToml{}, ConfigOverrides{}, home, MapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, BuiltInOSSModelProviderID, cfg.ModelProviderID)
	assert.Equal(t, DefaultOSSModel, cfg.Model)
	assert.Equal(t, home, cfg.CodexHome)
}

func TestLoadMixedCaseKeys(t *testing.T) {
	home := t.TempDir()
	writeConfigToml(t, home, `
profile = "Fast"
model_provider = "MyLLM"

[profiles.Fast]
model = "llama-3.1-8b"
model_reasoning_effort = "low"

[model_providers.MyLLM]
name = "My LLM"
base_url = "http://localhost:8080/v1"
`)
	env := MapEnv(map[string]string{EnvCodexHome: home})

	cfg, err := LoadWithOverrides(ConfigOverrides{}, env)
	require.NoError(t, err)

	assert.Equal(t, "fast", cfg.ActiveProfile)
	assert.Equal(t, "llama-3.1-8b", cfg.Model)
	assert.Equal(t, SourceProfile, cfg.Source("model"))
	assert.Equal(t, ReasoningEffortLow, cfg.ModelReasoningEffort)
	assert.Equal(t, "myllm", cfg.ModelProviderID)

	info, ok := cfg.ModelProvider()
	require.True(t, ok)
	assert.Equal(t, "My LLM", info.Name)
	assert.Equal(t, "http://localhost:8080/v1", info.BaseURL)

	t.Run("profile flag ignores case", func(t *testing.T) {
		cfg, err := LoadWithOverrides(ConfigOverrides{ConfigProfile: ptr("FAST")}, env)
		require.NoError(t, err)
		assert.Equal(t, "fast", cfg.ActiveProfile)
		assert.Equal(t, "llama-3.1-8b", cfg.Model)
	})
}
