package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestResolveDefaults(t *testing.T) {
	t.Run("default config uses local oss provider", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(nil))
		require.NoError(t, err)

		assert.Equal(t, BuiltInOSSModelProviderID, cfg.ModelProviderID)
		assert.Equal(t, DefaultOSSModel, cfg.Model)
		assert.Equal(t, SourceDefault, cfg.Source("model_provider"))
		assert.Equal(t, SourceDefault, cfg.Source("model"))
	})

	t.Run("every field is concrete", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, nil)
		require.NoError(t, err)

		assert.Equal(t, ApprovalOnRequest, cfg.ApprovalPolicy)
		assert.Equal(t, NewReadOnlyPolicy(), cfg.SandboxPolicy)
		assert.Equal(t, ReasoningEffortMedium, cfg.ModelReasoningEffort)
		assert.Equal(t, ReasoningSummaryAuto, cfg.ModelReasoningSummary)
		assert.Equal(t, HistorySaveAll, cfg.HistoryPersistence)
		assert.Equal(t, ".", cfg.Cwd)
		assert.Equal(t, ".codex", cfg.CodexHome)

		info, ok := cfg.ModelProvider()
		require.True(t, ok)
		assert.Equal(t, "http://localhost:11434/v1", info.BaseURL)
	})
}

func TestResolveEnvironmentSignals(t *testing.T) {
	t.Run("env provider overrides default", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvProvider: "openai",
		}))
		require.NoError(t, err)

		assert.Equal(t, "openai", cfg.ModelProviderID)
		assert.Equal(t, SourceEnv, cfg.Source("model_provider"))
	})

	t.Run("env model overrides default", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvModel: "custom-model",
		}))
		require.NoError(t, err)

		assert.Equal(t, "custom-model", cfg.Model)
		assert.Equal(t, BuiltInOSSModelProviderID, cfg.ModelProviderID)
	})

	t.Run("default provider prefers openai when api key present", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvOpenAIAPIKey: "sk-test",
		}))
		require.NoError(t, err)

		assert.Equal(t, "openai", cfg.ModelProviderID)
		assert.Equal(t, SourceCredentials, cfg.Source("model_provider"))
	})

	t.Run("credential driven provider gets the openai default model", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvOpenAIAPIKey: "sk-test",
		}))
		require.NoError(t, err)

		assert.Equal(t, DefaultOpenAIModel, cfg.Model)
		assert.Equal(t, "gpt-5", cfg.Model)
	})

	t.Run("provider hint wins over credential", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvOpenAIAPIKey: "sk-test",
			EnvProvider:     BuiltInOSSModelProviderID,
		}))
		require.NoError(t, err)

		assert.Equal(t, BuiltInOSSModelProviderID, cfg.ModelProviderID)
		assert.Equal(t, DefaultOSSModel, cfg.Model)
	})

	t.Run("empty signals count as unset", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvProvider:     "  ",
			EnvOpenAIAPIKey: "",
		}))
		require.NoError(t, err)

		assert.Equal(t, BuiltInOSSModelProviderID, cfg.ModelProviderID)
	})

	t.Run("anthropic provider uses its own default model", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvProvider: BuiltInAnthropicModelProviderID,
		}))
		require.NoError(t, err)

		assert.Equal(t, DefaultAnthropicModel, cfg.Model)
	})

	t.Run("oss base url from environment", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(map[string]string{
			EnvOSSPort: "8080",
		}))
		require.NoError(t, err)

		info, ok := cfg.ModelProvider()
		require.True(t, ok)
		assert.Equal(t, "http://localhost:8080/v1", info.BaseURL)
	})
}

func TestResolvePrecedence(t *testing.T) {
	env := MapEnv(map[string]string{
		EnvProvider:     "anthropic",
		EnvModel:        "env-model",
		EnvOpenAIAPIKey: "sk-test",
	})

	t.Run("base config beats environment", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{
			Model:         ptr("gpt-4o"),
			ModelProvider: ptr("openai"),
		}, ConfigOverrides{}, env)
		require.NoError(t, err)

		assert.Equal(t, "gpt-4o", cfg.Model)
		assert.Equal(t, "openai", cfg.ModelProviderID)
		assert.Equal(t, SourceFile, cfg.Source("model"))
	})

	t.Run("overrides beat base config", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{
			Model:          ptr("gpt-4o"),
			ModelProvider:  ptr("openai"),
			ApprovalPolicy: ptr("never"),
		}, ConfigOverrides{
			Model:          ptr("o3"),
			ModelProvider:  ptr(BuiltInOSSModelProviderID),
			ApprovalPolicy: ptr(ApprovalUntrusted),
		}, env)
		require.NoError(t, err)

		assert.Equal(t, "o3", cfg.Model)
		assert.Equal(t, BuiltInOSSModelProviderID, cfg.ModelProviderID)
		assert.Equal(t, ApprovalUntrusted, cfg.ApprovalPolicy)
		assert.Equal(t, SourceOverride, cfg.Source("approval_policy"))
	})

	t.Run("model default follows explicit provider", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{ModelProvider: ptr(BuiltInOSSModelProviderID)}, ConfigOverrides{}, nil)
		require.NoError(t, err)

		assert.Equal(t, DefaultOSSModel, cfg.Model)
	})

	t.Run("profile sits between overrides and base", func(t *testing.T) {
		base := ConfigToml{
			Model:   ptr("gpt-4o"),
			Profile: ptr("deep"),
			Profiles: map[string]ConfigProfile{
				"deep": {Model: ptr("o3"), ModelReasoningEffort: ptr("high")},
				"fast": {Model: ptr("gpt-4o-mini")},
			},
		}

		cfg, err := Resolve(base, ConfigOverrides{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "o3", cfg.Model)
		assert.Equal(t, ReasoningEffortHigh, cfg.ModelReasoningEffort)
		assert.Equal(t, "deep", cfg.ActiveProfile)
		assert.Equal(t, SourceProfile, cfg.Source("model"))

		cfg, err = Resolve(base, ConfigOverrides{ConfigProfile: ptr("fast")}, nil)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", cfg.Model)

		cfg, err = Resolve(base, ConfigOverrides{ConfigProfile: ptr("fast"), Model: ptr("o4-mini")}, nil)
		require.NoError(t, err)
		assert.Equal(t, "o4-mini", cfg.Model)
	})

	t.Run("workspace write sandbox carries its settings", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{
			SandboxMode: ptr("workspace-write"),
			SandboxWorkspaceWrite: &SandboxWorkspaceWriteToml{
				WritableRoots: []string{"/tmp"},
				NetworkAccess: true,
			},
		}, ConfigOverrides{}, nil)
		require.NoError(t, err)

		assert.Equal(t, SandboxPolicy{
			Mode:          SandboxWorkspaceWrite,
			WritableRoots: []string{"/tmp"},
			NetworkAccess: true,
		}, cfg.SandboxPolicy)
	})

	t.Run("cwd and codex home", func(t *testing.T) {
		env := MapEnv(map[string]string{
			EnvPWD:  "/work",
			EnvHome: "/home/dev",
		})

		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{Cwd: ptr("sub/dir")}, env)
		require.NoError(t, err)
		assert.Equal(t, "/work/sub/dir", cfg.Cwd)
		assert.Equal(t, "/home/dev/.codex", cfg.CodexHome)

		cfg, err = Resolve(ConfigToml{}, ConfigOverrides{CodexHome: ptr("/opt/codex")}, env)
		require.NoError(t, err)
		assert.Equal(t, "/work", cfg.Cwd)
		assert.Equal(t, "/opt/codex", cfg.CodexHome)
	})
}

func TestResolveModelProviders(t *testing.T) {
	t.Run("user providers are merged", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{
			ModelProvider: ptr("openrouter"),
			Model:         ptr("meta/llama"),
			ModelProviders: map[string]ModelProviderInfo{
				"openrouter": {BaseURL: "https://openrouter.ai/api/v1", EnvKey: "OPENROUTER_API_KEY"},
			},
		}, ConfigOverrides{}, nil)
		require.NoError(t, err)

		info, ok := cfg.ModelProvider()
		require.True(t, ok)
		assert.Equal(t, WireAPIChat, info.WireAPI)
		assert.Equal(t, "openrouter", info.Name)
	})

	t.Run("built in providers cannot be replaced", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{
			ModelProviders: map[string]ModelProviderInfo{
				"openai": {BaseURL: "http://evil.example/v1"},
			},
		}, ConfigOverrides{}, nil)
		require.NoError(t, err)

		assert.Equal(t, "https://api.openai.com/v1", cfg.ModelProviders["openai"].BaseURL)
	})

	t.Run("unknown provider id is not a resolution error", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{ModelProvider: ptr("nope")}, ConfigOverrides{}, nil)
		require.NoError(t, err)

		_, ok := cfg.ModelProvider()
		assert.False(t, ok)
	})
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		base  ConfigToml
		field string
	}{
		{"approval policy", ConfigToml{ApprovalPolicy: ptr("sometimes")}, "approval_policy"},
		{"sandbox mode", ConfigToml{SandboxMode: ptr("chroot")}, "sandbox_mode"},
		{"reasoning effort", ConfigToml{ModelReasoningEffort: ptr("extreme")}, "model_reasoning_effort"},
		{"reasoning summary", ConfigToml{ModelReasoningSummary: ptr("verbose")}, "model_reasoning_summary"},
		{"history", ConfigToml{History: &HistoryToml{Persistence: ptr("forever")}}, "history.persistence"},
		{"profile value", ConfigToml{Profiles: map[string]ConfigProfile{"x": {ApprovalPolicy: ptr("bad")}}}, "profiles.x.approval_policy"},
		{"missing profile", ConfigToml{Profile: ptr("ghost")}, "profile"},
		{"blank notify program", ConfigToml{Notify: []string{"", "--flag"}}, "notify"},
		{"provider wire api", ConfigToml{ModelProviders: map[string]ModelProviderInfo{"p": {BaseURL: "http://x", WireAPI: "grpc"}}}, "model_providers.p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve(tt.base, ConfigOverrides{}, nil)
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestResolveNotify(t *testing.T) {
	t.Run("copied from the file", func(t *testing.T) {
		base := ConfigToml{Notify: []string{"notify-send", "codex"}}
		cfg, err := Resolve(base, ConfigOverrides{}, MapEnv(nil))
		require.NoError(t, err)

		assert.Equal(t, []string{"notify-send", "codex"}, cfg.Notify)
		assert.Equal(t, SourceFile, cfg.Source("notify"))

		base.Notify[0] = "changed"
		assert.Equal(t, "notify-send", cfg.Notify[0])
	})

	t.Run("unset by default", func(t *testing.T) {
		cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, MapEnv(nil))
		require.NoError(t, err)
		assert.Empty(t, cfg.Notify)
	})
}

func TestResolveIsDeterministic(t *testing.T) {
	base := ConfigToml{
		Model:         ptr("gpt-4o"),
		SandboxMode:   ptr("workspace-write"),
		ModelProviders: map[string]ModelProviderInfo{
			"local": {BaseURL: "http://localhost:1234/v1"},
		},
	}
	overrides := ConfigOverrides{ModelReasoningEffort: ptr(ReasoningEffortHigh)}
	env := MapEnv(map[string]string{EnvOpenAIAPIKey: "sk-test", EnvPWD: "/repo"})

	first, err := Resolve(base, overrides, env)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		next, err := Resolve(base, overrides, env)
		require.NoError(t, err)
		assert.Equal(t, first, next)
		assert.Equal(t, first.Sources(), next.Sources())
	}
}

func TestConfigString(t *testing.T) {
	cfg, err := Resolve(ConfigToml{}, ConfigOverrides{}, nil)
	require.NoError(t, err)

	assert.Contains(t, cfg.String(), `"model_provider_id": "oss"`)
}
