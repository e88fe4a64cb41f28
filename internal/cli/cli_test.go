package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/pkg/auth"
	"github.com/GaaneshT/codex/pkg/protocol"
	"github.com/GaaneshT/codex/pkg/provider"
	"github.com/GaaneshT/codex/pkg/rollout"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	reply string
	err   error
	seen  []provider.Request
}

func (s *stubClient) Complete(_ context.Context, req provider.Request) (*provider.Response, error) {
	s.seen = append(s.seen, req)
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Response{Content: s.reply, Usage: provider.Usage{InputTokens: 1, OutputTokens: 1}}, nil
}

func (s *stubClient) Provider() string {
	return "stub"
}

// setup points the CLI at a temporary codex home and a stub model.
func setup(t *testing.T, client *stubClient) string {
	t.Helper()
	home := t.TempDir()
	cwd := t.TempDir()

	prevEnv, prevFactory := env, providerFactory
	env = config.MapEnv(map[string]string{
		config.EnvCodexHome: home,
		config.EnvPWD:       cwd,
	})
	providerFactory = provider.FactoryFunc(func(string, config.ModelProviderInfo, *auth.CodexAuth, config.EnvLookup) (provider.ModelClient, error) {
		return client, nil
	})
	t.Cleanup(func() {
		env, providerFactory = prevEnv, prevFactory
	})
	return home
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	setup(t, &stubClient{})

	t.Run("version flag", func(t *testing.T) {
		out, err := execute(t, "", "--version")
		require.NoError(t, err)
		assert.Contains(t, out, "codex version "+GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, err := execute(t, "", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "exec")
		assert.Contains(t, out, "serve")
		assert.Contains(t, out, "config")
	})

	t.Run("global flags", func(t *testing.T) {
		flags := GetRootCmd().PersistentFlags()

		c := flags.Lookup("config")
		require.NotNil(t, c)
		assert.Equal(t, "c", c.Shorthand)

		level := flags.Lookup("log-level")
		require.NotNil(t, level)
		assert.Equal(t, "info", level.DefValue)

		require.NotNil(t, flags.Lookup("profile"))
	})
}

func TestExec(t *testing.T) {
	client := &stubClient{reply: "all tests pass"}
	home := setup(t, client)

	out, err := execute(t, "", "exec", "-m", "o3", "--effort", "high", "run", "the", "tests")
	require.NoError(t, err)
	assert.Equal(t, "all tests pass\n", out)

	require.Len(t, client.seen, 1)
	assert.Equal(t, "o3", client.seen[0].Model)
	assert.Equal(t, config.ReasoningEffortHigh, client.seen[0].Effort)
	assert.Equal(t, "run the tests", client.seen[0].Messages[0].Content)

	_, err = os.Stat(filepath.Join(home, config.ConfigTomlFile))
	assert.True(t, os.IsNotExist(err), "exec must not create config.toml")

	_, err = os.Stat(filepath.Join(home, "log", "codex.log"))
	assert.NoError(t, err)
}

func TestExecReadsStdin(t *testing.T) {
	client := &stubClient{reply: "ok"}
	setup(t, client)

	_, err := execute(t, "from stdin\n", "exec", "-")
	require.NoError(t, err)
	require.Len(t, client.seen, 1)
	assert.Equal(t, "from stdin", client.seen[0].Messages[0].Content)

	_, err = execute(t, "", "exec")
	assert.Error(t, err)
}

func TestExecJSON(t *testing.T) {
	setup(t, &stubClient{reply: "done"})

	out, err := execute(t, "", "exec", "--json", "hello")
	require.NoError(t, err)

	var types []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var ev protocol.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		types = append(types, ev.Msg.Type())
	}
	assert.Equal(t, []string{
		protocol.EventTypeSessionConfigured,
		protocol.EventTypeTaskStarted,
		protocol.EventTypeAgentMessage,
		protocol.EventTypeTokenCount,
		protocol.EventTypeTaskComplete,
		protocol.EventTypeShutdownComplete,
	}, types)
}

func TestExecTurnError(t *testing.T) {
	setup(t, &stubClient{err: errors.New("quota exceeded")})

	_, err := execute(t, "", "exec", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestExecInvalidFlags(t *testing.T) {
	setup(t, &stubClient{})

	tests := []struct {
		name string
		args []string
	}{
		{"effort", []string{"exec", "--effort", "extreme", "hi"}},
		{"approval", []string{"exec", "-a", "sometimes", "hi"}},
		{"sandbox", []string{"exec", "-s", "wide-open", "hi"}},
		{"config override", []string{"-c", "novalue", "exec", "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExecOutputSchema(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{
		"type": "object",
		"required": ["status"],
		"properties": {"status": {"type": "string"}}
	}`), 0o644))

	t.Run("matching output", func(t *testing.T) {
		setup(t, &stubClient{reply: `{"status":"ok"}`})
		_, err := execute(t, "", "exec", "--output-schema", schemaPath, "report")
		assert.NoError(t, err)
	})

	t.Run("mismatching output", func(t *testing.T) {
		setup(t, &stubClient{reply: `{"status":3}`})
		_, err := execute(t, "", "exec", "--output-schema", schemaPath, "report")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "output schema")
	})

	t.Run("not json", func(t *testing.T) {
		setup(t, &stubClient{reply: "plain words"})
		_, err := execute(t, "", "exec", "--output-schema", schemaPath, "report")
		assert.Error(t, err)
	})

	t.Run("missing schema file", func(t *testing.T) {
		setup(t, &stubClient{reply: "{}"})
		_, err := execute(t, "", "exec", "--output-schema", filepath.Join(t.TempDir(), "nope.json"), "report")
		assert.Error(t, err)
	})
}

func TestConfigCommand(t *testing.T) {
	home := setup(t, &stubClient{})
	configPath := filepath.Join(home, config.ConfigTomlFile)
	original := []byte("model = \"o3\"\nmodel_provider = \"openai\"\n")
	require.NoError(t, os.WriteFile(configPath, original, 0o600))

	out, err := execute(t, "", "config")
	require.NoError(t, err)

	var report struct {
		Config  config.Config                 `json:"config"`
		Sources map[string]config.ValueSource `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "o3", report.Config.Model)
	assert.Equal(t, "openai", report.Config.ModelProviderID)
	assert.Equal(t, config.SourceFile, report.Sources["model"])

	out, err = execute(t, "", "-c", "model=gpt-4.1", "config")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "gpt-4.1", report.Config.Model)

	after, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, original, after)
}

func TestConfigPathCommand(t *testing.T) {
	home := setup(t, &stubClient{})

	out, err := execute(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, config.ConfigTomlFile)+"\n", out)
}

func TestExecResume(t *testing.T) {
	client := &stubClient{reply: "first"}
	home := setup(t, client)

	_, err := execute(t, "", "exec", "remember the number 7")
	require.NoError(t, err)

	summaries, err := rollout.Summaries(context.Background(), home)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	id := summaries[0].ID

	client.reply = "7"
	out, err := execute(t, "", "exec", "--resume", id, "what was the number?")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)

	require.Len(t, client.seen, 2)
	assert.Len(t, client.seen[1].Messages, 3)
	assert.Equal(t, "remember the number 7", client.seen[1].Messages[0].Content)

	_, err = execute(t, "", "exec", "--resume", "no-such-id", "hi")
	assert.Error(t, err)
}

func TestSessionsCommands(t *testing.T) {
	home := setup(t, &stubClient{reply: "ok"})

	_, err := execute(t, "", "exec", "hello")
	require.NoError(t, err)

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, "", "sessions", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "MESSAGES")

		out, err = execute(t, "", "sessions", "list", "--json")
		require.NoError(t, err)
		var summaries []rollout.Summary
		require.NoError(t, json.Unmarshal([]byte(out), &summaries))
		require.Len(t, summaries, 1)
		assert.Equal(t, 2, summaries[0].Messages)
	})

	t.Run("prune keeps recent rollouts", func(t *testing.T) {
		out, err := execute(t, "", "sessions", "prune")
		require.NoError(t, err)
		assert.Equal(t, "Deleted 0 rollout(s)\n", out)
	})

	t.Run("prune removes old rollouts", func(t *testing.T) {
		paths, err := rollout.List(home)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		old := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(paths[0], old, old))

		out, err := execute(t, "", "sessions", "prune", "--older-than", "24h")
		require.NoError(t, err)
		assert.Equal(t, "Deleted 1 rollout(s)\n", out)
	})

	t.Run("invalid age", func(t *testing.T) {
		_, err := execute(t, "", "sessions", "prune", "--older-than", "0s")
		assert.Error(t, err)
	})
}
