package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/pkg/auth"
	"github.com/GaaneshT/codex/pkg/conversation"
	"github.com/GaaneshT/codex/pkg/protocol"
	"github.com/GaaneshT/codex/pkg/rollout"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
)

type execOptions struct {
	model        string
	provider     string
	cwd          string
	approval     string
	sandbox      string
	effort       string
	outputSchema string
	resume       string
	jsonOutput   bool
}

var execOpts execOptions

var execCmd = &cobra.Command{
	Use:   "exec [prompt]",
	Short: "Run a single turn non-interactively",
	Long: `Start a conversation, send the prompt as one turn and print the agent's
reply. Use "-" or omit the prompt to read it from stdin.`,
	Args: cobra.ArbitraryArgs,
	RunE: runExec,
}

func init() {
	f := execCmd.Flags()
	f.StringVarP(&execOpts.model, "model", "m", "", "model to use")
	f.StringVar(&execOpts.provider, "provider", "", "model provider id")
	f.StringVarP(&execOpts.cwd, "cd", "C", "", "working directory for the session")
	f.StringVarP(&execOpts.approval, "ask-for-approval", "a", "", "approval policy (untrusted, on-failure, on-request, never)")
	f.StringVarP(&execOpts.sandbox, "sandbox", "s", "", "sandbox mode (read-only, workspace-write, danger-full-access)")
	f.StringVar(&execOpts.effort, "effort", "", "reasoning effort (none, minimal, low, medium, high)")
	f.StringVar(&execOpts.outputSchema, "output-schema", "", "JSON schema file the final message must satisfy")
	f.StringVar(&execOpts.resume, "resume", "", "continue the recorded conversation with this id")
	f.BoolVar(&execOpts.jsonOutput, "json", false, "print every event as a JSON line")

	rootCmd.AddCommand(execCmd)
}

// overrides converts flags into config overrides, validating enums early.
func (o execOptions) overrides() (config.ConfigOverrides, error) {
	var ov config.ConfigOverrides
	if o.model != "" {
		ov.Model = &o.model
	}
	if o.provider != "" {
		ov.ModelProvider = &o.provider
	}
	if o.cwd != "" {
		ov.Cwd = &o.cwd
	}
	if o.approval != "" {
		p, err := config.ParseAskForApproval(o.approval)
		if err != nil {
			return ov, err
		}
		ov.ApprovalPolicy = &p
	}
	if o.sandbox != "" {
		m, err := config.ParseSandboxMode(o.sandbox)
		if err != nil {
			return ov, err
		}
		ov.SandboxMode = &m
	}
	if o.effort != "" {
		e, err := config.ParseReasoningEffort(o.effort)
		if err != nil {
			return ov, err
		}
		ov.ModelReasoningEffort = &e
	}
	return ov, nil
}

func runExec(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	var schema *gojsonschema.Schema
	if execOpts.outputSchema != "" {
		schema, err = loadOutputSchema(execOpts.outputSchema)
		if err != nil {
			return err
		}
	}

	overrides, err := execOpts.overrides()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(overrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := conversation.WithAuth(auth.FromEnv(env),
		conversation.WithProviderFactory(providerFactory),
		conversation.WithEnv(env),
		conversation.WithLogger(log.Logger),
		conversation.WithBaseContext(ctx),
	)

	conv, err := startConversation(ctx, manager, cfg, execOpts.resume)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if execOpts.jsonOutput {
		if err := writeJSONLine(out, protocol.Event{Msg: conv.SessionConfigured}); err != nil {
			return err
		}
	}

	codex := conv.Conversation
	if _, err := codex.Submit(ctx, protocol.UserInput{Items: []protocol.InputItem{protocol.TextInput(prompt)}}); err != nil {
		return err
	}
	if _, err := codex.Submit(ctx, protocol.Shutdown{}); err != nil {
		return err
	}

	result, err := consumeEvents(context.Background(), codex, out, execOpts.jsonOutput)
	if err != nil {
		return err
	}
	if result.turnErr != nil {
		return result.turnErr
	}

	if schema != nil {
		if err := validateOutput(schema, result.lastMessage); err != nil {
			return err
		}
	}
	return nil
}

func startConversation(ctx context.Context, manager *conversation.Manager, cfg *config.Config, resumeID string) (*conversation.NewConversation, error) {
	if resumeID == "" {
		return manager.NewConversation(ctx, cfg)
	}
	path, err := rollout.Find(ctx, cfg.CodexHome, resumeID)
	if err != nil {
		return nil, err
	}
	return manager.ResumeConversation(ctx, cfg, path)
}

type execResult struct {
	lastMessage string
	// turnErr is the first ErrorEvent the session reported.
	turnErr error
}

// consumeEvents reads until ShutdownComplete. Agent messages go to out as
// plain text unless jsonOutput is set.
func consumeEvents(ctx context.Context, codex *conversation.Codex, out io.Writer, jsonOutput bool) (execResult, error) {
	var result execResult
	for {
		ev, err := codex.NextEvent(ctx)
		if err != nil {
			if errors.Is(err, conversation.ErrSessionClosed) {
				return result, nil
			}
			return result, err
		}

		if jsonOutput {
			if err := writeJSONLine(out, ev); err != nil {
				return result, err
			}
		}

		switch msg := ev.Msg.(type) {
		case protocol.AgentMessage:
			result.lastMessage = msg.Message
			if !jsonOutput {
				fmt.Fprintln(out, msg.Message)
			}
		case protocol.ErrorEvent:
			if result.turnErr == nil {
				result.turnErr = msg
			}
		case protocol.ShutdownComplete:
			return result, nil
		}
	}
}

func writeJSONLine(w io.Writer, ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" || prompt == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	return prompt, nil
}

func loadOutputSchema(path string) (*gojsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read output schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid output schema: %w", err)
	}
	return schema, nil
}

// validateOutput checks the final agent message against schema. The
// message must be a JSON document.
func validateOutput(schema *gojsonschema.Schema, message string) error {
	if !json.Valid([]byte(message)) {
		return fmt.Errorf("final message is not valid JSON")
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(message))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("final message does not match output schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}
