// Package hooks runs the user's notify program when a turn completes.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventAgentTurnComplete is the only event delivered to notify programs.
const EventAgentTurnComplete = "agent-turn-complete"

const defaultTimeout = 10 * time.Second

// TurnComplete is handed to the notify program as its final argument.
type TurnComplete struct {
	Type                 string   `json:"type"`
	ConversationID       string   `json:"conversation-id"`
	TurnID               string   `json:"turn-id"`
	InputMessages        []string `json:"input-messages"`
	LastAssistantMessage string   `json:"last-assistant-message,omitempty"`
}

// Config configures a hook Manager.
type Config struct {
	// Command is the program and its leading arguments.
	Command []string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Manager runs the notify program. A Manager without a command does nothing.
type Manager struct {
	command []string
	timeout time.Duration
	logger  zerolog.Logger

	wg sync.WaitGroup
}

// NewManager creates a hook manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Command) > 0 && strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, fmt.Errorf("notify program is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Manager{
		command: append([]string(nil), cfg.Command...),
		timeout: cfg.Timeout,
		logger:  cfg.Logger.With().Str("component", "hooks").Logger(),
	}, nil
}

// Enabled reports whether a notify program is configured.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.command) > 0
}

// NotifyTurnComplete runs the program and waits for it.
func (m *Manager) NotifyTurnComplete(ctx context.Context, payload TurnComplete) error {
	if !m.Enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload.Type = EventAgentTurnComplete
	if payload.InputMessages == nil {
		payload.InputMessages = []string{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := append(append([]string(nil), m.command[1:]...), string(data))
	cmd := exec.CommandContext(runCtx, m.command[0], args...)
	cmd.Env = buildHookEnvironment(payload.Type, map[string]interface{}{
		"conversation_id": payload.ConversationID,
		"turn_id":         payload.TurnID,
	})

	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("notify %s failed: %w: %s", m.command[0], err, outputText)
		}
		return fmt.Errorf("notify %s failed: %w", m.command[0], err)
	}

	if outputText != "" {
		m.logger.Debug().
			Str("turn_id", payload.TurnID).
			Str("output", outputText).
			Msg("Notify program finished")
	}
	return nil
}

// NotifyAsync runs the program in the background. Failures are logged.
func (m *Manager) NotifyAsync(payload TurnComplete) {
	if !m.Enabled() {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.NotifyTurnComplete(context.Background(), payload); err != nil {
			m.logger.Warn().Err(err).Str("turn_id", payload.TurnID).Msg("Notify program failed")
		}
	}()
}

// Wait blocks until every background notification has finished.
func (m *Manager) Wait() {
	if m == nil {
		return
	}
	m.wg.Wait()
}

func buildHookEnvironment(event string, data map[string]interface{}) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, "CODEX_HOOK_EVENT="+event)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, "CODEX_HOOK_"+normalizeEnvKey(key)+"="+fmt.Sprintf("%v", data[key]))
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
