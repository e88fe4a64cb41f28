package config

import (
	"encoding/json"
	"maps"
)

// ConfigToml is the persisted base configuration as read from config.toml.
// Every field is optional; nil defers to lower precedence.
type ConfigToml struct {
	Model                 *string                      `json:"model,omitempty" mapstructure:"model"`
	ModelProvider         *string                      `json:"model_provider,omitempty" mapstructure:"model_provider"`
	ApprovalPolicy        *string                      `json:"approval_policy,omitempty" mapstructure:"approval_policy"`
	SandboxMode           *string                      `json:"sandbox_mode,omitempty" mapstructure:"sandbox_mode"`
	SandboxWorkspaceWrite *SandboxWorkspaceWriteToml   `json:"sandbox_workspace_write,omitempty" mapstructure:"sandbox_workspace_write"`
	ModelReasoningEffort  *string                      `json:"model_reasoning_effort,omitempty" mapstructure:"model_reasoning_effort"`
	ModelReasoningSummary *string                      `json:"model_reasoning_summary,omitempty" mapstructure:"model_reasoning_summary"`
	Instructions          *string                      `json:"instructions,omitempty" mapstructure:"instructions"`
	HideAgentReasoning    *bool                        `json:"hide_agent_reasoning,omitempty" mapstructure:"hide_agent_reasoning"`
	Profile               *string                      `json:"profile,omitempty" mapstructure:"profile"`
	Profiles              map[string]ConfigProfile     `json:"profiles,omitempty" mapstructure:"profiles"`
	ModelProviders        map[string]ModelProviderInfo `json:"model_providers,omitempty" mapstructure:"model_providers"`
	History               *HistoryToml                 `json:"history,omitempty" mapstructure:"history"`
	// Notify is a program run after every completed turn; the turn summary
	// is appended as a JSON argument.
	Notify []string `json:"notify,omitempty" mapstructure:"notify"`
}

// SandboxWorkspaceWriteToml refines the workspace-write sandbox.
type SandboxWorkspaceWriteToml struct {
	WritableRoots []string `json:"writable_roots,omitempty" mapstructure:"writable_roots"`
	NetworkAccess bool     `json:"network_access,omitempty" mapstructure:"network_access"`
}

// HistoryToml holds transcript settings.
type HistoryToml struct {
	Persistence *string `json:"persistence,omitempty" mapstructure:"persistence"`
}

// ConfigProfile is a named bundle of settings selected with `profile`.
type ConfigProfile struct {
	Model                 *string `json:"model,omitempty" mapstructure:"model"`
	ModelProvider         *string `json:"model_provider,omitempty" mapstructure:"model_provider"`
	ApprovalPolicy        *string `json:"approval_policy,omitempty" mapstructure:"approval_policy"`
	ModelReasoningEffort  *string `json:"model_reasoning_effort,omitempty" mapstructure:"model_reasoning_effort"`
	ModelReasoningSummary *string `json:"model_reasoning_summary,omitempty" mapstructure:"model_reasoning_summary"`
}

// ConfigOverrides are explicit, highest-precedence settings supplied by the
// caller (usually CLI flags).
type ConfigOverrides struct {
	Model                 *string
	ModelProvider         *string
	ConfigProfile         *string
	Cwd                   *string
	CodexHome             *string
	ApprovalPolicy        *AskForApproval
	SandboxMode           *SandboxMode
	ModelReasoningEffort  *ReasoningEffort
	ModelReasoningSummary *ReasoningSummary
	BaseInstructions      *string
}

// Config is the fully resolved configuration used to construct a session.
// It is never mutated after Resolve returns.
type Config struct {
	Model           string                       `json:"model"`
	ModelProviderID string                       `json:"model_provider_id"`
	ModelProviders  map[string]ModelProviderInfo `json:"model_providers"`

	ApprovalPolicy        AskForApproval   `json:"approval_policy"`
	SandboxPolicy         SandboxPolicy    `json:"sandbox_policy"`
	ModelReasoningEffort  ReasoningEffort  `json:"model_reasoning_effort"`
	ModelReasoningSummary ReasoningSummary `json:"model_reasoning_summary"`

	Cwd                string             `json:"cwd"`
	CodexHome          string             `json:"codex_home"`
	Instructions       string             `json:"instructions"`
	HideAgentReasoning bool               `json:"hide_agent_reasoning"`
	HistoryPersistence HistoryPersistence `json:"history_persistence"`
	ActiveProfile      string             `json:"active_profile,omitempty"`
	Notify             []string           `json:"notify,omitempty"`

	sources map[string]ValueSource
}

// ModelProvider returns the info for the selected provider.
func (c *Config) ModelProvider() (ModelProviderInfo, bool) {
	info, ok := c.ModelProviders[c.ModelProviderID]
	return info, ok
}

// Source reports where a resolved field came from.
func (c *Config) Source(field string) ValueSource {
	if s, ok := c.sources[field]; ok {
		return s
	}
	return SourceDefault
}

// Sources returns a copy of the per-field provenance.
func (c *Config) Sources() map[string]ValueSource {
	return maps.Clone(c.sources)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
