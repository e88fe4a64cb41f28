package config

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigError reports a structurally invalid configuration value.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid config %s = %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validator validates persisted configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// ValidateProviderID validates a provider id. Existence is checked when a
// session is created, not here.
func (v *Validator) ValidateProviderID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("model provider cannot be empty")
	}
	return nil
}

// ValidateModelProvider validates a user-defined provider entry
func (v *Validator) ValidateModelProvider(info ModelProviderInfo) error {
	switch info.WireAPI {
	case "", WireAPIChat, WireAPIAnthropic:
	default:
		return fmt.Errorf("unknown wire_api %q (must be one of: chat, anthropic)", info.WireAPI)
	}
	if info.BaseURL == "" && info.WireAPI != WireAPIAnthropic {
		return fmt.Errorf("base_url is required")
	}
	return nil
}

// ValidateConfigToml performs comprehensive validation and returns every
// problem found, each as a *ConfigError.
func (v *Validator) ValidateConfigToml(cfg ConfigToml) []error {
	var errors []error

	check := func(field string, value *string, fn func(string) error) {
		if value == nil {
			return
		}
		if err := fn(*value); err != nil {
			errors = append(errors, &ConfigError{Field: field, Value: *value, Err: err})
		}
	}

	check("model", cfg.Model, v.ValidateModel)
	check("model_provider", cfg.ModelProvider, v.ValidateProviderID)
	check("approval_policy", cfg.ApprovalPolicy, parseErr(ParseAskForApproval))
	check("sandbox_mode", cfg.SandboxMode, parseErr(ParseSandboxMode))
	check("model_reasoning_effort", cfg.ModelReasoningEffort, parseErr(ParseReasoningEffort))
	check("model_reasoning_summary", cfg.ModelReasoningSummary, parseErr(ParseReasoningSummary))
	if cfg.History != nil {
		check("history.persistence", cfg.History.Persistence, parseErr(ParseHistoryPersistence))
	}
	if len(cfg.Notify) > 0 && strings.TrimSpace(cfg.Notify[0]) == "" {
		errors = append(errors, &ConfigError{Field: "notify", Err: fmt.Errorf("program is required")})
	}

	// Sorted so the first error is stable across runs.
	for _, name := range sortedKeys(cfg.Profiles) {
		p := cfg.Profiles[name]
		prefix := "profiles." + name + "."
		check(prefix+"model", p.Model, v.ValidateModel)
		check(prefix+"model_provider", p.ModelProvider, v.ValidateProviderID)
		check(prefix+"approval_policy", p.ApprovalPolicy, parseErr(ParseAskForApproval))
		check(prefix+"model_reasoning_effort", p.ModelReasoningEffort, parseErr(ParseReasoningEffort))
		check(prefix+"model_reasoning_summary", p.ModelReasoningSummary, parseErr(ParseReasoningSummary))
	}

	for _, id := range sortedKeys(cfg.ModelProviders) {
		if err := v.ValidateModelProvider(cfg.ModelProviders[id]); err != nil {
			errors = append(errors, &ConfigError{Field: "model_providers." + id, Err: err})
		}
	}

	return errors
}

func parseErr[T any](parse func(string) (T, error)) func(string) error {
	return func(s string) error {
		_, err := parse(s)
		return err
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
