package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// candidate is one precedence layer's value for a field.
type candidate struct {
	value  *string
	source ValueSource
}

type resolver struct {
	env     EnvLookup
	sources map[string]ValueSource
}

// pick returns the first present candidate and records its source.
func (r *resolver) pick(field string, candidates ...candidate) (string, bool) {
	for _, c := range candidates {
		if c.value != nil {
			r.sources[field] = c.source
			return *c.value, true
		}
	}
	return "", false
}

func (r *resolver) fallback(field string, value string, source ValueSource) string {
	r.sources[field] = source
	return value
}

func (r *resolver) envCandidate(key string) candidate {
	if v, ok := r.env.Get(key); ok {
		return candidate{value: &v, source: SourceEnv}
	}
	return candidate{}
}

// Resolve merges overrides, the selected profile, the persisted base config,
// environment signals and built-in defaults into an effective Config.
//
// Resolve is pure: it performs no I/O and identical inputs yield identical
// results. It fails only on structurally invalid values, never on missing
// ones.
func Resolve(base ConfigToml, overrides ConfigOverrides, env EnvLookup) (*Config, error) {
	if errs := NewValidator().ValidateConfigToml(base); len(errs) > 0 {
		return nil, errs[0]
	}

	r := &resolver{env: env, sources: make(map[string]ValueSource)}
	cfg := &Config{}

	profileName, profile, err := selectProfile(base, overrides)
	if err != nil {
		return nil, err
	}
	cfg.ActiveProfile = profileName

	// Provider: explicit layers, then the environment hint, then the
	// credential heuristic, then the local provider.
	if id, ok := r.pick("model_provider",
		candidate{overrides.ModelProvider, SourceOverride},
		candidate{profile.ModelProvider, SourceProfile},
		candidate{base.ModelProvider, SourceFile},
		r.envCandidate(EnvProvider),
	); ok {
		cfg.ModelProviderID = normalizeID(id)
	} else if env.HasOpenAIAPIKey() {
		cfg.ModelProviderID = r.fallback("model_provider", BuiltInOpenAIModelProviderID, SourceCredentials)
	} else {
		cfg.ModelProviderID = r.fallback("model_provider", BuiltInOSSModelProviderID, SourceDefault)
	}

	if model, ok := r.pick("model",
		candidate{overrides.Model, SourceOverride},
		candidate{profile.Model, SourceProfile},
		candidate{base.Model, SourceFile},
		r.envCandidate(EnvModel),
	); ok {
		cfg.Model = model
	} else {
		cfg.Model = r.fallback("model", DefaultModelForProvider(cfg.ModelProviderID), SourceDefault)
	}

	cfg.ModelProviders = mergeProviders(BuiltInModelProviders(env), base.ModelProviders)

	approval, ok := r.pick("approval_policy",
		candidate{stringPtr(overrides.ApprovalPolicy), SourceOverride},
		candidate{profile.ApprovalPolicy, SourceProfile},
		candidate{base.ApprovalPolicy, SourceFile},
	)
	if !ok {
		approval = r.fallback("approval_policy", string(ApprovalOnRequest), SourceDefault)
	}
	if cfg.ApprovalPolicy, err = ParseAskForApproval(approval); err != nil {
		return nil, &ConfigError{Field: "approval_policy", Value: approval, Err: err}
	}

	mode, ok := r.pick("sandbox_mode",
		candidate{stringPtr(overrides.SandboxMode), SourceOverride},
		candidate{base.SandboxMode, SourceFile},
	)
	if !ok {
		mode = r.fallback("sandbox_mode", string(SandboxReadOnly), SourceDefault)
	}
	sandboxMode, err := ParseSandboxMode(mode)
	if err != nil {
		return nil, &ConfigError{Field: "sandbox_mode", Value: mode, Err: err}
	}
	cfg.SandboxPolicy = SandboxPolicy{Mode: sandboxMode}
	if sandboxMode == SandboxWorkspaceWrite && base.SandboxWorkspaceWrite != nil {
		cfg.SandboxPolicy.WritableRoots = append([]string(nil), base.SandboxWorkspaceWrite.WritableRoots...)
		cfg.SandboxPolicy.NetworkAccess = base.SandboxWorkspaceWrite.NetworkAccess
	}

	effort, ok := r.pick("model_reasoning_effort",
		candidate{stringPtr(overrides.ModelReasoningEffort), SourceOverride},
		candidate{profile.ModelReasoningEffort, SourceProfile},
		candidate{base.ModelReasoningEffort, SourceFile},
	)
	if !ok {
		effort = r.fallback("model_reasoning_effort", string(ReasoningEffortMedium), SourceDefault)
	}
	if cfg.ModelReasoningEffort, err = ParseReasoningEffort(effort); err != nil {
		return nil, &ConfigError{Field: "model_reasoning_effort", Value: effort, Err: err}
	}

	summary, ok := r.pick("model_reasoning_summary",
		candidate{stringPtr(overrides.ModelReasoningSummary), SourceOverride},
		candidate{profile.ModelReasoningSummary, SourceProfile},
		candidate{base.ModelReasoningSummary, SourceFile},
	)
	if !ok {
		summary = r.fallback("model_reasoning_summary", string(ReasoningSummaryAuto), SourceDefault)
	}
	if cfg.ModelReasoningSummary, err = ParseReasoningSummary(summary); err != nil {
		return nil, &ConfigError{Field: "model_reasoning_summary", Value: summary, Err: err}
	}

	if instructions, ok := r.pick("instructions",
		candidate{overrides.BaseInstructions, SourceOverride},
		candidate{base.Instructions, SourceFile},
	); ok {
		cfg.Instructions = instructions
	}

	if base.HideAgentReasoning != nil {
		cfg.HideAgentReasoning = *base.HideAgentReasoning
		r.sources["hide_agent_reasoning"] = SourceFile
	}

	cfg.HistoryPersistence = HistorySaveAll
	if base.History != nil && base.History.Persistence != nil {
		// Already validated above.
		cfg.HistoryPersistence, _ = ParseHistoryPersistence(*base.History.Persistence)
		r.sources["history_persistence"] = SourceFile
	}

	if len(base.Notify) > 0 {
		cfg.Notify = append([]string(nil), base.Notify...)
		r.sources["notify"] = SourceFile
	}

	cfg.Cwd = r.resolveCwd(overrides.Cwd)
	cfg.CodexHome = r.resolveCodexHome(overrides.CodexHome)

	cfg.sources = r.sources
	return cfg, nil
}

func selectProfile(base ConfigToml, overrides ConfigOverrides) (string, ConfigProfile, error) {
	name := ""
	switch {
	case overrides.ConfigProfile != nil:
		name = *overrides.ConfigProfile
	case base.Profile != nil:
		name = *base.Profile
	}
	if name == "" {
		return "", ConfigProfile{}, nil
	}
	profile, ok := base.Profiles[name]
	if !ok {
		for _, key := range sortedKeys(base.Profiles) {
			if normalizeID(key) == normalizeID(name) {
				profile, ok = base.Profiles[key], true
				break
			}
		}
	}
	if !ok {
		return "", ConfigProfile{}, &ConfigError{
			Field: "profile",
			Value: name,
			Err:   fmt.Errorf("config profile not found"),
		}
	}
	return normalizeID(name), profile, nil
}

// normalizeID folds profile and provider ids to the lower case viper uses
// for table keys.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// mergeProviders layers user-defined providers under the built-ins; a user
// entry never replaces a built-in id.
func mergeProviders(builtIn, user map[string]ModelProviderInfo) map[string]ModelProviderInfo {
	merged := make(map[string]ModelProviderInfo, len(builtIn)+len(user))
	for _, key := range sortedKeys(user) {
		id, info := normalizeID(key), user[key]
		if info.WireAPI == "" {
			info.WireAPI = WireAPIChat
		}
		if info.Name == "" {
			info.Name = id
		}
		merged[id] = info
	}
	for id, info := range builtIn {
		merged[id] = info
	}
	return merged
}

func (r *resolver) resolveCwd(override *string) string {
	pwd, hasPWD := r.env.Get(EnvPWD)
	if override != nil && *override != "" {
		r.sources["cwd"] = SourceOverride
		cwd := *override
		if !filepath.IsAbs(cwd) && hasPWD {
			cwd = filepath.Join(pwd, cwd)
		}
		return filepath.Clean(cwd)
	}
	if hasPWD {
		r.sources["cwd"] = SourceEnv
		return filepath.Clean(pwd)
	}
	return r.fallback("cwd", ".", SourceDefault)
}

func (r *resolver) resolveCodexHome(override *string) string {
	home, source := FindCodexHome(override, r.env)
	r.sources["codex_home"] = source
	return home
}

// FindCodexHome locates the codex home directory: override, then CODEX_HOME,
// then $HOME/.codex.
func FindCodexHome(override *string, env EnvLookup) (string, ValueSource) {
	if override != nil && *override != "" {
		return filepath.Clean(*override), SourceOverride
	}
	if home, ok := env.Get(EnvCodexHome); ok {
		return filepath.Clean(home), SourceEnv
	}
	if home, ok := env.Get(EnvHome); ok {
		return filepath.Join(home, ".codex"), SourceEnv
	}
	return ".codex", SourceDefault
}

func stringPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
