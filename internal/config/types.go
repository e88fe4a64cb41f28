package config

import (
	"fmt"
	"strings"
)

// AskForApproval determines when the user is consulted before a command runs.
type AskForApproval string

const (
	ApprovalUntrusted AskForApproval = "untrusted"
	ApprovalOnFailure AskForApproval = "on-failure"
	ApprovalOnRequest AskForApproval = "on-request"
	ApprovalNever     AskForApproval = "never"
)

// ParseAskForApproval parses a persisted approval policy.
func ParseAskForApproval(s string) (AskForApproval, error) {
	switch p := AskForApproval(strings.TrimSpace(s)); p {
	case ApprovalUntrusted, ApprovalOnFailure, ApprovalOnRequest, ApprovalNever:
		return p, nil
	}
	return "", fmt.Errorf("unknown approval policy %q (must be one of: untrusted, on-failure, on-request, never)", s)
}

// SandboxMode selects the sandbox applied to model-generated commands.
type SandboxMode string

const (
	SandboxReadOnly         SandboxMode = "read-only"
	SandboxWorkspaceWrite   SandboxMode = "workspace-write"
	SandboxDangerFullAccess SandboxMode = "danger-full-access"
)

// ParseSandboxMode parses a persisted sandbox mode.
func ParseSandboxMode(s string) (SandboxMode, error) {
	switch m := SandboxMode(strings.TrimSpace(s)); m {
	case SandboxReadOnly, SandboxWorkspaceWrite, SandboxDangerFullAccess:
		return m, nil
	}
	return "", fmt.Errorf("unknown sandbox mode %q (must be one of: read-only, workspace-write, danger-full-access)", s)
}

// SandboxPolicy is the resolved sandbox configuration. Only workspace-write
// uses WritableRoots and NetworkAccess.
type SandboxPolicy struct {
	Mode          SandboxMode `json:"mode"`
	WritableRoots []string    `json:"writable_roots,omitempty"`
	NetworkAccess bool        `json:"network_access,omitempty"`
}

// NewReadOnlyPolicy returns the most restrictive policy.
func NewReadOnlyPolicy() SandboxPolicy {
	return SandboxPolicy{Mode: SandboxReadOnly}
}

// Clone returns a deep copy of the policy.
func (p SandboxPolicy) Clone() SandboxPolicy {
	if p.WritableRoots != nil {
		p.WritableRoots = append([]string(nil), p.WritableRoots...)
	}
	return p
}

// ReasoningEffort controls how much a reasoning model thinks.
// ReasoningEffortNone means the request carries no effort at all.
type ReasoningEffort string

const (
	ReasoningEffortNone    ReasoningEffort = "none"
	ReasoningEffortMinimal ReasoningEffort = "minimal"
	ReasoningEffortLow     ReasoningEffort = "low"
	ReasoningEffortMedium  ReasoningEffort = "medium"
	ReasoningEffortHigh    ReasoningEffort = "high"
)

// ParseReasoningEffort parses a persisted reasoning effort.
func ParseReasoningEffort(s string) (ReasoningEffort, error) {
	switch e := ReasoningEffort(strings.ToLower(strings.TrimSpace(s))); e {
	case ReasoningEffortNone, ReasoningEffortMinimal, ReasoningEffortLow, ReasoningEffortMedium, ReasoningEffortHigh:
		return e, nil
	}
	return "", fmt.Errorf("unknown reasoning effort %q (must be one of: none, minimal, low, medium, high)", s)
}

// ReasoningSummary controls the reasoning summary returned by the model.
type ReasoningSummary string

const (
	ReasoningSummaryAuto     ReasoningSummary = "auto"
	ReasoningSummaryConcise  ReasoningSummary = "concise"
	ReasoningSummaryDetailed ReasoningSummary = "detailed"
	ReasoningSummaryNone     ReasoningSummary = "none"
)

// ParseReasoningSummary parses a persisted reasoning summary.
func ParseReasoningSummary(s string) (ReasoningSummary, error) {
	switch r := ReasoningSummary(strings.ToLower(strings.TrimSpace(s))); r {
	case ReasoningSummaryAuto, ReasoningSummaryConcise, ReasoningSummaryDetailed, ReasoningSummaryNone:
		return r, nil
	}
	return "", fmt.Errorf("unknown reasoning summary %q (must be one of: auto, concise, detailed, none)", s)
}

// HistoryPersistence controls whether conversation transcripts are written.
type HistoryPersistence string

const (
	HistorySaveAll HistoryPersistence = "save-all"
	HistoryNone    HistoryPersistence = "none"
)

// ParseHistoryPersistence parses a persisted history setting.
func ParseHistoryPersistence(s string) (HistoryPersistence, error) {
	switch h := HistoryPersistence(strings.TrimSpace(s)); h {
	case HistorySaveAll, HistoryNone:
		return h, nil
	}
	return "", fmt.Errorf("unknown history persistence %q (must be one of: save-all, none)", s)
}

// ValueSource describes where a resolved value originated from.
type ValueSource string

const (
	SourceDefault     ValueSource = "default"
	SourceFile        ValueSource = "file"
	SourceProfile     ValueSource = "profile"
	SourceEnv         ValueSource = "environment"
	SourceOverride    ValueSource = "override"
	SourceCredentials ValueSource = "credentials"
)
