package conversation

import (
	"path/filepath"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/pkg/protocol"
)

// TurnContext is the per-session state consulted by every turn.
type TurnContext struct {
	Cwd            string
	ApprovalPolicy config.AskForApproval
	SandboxPolicy  config.SandboxPolicy
	Model          string
	Effort         config.ReasoningEffort
	Summary        config.ReasoningSummary
}

// NewTurnContext seeds a turn context from the effective config.
func NewTurnContext(cfg *config.Config) TurnContext {
	return TurnContext{
		Cwd:            cfg.Cwd,
		ApprovalPolicy: cfg.ApprovalPolicy,
		SandboxPolicy:  cfg.SandboxPolicy.Clone(),
		Model:          cfg.Model,
		Effort:         cfg.ModelReasoningEffort,
		Summary:        cfg.ModelReasoningSummary,
	}
}

// Apply returns a copy with every set override field replaced. A relative
// cwd is resolved against the current one.
func (tc TurnContext) Apply(o protocol.OverrideTurnContext) TurnContext {
	next := tc.Clone()
	if cwd, ok := o.Cwd.Get(); ok {
		if !filepath.IsAbs(cwd) {
			cwd = filepath.Join(tc.Cwd, cwd)
		}
		next.Cwd = filepath.Clean(cwd)
	}
	next.ApprovalPolicy = o.ApprovalPolicy.ApplyTo(next.ApprovalPolicy)
	if policy, ok := o.SandboxPolicy.Get(); ok {
		next.SandboxPolicy = policy.Clone()
	}
	next.Model = o.Model.ApplyTo(next.Model)
	next.Effort = o.Effort.ApplyTo(next.Effort)
	next.Summary = o.Summary.ApplyTo(next.Summary)
	return next
}

// Clone returns a deep copy.
func (tc TurnContext) Clone() TurnContext {
	tc.SandboxPolicy = tc.SandboxPolicy.Clone()
	return tc
}

// Snapshot renders the context as an event payload.
func (tc TurnContext) Snapshot() protocol.TurnContextUpdated {
	return protocol.TurnContextUpdated{
		Cwd:            tc.Cwd,
		ApprovalPolicy: tc.ApprovalPolicy,
		SandboxPolicy:  tc.SandboxPolicy.Clone(),
		Model:          tc.Model,
		Effort:         tc.Effort,
		Summary:        tc.Summary,
	}
}
