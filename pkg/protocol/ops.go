package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/GaaneshT/codex/internal/config"
)

// Op type tags.
const (
	OpTypeUserInput           = "user_input"
	OpTypeOverrideTurnContext = "override_turn_context"
	OpTypeShutdown            = "shutdown"
)

// Op is a request submitted to a session.
type Op interface {
	Type() string
	isOp()
}

// InputItem is one piece of user input.
type InputItem struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// TextInput is a convenience constructor for a text item.
func TextInput(text string) InputItem {
	return InputItem{Text: text}
}

// UserInput starts a turn with the given items.
type UserInput struct {
	Items []InputItem `json:"items"`
}

// OverrideTurnContext replaces parts of the session's turn context for all
// subsequent turns. Nothing is persisted.
type OverrideTurnContext struct {
	Cwd            Field[string]                  `json:"cwd,omitzero"`
	ApprovalPolicy Field[config.AskForApproval]   `json:"approval_policy,omitzero"`
	SandboxPolicy  Field[config.SandboxPolicy]    `json:"sandbox_policy,omitzero"`
	Model          Field[string]                  `json:"model,omitzero"`
	// Effort is cleared by "none" or an explicit null.
	Effort         Field[config.ReasoningEffort]  `json:"effort,omitzero"`
	Summary        Field[config.ReasoningSummary] `json:"summary,omitzero"`
}

// UnmarshalJSON decodes the override. An absent field stays unchanged; an
// explicit "effort": null becomes Set(ReasoningEffortNone).
func (o *OverrideTurnContext) UnmarshalJSON(data []byte) error {
	type plain OverrideTurnContext
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw struct {
		Effort json.RawMessage `json:"effort"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Effort != nil && bytes.Equal(bytes.TrimSpace(raw.Effort), []byte("null")) {
		p.Effort = Set(config.ReasoningEffortNone)
	}

	*o = OverrideTurnContext(p)
	return nil
}

// IsEmpty reports whether no field is set.
func (o OverrideTurnContext) IsEmpty() bool {
	return !o.Cwd.IsSet() && !o.ApprovalPolicy.IsSet() && !o.SandboxPolicy.IsSet() &&
		!o.Model.IsSet() && !o.Effort.IsSet() && !o.Summary.IsSet()
}

// Validate rejects enum values outside their known sets.
func (o OverrideTurnContext) Validate() error {
	if v, ok := o.ApprovalPolicy.Get(); ok {
		if _, err := config.ParseAskForApproval(string(v)); err != nil {
			return err
		}
	}
	if v, ok := o.SandboxPolicy.Get(); ok {
		if _, err := config.ParseSandboxMode(string(v.Mode)); err != nil {
			return err
		}
	}
	if v, ok := o.Effort.Get(); ok {
		if _, err := config.ParseReasoningEffort(string(v)); err != nil {
			return err
		}
	}
	if v, ok := o.Summary.Get(); ok {
		if _, err := config.ParseReasoningSummary(string(v)); err != nil {
			return err
		}
	}
	if v, ok := o.Model.Get(); ok && v == "" {
		return fmt.Errorf("model cannot be empty")
	}
	return nil
}

// Shutdown asks the session to drain and terminate.
type Shutdown struct{}

func (UserInput) Type() string           { return OpTypeUserInput }
func (OverrideTurnContext) Type() string { return OpTypeOverrideTurnContext }
func (Shutdown) Type() string            { return OpTypeShutdown }

func (UserInput) isOp()           {}
func (OverrideTurnContext) isOp() {}
func (Shutdown) isOp()            {}

// Submission pairs an op with the id its events will carry.
type Submission struct {
	ID string
	Op Op
}

type submissionJSON struct {
	ID string          `json:"id"`
	Op json.RawMessage `json:"op"`
}

func (s Submission) MarshalJSON() ([]byte, error) {
	if s.Op == nil {
		return nil, fmt.Errorf("submission %q has no op", s.ID)
	}
	op, err := marshalTagged(s.Op)
	if err != nil {
		return nil, err
	}
	return json.Marshal(submissionJSON{ID: s.ID, Op: op})
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var raw submissionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	op, err := DecodeOp(raw.Op)
	if err != nil {
		return err
	}
	s.ID = raw.ID
	s.Op = op
	return nil
}

// DecodeOp decodes a type-tagged op.
func DecodeOp(data []byte) (Op, error) {
	typ, err := peekType(data)
	if err != nil {
		return nil, fmt.Errorf("invalid op: %w", err)
	}

	switch typ {
	case OpTypeUserInput:
		var op UserInput
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", typ, err)
		}
		return op, nil
	case OpTypeOverrideTurnContext:
		var op OverrideTurnContext
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", typ, err)
		}
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", typ, err)
		}
		return op, nil
	case OpTypeShutdown:
		return Shutdown{}, nil
	default:
		return nil, fmt.Errorf("unknown op type %q", typ)
	}
}
