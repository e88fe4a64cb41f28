package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/GaaneshT/codex/internal/config"
)

// EventMsg type tags.
const (
	EventTypeSessionConfigured  = "session_configured"
	EventTypeTaskStarted        = "task_started"
	EventTypeAgentMessage       = "agent_message"
	EventTypeTokenCount         = "token_count"
	EventTypeTurnContextUpdated = "turn_context_updated"
	EventTypeError              = "error"
	EventTypeTaskComplete       = "task_complete"
	EventTypeShutdownComplete   = "shutdown_complete"
)

// EventMsg is a notification emitted by a session.
type EventMsg interface {
	Type() string
	isEventMsg()
}

// SessionConfigured is the first event of every session.
type SessionConfigured struct {
	SessionID       string                 `json:"session_id"`
	Model           string                 `json:"model"`
	ModelProviderID string                 `json:"model_provider_id"`
	Cwd             string                 `json:"cwd"`
	ApprovalPolicy  config.AskForApproval  `json:"approval_policy"`
	SandboxPolicy   config.SandboxPolicy   `json:"sandbox_policy"`
	Effort          config.ReasoningEffort `json:"effort"`
	HistoryEntries  int                    `json:"history_entries,omitempty"`
	RolloutPath     string                 `json:"rollout_path,omitempty"`
}

// TaskStarted marks the start of a turn.
type TaskStarted struct {
	Model string `json:"model"`
}

// AgentMessage carries the model's reply for a turn.
type AgentMessage struct {
	Message string `json:"message"`
}

// TokenCount reports usage for a turn.
type TokenCount struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// TurnContextUpdated echoes the turn context after an override.
type TurnContextUpdated struct {
	Cwd            string                  `json:"cwd"`
	ApprovalPolicy config.AskForApproval   `json:"approval_policy"`
	SandboxPolicy  config.SandboxPolicy    `json:"sandbox_policy"`
	Model          string                  `json:"model"`
	Effort         config.ReasoningEffort  `json:"effort"`
	Summary        config.ReasoningSummary `json:"summary"`
}

// ErrorEvent reports a failed submission. The session stays usable.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (e ErrorEvent) Error() string {
	return e.Message
}

// TaskComplete marks the end of a turn.
type TaskComplete struct {
	LastAgentMessage string `json:"last_agent_message,omitempty"`
}

// ShutdownComplete is the last event a session emits.
type ShutdownComplete struct{}

func (SessionConfigured) Type() string  { return EventTypeSessionConfigured }
func (TaskStarted) Type() string        { return EventTypeTaskStarted }
func (AgentMessage) Type() string       { return EventTypeAgentMessage }
func (TokenCount) Type() string         { return EventTypeTokenCount }
func (TurnContextUpdated) Type() string { return EventTypeTurnContextUpdated }
func (ErrorEvent) Type() string         { return EventTypeError }
func (TaskComplete) Type() string       { return EventTypeTaskComplete }
func (ShutdownComplete) Type() string   { return EventTypeShutdownComplete }

func (SessionConfigured) isEventMsg()  {}
func (TaskStarted) isEventMsg()        {}
func (AgentMessage) isEventMsg()       {}
func (TokenCount) isEventMsg()         {}
func (TurnContextUpdated) isEventMsg() {}
func (ErrorEvent) isEventMsg()         {}
func (TaskComplete) isEventMsg()       {}
func (ShutdownComplete) isEventMsg()   {}

// Event is emitted on the session's event queue. ID is the id of the
// submission that caused it.
type Event struct {
	ID  string
	Msg EventMsg
}

type eventJSON struct {
	ID  string          `json:"id"`
	Msg json.RawMessage `json:"msg"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Msg == nil {
		return nil, fmt.Errorf("event %q has no msg", e.ID)
	}
	msg, err := marshalTagged(e.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventJSON{ID: e.ID, Msg: msg})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	msg, err := DecodeEventMsg(raw.Msg)
	if err != nil {
		return err
	}
	e.ID = raw.ID
	e.Msg = msg
	return nil
}

// DecodeEventMsg decodes a type-tagged event message.
func DecodeEventMsg(data []byte) (EventMsg, error) {
	typ, err := peekType(data)
	if err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	var msg EventMsg
	switch typ {
	case EventTypeSessionConfigured:
		msg, err = decodeInto[SessionConfigured](data)
	case EventTypeTaskStarted:
		msg, err = decodeInto[TaskStarted](data)
	case EventTypeAgentMessage:
		msg, err = decodeInto[AgentMessage](data)
	case EventTypeTokenCount:
		msg, err = decodeInto[TokenCount](data)
	case EventTypeTurnContextUpdated:
		msg, err = decodeInto[TurnContextUpdated](data)
	case EventTypeError:
		msg, err = decodeInto[ErrorEvent](data)
	case EventTypeTaskComplete:
		msg, err = decodeInto[TaskComplete](data)
	case EventTypeShutdownComplete:
		msg = ShutdownComplete{}
	default:
		return nil, fmt.Errorf("unknown event type %q", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", typ, err)
	}
	return msg, nil
}

func decodeInto[T EventMsg](data []byte) (EventMsg, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
