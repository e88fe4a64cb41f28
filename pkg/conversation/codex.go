package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/observability"
	"github.com/GaaneshT/codex/internal/tracing"
	"github.com/GaaneshT/codex/pkg/hooks"
	"github.com/GaaneshT/codex/pkg/protocol"
	"github.com/GaaneshT/codex/pkg/provider"
	"github.com/GaaneshT/codex/pkg/rollout"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	tracerName = "codex.conversation"

	submissionQueueSize = 64
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateActive State = iota
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Codex is a running session. Submit and NextEvent are safe for concurrent
// use; everything else is owned by the session goroutine.
type Codex struct {
	id       string
	cfg      *config.Config
	client   provider.ModelClient
	recorder *rollout.Recorder
	hooks    *hooks.Manager
	logger   zerolog.Logger

	submissions chan protocol.Submission
	events      *eventQueue

	// mu serializes Submit so queue order equals acceptance order.
	mu      sync.Mutex
	closing bool
	nextID  atomic.Uint64

	state    atomic.Int32
	stopping chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc

	onTerminate func(*Codex)

	// Owned by the session goroutine.
	turnCtx TurnContext
	history []provider.Message
}

type sessionParams struct {
	id          string
	cfg         *config.Config
	client      provider.ModelClient
	recorder    *rollout.Recorder
	hooks       *hooks.Manager
	history     []provider.Message
	logger      zerolog.Logger
	onTerminate func(*Codex)
}

// spawn starts the session goroutine. The first event it emits is
// SessionConfigured.
func spawn(parent context.Context, p sessionParams) *Codex {
	ctx, cancel := context.WithCancel(parent)
	ctx = tracing.WithConversationID(ctx, p.id)

	c := &Codex{
		id:          p.id,
		cfg:         p.cfg,
		client:      p.client,
		recorder:    p.recorder,
		hooks:       p.hooks,
		logger:      p.logger.With().Str("conversation_id", p.id).Logger(),
		submissions: make(chan protocol.Submission, submissionQueueSize),
		events:      newEventQueue(),
		stopping:    make(chan struct{}),
		done:        make(chan struct{}),
		cancel:      cancel,
		onTerminate: p.onTerminate,
		turnCtx:     NewTurnContext(p.cfg),
		history:     p.history,
	}
	c.state.Store(int32(StateActive))

	go c.run(ctx)
	return c
}

// ID returns the conversation id.
func (c *Codex) ID() string {
	return c.id
}

// Config returns the effective config the session was created with.
func (c *Codex) Config() *config.Config {
	return c.cfg
}

// State returns the current lifecycle state.
func (c *Codex) State() State {
	return State(c.state.Load())
}

// Done is closed once the session has terminated.
func (c *Codex) Done() <-chan struct{} {
	return c.done
}

// RolloutPath returns the transcript path, or "" when history is disabled.
func (c *Codex) RolloutPath() string {
	if c.recorder == nil {
		return ""
	}
	return c.recorder.Path()
}

// Submit enqueues op and returns the id its events will carry. Once a
// Shutdown has been accepted every further call returns ErrSessionClosed.
func (c *Codex) Submit(ctx context.Context, op protocol.Op) (string, error) {
	if op == nil {
		return "", fmt.Errorf("op is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		observability.RecordSubmissionRejected(op.Type())
		return "", ErrSessionClosed
	}
	select {
	case <-c.stopping:
		c.closing = true
		observability.RecordSubmissionRejected(op.Type())
		return "", ErrSessionClosed
	default:
	}

	sub := protocol.Submission{
		ID: strconv.FormatUint(c.nextID.Add(1), 10),
		Op: op,
	}

	select {
	case c.submissions <- sub:
	case <-c.stopping:
		c.closing = true
		observability.RecordSubmissionRejected(op.Type())
		return "", ErrSessionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if _, ok := op.(protocol.Shutdown); ok {
		c.closing = true
		c.state.CompareAndSwap(int32(StateActive), int32(StateShuttingDown))
	}
	observability.RecordSubmission(op.Type())

	c.logger.Debug().
		Str("submission_id", sub.ID).
		Str("op", op.Type()).
		Msg("Submission accepted")

	return sub.ID, nil
}

// NextEvent returns the next event in emission order. After the final
// ShutdownComplete has been read it returns ErrSessionClosed.
func (c *Codex) NextEvent(ctx context.Context) (protocol.Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.events.pop(ctx)
}

func (c *Codex) emit(id string, msg protocol.EventMsg) {
	if c.events.push(protocol.Event{ID: id, Msg: msg}) {
		observability.RecordEvent(msg.Type())
	}
}

func (c *Codex) run(ctx context.Context) {
	c.emit("", protocol.SessionConfigured{
		SessionID:       c.id,
		Model:           c.turnCtx.Model,
		ModelProviderID: c.cfg.ModelProviderID,
		Cwd:             c.turnCtx.Cwd,
		ApprovalPolicy:  c.turnCtx.ApprovalPolicy,
		SandboxPolicy:   c.turnCtx.SandboxPolicy.Clone(),
		Effort:          c.turnCtx.Effort,
		HistoryEntries:  len(c.history),
		RolloutPath:     c.RolloutPath(),
	})
	c.logger.Info().
		Str("model", c.turnCtx.Model).
		Str("provider", c.cfg.ModelProviderID).
		Msg("Session configured")

	for {
		if ctx.Err() != nil {
			c.abort()
			return
		}
		select {
		case sub := <-c.submissions:
			if _, ok := sub.Op.(protocol.Shutdown); ok {
				c.shutdown(sub.ID)
				return
			}
			c.handle(ctx, sub)
		case <-ctx.Done():
			c.abort()
			return
		}
	}
}

func (c *Codex) handle(ctx context.Context, sub protocol.Submission) {
	ctx = tracing.WithSubmissionID(ctx, sub.ID)

	switch op := sub.Op.(type) {
	case protocol.UserInput:
		c.runTurn(ctx, sub.ID, op)
	case protocol.OverrideTurnContext:
		c.overrideTurnContext(ctx, sub.ID, op)
	default:
		c.emit(sub.ID, protocol.ErrorEvent{Message: fmt.Sprintf("unsupported op %q", sub.Op.Type())})
	}
}

func (c *Codex) overrideTurnContext(ctx context.Context, id string, op protocol.OverrideTurnContext) {
	logger := tracing.LoggerFromContext(ctx, c.logger)

	if err := op.Validate(); err != nil {
		c.emit(id, protocol.ErrorEvent{Message: fmt.Sprintf("invalid turn context override: %v", err)})
		return
	}

	c.turnCtx = c.turnCtx.Apply(op)
	c.emit(id, c.turnCtx.Snapshot())

	observability.RecordConversationAudit(ctx, "turn_context.overridden", c.id, "success", map[string]interface{}{
		"model":  c.turnCtx.Model,
		"effort": string(c.turnCtx.Effort),
		"cwd":    c.turnCtx.Cwd,
	})
	logger.Debug().
		Str("model", c.turnCtx.Model).
		Str("effort", string(c.turnCtx.Effort)).
		Str("cwd", c.turnCtx.Cwd).
		Msg("Turn context overridden")
}

func (c *Codex) runTurn(ctx context.Context, id string, input protocol.UserInput) {
	text := joinInput(input.Items)
	if text == "" {
		c.emit(id, protocol.ErrorEvent{Message: "user input is empty"})
		return
	}

	tc := c.turnCtx.Clone()
	ctx = tracing.PropagateToTurn(ctx, id)
	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"conversation.turn",
		attribute.String("conversation_id", c.id),
		attribute.String("submission_id", id),
		attribute.String("model", tc.Model),
		attribute.String("provider", c.client.Provider()),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, c.logger)

	c.emit(id, protocol.TaskStarted{Model: tc.Model})

	userMsg := provider.Message{Role: "user", Content: text}
	c.history = append(c.history, userMsg)
	c.record(ctx, rollout.Message{Role: userMsg.Role, Content: userMsg.Content})

	request := provider.Request{
		Model:        tc.Model,
		Instructions: c.cfg.Instructions,
		Messages:     append([]provider.Message(nil), c.history...),
		Effort:       tc.Effort,
		Summary:      tc.Summary,
	}

	start := time.Now()
	resp, err := c.client.Complete(ctx, request)
	observability.RecordTurn(c.client.Provider(), time.Since(start), err == nil)
	if err != nil {
		tracing.RecordError(span, err)
		logger.Warn().Err(err).Msg("Turn failed")
		c.emit(id, protocol.ErrorEvent{Message: err.Error()})
		c.emit(id, protocol.TaskComplete{})
		return
	}

	c.history = append(c.history, provider.Message{Role: "assistant", Content: resp.Content})
	c.record(ctx, rollout.Message{Role: "assistant", Content: resp.Content})
	observability.RecordTokens(c.client.Provider(), resp.Usage.InputTokens, resp.Usage.OutputTokens)

	c.emit(id, protocol.AgentMessage{Message: resp.Content})
	c.emit(id, protocol.TokenCount{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.Total(),
	})
	c.emit(id, protocol.TaskComplete{LastAgentMessage: resp.Content})

	c.hooks.NotifyAsync(hooks.TurnComplete{
		ConversationID:       c.id,
		TurnID:               id,
		InputMessages:        inputMessages(input.Items),
		LastAssistantMessage: resp.Content,
	})

	logger.Debug().
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("Turn completed")
}

func (c *Codex) record(ctx context.Context, msg rollout.Message) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, msg); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record rollout")
	}
}

func inputMessages(items []protocol.InputItem) []string {
	messages := make([]string, 0, len(items))
	for _, item := range items {
		if item.Text != "" {
			messages = append(messages, item.Text)
		}
	}
	return messages
}

func joinInput(items []protocol.InputItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
		if item.ImageURL != "" {
			parts = append(parts, "[image: "+item.ImageURL+"]")
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// shutdown finishes a requested Shutdown. Submit stops accepting ops before
// the Shutdown is queued, so nothing is left behind it.
func (c *Codex) shutdown(id string) {
	c.state.Store(int32(StateShuttingDown))
	close(c.stopping)
	c.finish(id)
}

// abort handles parent cancellation: queued ops are answered with an error
// rather than run.
func (c *Codex) abort() {
	c.state.Store(int32(StateShuttingDown))
	close(c.stopping)

	// Wait out any Submit already past its checks.
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	shutdownID := ""
	for {
		select {
		case sub := <-c.submissions:
			if _, ok := sub.Op.(protocol.Shutdown); ok {
				shutdownID = sub.ID
				continue
			}
			c.emit(sub.ID, protocol.ErrorEvent{Message: "session shut down before the submission ran"})
		default:
			c.logger.Info().Msg("Session cancelled")
			c.finish(shutdownID)
			return
		}
	}
}

// finish deregisters the session before ShutdownComplete becomes visible,
// so a consumer that has read it never finds the session still tracked.
// Pending notify programs also finish first.
func (c *Codex) finish(id string) {
	c.state.Store(int32(StateTerminated))
	c.cancel()
	c.hooks.Wait()
	if c.onTerminate != nil {
		c.onTerminate(c)
	}

	c.emit(id, protocol.ShutdownComplete{})
	c.events.close()
	close(c.done)

	c.logger.Info().Msg("Session terminated")
}
