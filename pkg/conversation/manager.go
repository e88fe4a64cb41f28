package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/observability"
	"github.com/GaaneshT/codex/internal/tracing"
	"github.com/GaaneshT/codex/pkg/auth"
	"github.com/GaaneshT/codex/pkg/hooks"
	"github.com/GaaneshT/codex/pkg/protocol"
	"github.com/GaaneshT/codex/pkg/provider"
	"github.com/GaaneshT/codex/pkg/rollout"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Manager creates sessions and tracks the live ones.
type Manager struct {
	auth    *auth.CodexAuth
	factory provider.Factory
	env     config.EnvLookup
	logger  zerolog.Logger
	baseCtx context.Context

	mu            sync.RWMutex
	conversations map[string]*Codex
}

// Option configures a Manager.
type Option func(*Manager)

// WithProviderFactory replaces the SDK-backed client factory.
func WithProviderFactory(f provider.Factory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithLogger sets the logger handed to every session.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEnv sets the environment used to find provider credentials.
func WithEnv(env config.EnvLookup) Option {
	return func(m *Manager) {
		m.env = env
	}
}

// WithBaseContext ties every session's lifetime to ctx. Cancelling it
// aborts in-flight turns and shuts the sessions down.
func WithBaseContext(ctx context.Context) Option {
	return func(m *Manager) {
		m.baseCtx = ctx
	}
}

// WithAuth creates a manager whose sessions share a read-only credential.
func WithAuth(a *auth.CodexAuth, opts ...Option) *Manager {
	observability.EnsureRegistered()

	m := &Manager{
		auth:          a,
		factory:       provider.DefaultFactory{},
		env:           config.OSEnv,
		logger:        log.Logger,
		baseCtx:       context.Background(),
		conversations: make(map[string]*Codex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewConversation is a started session together with its first event.
type NewConversation struct {
	ConversationID    string
	Conversation      *Codex
	SessionConfigured protocol.SessionConfigured
}

// NewConversation starts a session for cfg. It returns a
// *SessionCreationError when the provider is unknown or its client cannot
// be built.
func (m *Manager) NewConversation(ctx context.Context, cfg *config.Config) (*NewConversation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	id := uuid.NewString()
	recorder := rollout.NewRecorder(cfg.CodexHome, rollout.SessionMeta{
		ID:            id,
		Cwd:           cfg.Cwd,
		Model:         cfg.Model,
		ModelProvider: cfg.ModelProviderID,
		Instructions:  cfg.Instructions,
	}, cfg.HistoryPersistence, rollout.WithLogger(m.logger))

	return m.start(ctx, "conversation.new", cfg, id, recorder, nil)
}

// ResumeConversation starts a session seeded with the history recorded at
// rolloutPath. New items are appended to the same file.
func (m *Manager) ResumeConversation(ctx context.Context, cfg *config.Config, rolloutPath string) (*NewConversation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	meta, messages, err := rollout.Load(ctx, rolloutPath, rollout.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to resume conversation: %w", err)
	}
	if _, err := m.GetConversation(meta.ID); err == nil {
		return nil, fmt.Errorf("conversation %s is already running", meta.ID)
	}

	history := make([]provider.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, provider.Message{Role: msg.Role, Content: msg.Content})
	}
	recorder := rollout.ResumeRecorder(rolloutPath, meta, cfg.HistoryPersistence, rollout.WithLogger(m.logger))

	return m.start(ctx, "conversation.resume", cfg, meta.ID, recorder, history)
}

func (m *Manager) start(ctx context.Context, spanName string, cfg *config.Config, id string, recorder *rollout.Recorder, history []provider.Message) (*NewConversation, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithConversationID(ctx, id)
	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		spanName,
		attribute.String("conversation_id", id),
		attribute.String("provider", cfg.ModelProviderID),
		attribute.String("model", cfg.Model),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, m.logger)

	info, ok := cfg.ModelProvider()
	if !ok {
		err := &SessionCreationError{
			ProviderID: cfg.ModelProviderID,
			Err:        fmt.Errorf("unknown model provider %q", cfg.ModelProviderID),
		}
		tracing.RecordError(span, err)
		observability.RecordConversationCreated(cfg.ModelProviderID, false)
		logger.Error().Err(err).Msg("Failed to create conversation")
		return nil, err
	}

	client, err := m.factory.NewClient(cfg.ModelProviderID, info, m.auth, m.env)
	if err != nil {
		createErr := &SessionCreationError{ProviderID: cfg.ModelProviderID, Err: err}
		tracing.RecordError(span, createErr)
		observability.RecordConversationCreated(cfg.ModelProviderID, false)
		logger.Error().Err(createErr).Msg("Failed to create model client")
		return nil, createErr
	}

	notifier, err := hooks.NewManager(hooks.Config{Command: cfg.Notify, Logger: logger})
	if err != nil {
		createErr := &SessionCreationError{ProviderID: cfg.ModelProviderID, Err: err}
		tracing.RecordError(span, createErr)
		observability.RecordConversationCreated(cfg.ModelProviderID, false)
		logger.Error().Err(createErr).Msg("Failed to configure notify hook")
		return nil, createErr
	}

	codex := spawn(m.baseCtx, sessionParams{
		id:          id,
		cfg:         cfg,
		client:      client,
		recorder:    recorder,
		hooks:       notifier,
		history:     history,
		logger:      m.logger,
		onTerminate: m.deregister,
	})

	m.mu.Lock()
	m.conversations[id] = codex
	count := len(m.conversations)
	m.mu.Unlock()
	observability.SetActiveConversations(count)

	ev, err := codex.NextEvent(ctx)
	if err != nil {
		codex.cancel()
		<-codex.Done()
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}
	configured, ok := ev.Msg.(protocol.SessionConfigured)
	if !ok {
		codex.cancel()
		<-codex.Done()
		err := fmt.Errorf("expected %s as first event, got %s", protocol.EventTypeSessionConfigured, ev.Msg.Type())
		tracing.RecordError(span, err)
		return nil, err
	}

	observability.RecordConversationCreated(cfg.ModelProviderID, true)
	observability.RecordConversationAudit(ctx, spanName, id, "success", map[string]interface{}{
		"model":    cfg.Model,
		"provider": cfg.ModelProviderID,
	})
	logger.Info().
		Str("model", cfg.Model).
		Str("provider", cfg.ModelProviderID).
		Msg("Conversation started")

	return &NewConversation{
		ConversationID:    id,
		Conversation:      codex,
		SessionConfigured: configured,
	}, nil
}

func (m *Manager) deregister(c *Codex) {
	m.mu.Lock()
	if m.conversations[c.ID()] == c {
		delete(m.conversations, c.ID())
	}
	count := len(m.conversations)
	m.mu.Unlock()
	observability.SetActiveConversations(count)
}

// GetConversation returns a live session.
func (m *Manager) GetConversation(id string) (*Codex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return c, nil
}

// RemoveConversation stops tracking a session without shutting it down.
func (m *Manager) RemoveConversation(id string) (*Codex, bool) {
	m.mu.Lock()
	c, ok := m.conversations[id]
	delete(m.conversations, id)
	count := len(m.conversations)
	m.mu.Unlock()

	observability.SetActiveConversations(count)
	return c, ok
}

// Conversations returns the ids of live sessions, sorted.
func (m *Manager) Conversations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ShutdownAll submits Shutdown to every live session and waits for them to
// terminate or for ctx to end.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.RLock()
	sessions := make([]*Codex, 0, len(m.conversations))
	for _, c := range m.conversations {
		sessions = append(sessions, c)
	}
	m.mu.RUnlock()

	var errs []error
	for _, c := range sessions {
		if _, err := c.Submit(ctx, protocol.Shutdown{}); err != nil && !errors.Is(err, ErrSessionClosed) {
			errs = append(errs, fmt.Errorf("conversation %s: %w", c.ID(), err))
		}
	}

	for _, c := range sessions {
		select {
		case <-c.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("conversation %s: %w", c.ID(), ctx.Err()))
			return errors.Join(errs...)
		}
	}

	m.logger.Info().Int("conversations", len(sessions)).Msg("All conversations shut down")
	return errors.Join(errs...)
}
