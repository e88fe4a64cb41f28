package rollout

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/observability"
	"github.com/GaaneshT/codex/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	tracerName = "codex.rollout"

	// SessionsDir is the directory under codex home holding rollouts.
	SessionsDir = "sessions"

	kindSessionMeta = "session_meta"
	kindMessage     = "message"
)

// SessionMeta describes the conversation a rollout belongs to.
type SessionMeta struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Cwd           string    `json:"cwd,omitempty"`
	Model         string    `json:"model,omitempty"`
	ModelProvider string    `json:"model_provider,omitempty"`
	Instructions  string    `json:"instructions,omitempty"`
}

// Message represents a single conversation item
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Entry is one JSONL line.
type Entry struct {
	Timestamp time.Time    `json:"timestamp"`
	Kind      string       `json:"kind"`
	Meta      *SessionMeta `json:"meta,omitempty"`
	Message   *Message     `json:"message,omitempty"`
}

// Option configures a Recorder or a Load.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger sets the logger used instead of the global one.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Recorder appends conversation items to a rollout file.
type Recorder struct {
	path        string
	meta        SessionMeta
	disabled    bool
	logger      zerolog.Logger
	mu          sync.Mutex
	metaWritten bool
}

// NewRecorder prepares a recorder for a new conversation. No file is touched
// until the first Record call. With HistoryNone the recorder drops every
// item.
func NewRecorder(codexHome string, meta SessionMeta, persistence config.HistoryPersistence, opts ...Option) *Recorder {
	observability.EnsureRegistered()

	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	r := &Recorder{
		meta:     meta,
		disabled: persistence == config.HistoryNone,
		logger:   buildOptions(opts).logger,
	}
	if !r.disabled {
		r.path = filepath.Join(codexHome, SessionsDir, fileName(meta))
	}
	return r
}

// ResumeRecorder appends to an existing rollout file.
func ResumeRecorder(path string, meta SessionMeta, persistence config.HistoryPersistence, opts ...Option) *Recorder {
	return &Recorder{
		path:        path,
		meta:        meta,
		disabled:    persistence == config.HistoryNone,
		logger:      buildOptions(opts).logger,
		metaWritten: true,
	}
}

func fileName(meta SessionMeta) string {
	return fmt.Sprintf("rollout-%s-%s.jsonl", meta.Timestamp.Format("2006-01-02T15-04-05"), meta.ID)
}

// validateID validates the conversation id for use in a file name
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("conversation id cannot contain '..'")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("conversation id cannot contain path separators")
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("conversation id cannot contain null bytes")
	}
	return nil
}

// Path returns the rollout file path, or "" when recording is disabled.
func (r *Recorder) Path() string {
	if r.disabled {
		return ""
	}
	return r.path
}

// Enabled reports whether items are persisted.
func (r *Recorder) Enabled() bool {
	return !r.disabled
}

// Record appends messages, writing the session meta line first if this is
// the first write.
func (r *Recorder) Record(ctx context.Context, messages ...Message) error {
	if r.disabled || len(messages) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"rollout.record",
		attribute.String("conversation_id", r.meta.ID),
		attribute.Int("messages", len(messages)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger)
	start := time.Now()
	defer func() {
		observability.RecordRolloutWrite(time.Since(start))
	}()

	if err := validateID(r.meta.ID); err != nil {
		tracing.RecordError(span, err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(messages)+1)
	now := time.Now().UTC()
	if !r.metaWritten {
		meta := r.meta
		entries = append(entries, Entry{Timestamp: now, Kind: kindSessionMeta, Meta: &meta})
	}
	for _, m := range messages {
		if m.Role == "" {
			err := fmt.Errorf("message role cannot be empty")
			tracing.RecordError(span, err)
			return err
		}
		m := m
		entries = append(entries, Entry{Timestamp: now, Kind: kindMessage, Message: &m})
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to open rollout file: %w", err)
	}
	defer file.Close()

	var buf []byte
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			tracing.RecordError(span, err)
			return fmt.Errorf("failed to marshal rollout entry: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	if _, err := file.Write(buf); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to write rollout: %w", err)
	}

	if err := file.Sync(); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to sync rollout: %w", err)
	}
	r.metaWritten = true

	logger.Debug().
		Str("path", r.path).
		Int("entries", len(entries)).
		Msg("Rollout appended")

	return nil
}

// Load reads a rollout file. Corrupted lines are skipped.
func Load(ctx context.Context, path string, opts ...Option) (SessionMeta, []Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "rollout.load", attribute.String("path", path))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, buildOptions(opts).logger).With().Str("path", path).Logger()

	file, err := os.Open(path)
	if err != nil {
		tracing.RecordError(span, err)
		return SessionMeta{}, nil, fmt.Errorf("failed to open rollout file: %w", err)
	}
	defer file.Close()

	var (
		meta     SessionMeta
		haveMeta bool
		messages []Message
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			logger.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse line, skipping")
			continue
		}

		switch {
		case entry.Kind == kindSessionMeta && entry.Meta != nil:
			if !haveMeta {
				meta = *entry.Meta
				haveMeta = true
			}
		case entry.Kind == kindMessage && entry.Message != nil && entry.Message.Role != "":
			messages = append(messages, *entry.Message)
		default:
			logger.Warn().Int("line", lineNum).Msg("Invalid entry, skipping")
		}
	}

	if err := scanner.Err(); err != nil {
		tracing.RecordError(span, err)
		return SessionMeta{}, nil, fmt.Errorf("failed to read rollout file: %w", err)
	}
	if !haveMeta {
		err := fmt.Errorf("rollout %s has no session meta", path)
		tracing.RecordError(span, err)
		return SessionMeta{}, nil, err
	}

	logger.Debug().Int("messages", len(messages)).Msg("Rollout loaded")
	return meta, messages, nil
}

// List returns the rollout files under codexHome, oldest first.
func List(codexHome string) ([]string, error) {
	dir := filepath.Join(codexHome, SessionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "rollout-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
