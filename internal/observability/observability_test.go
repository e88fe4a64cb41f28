package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	RecordSubmission("user_input")
	RecordEvent("task_complete")
	RecordTurn("oss", 10*time.Millisecond, false)
	RecordConfigResolution("oss", "default")
	SetActiveConversations(2)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `codex_submissions_total{op="user_input"}`)
	assert.Contains(t, body, `codex_events_total{type="task_complete"}`)
	assert.Contains(t, body, `codex_turn_errors_total{provider="oss"}`)
	assert.Contains(t, body, "codex_conversations_active 2")
}

func TestEnsureRegisteredIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		EnsureRegistered()
	})
}

func TestAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() {
		_ = GetAuditLogger().Close()
	})

	RecordConversationAudit(context.Background(), "conversation.created", "conv-1", "success", map[string]interface{}{
		"model": "gpt-oss:20b",
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "conversation", entry["type"])
	assert.Equal(t, "conv-1", entry["actor"])
	assert.Equal(t, "conversation.created", entry["action"])
}
