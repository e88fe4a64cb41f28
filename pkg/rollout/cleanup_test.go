package rollout

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRollout(t *testing.T, home, id string, ts time.Time, messages ...Message) string {
	t.Helper()
	rec := NewRecorder(home, SessionMeta{ID: id, Timestamp: ts, Model: "o3", ModelProvider: "openai"}, config.HistorySaveAll)
	require.NoError(t, rec.Record(context.Background(), messages...))
	return rec.Path()
}

func TestSummaries(t *testing.T) {
	home := t.TempDir()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	writeRollout(t, home, "second", base.Add(time.Hour),
		Message{Role: "user", Content: "a"},
		Message{Role: "assistant", Content: "b"},
	)
	writeRollout(t, home, "first", base, Message{Role: "user", Content: "hello"})

	summaries, err := Summaries(context.Background(), home)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "first", summaries[0].ID)
	assert.Equal(t, 1, summaries[0].Messages)
	assert.Equal(t, "second", summaries[1].ID)
	assert.Equal(t, 2, summaries[1].Messages)
	assert.Equal(t, "o3", summaries[1].Model)
	assert.Equal(t, "openai", summaries[1].ModelProvider)
}

func TestSummariesEmptyHome(t *testing.T) {
	summaries, err := Summaries(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	path := writeRollout(t, home, "conv-9", time.Now().UTC(), Message{Role: "user", Content: "hi"})

	got, err := Find(context.Background(), home, "conv-9")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = Find(context.Background(), home, "missing")
	assert.Error(t, err)

	_, err = Find(context.Background(), home, "../escape")
	assert.Error(t, err)
}

func TestCleanup(t *testing.T) {
	home := t.TempDir()
	now := time.Now()

	old := writeRollout(t, home, "old", now.Add(-48*time.Hour), Message{Role: "user", Content: "x"})
	fresh := writeRollout(t, home, "fresh", now.Add(-time.Hour), Message{Role: "user", Content: "y"})
	require.NoError(t, os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	deleted, err := Cleanup(home, 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	t.Run("default age keeps recent rollouts", func(t *testing.T) {
		deleted, err := Cleanup(home, 0, now)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("missing sessions dir", func(t *testing.T) {
		deleted, err := Cleanup(t.TempDir(), time.Hour, now)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}
