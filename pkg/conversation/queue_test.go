package conversation

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/GaaneshT/codex/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue(t *testing.T) {
	t.Run("fifo", func(t *testing.T) {
		q := newEventQueue()
		for i := 0; i < 100; i++ {
			require.True(t, q.push(protocol.Event{ID: strconv.Itoa(i), Msg: protocol.TaskStarted{}}))
		}
		for i := 0; i < 100; i++ {
			ev, err := q.pop(context.Background())
			require.NoError(t, err)
			assert.Equal(t, strconv.Itoa(i), ev.ID)
		}
	})

	t.Run("close keeps queued events readable", func(t *testing.T) {
		q := newEventQueue()
		q.push(protocol.Event{ID: "1", Msg: protocol.ShutdownComplete{}})
		q.close()
		q.close()

		assert.False(t, q.push(protocol.Event{ID: "2", Msg: protocol.TaskStarted{}}))

		ev, err := q.pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1", ev.ID)

		_, err = q.pop(context.Background())
		assert.ErrorIs(t, err, ErrSessionClosed)
	})

	t.Run("pop waits for push", func(t *testing.T) {
		q := newEventQueue()
		got := make(chan protocol.Event, 1)
		go func() {
			ev, err := q.pop(context.Background())
			if err == nil {
				got <- ev
			}
		}()

		time.Sleep(10 * time.Millisecond)
		q.push(protocol.Event{ID: "late", Msg: protocol.TaskStarted{}})

		select {
		case ev := <-got:
			assert.Equal(t, "late", ev.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("pop did not return")
		}
	})

	t.Run("pop honours context", func(t *testing.T) {
		q := newEventQueue()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := q.pop(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
