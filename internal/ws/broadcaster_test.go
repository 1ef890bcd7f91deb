package ws

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faforge/coordinator/internal/game"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushed []*game.GameResponse
}

func (r *flushRecorder) flush(response *game.GameResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = append(r.flushed, response)
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flushed)
}

func (r *flushRecorder) last() *game.GameResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.flushed) == 0 {
		return nil
	}
	return r.flushed[len(r.flushed)-1]
}

func gameKey(response *game.GameResponse) string {
	return "game-" + strconv.Itoa(response.ID)
}

func lastWins(oldResponse, newResponse *game.GameResponse) *game.GameResponse {
	return newResponse
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met in time")
}

func TestBroadcasterFlushesImmediatelyWithZeroDelays(t *testing.T) {
	recorder := &flushRecorder{}
	b := newBroadcaster(recorder.flush)

	b.Submit(&game.GameResponse{ID: 1, Title: "a"}, 0, 0, gameKey, lastWins)

	assert.Equal(t, 1, recorder.count())
	assert.Equal(t, 0, b.PendingCount())
}

func TestBroadcasterMergesWritesWithinMinDelay(t *testing.T) {
	recorder := &flushRecorder{}
	b := newBroadcaster(recorder.flush)

	b.Submit(&game.GameResponse{ID: 1, Title: "first"}, 30*time.Millisecond, time.Second, gameKey, lastWins)
	b.Submit(&game.GameResponse{ID: 1, Title: "second"}, 30*time.Millisecond, time.Second, gameKey, lastWins)

	assert.Equal(t, 0, recorder.count())
	waitFor(t, func() bool { return recorder.count() == 1 })
	assert.Equal(t, "second", recorder.last().Title)
	assert.Equal(t, 0, b.PendingCount())
}

func TestBroadcasterKeepsDistinctKeysApart(t *testing.T) {
	recorder := &flushRecorder{}
	b := newBroadcaster(recorder.flush)

	b.Submit(&game.GameResponse{ID: 1}, 20*time.Millisecond, time.Second, gameKey, lastWins)
	b.Submit(&game.GameResponse{ID: 2}, 20*time.Millisecond, time.Second, gameKey, lastWins)

	assert.Equal(t, 2, b.PendingCount())
	waitFor(t, func() bool { return recorder.count() == 2 })
}

func TestBroadcasterHonorsMaxDelayUnderConstantWrites(t *testing.T) {
	recorder := &flushRecorder{}
	b := newBroadcaster(recorder.flush)

	// Keep rewriting faster than minDelay; the maxDelay deadline still fires
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && recorder.count() == 0 {
		b.Submit(&game.GameResponse{ID: 1}, 50*time.Millisecond, 100*time.Millisecond, gameKey, lastWins)
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, func() bool { return recorder.count() >= 1 })
}

func TestBroadcasterImmediateFlushDrainsPendingEntry(t *testing.T) {
	recorder := &flushRecorder{}
	b := newBroadcaster(recorder.flush)

	b.Submit(&game.GameResponse{ID: 1, Title: "pending"}, time.Second, 5*time.Second, gameKey, lastWins)
	require.Equal(t, 1, b.PendingCount())

	b.Submit(&game.GameResponse{ID: 1, Title: "final"}, 0, 0, gameKey, lastWins)

	assert.Equal(t, 1, recorder.count())
	assert.Equal(t, "final", recorder.last().Title)
	assert.Equal(t, 0, b.PendingCount())
}
