package ws

import (
	"sync"
	"time"

	"github.com/faforge/coordinator/internal/game"
)

// broadcaster debounces per-game snapshot broadcasts. Writes for the same key
// are merged; a pending entry flushes minDelay after the latest write, but
// never later than maxDelay after the first. Zero delays flush immediately.
type broadcaster struct {
	mu      sync.Mutex
	pending map[string]*pendingBroadcast
	flush   func(*game.GameResponse)
}

type pendingBroadcast struct {
	response *game.GameResponse
	deadline time.Time
	timer    *time.Timer
}

func newBroadcaster(flush func(*game.GameResponse)) *broadcaster {
	return &broadcaster{
		pending: make(map[string]*pendingBroadcast),
		flush:   flush,
	}
}

// Submit schedules a snapshot for broadcast
func (b *broadcaster) Submit(response *game.GameResponse, minDelay, maxDelay time.Duration,
	keyFn func(*game.GameResponse) string, aggregate game.ResponseAggregator) {

	key := keyFn(response)

	if minDelay <= 0 && maxDelay <= 0 {
		b.mu.Lock()
		if entry, ok := b.pending[key]; ok {
			entry.timer.Stop()
			delete(b.pending, key)
			response = aggregate(entry.response, response)
		}
		b.mu.Unlock()
		b.flush(response)
		return
	}

	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.pending[key]; ok {
		entry.response = aggregate(entry.response, response)
		next := minDelay
		if remaining := entry.deadline.Sub(now); remaining < next {
			next = remaining
		}
		if next < 0 {
			next = 0
		}
		// A concurrent fire that already removed the entry is harmless; the
		// extra timer run finds nothing pending.
		entry.timer.Reset(next)
		return
	}

	entry := &pendingBroadcast{response: response, deadline: now.Add(maxDelay)}
	entry.timer = time.AfterFunc(minDelay, func() { b.fire(key) })
	b.pending[key] = entry
}

func (b *broadcaster) fire(key string) {
	b.mu.Lock()
	entry, ok := b.pending[key]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.pending, key)
	response := entry.response
	b.mu.Unlock()

	b.flush(response)
}

// PendingCount returns the number of keys awaiting a flush
func (b *broadcaster) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
