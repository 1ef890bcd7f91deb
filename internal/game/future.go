package game

import (
	"context"
	"errors"
	"sync"
)

// ErrFutureCancelled is returned by GameFuture.Get when the pending join was
// cancelled, typically because the player was removed from the game.
var ErrFutureCancelled = errors.New("game future cancelled")

// GameFuture is a single-shot completable value. It is fulfilled when the
// player's game reaches the awaited state and cancelled when the player is
// removed beforehand. Consumers must always pass a context with a deadline:
// the engine never times out a pending join on its own, and a crashed client
// means the future may never complete.
type GameFuture struct {
	mu        sync.Mutex
	done      chan struct{}
	game      *Game
	cancelled bool
}

// NewGameFuture returns a pending future
func NewGameFuture() *GameFuture {
	return &GameFuture{done: make(chan struct{})}
}

// CompletedGameFuture returns a future that is already fulfilled with game
func CompletedGameFuture(g *Game) *GameFuture {
	f := NewGameFuture()
	f.Complete(g)
	return f
}

// Complete fulfills the future. Subsequent calls are no-ops.
func (f *GameFuture) Complete(g *Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled() {
		return
	}
	f.game = g
	close(f.done)
}

// Cancel settles the future without a value. Subsequent calls are no-ops.
func (f *GameFuture) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled() {
		return
	}
	f.cancelled = true
	close(f.done)
}

// settled reports whether the future is fulfilled or cancelled. Callers must
// hold f.mu.
func (f *GameFuture) settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the future settles
func (f *GameFuture) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future settles or the context expires
func (f *GameFuture) Get(ctx context.Context) (*Game, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cancelled {
			return nil, ErrFutureCancelled
		}
		return f.game, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
