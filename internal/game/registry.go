package game

import (
	"sync"
	"sync/atomic"
)

// Registry is the thread-safe in-memory index of active games. Game IDs are
// assigned by a process-wide counter seeded from the highest persisted id so
// that ids stay unique and strictly increasing across restarts.
type Registry struct {
	mu     sync.RWMutex
	games  map[int]*Game
	lastID atomic.Int32
}

// NewRegistry creates an empty registry with the id counter seeded to maxID
func NewRegistry(maxID int) *Registry {
	r := &Registry{games: make(map[int]*Game)}
	r.lastID.Store(int32(maxID))
	return r
}

// AllocateID atomically allocates the next game id
func (r *Registry) AllocateID() int {
	return int(r.lastID.Add(1))
}

// Insert adds the game to the registry
func (r *Registry) Insert(g *Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.ID] = g
}

// Find returns the active game with the given id, if any
func (r *Registry) Find(id int) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// Remove deletes the game from the registry
func (r *Registry) Remove(g *Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, g.ID)
}

// Snapshot returns the current set of active games
func (r *Registry) Snapshot() []*Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	games := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	return games
}

// Len returns the number of active games
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
