package player

import (
	"log"
	"sync"

	"github.com/faforge/coordinator/internal/game"
)

// Directory is the in-memory index of online players. A player appears here
// from successful websocket attachment until disconnect.
type Directory struct {
	mu      sync.RWMutex
	byID    map[int]*game.Player
	byLogin map[string]*game.Player
}

func NewDirectory() *Directory {
	return &Directory{
		byID:    make(map[int]*game.Player),
		byLogin: make(map[string]*game.Player),
	}
}

// Attach registers the player as online. Reconnects reuse the existing
// in-memory player so an active game association survives.
func (d *Directory) Attach(id int, login string) *game.Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.byID[id]; ok {
		return existing
	}
	p := game.NewPlayer(id, login)
	d.byID[id] = p
	d.byLogin[login] = p
	log.Printf("[PLAYER] Player %s is online (%d total)", p, len(d.byID))
	return p
}

// Detach removes the player from the online set
func (d *Directory) Detach(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.byID[id]; ok {
		delete(d.byID, id)
		delete(d.byLogin, p.Login)
		log.Printf("[PLAYER] Player %s went offline (%d total)", p, len(d.byID))
	}
}

// GetOnlinePlayer returns the online player with the given id, if any
func (d *Directory) GetOnlinePlayer(id int) (*game.Player, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	return p, ok
}

// GetOnlinePlayerByLogin returns the online player with the given login, if any
func (d *Directory) GetOnlinePlayerByLogin(login string) (*game.Player, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byLogin[login]
	return p, ok
}

// Count returns the number of online players
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
