package game

import (
	"fmt"
	"sync"
)

// Rating is a mean/deviation pair from one rating bucket
type Rating struct {
	Mean      float64
	Deviation float64
}

// Player is an online player as seen by the engine. A player references at
// most one game through its current game; the game holds the player in its
// connected-players map. Player fields below the mutex are mutated while the
// current game's lock is held; the player's own mutex makes the pointer and
// state reads safe for callers that have not resolved a game lock yet.
type Player struct {
	ID    int
	Login string

	mu                      sync.Mutex
	currentGame             *Game
	gameState               PlayerGameState
	gameFuture              *GameFuture
	globalRating            *Rating
	ladder1v1Rating         *Rating
	ratingWithinCurrentGame *Rating
}

// NewPlayer creates a player with no current game
func NewPlayer(id int, login string) *Player {
	return &Player{ID: id, Login: login, gameState: PlayerGameStateNone}
}

func (p *Player) String() string {
	return fmt.Sprintf("%s (%d)", p.Login, p.ID)
}

// CurrentGame returns the game the player is currently associated with, or nil
func (p *Player) CurrentGame() *Game {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentGame
}

func (p *Player) setCurrentGame(g *Game) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentGame = g
}

// GameState returns the player's current player-game state
func (p *Player) GameState() PlayerGameState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gameState
}

func (p *Player) setGameState(state PlayerGameState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gameState = state
}

// GameFuture returns the player's pending create/join future, or nil
func (p *Player) GameFuture() *GameFuture {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gameFuture
}

func (p *Player) setGameFuture(f *GameFuture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gameFuture = f
}

// GlobalRating returns the player's global rating, or nil if not initialized
func (p *Player) GlobalRating() *Rating {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.globalRating
}

// SetGlobalRating stores the player's global rating
func (p *Player) SetGlobalRating(r *Rating) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globalRating = r
}

// Ladder1v1Rating returns the player's ladder rating, or nil if not initialized
func (p *Player) Ladder1v1Rating() *Rating {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ladder1v1Rating
}

// SetLadder1v1Rating stores the player's ladder rating
func (p *Player) SetLadder1v1Rating(r *Rating) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ladder1v1Rating = r
}

// RatingWithinCurrentGame is the rating snapshot taken when the player joined
// its current game, from the bucket matching the game's featured mod
func (p *Player) RatingWithinCurrentGame() *Rating {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ratingWithinCurrentGame
}

func (p *Player) setRatingWithinCurrentGame(r *Rating) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ratingWithinCurrentGame = r
}
