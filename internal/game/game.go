package game

import (
	"fmt"
	"sync"
	"time"
)

// FeaturedMod is the base ruleset selected for a match
type FeaturedMod struct {
	ID            int
	TechnicalName string
	DisplayName   string
	Ranked        bool
	Coop          bool
	Ladder1v1     bool
}

// ModVersion is one version of a sim mod activated in a game
type ModVersion struct {
	UID         string
	DisplayName string
	Ranked      bool
}

// FeaturedModFile is one deployed file of a featured mod
type FeaturedModFile struct {
	FileID  int
	Version int
}

// MapVersion is a specific version of a map
type MapVersion struct {
	ID         int
	MapID      int
	FolderName string
	Ranked     bool
}

// GameParticipant is a preset participant for auto-join lobbies
type GameParticipant struct {
	ID   int
	Team int
	Slot int
	Name string
}

// ArmyResult is one reporter's claim about the fate of one army. Equality is
// by all fields; the reconciler groups identical values when voting.
type ArmyResult struct {
	ArmyID  int
	Outcome Outcome
	Score   int
}

// GamePlayerStats is the per-game, per-player record that is persisted when
// the game launches and settled when it ends
type GamePlayerStats struct {
	Player    *Player
	Team      int
	Faction   int
	Color     int
	StartSpot int
	Mean      float64
	Deviation float64
	Score     *int
	ScoreTime *time.Time
}

// ArmyStatistics is an opaque per-army statistics blob reported by clients.
// Last reporter wins; post-processing happens in the stats collaborator.
type ArmyStatistics struct {
	Name  string                 `json:"name"`
	Stats map[string]interface{} `json:"stats"`
}

// reportKey identifies one (reporter, army) report slot. The engine keeps
// first-seen order so result voting can break ties by insertion order.
type reportKey struct {
	reporterID int
	armyID     int
}

// Game is one active match. All fields below the mutex are guarded by it;
// engine operations hold the lock for their full duration. The game holds
// player IDs plus directory references rather than owning the players, since
// players outlive their games.
type Game struct {
	ID int

	mu sync.RWMutex

	title              string
	password           string
	visibility         GameVisibility
	featuredMod        *FeaturedMod
	mapVersion         *MapVersion
	mapFolderName      string
	minRating          *int
	maxRating          *int
	maxPlayers         int
	lobbyMode          LobbyMode
	victoryCond        VictoryCondition
	host               *Player
	state              GameState
	validity           Validity
	startTime          *time.Time
	endTime            *time.Time
	desyncCount        int
	ratingEnforced     bool
	mutuallyAgreedDraw bool

	options            map[string]interface{}
	playerOptions      map[int]map[string]interface{}
	aiOptions          map[string]map[string]interface{}
	simMods            []*ModVersion
	connectedPlayers   map[int]*Player
	playerStats        map[int]*GamePlayerStats
	armyStatistics     []ArmyStatistics
	presetParticipants []GameParticipant

	reportedArmyResults map[int]map[int]ArmyResult
	reportOrder         []reportKey

	mutualDrawAcceptors map[int]struct{}
	gameEndedReporters  map[int]struct{}
}

// NewGame creates a game in state INITIALIZING with the given server-assigned id
func NewGame(id int) *Game {
	return &Game{
		ID:                  id,
		state:               GameStateInitializing,
		validity:            ValidityValid,
		visibility:          GameVisibilityPublic,
		lobbyMode:           LobbyModeDefault,
		victoryCond:         VictoryConditionUnknown,
		options:             make(map[string]interface{}),
		playerOptions:       make(map[int]map[string]interface{}),
		aiOptions:           make(map[string]map[string]interface{}),
		connectedPlayers:    make(map[int]*Player),
		playerStats:         make(map[int]*GamePlayerStats),
		reportedArmyResults: make(map[int]map[int]ArmyResult),
		mutualDrawAcceptors: make(map[int]struct{}),
		gameEndedReporters:  make(map[int]struct{}),
	}
}

func (g *Game) String() string {
	return fmt.Sprintf("Game(%d)", g.ID)
}

// State returns the game's lifecycle state. Safe without holding the game
// lock for the whole operation; used by cross-game scans.
func (g *Game) State() GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// StartTime returns when the game launched, or nil before that
func (g *Game) StartTime() *time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.startTime
}

// EndTime returns when the game ended, or nil before that
func (g *Game) EndTime() *time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.endTime
}

// Host returns the hosting player
func (g *Game) Host() *Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.host
}

// Validity returns the adjudicated validity of the game
func (g *Game) Validity() Validity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.validity
}

// Title returns the game title
func (g *Game) Title() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.title
}

// MapFolderName returns the folder name of the current map
func (g *Game) MapFolderName() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mapFolderName
}

// FeaturedMod returns the game's base ruleset
func (g *Game) FeaturedMod() *FeaturedMod {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.featuredMod
}

// PlayerStats returns the per-player stats records keyed by player id.
// Callers must hold the game lock or know the game is quiescent.
func (g *Game) PlayerStats() map[int]*GamePlayerStats {
	return g.playerStats
}

// ConnectedPlayerIDs returns a snapshot of the ids of connected players
func (g *Game) ConnectedPlayerIDs() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]int, 0, len(g.connectedPlayers))
	for id := range g.connectedPlayers {
		ids = append(ids, id)
	}
	return ids
}

// snapshotLocked captures the persistence view of the game. Callers must hold
// the game lock.
func (g *Game) snapshotLocked() *GameSnapshot {
	snapshot := &GameSnapshot{
		ID:                 g.ID,
		Title:              g.title,
		VictoryCondition:   g.victoryCond,
		Validity:           g.validity,
		StartTime:          g.startTime,
		EndTime:            g.endTime,
		MutuallyAgreedDraw: g.mutuallyAgreedDraw,
		PlayerStats:        make([]*GamePlayerStats, 0, len(g.playerStats)),
	}
	if g.host != nil {
		snapshot.HostID = g.host.ID
	}
	if g.featuredMod != nil {
		snapshot.FeaturedModID = g.featuredMod.ID
	}
	if g.mapVersion != nil {
		id := g.mapVersion.ID
		snapshot.MapVersionID = &id
	}
	for _, stats := range g.playerStats {
		snapshot.PlayerStats = append(snapshot.PlayerStats, stats)
	}
	return snapshot
}

// sharesPlayerWith reports whether both games have a player-stats entry for
// the same player. Callers must not hold either game's write lock.
func (g *Game) sharesPlayerWith(other *Game) bool {
	g.mu.RLock()
	ids := make([]int, 0, len(g.playerStats))
	for id := range g.playerStats {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	other.mu.RLock()
	defer other.mu.RUnlock()
	for _, id := range ids {
		if _, ok := other.playerStats[id]; ok {
			return true
		}
	}
	return false
}

// hasArmy reports whether any player or AI option entry claims the army id.
// Callers must hold the game lock.
func (g *Game) hasArmy(armyID int) bool {
	for _, options := range g.playerOptions {
		if id, ok := optionInt(options[OptionArmy]); ok && id == armyID {
			return true
		}
	}
	for _, options := range g.aiOptions {
		if id, ok := optionInt(options[OptionArmy]); ok && id == armyID {
			return true
		}
	}
	return false
}

// playerTeamID returns the team reported for the player via player options.
// Callers must hold the game lock.
func (g *Game) playerTeamID(playerID int) (int, bool) {
	options, ok := g.playerOptions[playerID]
	if !ok {
		return 0, false
	}
	return optionInt(options[OptionTeam])
}

// recordArmyResult stores a reporter's result for an army, preserving the
// first-seen report order. Callers must hold the game lock.
func (g *Game) recordArmyResult(reporterID int, result ArmyResult) {
	results, ok := g.reportedArmyResults[reporterID]
	if !ok {
		results = make(map[int]ArmyResult)
		g.reportedArmyResults[reporterID] = results
	}
	if _, seen := results[result.ArmyID]; !seen {
		g.reportOrder = append(g.reportOrder, reportKey{reporterID: reporterID, armyID: result.ArmyID})
	}
	results[result.ArmyID] = result
}
