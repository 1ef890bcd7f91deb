package game

import (
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/faforge/coordinator/internal/config"
)

// Broadcast debounce windows. State machine transitions flush immediately;
// everything else coalesces within the default window.
const (
	DefaultMinDelay = 1 * time.Second
	DefaultMaxDelay = 5 * time.Second
)

// Engine owns the set of active games and drives the game and player state
// machines. It is constructed once per process and shared by all client
// connections.
//
// Locking: per-game mutation is serialized by the game's own mutex, held for
// the duration of each public operation. Operations that can trigger
// end-of-game processing (player removal, ENDED/CLOSED state reports,
// reportGameEnded) additionally take endMu first; endMu serializes end
// processing and the rating-pending queue across games. Lock order is always
// endMu before any game lock, and at most one game lock is held at a time.
type Engine struct {
	registry              *Registry
	clientService         ClientService
	gameRepository        GameRepository
	mapService            MapService
	modService            ModService
	playerService         PlayerService
	ratingService         RatingService
	divisionService       DivisionService
	armyStatisticsService ArmyStatisticsService

	validityVoters    []ValidityVoter
	now               func() time.Time
	broadcastMinDelay time.Duration
	broadcastMaxDelay time.Duration

	endMu                sync.Mutex
	awaitingRatingUpdate []*Game
}

// NewEngine creates the engine and seeds the game id counter from persistence
func NewEngine(cfg *config.Config, gameRepository GameRepository, clientService ClientService,
	mapService MapService, modService ModService, playerService PlayerService,
	ratingService RatingService, divisionService DivisionService,
	armyStatisticsService ArmyStatisticsService) (*Engine, error) {

	maxID, err := gameRepository.FindMaxID()
	if err != nil {
		return nil, err
	}
	log.Printf("[ENGINE] Next game ID is: %d", maxID+1)

	e := &Engine{
		registry:              NewRegistry(maxID),
		clientService:         clientService,
		gameRepository:        gameRepository,
		mapService:            mapService,
		modService:            modService,
		playerService:         playerService,
		ratingService:         ratingService,
		divisionService:       divisionService,
		armyStatisticsService: armyStatisticsService,
		now:                   time.Now,
		broadcastMinDelay:     DefaultMinDelay,
		broadcastMaxDelay:     DefaultMaxDelay,
	}
	if cfg.BroadcastMinDelayMS > 0 {
		e.broadcastMinDelay = time.Duration(cfg.BroadcastMinDelayMS) * time.Millisecond
	}
	if cfg.BroadcastMaxDelayMS > 0 {
		e.broadcastMaxDelay = time.Duration(cfg.BroadcastMaxDelayMS) * time.Millisecond
	}
	e.validityVoters = newValidityVoters(modService, cfg.RankedMinTimeMultiplicator, func() time.Time { return e.now() })
	return e, nil
}

// GetActiveGame returns the active game with the given id, if any
func (e *Engine) GetActiveGame(id int) (*Game, bool) {
	return e.registry.Find(id)
}

// ActiveGameCount returns the number of games currently in the registry
func (e *Engine) ActiveGameCount() int {
	return e.registry.Len()
}

// CreateGame creates a new, transient game, registers it and tells the
// caller's client to start the game process. The returned future completes
// once the game reaches OPEN, which requires the host's client to actually
// come up; callers must always consume it with a timeout.
func (e *Engine) CreateGame(title, featuredModName, mapFileName, password string,
	visibility GameVisibility, minRating, maxRating *int, player *Player,
	lobbyMode LobbyMode, presetParticipants []GameParticipant) (*GameFuture, error) {

	if currentGame := player.CurrentGame(); currentGame != nil && currentGame.State() == GameStateInitializing {
		// The player's previous game never reached the lobby, most likely a
		// crashed game process. Instead of timing such games out we reset the
		// association when the player tries again.
		log.Printf("[ENGINE] Removing player %s from orphaned game %s before creating a new one", player, currentGame)
		e.RemovePlayer(player)
	}

	if err := verify(player.CurrentGame() == nil, ErrAlreadyInGame); err != nil {
		return nil, err
	}

	featuredMod, ok := e.modService.GetFeaturedMod(featuredModName)
	if !ok {
		return nil, NewRequestError(ErrInvalidFeaturedMod, featuredModName)
	}

	g := NewGame(e.registry.AllocateID())
	g.title = title
	g.featuredMod = featuredMod
	g.password = password
	if visibility != "" {
		g.visibility = visibility
	}
	g.minRating = minRating
	g.maxRating = maxRating
	g.lobbyMode = lobbyMode
	g.presetParticipants = presetParticipants
	g.host = player
	g.mapFolderName = mapFileName
	if mapVersion, ok := e.mapService.FindMap(mapFileName); ok {
		g.mapVersion = mapVersion
	}

	e.registry.Insert(g)
	log.Printf("[ENGINE] Player %s created game %s", player, g)

	e.clientService.StartGameProcess(g, player)
	player.setCurrentGame(g)
	player.setGameState(PlayerGameStateInitializing)

	future := NewGameFuture()
	player.setGameFuture(future)

	g.mu.Lock()
	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
	g.mu.Unlock()

	return future, nil
}

// JoinGame tells the client to start the game process and associates the
// player with the game. The returned future completes once the player's
// client reaches the lobby; callers must always consume it with a timeout.
func (e *Engine) JoinGame(gameID int, password string, player *Player) (*GameFuture, error) {
	if err := verify(player.CurrentGame() == nil, ErrAlreadyInGame); err != nil {
		return nil, err
	}

	g, ok := e.registry.Find(gameID)
	if !ok {
		return nil, NewRequestError(ErrNoSuchGame, gameID)
	}

	g.mu.Lock()
	if g.state != GameStateOpen {
		g.mu.Unlock()
		return nil, NewRequestError(ErrGameNotJoinable, g.state)
	}
	if g.password != "" && g.password != password {
		g.mu.Unlock()
		return nil, NewRequestError(ErrInvalidPassword)
	}
	g.mu.Unlock()

	log.Printf("[ENGINE] Player %s joins game %s", player, g)
	e.clientService.StartGameProcess(g, player)
	player.setCurrentGame(g)
	player.setGameState(PlayerGameStateInitializing)

	future := NewGameFuture()
	player.setGameFuture(future)
	return future, nil
}

// UpdatePlayerGameState applies a player-reported state transition and runs
// its side effects.
func (e *Engine) UpdatePlayerGameState(newState PlayerGameState, player *Player) error {
	// Removal and end processing must follow the endMu-first lock order.
	if newState == PlayerGameStateEnded || newState == PlayerGameStateClosed {
		e.endMu.Lock()
		defer e.endMu.Unlock()
	}

	g := player.CurrentGame()
	if err := verify(g != nil, ErrNotInAGame); err != nil {
		return err
	}

	oldState := player.GameState()
	log.Printf("[ENGINE] Player %s updated game state from %s to %s (game: %s)", player, oldState, newState, g)

	if err := verify(CanTransitionPlayer(oldState, newState), ErrInvalidPlayerGameStateTransition, oldState, newState); err != nil {
		return err
	}
	player.setGameState(newState)

	switch newState {
	case PlayerGameStateLobby:
		e.onLobbyEntered(player, g)
		return nil
	case PlayerGameStateLaunching:
		return e.onGameLaunching(player, g)
	case PlayerGameStateEnded:
		if g.State() != GameStateEnded {
			return e.onGameEnded(g)
		}
		return nil
	case PlayerGameStateClosed:
		log.Printf("[ENGINE] Player %s closed game %s", player, g)
		return e.removePlayerFromGame(g, player)
	case PlayerGameStateIdle:
		log.Printf("[ENGINE] Ignoring state %s from player %s for game %s (should be handled by the client)", newState, player, g)
		return nil
	default:
		log.Printf("[ENGINE] Uncovered player game state: %s", newState)
		return nil
	}
}

// UpdateGameOption stores a global option of the reporter's current game.
// Reporters without a game are ignored, this is repeated client telemetry.
func (e *Engine) UpdateGameOption(reporter *Player, key string, value interface{}) error {
	g := reporter.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Received game option for player w/o game: %s", reporter)
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := verify(g.host == reporter, ErrHostOnlyOption, key); err != nil {
		return err
	}

	g.options[key] = value
	switch key {
	case OptionVictoryCondition:
		g.victoryCond = VictoryConditionFromString(optionString(value))
	case OptionSlots:
		if slots, ok := optionInt(value); ok {
			g.maxPlayers = slots
		}
	case OptionScenarioFile:
		folder, err := parseMapFolderName(optionString(value))
		if err != nil {
			log.Printf("[ENGINE] Ignoring malformed scenario file for game %s: %v", g, err)
		} else {
			g.mapFolderName = folder
		}
	case OptionTitle:
		g.title = optionString(value)
	}

	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
	return nil
}

// UpdatePlayerOption stores an option of a specific player. Only the host may
// report player options, and only while the game is open.
func (e *Engine) UpdatePlayerOption(reporter *Player, playerID int, key string, value interface{}) error {
	g := reporter.CurrentGame()
	if g == nil {
		// Happens repeatedly after client restarts, not worth an error
		log.Printf("[ENGINE] Received player option for player w/o game: %s", reporter)
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := verify(g.state == GameStateOpen, ErrInvalidGameState, g.state, GameStateOpen); err != nil {
		return err
	}
	if err := verify(g.host == reporter, ErrHostOnlyOption, key); err != nil {
		return err
	}

	if _, ok := g.connectedPlayers[playerID]; !ok {
		log.Printf("[ENGINE] Player %s reported option %s=%v for unknown player %d in game %s", reporter, key, value, playerID, g)
		return nil
	}

	options, ok := g.playerOptions[playerID]
	if !ok {
		options = make(map[string]interface{})
		g.playerOptions[playerID] = options
	}
	options[key] = value

	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
	return nil
}

// UpdateAiOption stores an option of an AI participant. Only the Army key is
// recorded; all other keys arrive before the AI's final name is known and
// would be stored under a stale name.
func (e *Engine) UpdateAiOption(reporter *Player, aiName, key string, value interface{}) error {
	g := reporter.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Received AI option for player w/o game: %s", reporter)
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := verify(g.host == reporter, ErrHostOnlyOption, key); err != nil {
		return err
	}

	if key != OptionArmy {
		log.Printf("[ENGINE] Ignoring option %s=%v for AI %q in game %s", key, value, aiName, g)
		return nil
	}

	options, ok := g.aiOptions[aiName]
	if !ok {
		options = make(map[string]interface{})
		g.aiOptions[aiName] = options
	}
	options[key] = value

	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
	return nil
}

// ClearSlot removes all player options associated with the given start spot.
// AI entries are keyed by name, not slot, and are left untouched.
func (e *Engine) ClearSlot(g *Game, slotID int) {
	if g == nil {
		log.Printf("[ENGINE] Clearing slot %d was requested for a nil game", slotID)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for playerID, options := range g.playerOptions {
		if spot, ok := optionInt(options[OptionStartSpot]); ok && spot == slotID {
			log.Printf("[ENGINE] Removing options for player %d in game %s (slot %d cleared)", playerID, g, slotID)
			delete(g.playerOptions, playerID)
		}
	}

	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
}

// ReportDesync increments the desync counter of the reporter's current game
func (e *Engine) ReportDesync(reporter *Player) {
	g := reporter.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Desync reported by player w/o game: %s", reporter)
		return
	}

	g.mu.Lock()
	g.desyncCount++
	count := g.desyncCount
	g.mu.Unlock()

	log.Printf("[ENGINE] Player %s increased desync count to %d for game %s", reporter, count, g)
}

// UpdateGameMods replaces the list of activated sim mods. Unknown UIDs are
// dropped by the mod lookup.
func (e *Engine) UpdateGameMods(g *Game, uids []string) {
	if g == nil {
		log.Printf("[ENGINE] Received game mods for nil game")
		return
	}
	modVersions := e.modService.FindModVersionsByUIDs(uids)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.simMods = modVersions
	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
}

// UpdateGameModsCount clears the sim-mod list when the client reports zero
// active mods; any other count is ignored since the uid list is authoritative.
func (e *Engine) UpdateGameModsCount(g *Game, count int) {
	if g == nil || count != 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	log.Printf("[ENGINE] Clearing mod list for game %s", g)
	g.simMods = nil
	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
}

// ReportArmyScore updates the reporter's score for an army, preserving a
// previously reported outcome. Reports for unknown armies are dropped.
func (e *Engine) ReportArmyScore(reporter *Player, armyID, score int) {
	g := reporter.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Army score reported by player w/o game: %s", reporter)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasArmy(armyID) {
		log.Printf("[ENGINE] Player %s reported score %d for unknown army %d in game %s", reporter, score, armyID, g)
		return
	}

	outcome := OutcomeUnknown
	if existing, ok := g.reportedArmyResults[reporter.ID][armyID]; ok {
		outcome = existing.Outcome
	}
	g.recordArmyResult(reporter.ID, ArmyResult{ArmyID: armyID, Outcome: outcome, Score: score})
	log.Printf("[ENGINE] Player %s reported score %d for army %d in game %s", reporter, score, armyID, g)
}

// ReportArmyOutcome replaces the reporter's result for an army. Reports for
// unknown armies are dropped.
func (e *Engine) ReportArmyOutcome(reporter *Player, armyID int, outcome Outcome, score int) {
	g := reporter.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Army outcome reported by player w/o game: %s", reporter)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.hasArmy(armyID) {
		log.Printf("[ENGINE] Player %s reported outcome %s for unknown army %d in game %s", reporter, outcome, armyID, g)
		return
	}

	g.recordArmyResult(reporter.ID, ArmyResult{ArmyID: armyID, Outcome: outcome, Score: score})
	log.Printf("[ENGINE] Player %s reported result for army %d in game %s: %s, %d", reporter, armyID, g, outcome, score)
}

// ReportArmyStatistics replaces the game's army statistics. Last reporter wins.
func (e *Engine) ReportArmyStatistics(reporter *Player, armyStatistics []ArmyStatistics) {
	g := reporter.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Army statistics reported by player w/o game: %s", reporter)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.armyStatistics = armyStatistics
}

// EnforceRating forces the rating update even if the game is adjudicated
// non-rankable, for example because it was too short.
func (e *Engine) EnforceRating(reporter *Player) {
	g := reporter.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Rating enforcement requested by player w/o game: %s", reporter)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	log.Printf("[ENGINE] Player %s enforced rating for game %s", reporter, g)
	g.ratingEnforced = true
}

// RemovePlayer removes the player from its current game, if any. Called on
// disconnect and when the player reports its game closed.
func (e *Engine) RemovePlayer(player *Player) error {
	e.endMu.Lock()
	defer e.endMu.Unlock()

	g := player.CurrentGame()
	if g == nil {
		return nil
	}
	return e.removePlayerFromGame(g, player)
}

// removePlayerFromGame detaches the player and handles the fallout: host
// abandonment drains an open lobby, and the last player leaving cancels or
// ends the game. Callers must hold endMu but no game lock.
func (e *Engine) removePlayerFromGame(g *Game, player *Player) error {
	g.mu.Lock()
	needsEndProcessing := e.removePlayerLocked(g, player)
	g.mu.Unlock()

	if needsEndProcessing {
		return e.onGameEnded(g)
	}
	return nil
}

// removePlayerLocked performs the removal under the game lock and reports
// whether end processing must run afterwards (last player left a PLAYING
// game). Cancellation of never-launched games happens inline.
func (e *Engine) removePlayerLocked(g *Game, player *Player) bool {
	log.Printf("[ENGINE] Removing player %s from game %s", player, g)

	player.setGameState(PlayerGameStateNone)
	player.setCurrentGame(nil)
	if future := player.GameFuture(); future != nil {
		future.Cancel()
	}

	delete(g.connectedPlayers, player.ID)
	e.clientService.DisconnectPlayerFromGame(player.ID, g.connectedPlayersSlice())

	// A host abandoning an open lobby drains the game: every remaining
	// player is removed as well.
	if g.state == GameStateOpen && g.host == player {
		for _, connected := range g.connectedPlayersSlice() {
			e.removePlayerLocked(g, connected)
		}
	}

	if len(g.connectedPlayers) == 0 {
		switch g.state {
		case GameStateInitializing, GameStateOpen:
			log.Printf("[ENGINE] Game cancelled: %s", g)
			e.closeGameLocked(g)
		case GameStatePlaying:
			return true
		default:
			e.closeGameLocked(g)
		}
		return false
	}

	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
	return false
}

// DisconnectPlayerFromGame tells all peers of the target player to drop their
// connections to it. The target itself stays in the game; this is a
// transport-level instruction.
func (e *Engine) DisconnectPlayerFromGame(requester *Player, playerID int) {
	target, ok := e.playerService.GetOnlinePlayer(playerID)
	if !ok {
		log.Printf("[ENGINE] Player %s tried to disconnect unknown player %d from game", requester, playerID)
		return
	}
	g := target.CurrentGame()
	if g == nil {
		log.Printf("[ENGINE] Player %s tried to disconnect player %s from game, but no game is associated", requester, target)
		return
	}

	g.mu.RLock()
	receivers := make([]*Player, 0, len(g.connectedPlayers))
	for id, connected := range g.connectedPlayers {
		if id != playerID {
			receivers = append(receivers, connected)
		}
	}
	g.mu.RUnlock()

	e.clientService.DisconnectPlayerFromGame(playerID, receivers)
	log.Printf("[ENGINE] Player %s disconnected player %s from game %s", requester, target, g)
}

// PlayerDisconnected records a client-side report that a peer vanished
func (e *Engine) PlayerDisconnected(reporter *Player, disconnectedPlayerID int) {
	log.Printf("[ENGINE] Player %s reported disconnect of player %d", reporter, disconnectedPlayerID)
}

// RestoreGameSession reattaches a disconnected participant to its game after
// the client lost its server connection.
func (e *Engine) RestoreGameSession(player *Player, gameID int) error {
	if player.CurrentGame() != nil {
		log.Printf("[ENGINE] Player %s requested session restoration but is still in game %s", player, player.CurrentGame())
		return nil
	}

	g, ok := e.registry.Find(gameID)
	if err := verify(ok, ErrCantRestoreGameDoesntExist); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := verify(g.state == GameStateOpen || g.state == GameStatePlaying, ErrCantRestoreGameDoesntExist); err != nil {
		return err
	}
	if g.state == GameStatePlaying {
		if _, participant := g.playerStats[player.ID]; !participant {
			return NewRequestError(ErrCantRestoreGameNotParticipant)
		}
	}

	log.Printf("[ENGINE] Reassociating player %s with game %s", player, g)
	player.setGameFuture(CompletedGameFuture(g))
	e.addPlayerLocked(g, player)

	player.setGameState(PlayerGameStateInitializing)
	player.setGameState(PlayerGameStateLobby)
	if g.state == GameStatePlaying {
		player.setGameState(PlayerGameStateLaunching)
	}
	return nil
}

// MutuallyAgreeDraw adds the player to the draw acceptor set. Once every
// connected non-observer player has accepted, the game is flagged as a
// mutually agreed draw.
func (e *Engine) MutuallyAgreeDraw(player *Player) error {
	g := player.CurrentGame()
	if err := verify(g != nil, ErrNotInAGame); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := verify(g.state == GameStatePlaying, ErrInvalidGameState, GameStatePlaying); err != nil {
		return err
	}

	teamID, ok := g.playerTeamID(player.ID)
	if !ok || teamID == ObserversTeamID {
		return nil
	}

	log.Printf("[ENGINE] Adding player %s to mutually accepted draw list in game %s", player, g)
	g.mutualDrawAcceptors[player.ID] = struct{}{}

	for id := range g.connectedPlayers {
		team, ok := g.playerTeamID(id)
		if !ok || team == ObserversTeamID {
			continue
		}
		if _, accepted := g.mutualDrawAcceptors[id]; !accepted {
			return nil
		}
	}

	log.Printf("[ENGINE] All in-game players agreed on mutual draw in game %s", g)
	g.mutuallyAgreedDraw = true
	return nil
}

// ReportGameEnded records the reporter; once every connected player has
// reported, end processing runs. Repeated reports are no-ops.
func (e *Engine) ReportGameEnded(reporter *Player) error {
	e.endMu.Lock()
	defer e.endMu.Unlock()

	g := reporter.CurrentGame()
	if err := verify(g != nil, ErrNotInAGame); err != nil {
		return err
	}

	g.mu.Lock()
	g.gameEndedReporters[reporter.ID] = struct{}{}
	missing := 0
	for id := range g.connectedPlayers {
		if _, reported := g.gameEndedReporters[id]; !reported {
			missing++
		}
	}
	g.mu.Unlock()

	if missing > 0 {
		return nil
	}
	return e.onGameEnded(g)
}

// UpdateUnfinishedGamesValidity stamps games a previous process left behind
// in a non-terminal state, typically on startup after a crash or shutdown.
func (e *Engine) UpdateUnfinishedGamesValidity(validity Validity) error {
	log.Printf("[ENGINE] Setting validity of unfinished games to %s", validity)
	return e.gameRepository.UpdateUnfinishedGamesValidity(validity)
}

// OnPlayerOnline sends the current game list to a freshly connected player
func (e *Engine) OnPlayerOnline(player *Player) {
	e.clientService.SendGameList(e.ActiveGameResponses(), player)
}

// ActiveGameResponses snapshots all registered games in broadcast form
func (e *Engine) ActiveGameResponses() []*GameResponse {
	games := e.registry.Snapshot()
	responses := make([]*GameResponse, 0, len(games))
	for _, g := range games {
		g.mu.RLock()
		responses = append(responses, e.toResponse(g))
		g.mu.RUnlock()
	}
	return responses
}

// onLobbyEntered handles a player's client reaching the game lobby. The host
// opens a listening port; a joiner is wired to the host and all peers.
func (e *Engine) onLobbyEntered(player *Player, g *Game) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, connected := g.connectedPlayers[player.ID]; connected {
		log.Printf("[ENGINE] Player %s entered the lobby but is already connected to game %s", player, g)
		return
	}

	if g.host == player {
		e.changeGameStateLocked(g, GameStateOpen)
		e.clientService.HostGame(g, player)
		e.markDirty(g, 0, 0)
	} else {
		e.clientService.ConnectToHost(player, g)
		e.clientService.ConnectToPeer(g.host, player, true)
		for _, other := range g.connectedPlayers {
			if other == g.host || other == player {
				continue
			}
			e.clientService.ConnectToPeer(player, other, true)
			e.clientService.ConnectToPeer(other, player, false)
		}
	}

	e.addPlayerLocked(g, player)
}

// addPlayerLocked attaches the player to the game, snapshots its rating from
// the bucket matching the featured mod, and completes a pending join future.
func (e *Engine) addPlayerLocked(g *Game, player *Player) {
	g.connectedPlayers[player.ID] = player

	if e.modService.IsLadder1v1(g.featuredMod) {
		if player.Ladder1v1Rating() == nil {
			e.ratingService.InitLadder1v1Rating(player)
		}
		player.setRatingWithinCurrentGame(player.Ladder1v1Rating())
	} else {
		if player.GlobalRating() == nil {
			e.ratingService.InitGlobalRating(player)
		}
		player.setRatingWithinCurrentGame(player.GlobalRating())
	}

	player.setCurrentGame(g)
	if future := player.GameFuture(); future != nil {
		future.Complete(g)
	}

	e.markDirty(g, e.broadcastMinDelay, e.broadcastMaxDelay)
}

// onGameLaunching handles the host's report that the game process launched.
// Non-host reports are chatter and ignored.
func (e *Engine) onGameLaunching(reporter *Player, g *Game) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.host != reporter {
		log.Printf("[ENGINE] Player %s reported launch for game %s but host is %s", reporter, g, g.host)
		return nil
	}

	e.changeGameStateLocked(g, GameStatePlaying)
	startTime := e.now()
	g.startTime = &startTime
	e.createGamePlayerStatsLocked(g)

	// The id is already assigned by the server, so this is an insert rather
	// than a repository save.
	if err := e.gameRepository.Persist(g.snapshotLocked()); err != nil {
		return err
	}
	log.Printf("[ENGINE] Game launched: %s", g)
	e.markDirty(g, 0, 0)
	return nil
}

// createGamePlayerStatsLocked builds the per-player stats records from the
// player options and the rating snapshots taken on join.
func (e *Engine) createGamePlayerStatsLocked(g *Game) {
	ladder := e.modService.IsLadder1v1(g.featuredMod)
	for id, player := range g.connectedPlayers {
		stats := &GamePlayerStats{Player: player}

		options, ok := g.playerOptions[id]
		if !ok {
			log.Printf("[ENGINE] No player options available for player %s in game %s", player, g)
		} else {
			stats.Team = statOption(g, player, options, OptionTeam)
			stats.Faction = statOption(g, player, options, OptionFaction)
			stats.Color = statOption(g, player, options, OptionColor)
			stats.StartSpot = statOption(g, player, options, OptionStartSpot)
		}

		var rating *Rating
		if ladder {
			rating = player.Ladder1v1Rating()
		} else {
			rating = player.GlobalRating()
		}
		if rating == nil {
			log.Printf("[ENGINE] Expected a rating for player %s in game %s", player, g)
		} else {
			stats.Mean = rating.Mean
			stats.Deviation = rating.Deviation
		}

		g.playerStats[id] = stats
	}
}

// statOption reads an int player option for the stats record, logging when
// the host never reported it
func statOption(g *Game, player *Player, options map[string]interface{}, key string) int {
	value, ok := optionInt(options[key])
	if !ok {
		log.Printf("[ENGINE] Missing option %s for player %s in game %s", key, player, g)
		return 0
	}
	return value
}

// onGameEnded runs end processing exactly once. Callers must hold endMu but
// no game lock; the game lock is taken in phases so the rating queue can scan
// other games in between.
func (e *Engine) onGameEnded(g *Game) error {
	g.mu.Lock()
	if g.state == GameStateEnded {
		g.mu.Unlock()
		return nil
	}

	log.Printf("[ENGINE] Game ended: %s", g)
	previousState := g.state
	endTime := e.now()
	g.endTime = &endTime
	e.changeGameStateLocked(g, GameStateEnded)

	// Games can also end before they even started, in which case there is
	// nothing to adjudicate or rate.
	if previousState != GameStatePlaying {
		if len(g.connectedPlayers) == 0 {
			e.closeGameLocked(g)
		}
		g.mu.Unlock()
		return nil
	}

	e.updateGameValidityLocked(g)

	// Scores must be settled before the rating queue drains, since rating
	// outcomes are derived from them.
	armyResults := mostReportedArmyResults(g)
	playerResults := mapArmyResultsToPlayers(g, armyResults)
	resultMessage := buildGameResult(g, playerResults)
	e.settlePlayerScoresLocked(g, armyResults)
	g.mu.Unlock()

	e.enqueueForRatingUpdate(g)
	e.processGamesAwaitingRatingUpdate()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.mapVersion != nil {
		if err := e.mapService.IncrementTimesPlayed(g.mapVersion.MapID); err != nil {
			log.Printf("[ENGINE] Failed to increment times played for map %d: %v", g.mapVersion.MapID, err)
		}
	}

	e.clientService.BroadcastGameResult(resultMessage)
	e.updateDivisionScoresIfValidLocked(g)

	if err := e.gameRepository.Save(g.snapshotLocked()); err != nil {
		return err
	}

	for _, stats := range g.playerStats {
		// A stats processing failure must never block game closure
		if err := e.armyStatisticsService.Process(stats.Player, g.ID, g.armyStatistics); err != nil {
			log.Printf("[ENGINE] Army statistics could not be updated for player %s in game %s: %v", stats.Player, g, err)
		}
	}

	if len(g.connectedPlayers) == 0 {
		e.closeGameLocked(g)
	}
	return nil
}

// settlePlayerScoresLocked copies the settled army results into the player
// stats records
func (e *Engine) settlePlayerScoresLocked(g *Game, armyResults map[int]ArmyResult) {
	scoreTime := e.now()
	for playerID, stats := range g.playerStats {
		stats.ScoreTime = &scoreTime
		options, ok := g.playerOptions[playerID]
		if !ok {
			continue
		}
		armyID, ok := optionInt(options[OptionArmy])
		if !ok {
			continue
		}
		if result, ok := armyResults[armyID]; ok {
			score := result.Score
			stats.Score = &score
		}
	}
}

// updateGameValidityLocked runs the validity voters. Adjudication happens
// exactly once, and only for games that actually ran.
func (e *Engine) updateGameValidityLocked(g *Game) {
	if g.validity != ValidityValid {
		log.Printf("[ENGINE] Validity of game %s has already been set to %s", g, g.validity)
		return
	}
	if g.state != GameStatePlaying && g.state != GameStateEnded {
		log.Printf("[ENGINE] Validity of game %s can't be adjudicated in state %s", g, g.state)
		return
	}

	for _, voter := range e.validityVoters {
		if verdict := voter(g); verdict != ValidityValid {
			g.validity = verdict
			log.Printf("[ENGINE] Game %s adjudicated as %s", g, verdict)
			return
		}
	}
}

// enqueueForRatingUpdate adds the game to the rating-pending queue. Callers
// must hold endMu.
func (e *Engine) enqueueForRatingUpdate(g *Game) {
	e.awaitingRatingUpdate = append(e.awaitingRatingUpdate, g)
}

// processGamesAwaitingRatingUpdate drains the rating-pending queue in
// start-time order. A game stays queued while an older, still-playing game
// shares one of its players; it is picked up again when that game ends.
// Callers must hold endMu but no game lock.
func (e *Engine) processGamesAwaitingRatingUpdate() {
	sort.SliceStable(e.awaitingRatingUpdate, func(i, j int) bool {
		a, b := e.awaitingRatingUpdate[i].StartTime(), e.awaitingRatingUpdate[j].StartTime()
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})

	remaining := e.awaitingRatingUpdate[:0]
	for _, g := range e.awaitingRatingUpdate {
		if g.StartTime() == nil || e.hasRatingDependentGame(g) {
			remaining = append(remaining, g)
			continue
		}
		e.updateRatingsIfValid(g)
	}
	e.awaitingRatingUpdate = remaining
}

// hasRatingDependentGame reports whether an older game is still playing that
// shares at least one player with g. Rating g before that game ends would let
// the older game's update clobber this one.
func (e *Engine) hasRatingDependentGame(g *Game) bool {
	startTime := g.StartTime()
	for _, active := range e.registry.Snapshot() {
		if active == g || active.State() != GameStatePlaying {
			continue
		}
		activeStart := active.StartTime()
		if activeStart == nil || !activeStart.Before(*startTime) {
			continue
		}
		if active.sharesPlayerWith(g) {
			return true
		}
	}
	return false
}

// updateRatingsIfValid applies the rating update for a finished game unless
// it was adjudicated non-rankable and rating was not enforced. The game is
// ENDED and quiescent at this point.
func (e *Engine) updateRatingsIfValid(g *Game) {
	g.mu.RLock()
	validity := g.validity
	enforced := g.ratingEnforced
	featuredMod := g.featuredMod
	stats := make([]*GamePlayerStats, 0, len(g.playerStats))
	for _, s := range g.playerStats {
		stats = append(stats, s)
	}
	g.mu.RUnlock()

	if validity != ValidityValid && !enforced {
		return
	}

	ratingType := RatingTypeGlobal
	if e.modService.IsLadder1v1(featuredMod) {
		ratingType = RatingTypeLadder1v1
	}
	if err := e.ratingService.UpdateRatings(stats, NoTeamID, ratingType); err != nil {
		log.Printf("[RATING] Failed to update %s ratings for game %s: %v", ratingType, g, err)
	}
}

// updateDivisionScoresIfValidLocked posts the result of a valid ladder1v1
// game to the division bookkeeping
func (e *Engine) updateDivisionScoresIfValidLocked(g *Game) {
	if g.validity != ValidityValid && !g.ratingEnforced {
		return
	}
	if !e.modService.IsLadder1v1(g.featuredMod) {
		return
	}

	players := g.connectedPlayersSlice()
	if len(players) != 2 {
		log.Printf("[ENGINE] Skipping division update for game %s: expected 2 connected players, got %d", g, len(players))
		return
	}

	var winner *Player
	if !g.mutuallyAgreedDraw {
		bestScore := 0
		for _, stats := range g.playerStats {
			if stats.Score != nil && (winner == nil || *stats.Score > bestScore) {
				winner = stats.Player
				bestScore = *stats.Score
			}
		}
	}

	log.Printf("[ENGINE] Posting division result for game %s, winner: %v", g, winner)
	if err := e.divisionService.PostResult(players[0], players[1], winner); err != nil {
		log.Printf("[ENGINE] Failed to post division result for game %s: %v", g, err)
	}
}

// closeGameLocked transitions the game to CLOSED and removes it from the
// registry. Idempotent; once closed a game never mutates again.
func (e *Engine) closeGameLocked(g *Game) {
	if g.state == GameStateClosed {
		return
	}
	e.changeGameStateLocked(g, GameStateClosed)
	e.markDirty(g, 0, 0)
	e.registry.Remove(g)
}

// changeGameStateLocked applies a game state transition. Illegal transitions
// are logged and applied anyway: a programming bug must never leave a game
// stuck and unclosable.
func (e *Engine) changeGameStateLocked(g *Game, newState GameState) {
	if !CanTransitionGame(g.state, newState) {
		log.Printf("[ENGINE] Illegal game state transition for game %s: %s -> %s", g, g.state, newState)
	}
	g.state = newState
}

// markDirty schedules a debounced snapshot broadcast for the game. Callers
// must hold the game lock; zero delays force an immediate flush.
func (e *Engine) markDirty(g *Game, minDelay, maxDelay time.Duration) {
	response := e.toResponse(g)
	e.clientService.BroadcastDelayed(response, minDelay, maxDelay, gameResponseKey, lastWriteWins)
}

func gameResponseKey(response *GameResponse) string {
	return "game-" + strconv.Itoa(response.ID)
}

func lastWriteWins(_, newResponse *GameResponse) *GameResponse {
	return newResponse
}

// toResponse builds the broadcast snapshot of the game. Callers must hold the
// game lock (read or write).
func (e *Engine) toResponse(g *Game) *GameResponse {
	simMods := make([]SimModResponse, 0, len(g.simMods))
	for _, mod := range g.simMods {
		simMods = append(simMods, SimModResponse{UID: mod.UID, DisplayName: mod.DisplayName})
	}

	players := make([]GamePlayerResponse, 0, len(g.connectedPlayers))
	for id, player := range g.connectedPlayers {
		team := NoTeamID
		if t, ok := g.playerTeamID(id); ok {
			team = t
		}
		players = append(players, GamePlayerResponse{ID: id, Login: player.Login, Team: team})
	}

	hostLogin := ""
	if g.host != nil {
		hostLogin = g.host.Login
	}
	featuredModName := ""
	var fileVersions []FeaturedModFileVersion
	modVersion := 0
	if g.featuredMod != nil {
		featuredModName = g.featuredMod.TechnicalName
		for _, file := range e.modService.GetLatestFileVersions(g.featuredMod) {
			fileVersions = append(fileVersions, FeaturedModFileVersion{FileID: file.FileID, Version: file.Version})
			if file.Version > modVersion {
				modVersion = file.Version
			}
		}
	}

	return &GameResponse{
		ID:                      g.ID,
		Title:                   g.title,
		Visibility:              g.visibility,
		PasswordProtected:       g.password != "",
		State:                   g.state,
		FeaturedModName:         featuredModName,
		SimMods:                 simMods,
		MapFolderName:           g.mapFolderName,
		HostLogin:               hostLogin,
		Players:                 players,
		MaxPlayers:              g.maxPlayers,
		StartTime:               g.startTime,
		MinRating:               g.minRating,
		MaxRating:               g.maxRating,
		FeaturedModVersion:      modVersion,
		FeaturedModFileVersions: fileVersions,
	}
}

// connectedPlayersSlice returns the connected players as a slice. Callers
// must hold the game lock.
func (g *Game) connectedPlayersSlice() []*Player {
	players := make([]*Player, 0, len(g.connectedPlayers))
	for _, player := range g.connectedPlayers {
		players = append(players, player)
	}
	return players
}

