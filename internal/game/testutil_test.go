package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/faforge/coordinator/internal/config"
)

type peerConnection struct {
	player  *Player
	other   *Player
	offerer bool
}

type disconnectCommand struct {
	playerID    int
	receiverIDs []int
}

// fakeClientService records every command the engine emits. BroadcastDelayed
// applies the aggregator immediately so tests can inspect the coalesced
// snapshot per key.
type fakeClientService struct {
	mu sync.Mutex

	startGameProcess []*Player
	hostGame         []*Player
	connectToHost    []*Player
	peerConnections  []peerConnection
	disconnects      []disconnectCommand
	gameLists        map[int][]*GameResponse
	gameResults      []*GameResultMessage
	pending          map[string]*GameResponse
}

func newFakeClientService() *fakeClientService {
	return &fakeClientService{
		gameLists: make(map[int][]*GameResponse),
		pending:   make(map[string]*GameResponse),
	}
}

func (f *fakeClientService) StartGameProcess(g *Game, player *Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startGameProcess = append(f.startGameProcess, player)
}

func (f *fakeClientService) HostGame(g *Game, host *Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hostGame = append(f.hostGame, host)
}

func (f *fakeClientService) ConnectToHost(player *Player, g *Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectToHost = append(f.connectToHost, player)
}

func (f *fakeClientService) ConnectToPeer(player, other *Player, offerer bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peerConnections = append(f.peerConnections, peerConnection{player: player, other: other, offerer: offerer})
}

func (f *fakeClientService) DisconnectPlayerFromGame(playerID int, receivers []*Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(receivers))
	for _, receiver := range receivers {
		ids = append(ids, receiver.ID)
	}
	f.disconnects = append(f.disconnects, disconnectCommand{playerID: playerID, receiverIDs: ids})
}

func (f *fakeClientService) SendGameList(games []*GameResponse, recipient *Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameLists[recipient.ID] = games
}

func (f *fakeClientService) BroadcastGameResult(msg *GameResultMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameResults = append(f.gameResults, msg)
}

func (f *fakeClientService) BroadcastDelayed(response *GameResponse, minDelay, maxDelay time.Duration, keyFn func(*GameResponse) string, aggregate ResponseAggregator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := keyFn(response)
	if old, ok := f.pending[key]; ok {
		response = aggregate(old, response)
	}
	f.pending[key] = response
}

func (f *fakeClientService) lastResponse(key string) *GameResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[key]
}

type fakeGameRepository struct {
	mu sync.Mutex

	maxID           int
	persisted       []*GameSnapshot
	saved           []*GameSnapshot
	stampedValidity []Validity
	persistErr      error
	saveErr         error
}

func (f *fakeGameRepository) Persist(snapshot *GameSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = append(f.persisted, snapshot)
	return nil
}

func (f *fakeGameRepository) Save(snapshot *GameSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, snapshot)
	return nil
}

func (f *fakeGameRepository) FindMaxID() (int, error) {
	return f.maxID, nil
}

func (f *fakeGameRepository) UpdateUnfinishedGamesValidity(validity Validity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stampedValidity = append(f.stampedValidity, validity)
	return nil
}

type fakeMapService struct {
	mu sync.Mutex

	maps        map[string]*MapVersion
	timesPlayed map[int]int
}

func (f *fakeMapService) FindMap(folderName string) (*MapVersion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.maps[folderName]
	return m, ok
}

func (f *fakeMapService) IncrementTimesPlayed(mapID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timesPlayed[mapID]++
	return nil
}

type fakeModService struct {
	mods         map[string]*FeaturedMod
	unrankedUIDs map[string]struct{}
	modVersions  map[string]*ModVersion
	fileVersions map[string][]FeaturedModFile
}

func (f *fakeModService) GetFeaturedMod(technicalName string) (*FeaturedMod, bool) {
	mod, ok := f.mods[technicalName]
	return mod, ok
}

func (f *fakeModService) IsLadder1v1(mod *FeaturedMod) bool {
	return mod != nil && mod.Ladder1v1
}

func (f *fakeModService) IsCoop(mod *FeaturedMod) bool {
	return mod != nil && mod.Coop
}

func (f *fakeModService) IsModRanked(uid string) bool {
	_, unranked := f.unrankedUIDs[uid]
	return !unranked
}

func (f *fakeModService) FindModVersionsByUIDs(uids []string) []*ModVersion {
	var versions []*ModVersion
	for _, uid := range uids {
		if version, ok := f.modVersions[uid]; ok {
			versions = append(versions, version)
		}
	}
	return versions
}

func (f *fakeModService) GetLatestFileVersions(mod *FeaturedMod) []FeaturedModFile {
	if mod == nil {
		return nil
	}
	return f.fileVersions[mod.TechnicalName]
}

type ratingUpdate struct {
	stats      []*GamePlayerStats
	ratingType RatingType
}

type fakeRatingService struct {
	mu      sync.Mutex
	updates []ratingUpdate
}

func (f *fakeRatingService) InitGlobalRating(player *Player) {
	player.SetGlobalRating(&Rating{Mean: 1500, Deviation: 500})
}

func (f *fakeRatingService) InitLadder1v1Rating(player *Player) {
	player.SetLadder1v1Rating(&Rating{Mean: 1500, Deviation: 500})
}

func (f *fakeRatingService) UpdateRatings(stats []*GamePlayerStats, noTeamID int, ratingType RatingType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, ratingUpdate{stats: stats, ratingType: ratingType})
	return nil
}

type divisionResult struct {
	playerOne *Player
	playerTwo *Player
	winner    *Player
}

type fakeDivisionService struct {
	mu      sync.Mutex
	results []divisionResult
}

func (f *fakeDivisionService) PostResult(playerOne, playerTwo, winner *Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, divisionResult{playerOne: playerOne, playerTwo: playerTwo, winner: winner})
	return nil
}

type fakeArmyStatisticsService struct {
	mu        sync.Mutex
	processed []*Player
	err       error
}

func (f *fakeArmyStatisticsService) Process(player *Player, gameID int, statistics []ArmyStatistics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, player)
	return f.err
}

type fakePlayerService struct {
	mu      sync.Mutex
	players map[int]*Player
}

func (f *fakePlayerService) GetOnlinePlayer(id int) (*Player, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	player, ok := f.players[id]
	return player, ok
}

func (f *fakePlayerService) add(player *Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[player.ID] = player
}

var testConfig = config.Config{RankedMinTimeMultiplicator: 60}

// harness wires the engine to fakes and a controllable clock
type harness struct {
	t *testing.T

	engine    *Engine
	client    *fakeClientService
	repo      *fakeGameRepository
	maps      *fakeMapService
	mods      *fakeModService
	ratings   *fakeRatingService
	divisions *fakeDivisionService
	stats     *fakeArmyStatisticsService
	players   *fakePlayerService

	clockMu sync.Mutex
	clock   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		client: newFakeClientService(),
		repo:   &fakeGameRepository{},
		maps: &fakeMapService{
			maps: map[string]*MapVersion{
				"scmp_001": {ID: 1, MapID: 10, FolderName: "scmp_001", Ranked: true},
				"scmp_002": {ID: 2, MapID: 20, FolderName: "scmp_002", Ranked: false},
			},
			timesPlayed: make(map[int]int),
		},
		mods: &fakeModService{
			mods: map[string]*FeaturedMod{
				"faf":       {ID: 1, TechnicalName: "faf", DisplayName: "FAF", Ranked: true},
				"ladder1v1": {ID: 2, TechnicalName: "ladder1v1", DisplayName: "Ladder", Ranked: true, Ladder1v1: true},
				"coop":      {ID: 3, TechnicalName: "coop", DisplayName: "Coop", Ranked: true, Coop: true},
				"nomads":    {ID: 4, TechnicalName: "nomads", DisplayName: "Nomads", Ranked: false},
			},
			unrankedUIDs: map[string]struct{}{"uid-unranked": {}},
			modVersions: map[string]*ModVersion{
				"uid-ok":       {UID: "uid-ok", DisplayName: "OK Mod", Ranked: true},
				"uid-unranked": {UID: "uid-unranked", DisplayName: "Cheat Mod", Ranked: false},
			},
			fileVersions: map[string][]FeaturedModFile{
				"faf": {{FileID: 1, Version: 3659}, {FileID: 2, Version: 3660}},
			},
		},
		ratings:   &fakeRatingService{},
		divisions: &fakeDivisionService{},
		stats:     &fakeArmyStatisticsService{},
		players:   &fakePlayerService{players: make(map[int]*Player)},
		clock:     time.Date(2020, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	engine, err := NewEngine(&testConfig, h.repo, h.client, h.maps, h.mods, h.players, h.ratings, h.divisions, h.stats)
	require.NoError(t, err)
	engine.now = h.now
	h.engine = engine
	return h
}

func (h *harness) now() time.Time {
	h.clockMu.Lock()
	defer h.clockMu.Unlock()
	return h.clock
}

func (h *harness) advance(d time.Duration) {
	h.clockMu.Lock()
	defer h.clockMu.Unlock()
	h.clock = h.clock.Add(d)
}

func (h *harness) newPlayer(id int, login string) *Player {
	player := NewPlayer(id, login)
	h.players.add(player)
	return player
}

// await resolves a game future with a test deadline
func (h *harness) await(future *GameFuture) *Game {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g, err := future.Get(ctx)
	require.NoError(h.t, err)
	return g
}

// hostGame creates a game with the given featured mod and brings the host
// into the lobby, leaving the game OPEN
func (h *harness) hostGame(host *Player, modName string) *Game {
	h.t.Helper()
	future, err := h.engine.CreateGame("test game", modName, "scmp_001", "", GameVisibilityPublic, nil, nil, host, LobbyModeDefault, nil)
	require.NoError(h.t, err)
	require.NoError(h.t, h.engine.UpdatePlayerGameState(PlayerGameStateLobby, host))
	return h.await(future)
}

// joinGame joins the player and brings it into the lobby
func (h *harness) joinGame(g *Game, player *Player) {
	h.t.Helper()
	future, err := h.engine.JoinGame(g.ID, "", player)
	require.NoError(h.t, err)
	require.NoError(h.t, h.engine.UpdatePlayerGameState(PlayerGameStateLobby, player))
	h.await(future)
}

// setRankedOptions reports the game options a valid ranked game needs
func (h *harness) setRankedOptions(host *Player) {
	h.t.Helper()
	for key, value := range map[string]interface{}{
		OptionVictoryCondition: "demoralization",
		OptionFogOfWar:         "explored",
		OptionCheatsEnabled:    "false",
		OptionPrebuiltUnits:    "Off",
		OptionNoRush:           "Off",
		OptionTeamLock:         "locked",
	} {
		require.NoError(h.t, h.engine.UpdateGameOption(host, key, value))
	}
}

// setPlayerSlot reports the usual per-player options for one player
func (h *harness) setPlayerSlot(host *Player, playerID, team, army, startSpot int) {
	h.t.Helper()
	for key, value := range map[string]interface{}{
		OptionTeam:      team,
		OptionArmy:      army,
		OptionStartSpot: startSpot,
		OptionFaction:   1,
		OptionColor:     playerID,
	} {
		require.NoError(h.t, h.engine.UpdatePlayerOption(host, playerID, key, value))
	}
}

// launchGame reports LAUNCHING for all given players, host first
func (h *harness) launchGame(host *Player, others ...*Player) {
	h.t.Helper()
	require.NoError(h.t, h.engine.UpdatePlayerGameState(PlayerGameStateLaunching, host))
	for _, player := range others {
		require.NoError(h.t, h.engine.UpdatePlayerGameState(PlayerGameStateLaunching, player))
	}
}

// requestErrorCode extracts the code of a RequestError
func requestErrorCode(t *testing.T, err error) ErrorCode {
	t.Helper()
	var requestErr *RequestError
	require.True(t, errors.As(err, &requestErr), "expected a RequestError, got %v", err)
	return requestErr.Code
}
