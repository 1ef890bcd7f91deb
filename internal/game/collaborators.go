package game

import "time"

// GameResponse is the snapshot of a game broadcast to connected viewers. It
// never carries the password itself, only whether one is set.
type GameResponse struct {
	ID                      int                      `json:"id"`
	Title                   string                   `json:"title"`
	Visibility              GameVisibility           `json:"visibility"`
	PasswordProtected       bool                     `json:"password_protected"`
	State                   GameState                `json:"state"`
	FeaturedModName         string                   `json:"featured_mod"`
	SimMods                 []SimModResponse         `json:"sim_mods"`
	MapFolderName           string                   `json:"map_folder_name"`
	HostLogin               string                   `json:"host"`
	Players                 []GamePlayerResponse     `json:"players"`
	MaxPlayers              int                      `json:"max_players"`
	StartTime               *time.Time               `json:"start_time,omitempty"`
	MinRating               *int                     `json:"min_rating,omitempty"`
	MaxRating               *int                     `json:"max_rating,omitempty"`
	FeaturedModVersion      int                      `json:"featured_mod_version"`
	FeaturedModFileVersions []FeaturedModFileVersion `json:"featured_mod_file_versions"`
}

// SimModResponse is the broadcast form of an activated sim mod
type SimModResponse struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
}

// GamePlayerResponse is the broadcast form of a connected player
type GamePlayerResponse struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
	Team  int    `json:"team"`
}

// FeaturedModFileVersion is the broadcast form of one featured-mod file
type FeaturedModFileVersion struct {
	FileID  int `json:"file_id"`
	Version int `json:"version"`
}

// GameResultMessage is broadcast once per finished game
type GameResultMessage struct {
	GameID        int            `json:"game_id"`
	Draw          bool           `json:"draw"`
	PlayerResults []PlayerResult `json:"player_results"`
}

// PlayerResult is one player's share of a game result
type PlayerResult struct {
	PlayerID int  `json:"player_id"`
	Winner   bool `json:"winner"`
}

// ResponseAggregator merges two pending snapshots for the same broadcast key
type ResponseAggregator func(oldResponse, newResponse *GameResponse) *GameResponse

// ClientService is the channel to connected game clients. The engine emits
// commands; delivery and transport failures are the service's concern.
type ClientService interface {
	StartGameProcess(g *Game, player *Player)
	HostGame(g *Game, host *Player)
	ConnectToHost(player *Player, g *Game)
	ConnectToPeer(player, other *Player, offerer bool)
	DisconnectPlayerFromGame(playerID int, receivers []*Player)
	SendGameList(games []*GameResponse, recipient *Player)
	BroadcastGameResult(msg *GameResultMessage)
	BroadcastDelayed(response *GameResponse, minDelay, maxDelay time.Duration, keyFn func(*GameResponse) string, aggregate ResponseAggregator)
}

// GameSnapshot is the persistence view of a game, captured under the game
// lock. Repositories receive it instead of the live game so they never need
// to take game locks of their own.
type GameSnapshot struct {
	ID                 int
	Title              string
	HostID             int
	FeaturedModID      int
	MapVersionID       *int
	VictoryCondition   VictoryCondition
	Validity           Validity
	StartTime          *time.Time
	EndTime            *time.Time
	MutuallyAgreedDraw bool
	PlayerStats        []*GamePlayerStats
}

// GameRepository persists launching and finished games
type GameRepository interface {
	// Persist inserts a game whose id is already assigned by the server
	Persist(snapshot *GameSnapshot) error
	// Save updates a previously persisted game
	Save(snapshot *GameSnapshot) error
	// FindMaxID returns the highest persisted game id, or 0 if none
	FindMaxID() (int, error)
	// UpdateUnfinishedGamesValidity stamps the validity of games a previous
	// process left unfinished
	UpdateUnfinishedGamesValidity(validity Validity) error
}

// MapService resolves maps and tracks play counts
type MapService interface {
	FindMap(folderName string) (*MapVersion, bool)
	IncrementTimesPlayed(mapID int) error
}

// ModService resolves featured mods and sim mod metadata
type ModService interface {
	GetFeaturedMod(technicalName string) (*FeaturedMod, bool)
	IsLadder1v1(mod *FeaturedMod) bool
	IsCoop(mod *FeaturedMod) bool
	IsModRanked(uid string) bool
	FindModVersionsByUIDs(uids []string) []*ModVersion
	GetLatestFileVersions(mod *FeaturedMod) []FeaturedModFile
}

// RatingService initializes and updates player ratings
type RatingService interface {
	InitGlobalRating(player *Player)
	InitLadder1v1Rating(player *Player)
	UpdateRatings(stats []*GamePlayerStats, noTeamID int, ratingType RatingType) error
}

// DivisionService posts ladder1v1 results to the division/league bookkeeping
type DivisionService interface {
	// PostResult records the result of playerOne vs playerTwo; winner is nil
	// for a draw
	PostResult(playerOne, playerTwo, winner *Player) error
}

// ArmyStatisticsService post-processes per-army statistics after a game
type ArmyStatisticsService interface {
	Process(player *Player, gameID int, statistics []ArmyStatistics) error
}

// PlayerService is the directory of online players
type PlayerService interface {
	GetOnlinePlayer(id int) (*Player, bool)
}
