package models

import (
	"database/sql"
	"time"
)

// Player represents a registered account
type Player struct {
	ID           int          `db:"id" json:"id"`
	Login        string       `db:"login" json:"login"`
	PasswordHash string       `db:"password_hash" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	LastActive   sql.NullTime `db:"last_active" json:"last_active,omitempty"`
}

// GlobalRating is a player's rating across all team games
type GlobalRating struct {
	PlayerID  int     `db:"player_id" json:"player_id"`
	Mean      float64 `db:"mean" json:"mean"`
	Deviation float64 `db:"deviation" json:"deviation"`
	NumGames  int     `db:"num_games" json:"num_games"`
}

// Ladder1v1Rating is a player's rating on the 1v1 ladder
type Ladder1v1Rating struct {
	PlayerID  int     `db:"player_id" json:"player_id"`
	Mean      float64 `db:"mean" json:"mean"`
	Deviation float64 `db:"deviation" json:"deviation"`
	NumGames  int     `db:"num_games" json:"num_games"`
	WonGames  int     `db:"won_games" json:"won_games"`
}

// FeaturedMod is a base ruleset games can be hosted with
type FeaturedMod struct {
	ID            int    `db:"id" json:"id"`
	TechnicalName string `db:"technical_name" json:"technical_name"`
	DisplayName   string `db:"display_name" json:"display_name"`
	Ranked        bool   `db:"ranked" json:"ranked"`
	Coop          bool   `db:"coop" json:"coop"`
	Ladder1v1     bool   `db:"ladder1v1" json:"ladder1v1"`
}

// FeaturedModFile is one deployed file version of a featured mod
type FeaturedModFile struct {
	ID      int `db:"id" json:"id"`
	ModID   int `db:"mod_id" json:"mod_id"`
	FileID  int `db:"file_id" json:"file_id"`
	Version int `db:"version" json:"version"`
}

// ModVersion is one version of a sim mod
type ModVersion struct {
	ID          int    `db:"id" json:"id"`
	UID         string `db:"uid" json:"uid"`
	DisplayName string `db:"display_name" json:"display_name"`
	Ranked      bool   `db:"ranked" json:"ranked"`
}

// MapVersion is a specific version of a map, keyed by its folder name on disk
type MapVersion struct {
	ID          int    `db:"id" json:"id"`
	MapID       int    `db:"map_id" json:"map_id"`
	FolderName  string `db:"folder_name" json:"folder_name"`
	Ranked      bool   `db:"ranked" json:"ranked"`
	TimesPlayed int    `db:"times_played" json:"times_played"`
}

// Game is the persisted record of a launched game
type Game struct {
	ID                 int            `db:"id" json:"id"`
	Title              string         `db:"title" json:"title"`
	HostID             int            `db:"host_id" json:"host_id"`
	FeaturedModID      int            `db:"featured_mod_id" json:"featured_mod_id"`
	MapVersionID       sql.NullInt64  `db:"map_version_id" json:"map_version_id,omitempty"`
	VictoryCondition   string         `db:"victory_condition" json:"victory_condition"`
	Validity           string         `db:"validity" json:"validity"`
	StartTime          time.Time      `db:"start_time" json:"start_time"`
	EndTime            sql.NullTime   `db:"end_time" json:"end_time,omitempty"`
	MutuallyAgreedDraw bool           `db:"mutually_agreed_draw" json:"mutually_agreed_draw"`
	ReplayURL          sql.NullString `db:"replay_url" json:"replay_url,omitempty"`
}

// GamePlayerStats is the persisted per-player record of a launched game
type GamePlayerStats struct {
	ID        int           `db:"id" json:"id"`
	GameID    int           `db:"game_id" json:"game_id"`
	PlayerID  int           `db:"player_id" json:"player_id"`
	Team      int           `db:"team" json:"team"`
	Faction   int           `db:"faction" json:"faction"`
	Color     int           `db:"color" json:"color"`
	StartSpot int           `db:"start_spot" json:"start_spot"`
	Mean      float64       `db:"mean" json:"mean"`
	Deviation float64       `db:"deviation" json:"deviation"`
	Score     sql.NullInt64 `db:"score" json:"score,omitempty"`
	ScoreTime sql.NullTime  `db:"score_time" json:"score_time,omitempty"`
}

// Division is one rung of the ladder league
type Division struct {
	ID        int     `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	League    int     `db:"league" json:"league"`
	Threshold float64 `db:"threshold" json:"threshold"`
}

// PlayerDivisionScore tracks a player's progress within the ladder league
type PlayerDivisionScore struct {
	PlayerID   int     `db:"player_id" json:"player_id"`
	DivisionID int     `db:"division_id" json:"division_id"`
	Score      float64 `db:"score" json:"score"`
	Games      int     `db:"games" json:"games"`
}

// GameArmyStats is the raw per-game army statistics blob reported by clients
type GameArmyStats struct {
	ID        int       `db:"id" json:"id"`
	GameID    int       `db:"game_id" json:"game_id"`
	Stats     []byte    `db:"stats" json:"stats"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
