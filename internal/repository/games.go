package repository

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/game"
)

// GameRepository persists games and their per-player stats to Postgres
type GameRepository struct {
	db *sqlx.DB
}

func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

// Persist inserts the game and its player stats. The game id is assigned by
// the server, not the database.
func (r *GameRepository) Persist(snapshot *game.GameSnapshot) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO games (id, title, host_id, featured_mod_id, map_version_id, victory_condition, validity, start_time, mutually_agreed_draw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		snapshot.ID, snapshot.Title, snapshot.HostID, snapshot.FeaturedModID, nullableInt(snapshot.MapVersionID),
		string(snapshot.VictoryCondition), string(snapshot.Validity), snapshot.StartTime, snapshot.MutuallyAgreedDraw)
	if err != nil {
		return fmt.Errorf("failed to insert game %d: %w", snapshot.ID, err)
	}

	for _, stats := range snapshot.PlayerStats {
		_, err = tx.Exec(`INSERT INTO game_player_stats (game_id, player_id, team, faction, color, start_spot, mean, deviation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			snapshot.ID, stats.Player.ID, stats.Team, stats.Faction, stats.Color, stats.StartSpot, stats.Mean, stats.Deviation)
		if err != nil {
			return fmt.Errorf("failed to insert stats for player %d in game %d: %w", stats.Player.ID, snapshot.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[REPO] Persisted game %d with %d player stats", snapshot.ID, len(snapshot.PlayerStats))
	return nil
}

// Save updates a previously persisted game with its final state and settles
// the per-player scores
func (r *GameRepository) Save(snapshot *game.GameSnapshot) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE games SET title=$1, validity=$2, end_time=$3, mutually_agreed_draw=$4 WHERE id=$5`,
		snapshot.Title, string(snapshot.Validity), snapshot.EndTime, snapshot.MutuallyAgreedDraw, snapshot.ID)
	if err != nil {
		return fmt.Errorf("failed to update game %d: %w", snapshot.ID, err)
	}

	for _, stats := range snapshot.PlayerStats {
		var score sql.NullInt64
		if stats.Score != nil {
			score = sql.NullInt64{Int64: int64(*stats.Score), Valid: true}
		}
		var scoreTime sql.NullTime
		if stats.ScoreTime != nil {
			scoreTime = sql.NullTime{Time: *stats.ScoreTime, Valid: true}
		}
		_, err = tx.Exec(`UPDATE game_player_stats SET score=$1, score_time=$2 WHERE game_id=$3 AND player_id=$4`,
			score, scoreTime, snapshot.ID, stats.Player.ID)
		if err != nil {
			return fmt.Errorf("failed to settle stats for player %d in game %d: %w", stats.Player.ID, snapshot.ID, err)
		}
	}

	return tx.Commit()
}

// FindMaxID returns the highest persisted game id, or 0 if no game exists
func (r *GameRepository) FindMaxID() (int, error) {
	var maxID int
	if err := r.db.Get(&maxID, `SELECT COALESCE(MAX(id), 0) FROM games`); err != nil {
		return 0, fmt.Errorf("failed to find max game id: %w", err)
	}
	return maxID, nil
}

// UpdateUnfinishedGamesValidity stamps games a previous process never
// finished, so they can't linger as VALID forever
func (r *GameRepository) UpdateUnfinishedGamesValidity(validity game.Validity) error {
	result, err := r.db.Exec(`UPDATE games SET validity=$1 WHERE validity=$2 AND end_time IS NULL`,
		string(validity), string(game.ValidityValid))
	if err != nil {
		return fmt.Errorf("failed to update unfinished games: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		log.Printf("[REPO] Marked %d unfinished games as %s", rows, validity)
	}
	return nil
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
