package rating

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/game"
	"github.com/faforge/coordinator/internal/models"
)

const (
	divisionWinGain  = 1.0
	divisionLossCost = 0.5
)

// DivisionService tracks ladder1v1 league progress. Players climb through
// divisions by accumulating score; reaching a division's threshold promotes
// them into the next league.
type DivisionService struct {
	db *sqlx.DB
}

func NewDivisionService(db *sqlx.DB) *DivisionService {
	return &DivisionService{db: db}
}

// PostResult applies the result of a ladder game to both players' division
// scores. A nil winner means the game was a draw.
func (s *DivisionService) PostResult(playerOne, playerTwo, winner *game.Player) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, player := range []*game.Player{playerOne, playerTwo} {
		delta := 0.0
		if winner != nil {
			if player == winner {
				delta = divisionWinGain
			} else {
				delta = -divisionLossCost
			}
		}
		if err := s.applyScore(tx, player, delta); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *DivisionService) applyScore(tx *sqlx.Tx, player *game.Player, delta float64) error {
	var entry struct {
		models.PlayerDivisionScore
		League    int     `db:"league"`
		Threshold float64 `db:"threshold"`
	}
	err := tx.Get(&entry, `SELECT s.player_id, s.division_id, s.score, s.games, d.league, d.threshold
		FROM player_division_scores s JOIN divisions d ON d.id = s.division_id
		WHERE s.player_id=$1 FOR UPDATE OF s`, player.ID)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.assignLowestDivision(tx, player); err != nil {
			return err
		}
		err = tx.Get(&entry, `SELECT s.player_id, s.division_id, s.score, s.games, d.league, d.threshold
			FROM player_division_scores s JOIN divisions d ON d.id = s.division_id
			WHERE s.player_id=$1 FOR UPDATE OF s`, player.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load division score for player %d: %w", player.ID, err)
	}

	newScore := entry.Score + delta
	if newScore < 0 {
		newScore = 0
	}

	if newScore >= entry.Threshold {
		var next models.Division
		err := tx.Get(&next, `SELECT id, name, league, threshold FROM divisions WHERE league > $1 ORDER BY league, threshold LIMIT 1`, entry.League)
		if errors.Is(err, sql.ErrNoRows) {
			// Already in the top league; the score just keeps growing
		} else if err != nil {
			return fmt.Errorf("failed to find next division: %w", err)
		} else {
			log.Printf("[RATING] Promoting player %s to division %s", player, next.Name)
			_, err = tx.Exec(`DELETE FROM player_division_scores WHERE player_id=$1`, player.ID)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`INSERT INTO player_division_scores (player_id, division_id, score, games) VALUES ($1, $2, 0, $3)`,
				player.ID, next.ID, entry.Games+1)
			return err
		}
	}

	_, err = tx.Exec(`UPDATE player_division_scores SET score=$1, games=games+1 WHERE player_id=$2`, newScore, player.ID)
	return err
}

func (s *DivisionService) assignLowestDivision(tx *sqlx.Tx, player *game.Player) error {
	var division models.Division
	err := tx.Get(&division, `SELECT id, name, league, threshold FROM divisions ORDER BY league, threshold LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no divisions configured")
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO player_division_scores (player_id, division_id, score, games) VALUES ($1, $2, 0, 0)`,
		player.ID, division.ID)
	return err
}
