package stats

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/game"
)

// Service archives the per-army statistics clients report at the end of a
// game. Army names match player logins, so each player's share of the blob is
// stored individually.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Process stores the statistics of the army belonging to the given player.
// Games without a matching army entry are an error; the engine logs and
// continues with the next player.
func (s *Service) Process(player *game.Player, gameID int, statistics []game.ArmyStatistics) error {
	for _, armyStats := range statistics {
		if armyStats.Name != player.Login {
			continue
		}
		blob, err := json.Marshal(armyStats)
		if err != nil {
			return fmt.Errorf("failed to encode army statistics for player %s: %w", player, err)
		}
		_, err = s.db.Exec(`INSERT INTO game_army_stats (game_id, stats) VALUES ($1, $2)`, gameID, blob)
		if err != nil {
			return fmt.Errorf("failed to store army statistics for player %s: %w", player, err)
		}
		return nil
	}
	return fmt.Errorf("no army statistics reported for player %s in game %d", player, gameID)
}
