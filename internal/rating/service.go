package rating

import (
	"fmt"
	"log"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/game"
)

const (
	initialMean      = 1500
	initialDeviation = 500
	minDeviation     = 75
	deviationDecay   = 0.95
	maxKFactor       = 60
	minKFactor       = 10
)

// Service maintains the global and ladder1v1 rating buckets. Ratings live in
// the database; online players additionally carry an in-memory copy that is
// refreshed whenever an update lands.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// InitGlobalRating loads or creates the player's global rating
func (s *Service) InitGlobalRating(player *game.Player) {
	player.SetGlobalRating(s.loadOrCreate(player, "global_ratings"))
}

// InitLadder1v1Rating loads or creates the player's ladder rating
func (s *Service) InitLadder1v1Rating(player *game.Player) {
	player.SetLadder1v1Rating(s.loadOrCreate(player, "ladder1v1_ratings"))
}

func (s *Service) loadOrCreate(player *game.Player, table string) *game.Rating {
	var row struct {
		Mean      float64 `db:"mean"`
		Deviation float64 `db:"deviation"`
	}
	query := fmt.Sprintf(`INSERT INTO %s (player_id, mean, deviation) VALUES ($1, $2, $3)
		ON CONFLICT (player_id) DO UPDATE SET player_id = EXCLUDED.player_id
		RETURNING mean, deviation`, table)
	if err := s.db.Get(&row, query, player.ID, float64(initialMean), float64(initialDeviation)); err != nil {
		log.Printf("[RATING] Failed to init rating for player %s: %v", player, err)
		return &game.Rating{Mean: initialMean, Deviation: initialDeviation}
	}
	return &game.Rating{Mean: row.Mean, Deviation: row.Deviation}
}

// UpdateRatings recalculates and persists the ratings of all players in a
// finished game. Players on the "no team" team each form their own party;
// the team with the highest settled score wins.
func (s *Service) UpdateRatings(stats []*game.GamePlayerStats, noTeamID int, ratingType game.RatingType) error {
	if len(stats) == 0 {
		return nil
	}

	outcomes := teamOutcomes(stats, noTeamID)

	table := "global_ratings"
	if ratingType == game.RatingTypeLadder1v1 {
		table = "ladder1v1_ratings"
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, playerStats := range stats {
		expected := expectedScore(playerStats, stats, noTeamID)
		actual := outcomes[i]

		k := maxKFactor * playerStats.Deviation / initialDeviation
		k = math.Min(math.Max(k, minKFactor), maxKFactor)

		newMean := playerStats.Mean + k*(actual-expected)
		newDeviation := math.Max(minDeviation, playerStats.Deviation*deviationDecay)

		won := 0
		if actual == 1 {
			won = 1
		}
		query := fmt.Sprintf(`INSERT INTO %s (player_id, mean, deviation, num_games) VALUES ($1, $2, $3, 1)
			ON CONFLICT (player_id) DO UPDATE SET mean=$2, deviation=$3, num_games=%s.num_games+1`, table, table)
		if table == "ladder1v1_ratings" {
			query = fmt.Sprintf(`INSERT INTO ladder1v1_ratings (player_id, mean, deviation, num_games, won_games) VALUES ($1, $2, $3, 1, %d)
				ON CONFLICT (player_id) DO UPDATE SET mean=$2, deviation=$3, num_games=ladder1v1_ratings.num_games+1, won_games=ladder1v1_ratings.won_games+%d`, won, won)
		}
		if _, err := tx.Exec(query, playerStats.Player.ID, newMean, newDeviation); err != nil {
			return fmt.Errorf("failed to update %s rating for player %d: %w", ratingType, playerStats.Player.ID, err)
		}

		newRating := &game.Rating{Mean: newMean, Deviation: newDeviation}
		if ratingType == game.RatingTypeLadder1v1 {
			playerStats.Player.SetLadder1v1Rating(newRating)
		} else {
			playerStats.Player.SetGlobalRating(newRating)
		}
		log.Printf("[RATING] Player %s: %s %.0f/%.0f -> %.0f/%.0f", playerStats.Player, ratingType,
			playerStats.Mean, playerStats.Deviation, newMean, newDeviation)
	}

	return tx.Commit()
}

// teamOutcomes returns 1 for each player on the single best-scoring team,
// 0.5 when the best score is shared, 0 otherwise
func teamOutcomes(stats []*game.GamePlayerStats, noTeamID int) []float64 {
	best := math.Inf(-1)
	bestTeams := 0
	teamScores := make(map[int]float64)
	for i, playerStats := range stats {
		key := teamKey(playerStats, i, noTeamID)
		score := 0.0
		if playerStats.Score != nil {
			score = float64(*playerStats.Score)
		}
		if existing, ok := teamScores[key]; !ok || score > existing {
			teamScores[key] = score
		}
	}
	for _, score := range teamScores {
		if score > best {
			best = score
			bestTeams = 1
		} else if score == best {
			bestTeams++
		}
	}

	outcomes := make([]float64, len(stats))
	for i, playerStats := range stats {
		switch {
		case teamScores[teamKey(playerStats, i, noTeamID)] != best:
			outcomes[i] = 0
		case bestTeams > 1:
			outcomes[i] = 0.5
		default:
			outcomes[i] = 1
		}
	}
	return outcomes
}

// teamKey gives players without a real team a synthetic one-man party
func teamKey(stats *game.GamePlayerStats, index, noTeamID int) int {
	if stats.Team == noTeamID {
		return -1000 - index
	}
	return stats.Team
}

// expectedScore is the classic logistic expectation of the player against the
// average strength of all opponents
func expectedScore(playerStats *game.GamePlayerStats, stats []*game.GamePlayerStats, noTeamID int) float64 {
	opponentMean := 0.0
	opponents := 0
	for _, other := range stats {
		if other == playerStats {
			continue
		}
		if other.Team != noTeamID && other.Team == playerStats.Team {
			continue
		}
		opponentMean += other.Mean
		opponents++
	}
	if opponents == 0 {
		return 0.5
	}
	opponentMean /= float64(opponents)
	return 1 / (1 + math.Pow(10, (opponentMean-playerStats.Mean)/400))
}
