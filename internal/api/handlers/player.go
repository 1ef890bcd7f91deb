package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/models"
	"github.com/faforge/coordinator/internal/repository"
)

// GetPlayerProfile returns a player's public profile with ratings and
// division standing
func GetPlayerProfile(db *sqlx.DB) gin.HandlerFunc {
	players := repository.NewPlayerRepository(db)
	return func(c *gin.Context) {
		login := c.Param("login")

		player, err := players.FindByLogin(login)
		if errors.Is(err, repository.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}
		if err != nil {
			log.Printf("Failed to look up player %q: %v", login, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		profile := gin.H{
			"id":    player.ID,
			"login": player.Login,
		}

		var global models.GlobalRating
		err = db.Get(&global, `SELECT player_id, mean, deviation, num_games FROM global_ratings WHERE player_id=$1`, player.ID)
		if err == nil {
			profile["global_rating"] = global
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Failed to load global rating for player %d: %v", player.ID, err)
		}

		var ladder models.Ladder1v1Rating
		err = db.Get(&ladder, `SELECT player_id, mean, deviation, num_games, won_games FROM ladder1v1_ratings WHERE player_id=$1`, player.ID)
		if err == nil {
			profile["ladder1v1_rating"] = ladder
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Failed to load ladder rating for player %d: %v", player.ID, err)
		}

		var division struct {
			Name   string  `db:"name"`
			League int     `db:"league"`
			Score  float64 `db:"score"`
			Games  int     `db:"games"`
		}
		err = db.Get(&division, `SELECT d.name, d.league, s.score, s.games
			FROM player_division_scores s JOIN divisions d ON d.id = s.division_id
			WHERE s.player_id=$1`, player.ID)
		if err == nil {
			profile["division"] = division
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Failed to load division for player %d: %v", player.ID, err)
		}

		c.JSON(http.StatusOK, profile)
	}
}
