package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/game"
	"github.com/faforge/coordinator/internal/models"
)

// ListGames returns snapshots of all active games
func ListGames(engine *game.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"games": engine.ActiveGameResponses()})
	}
}

// GetGame returns a single game, live if still active, otherwise from the
// archive
func GetGame(engine *game.Engine, db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
			return
		}

		if g, ok := engine.GetActiveGame(id); ok {
			c.JSON(http.StatusOK, gin.H{
				"id":       g.ID,
				"title":    g.Title(),
				"state":    g.State(),
				"map":      g.MapFolderName(),
				"validity": g.Validity(),
				"live":     true,
			})
			return
		}

		var archived models.Game
		err = db.Get(&archived, `SELECT id, title, host_id, featured_mod_id, map_version_id, victory_condition,
			validity, start_time, end_time, mutually_agreed_draw, replay_url FROM games WHERE id=$1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		if err != nil {
			log.Printf("Failed to load game %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"game": archived, "live": false})
	}
}

// GetGamePlayerStats returns the archived per-player stats of a finished game
func GetGamePlayerStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
			return
		}

		var stats []models.GamePlayerStats
		err = db.Select(&stats, `SELECT id, game_id, player_id, team, faction, color, start_spot,
			mean, deviation, score, score_time FROM game_player_stats WHERE game_id=$1 ORDER BY start_spot`, id)
		if err != nil {
			log.Printf("Failed to load player stats for game %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}
