package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/game"
)

// MapService resolves map versions by folder name and tracks play counts
type MapService struct {
	db *sqlx.DB
}

func NewMapService(db *sqlx.DB) *MapService {
	return &MapService{db: db}
}

// FindMap looks up a map version by its on-disk folder name, case insensitive
func (s *MapService) FindMap(folderName string) (*game.MapVersion, bool) {
	var row struct {
		ID         int    `db:"id"`
		MapID      int    `db:"map_id"`
		FolderName string `db:"folder_name"`
		Ranked     bool   `db:"ranked"`
	}
	err := s.db.Get(&row, `SELECT id, map_id, folder_name, ranked FROM map_versions WHERE LOWER(folder_name)=LOWER($1)`, folderName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Printf("[REPO] Failed to look up map %q: %v", folderName, err)
		return nil, false
	}
	return &game.MapVersion{ID: row.ID, MapID: row.MapID, FolderName: row.FolderName, Ranked: row.Ranked}, true
}

// IncrementTimesPlayed bumps the play counter of all versions of the map
func (s *MapService) IncrementTimesPlayed(mapID int) error {
	if _, err := s.db.Exec(`UPDATE map_versions SET times_played = times_played + 1 WHERE map_id=$1`, mapID); err != nil {
		return fmt.Errorf("failed to increment times played for map %d: %w", mapID, err)
	}
	return nil
}
