package repository

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/faforge/coordinator/internal/game"
)

// ModService resolves featured mods and sim mod metadata. Featured mods and
// their file versions change only on deployment, so they are cached at
// startup; sim mods are looked up on demand.
type ModService struct {
	db *sqlx.DB

	mu           sync.RWMutex
	featuredMods map[string]*game.FeaturedMod
	fileVersions map[int][]game.FeaturedModFile
}

func NewModService(db *sqlx.DB) (*ModService, error) {
	s := &ModService{
		db:           db,
		featuredMods: make(map[string]*game.FeaturedMod),
		fileVersions: make(map[int][]game.FeaturedModFile),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the featured mod cache from the database
func (s *ModService) Refresh() error {
	var mods []struct {
		ID            int    `db:"id"`
		TechnicalName string `db:"technical_name"`
		DisplayName   string `db:"display_name"`
		Ranked        bool   `db:"ranked"`
		Coop          bool   `db:"coop"`
		Ladder1v1     bool   `db:"ladder1v1"`
	}
	if err := s.db.Select(&mods, `SELECT id, technical_name, display_name, ranked, coop, ladder1v1 FROM featured_mods`); err != nil {
		return fmt.Errorf("failed to load featured mods: %w", err)
	}

	var files []struct {
		ModID   int `db:"mod_id"`
		FileID  int `db:"file_id"`
		Version int `db:"version"`
	}
	if err := s.db.Select(&files, `SELECT mod_id, file_id, MAX(version) AS version FROM featured_mod_files GROUP BY mod_id, file_id`); err != nil {
		return fmt.Errorf("failed to load featured mod files: %w", err)
	}

	featuredMods := make(map[string]*game.FeaturedMod, len(mods))
	for _, mod := range mods {
		featuredMods[strings.ToLower(mod.TechnicalName)] = &game.FeaturedMod{
			ID:            mod.ID,
			TechnicalName: mod.TechnicalName,
			DisplayName:   mod.DisplayName,
			Ranked:        mod.Ranked,
			Coop:          mod.Coop,
			Ladder1v1:     mod.Ladder1v1,
		}
	}
	fileVersions := make(map[int][]game.FeaturedModFile)
	for _, file := range files {
		fileVersions[file.ModID] = append(fileVersions[file.ModID], game.FeaturedModFile{FileID: file.FileID, Version: file.Version})
	}

	s.mu.Lock()
	s.featuredMods = featuredMods
	s.fileVersions = fileVersions
	s.mu.Unlock()

	log.Printf("[REPO] Loaded %d featured mods", len(featuredMods))
	return nil
}

func (s *ModService) GetFeaturedMod(technicalName string) (*game.FeaturedMod, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mod, ok := s.featuredMods[strings.ToLower(technicalName)]
	return mod, ok
}

func (s *ModService) IsLadder1v1(mod *game.FeaturedMod) bool {
	return mod != nil && mod.Ladder1v1
}

func (s *ModService) IsCoop(mod *game.FeaturedMod) bool {
	return mod != nil && mod.Coop
}

// IsModRanked reports whether the sim mod with the given uid counts as
// ranked. Unknown mods are unranked.
func (s *ModService) IsModRanked(uid string) bool {
	var ranked bool
	if err := s.db.Get(&ranked, `SELECT ranked FROM mod_versions WHERE uid=$1`, uid); err != nil {
		return false
	}
	return ranked
}

// FindModVersionsByUIDs resolves the given sim mod uids, dropping unknown ones
func (s *ModService) FindModVersionsByUIDs(uids []string) []*game.ModVersion {
	if len(uids) == 0 {
		return nil
	}

	var rows []struct {
		UID         string `db:"uid"`
		DisplayName string `db:"display_name"`
		Ranked      bool   `db:"ranked"`
	}
	if err := s.db.Select(&rows, `SELECT uid, display_name, ranked FROM mod_versions WHERE uid = ANY($1)`, pq.Array(uids)); err != nil {
		log.Printf("[REPO] Failed to look up mod versions: %v", err)
		return nil
	}

	versions := make([]*game.ModVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, &game.ModVersion{UID: row.UID, DisplayName: row.DisplayName, Ranked: row.Ranked})
	}
	return versions
}

// GetLatestFileVersions returns the latest deployed file versions of the mod
func (s *ModService) GetLatestFileVersions(mod *game.FeaturedMod) []game.FeaturedModFile {
	if mod == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileVersions[mod.ID]
}
