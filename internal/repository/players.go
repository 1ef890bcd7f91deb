package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/faforge/coordinator/internal/models"
)

var ErrPlayerNotFound = errors.New("player not found")

// PlayerRepository persists player accounts
type PlayerRepository struct {
	db *sqlx.DB
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// FindByLogin looks up a player account by login, case insensitive
func (r *PlayerRepository) FindByLogin(login string) (*models.Player, error) {
	var player models.Player
	err := r.db.Get(&player, `SELECT id, login, password_hash, created_at, last_active FROM players WHERE LOWER(login)=LOWER($1)`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up player %q: %w", login, err)
	}
	return &player, nil
}

// Create inserts a new player account
func (r *PlayerRepository) Create(login, passwordHash string) (*models.Player, error) {
	var player models.Player
	err := r.db.Get(&player, `INSERT INTO players (login, password_hash) VALUES ($1, $2)
		RETURNING id, login, password_hash, created_at, last_active`, login, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to create player %q: %w", login, err)
	}
	return &player, nil
}

// TouchLastActive stamps the player's last activity
func (r *PlayerRepository) TouchLastActive(playerID int) error {
	_, err := r.db.Exec(`UPDATE players SET last_active=NOW() WHERE id=$1`, playerID)
	return err
}
