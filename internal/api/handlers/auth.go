package handlers

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/faforge/coordinator/internal/config"
	"github.com/faforge/coordinator/internal/repository"
)

var loginPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// Register creates a new player account and issues a session token
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	players := repository.NewPlayerRepository(db)
	return func(c *gin.Context) {
		var req struct {
			Login    string `json:"login"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login and password required"})
			return
		}

		login := strings.TrimSpace(req.Login)
		if !loginPattern.MatchString(login) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login must be 3-20 characters (letters, digits, _ or -)"})
			return
		}
		if len(req.Password) < 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
			return
		}

		if _, err := players.FindByLogin(login); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "login already taken"})
			return
		} else if !errors.Is(err, repository.ErrPlayerNotFound) {
			log.Printf("Failed to check login %q: %v", login, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash password: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		player, err := players.Create(login, string(hash))
		if err != nil {
			log.Printf("Failed to create player %q: %v", login, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		token, err := issueSessionToken(player.ID, player.Login, cfg)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token":  token,
			"player": gin.H{"id": player.ID, "login": player.Login},
		})
	}
}

// Login verifies credentials and issues a session token
func Login(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	players := repository.NewPlayerRepository(db)
	return func(c *gin.Context) {
		var req struct {
			Login    string `json:"login"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login and password required"})
			return
		}

		player, err := players.FindByLogin(strings.TrimSpace(req.Login))
		if errors.Is(err, repository.ErrPlayerNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("Failed to look up player %q: %v", req.Login, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if err := players.TouchLastActive(player.ID); err != nil {
			log.Printf("Failed to touch last_active for player %d: %v", player.ID, err)
		}

		token, err := issueSessionToken(player.ID, player.Login, cfg)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":  token,
			"player": gin.H{"id": player.ID, "login": player.Login},
		})
	}
}

func issueSessionToken(playerID int, login string, cfg *config.Config) (string, error) {
	ttl := time.Duration(cfg.SessionTimeoutMin) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := jwt.MapClaims{
		"player_id": playerID,
		"login":     login,
		"exp":       time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
