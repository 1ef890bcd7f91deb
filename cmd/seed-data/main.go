package main

import (
	"log"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/faforge/coordinator/internal/config"
	"github.com/faforge/coordinator/internal/database"
)

// Seeds the reference data a fresh deployment needs: featured mods, a few
// maps, the division ladder and a test account.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	featuredMods := []struct {
		technicalName string
		displayName   string
		ranked        bool
		coop          bool
		ladder1v1     bool
	}{
		{"faf", "Forged Alliance Forever", true, false, false},
		{"ladder1v1", "Ladder 1v1", true, false, true},
		{"coop", "Coop", false, true, false},
		{"nomads", "Nomads", false, false, false},
	}
	for _, mod := range featuredMods {
		_, err := db.Exec(`INSERT INTO featured_mods (technical_name, display_name, ranked, coop, ladder1v1)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (technical_name) DO NOTHING`,
			mod.technicalName, mod.displayName, mod.ranked, mod.coop, mod.ladder1v1)
		if err != nil {
			log.Fatalf("Failed to seed featured mod %s: %v", mod.technicalName, err)
		}
	}
	log.Printf("Seeded %d featured mods", len(featuredMods))

	maps := []struct {
		folderName string
		ranked     bool
	}{
		{"scmp_001", true},
		{"scmp_002", true},
		{"scmp_003", true},
		{"scmp_007", true},
		{"scmp_009", false},
	}
	for i, m := range maps {
		_, err := db.Exec(`INSERT INTO map_versions (map_id, folder_name, ranked, times_played)
			VALUES ($1, $2, $3, 0) ON CONFLICT (folder_name) DO NOTHING`, i+1, m.folderName, m.ranked)
		if err != nil {
			log.Fatalf("Failed to seed map %s: %v", m.folderName, err)
		}
	}
	log.Printf("Seeded %d maps", len(maps))

	divisions := []struct {
		name      string
		league    int
		threshold float64
	}{
		{"League 1", 1, 10},
		{"League 2", 2, 30},
		{"League 3", 3, 50},
		{"League 4", 4, 80},
		{"League 5", 5, 120},
	}
	for _, d := range divisions {
		_, err := db.Exec(`INSERT INTO divisions (name, league, threshold)
			VALUES ($1, $2, $3) ON CONFLICT (league) DO NOTHING`, d.name, d.league, d.threshold)
		if err != nil {
			log.Fatalf("Failed to seed division %s: %v", d.name, err)
		}
	}
	log.Printf("Seeded %d divisions", len(divisions))

	hash, err := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash test password: %v", err)
	}
	_, err = db.Exec(`INSERT INTO players (login, password_hash) VALUES ($1, $2)
		ON CONFLICT (login) DO NOTHING`, "testplayer", string(hash))
	if err != nil {
		log.Fatalf("Failed to seed test player: %v", err)
	}
	log.Println("Seeded test player 'testplayer' (password 'testpass')")
}
