package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved team IDs as reported by the game.
const (
	NoTeamID        = 1
	ObserversTeamID = -1
)

// Coop-mode option values required for a ranked result.
const (
	CoopDifficulty   = 3
	DefaultExpansion = 1
)

// Wire-visible game option names.
const (
	OptionFogOfWar             = "FogOfWar"
	OptionCheatsEnabled        = "CheatsEnabled"
	OptionPrebuiltUnits        = "PrebuiltUnits"
	OptionNoRush               = "NoRushOption"
	OptionRestrictedCategories = "RestrictedCategories"
	OptionSlots                = "Slots"
	OptionScenarioFile         = "ScenarioFile"
	OptionTitle                = "Title"
	OptionTeam                 = "Team"
	OptionTeamLock             = "TeamLock"
	OptionTeamSpawn            = "TeamSpawn"
	OptionCiviliansRevealed    = "RevealedCivilians"
	OptionDifficulty           = "Difficulty"
	OptionExpansion            = "Expansion"
	OptionStartSpot            = "StartSpot"
	OptionFaction              = "Faction"
	OptionColor                = "Color"
	OptionArmy                 = "Army"
	OptionVictoryCondition     = "Victory"
)

// optionInt coerces an option value to int. Values arrive as JSON so numbers
// decode as float64; some clients send numeric strings.
func optionInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

// optionString coerces an option value to its string form
func optionString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// parseMapFolderName extracts the map folder from a scenario file path such
// as "/maps/scmp_001/SCMP_001_scenario.lua". Backslashes and doubled slashes
// are normalized first; the folder is the third slash-delimited segment.
func parseMapFolderName(scenarioFile string) (string, error) {
	normalized := strings.ReplaceAll(scenarioFile, "\\", "/")
	normalized = strings.ReplaceAll(normalized, "//", "/")
	segments := strings.Split(normalized, "/")
	if len(segments) < 3 {
		return "", fmt.Errorf("scenario file path has too few segments: %q", scenarioFile)
	}
	return segments[2], nil
}
