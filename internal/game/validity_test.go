package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var validityTestNow = time.Date(2020, 4, 1, 14, 0, 0, 0, time.UTC)

// rankableGame builds a quiescent 2-player game that every voter accepts
func rankableGame() *Game {
	g := NewGame(1)
	g.state = GameStatePlaying
	g.featuredMod = &FeaturedMod{TechnicalName: "faf", Ranked: true}
	g.mapVersion = &MapVersion{MapID: 10, Ranked: true}
	g.victoryCond = VictoryConditionDemoralization
	g.options = map[string]interface{}{
		OptionFogOfWar:      "explored",
		OptionCheatsEnabled: "false",
		OptionPrebuiltUnits: "Off",
		OptionNoRush:        "Off",
		OptionTeamLock:      "locked",
	}
	startTime := validityTestNow.Add(-2 * time.Hour)
	g.startTime = &startTime

	p1 := NewPlayer(1, "alice")
	p2 := NewPlayer(2, "bob")
	g.playerStats[1] = &GamePlayerStats{Player: p1, Team: 2}
	g.playerStats[2] = &GamePlayerStats{Player: p2, Team: 3}
	g.connectedPlayers[1] = p1
	g.connectedPlayers[2] = p2
	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 10})
	return g
}

func coopGame() *Game {
	g := rankableGame()
	g.featuredMod = &FeaturedMod{TechnicalName: "coop", Ranked: true, Coop: true}
	g.options[OptionTeamSpawn] = "fixed"
	g.options[OptionCiviliansRevealed] = "No"
	g.options[OptionDifficulty] = CoopDifficulty
	g.options[OptionExpansion] = DefaultExpansion
	return g
}

// adjudicate runs the ordered voter list the way the engine does
func adjudicate(g *Game) Validity {
	mods := &fakeModService{unrankedUIDs: map[string]struct{}{"uid-unranked": {}}}
	voters := newValidityVoters(mods, 60, func() time.Time { return validityTestNow })
	for _, voter := range voters {
		if verdict := voter(g); verdict != ValidityValid {
			return verdict
		}
	}
	return ValidityValid
}

func TestAdjudicateRankableGame(t *testing.T) {
	assert.Equal(t, ValidityValid, adjudicate(rankableGame()))
	assert.Equal(t, ValidityValid, adjudicate(coopGame()))
}

func TestAdjudicateOptionGates(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(g *Game)
		verdict Validity
	}{
		{"unranked featured mod", func(g *Game) { g.featuredMod.Ranked = false }, ValidityBadMod},
		{"unranked sim mod", func(g *Game) { g.simMods = []*ModVersion{{UID: "uid-unranked"}} }, ValidityBadMod},
		{"wrong victory condition", func(g *Game) { g.victoryCond = VictoryConditionDomination }, ValidityWrongVictoryCondition},
		{"fog of war disabled", func(g *Game) { g.options[OptionFogOfWar] = "none" }, ValidityNoFogOfWar},
		{"cheats enabled", func(g *Game) { g.options[OptionCheatsEnabled] = "true" }, ValidityCheatsEnabled},
		{"prebuilt units", func(g *Game) { g.options[OptionPrebuiltUnits] = "On" }, ValidityPrebuiltEnabled},
		{"no rush timer", func(g *Game) { g.options[OptionNoRush] = "5" }, ValidityNoRushEnabled},
		{"unit restrictions", func(g *Game) { g.options[OptionRestrictedCategories] = 1 }, ValidityBadUnitRestrictions},
		{"unranked map", func(g *Game) { g.mapVersion.Ranked = false }, ValidityBadMap},
		{"missing map", func(g *Game) { g.mapVersion = nil }, ValidityBadMap},
		{"desyncs exceed players", func(g *Game) { g.desyncCount = 3 }, ValidityTooManyDesyncs},
		{"mutual draw", func(g *Game) { g.mutuallyAgreedDraw = true }, ValidityMutualDraw},
		{"single player", func(g *Game) { delete(g.playerStats, 2) }, ValiditySinglePlayer},
		{"no reported results", func(g *Game) { g.reportedArmyResults = map[int]map[int]ArmyResult{} }, ValidityUnknownResult},
		{"too short", func(g *Game) { startTime := validityTestNow.Add(-30 * time.Second); g.startTime = &startTime }, ValidityTooShort},
		{"never started", func(g *Game) { g.startTime = nil }, ValidityTooShort},
		{"teams unlocked", func(g *Game) { g.options[OptionTeamLock] = "unlocked" }, ValidityTeamsUnlocked},
		{"ai players", func(g *Game) { g.aiOptions["AI: turtle"] = map[string]interface{}{OptionArmy: 3} }, ValidityHasAI},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := rankableGame()
			tc.mutate(g)
			assert.Equal(t, tc.verdict, adjudicate(g))
		})
	}
}

func TestAdjudicateCoopGates(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(g *Game)
		verdict Validity
	}{
		{"spawn not fixed", func(g *Game) { g.options[OptionTeamSpawn] = "random" }, ValiditySpawnNotFixed},
		{"civilians revealed", func(g *Game) { g.options[OptionCiviliansRevealed] = "Yes" }, ValidityCiviliansRevealed},
		{"wrong difficulty", func(g *Game) { g.options[OptionDifficulty] = 2 }, ValidityWrongDifficulty},
		{"expansion disabled", func(g *Game) { g.options[OptionExpansion] = 0 }, ValidityExpansionDisabled},
		// Non-demoralization victory is fine in coop
		{"sandbox victory", func(g *Game) { g.victoryCond = VictoryConditionSandbox }, ValidityValid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := coopGame()
			tc.mutate(g)
			assert.Equal(t, tc.verdict, adjudicate(g))
		})
	}
}

func TestAdjudicateTeamArrangements(t *testing.T) {
	withTeams := func(teams ...int) *Game {
		g := rankableGame()
		g.playerStats = make(map[int]*GamePlayerStats)
		for i, team := range teams {
			g.playerStats[i+1] = &GamePlayerStats{Player: NewPlayer(i+1, "p"), Team: team}
		}
		return g
	}

	assert.Equal(t, ValidityValid, adjudicate(withTeams(2, 2, 3, 3)))
	assert.Equal(t, ValidityUnevenTeams, adjudicate(withTeams(2, 2, 3)))
	assert.Equal(t, ValidityFreeForAll, adjudicate(withTeams(2, 3, 4)))
	// Players without a team each count as their own party
	assert.Equal(t, ValidityFreeForAll, adjudicate(withTeams(NoTeamID, 2, 3)))
	assert.Equal(t, ValidityValid, adjudicate(withTeams(NoTeamID, NoTeamID)))
}

func TestAdjudicationOrderFirstVoterWins(t *testing.T) {
	g := rankableGame()
	g.featuredMod.Ranked = false
	g.options[OptionCheatsEnabled] = "true"

	assert.Equal(t, ValidityBadMod, adjudicate(g))
}
