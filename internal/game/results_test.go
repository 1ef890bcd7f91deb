package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// reportingGame builds a game with the given connected players, each claiming
// the army matching its id
func reportingGame(playerIDs ...int) *Game {
	g := NewGame(1)
	for _, id := range playerIDs {
		g.connectedPlayers[id] = NewPlayer(id, "p")
		g.playerStats[id] = &GamePlayerStats{Player: g.connectedPlayers[id]}
		g.playerOptions[id] = map[string]interface{}{OptionArmy: id}
	}
	return g
}

func TestMostReportedResultsMajorityWins(t *testing.T) {
	g := reportingGame(1, 2, 3)
	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 10})
	g.recordArmyResult(2, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 10})
	g.recordArmyResult(3, ArmyResult{ArmyID: 1, Outcome: OutcomeDefeat, Score: -1})

	results := mostReportedArmyResults(g)
	assert.Equal(t, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 10}, results[1])
}

func TestMostReportedResultsTieBreaksByFirstReport(t *testing.T) {
	g := reportingGame(1, 2)
	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 10})
	g.recordArmyResult(2, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 99})

	results := mostReportedArmyResults(g)
	assert.Equal(t, 10, results[1].Score)
}

func TestMostReportedResultsIgnoreDisconnectedReporters(t *testing.T) {
	g := reportingGame(1, 2)
	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeDefeat, Score: -1})
	g.recordArmyResult(2, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 10})
	delete(g.connectedPlayers, 1)

	results := mostReportedArmyResults(g)
	assert.Equal(t, OutcomeVictory, results[1].Outcome)
}

func TestMostReportedResultsSkipIncompleteReports(t *testing.T) {
	g := reportingGame(1, 2)
	// A score without an outcome is a placeholder and must not vote
	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeUnknown, Score: 5})

	results := mostReportedArmyResults(g)
	assert.Empty(t, results)

	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 5})
	results = mostReportedArmyResults(g)
	assert.Equal(t, OutcomeVictory, results[1].Outcome)
}

func TestMostReportedResultsUseLatestValuePerReporter(t *testing.T) {
	g := reportingGame(1, 2)
	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 10})
	g.recordArmyResult(1, ArmyResult{ArmyID: 1, Outcome: OutcomeVictory, Score: 15})

	results := mostReportedArmyResults(g)
	assert.Equal(t, 15, results[1].Score)
}

func TestMapArmyResultsToPlayers(t *testing.T) {
	g := reportingGame(1, 2)
	// Player 3 never got an Army option, e.g. an observer
	g.connectedPlayers[3] = NewPlayer(3, "p")
	g.playerStats[3] = &GamePlayerStats{Player: g.connectedPlayers[3]}

	armyResults := map[int]ArmyResult{
		1: {ArmyID: 1, Outcome: OutcomeVictory, Score: 10},
		2: {ArmyID: 2, Outcome: OutcomeDefeat, Score: -1},
	}
	playerResults := mapArmyResultsToPlayers(g, armyResults)

	assert.Len(t, playerResults, 2)
	assert.Equal(t, OutcomeVictory, playerResults[1].Outcome)
	assert.Equal(t, OutcomeDefeat, playerResults[2].Outcome)
	assert.NotContains(t, playerResults, 3)
}

func TestBuildGameResult(t *testing.T) {
	g := reportingGame(1, 2)

	msg := buildGameResult(g, map[int]ArmyResult{
		1: {ArmyID: 1, Outcome: OutcomeVictory, Score: 10},
		2: {ArmyID: 2, Outcome: OutcomeDefeat, Score: -1},
	})
	assert.Equal(t, 1, msg.GameID)
	assert.False(t, msg.Draw)
	winners := make(map[int]bool)
	for _, pr := range msg.PlayerResults {
		winners[pr.PlayerID] = pr.Winner
	}
	assert.Equal(t, map[int]bool{1: true, 2: false}, winners)

	drawMsg := buildGameResult(g, map[int]ArmyResult{
		1: {ArmyID: 1, Outcome: OutcomeDraw, Score: 0},
		2: {ArmyID: 2, Outcome: OutcomeDraw, Score: 0},
	})
	assert.True(t, drawMsg.Draw)
}
