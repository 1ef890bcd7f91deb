package game

// mostReportedArmyResults finds, per army id, the ArmyResult value reported
// most often. Only reports by still-connected players count, and only
// complete reports: an UNKNOWN outcome is a score-only placeholder and does
// not vote. Ties break in insertion order, the first value to reach the
// maximum count wins. Callers must hold the game lock.
func mostReportedArmyResults(g *Game) map[int]ArmyResult {
	counts := make(map[ArmyResult]int)
	winners := make(map[int]ArmyResult)
	winnerCounts := make(map[int]int)

	for _, key := range g.reportOrder {
		if _, connected := g.connectedPlayers[key.reporterID]; !connected {
			continue
		}
		result, ok := g.reportedArmyResults[key.reporterID][key.armyID]
		if !ok || result.Outcome == OutcomeUnknown {
			continue
		}
		counts[result]++
		if counts[result] > winnerCounts[result.ArmyID] {
			winnerCounts[result.ArmyID] = counts[result]
			winners[result.ArmyID] = result
		}
	}
	return winners
}

// mapArmyResultsToPlayers attributes each settled army result to the player
// whose Army option claims that army. Players without an Army option are
// omitted. Callers must hold the game lock.
func mapArmyResultsToPlayers(g *Game, armyResults map[int]ArmyResult) map[int]ArmyResult {
	playerResults := make(map[int]ArmyResult)
	for playerID := range g.playerStats {
		options, ok := g.playerOptions[playerID]
		if !ok {
			continue
		}
		armyID, ok := optionInt(options[OptionArmy])
		if !ok {
			continue
		}
		if result, ok := armyResults[armyID]; ok {
			playerResults[playerID] = result
		}
	}
	return playerResults
}

// buildGameResult assembles the broadcast message for a finished game. The
// draw flag is set iff any surviving result has outcome DRAW.
func buildGameResult(g *Game, playerResults map[int]ArmyResult) *GameResultMessage {
	msg := &GameResultMessage{
		GameID:        g.ID,
		PlayerResults: make([]PlayerResult, 0, len(playerResults)),
	}
	for playerID, result := range playerResults {
		msg.PlayerResults = append(msg.PlayerResults, PlayerResult{
			PlayerID: playerID,
			Winner:   result.Outcome == OutcomeVictory,
		})
		if result.Outcome == OutcomeDraw {
			msg.Draw = true
		}
	}
	return msg
}
