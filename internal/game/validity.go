package game

import "time"

// ValidityVoter inspects a finished game and votes VALID or a specific
// disqualifying kind. Voters run in order under the game lock; the first
// non-VALID vote wins.
type ValidityVoter func(g *Game) Validity

// newValidityVoters builds the ordered voter list. The exact set and order
// follow the rating rules of the game: generic option gates apply to every
// mod, the spawn/civilians/difficulty/expansion gates only to coop.
func newValidityVoters(modService ModService, rankedMinTimeMultiplicator int, now func() time.Time) []ValidityVoter {
	return []ValidityVoter{
		isRankedVoter(modService),
		victoryConditionVoter(modService),
		freeForAllVoter(),
		evenTeamsVoter(modService),
		fogOfWarVoter(),
		cheatsEnabledVoter(),
		prebuiltUnitsVoter(),
		teamSpawnVoter(modService),
		civiliansRevealedVoter(modService),
		difficultyVoter(modService),
		expansionDisabledVoter(modService),
		noRushVoter(),
		restrictedUnitsVoter(),
		rankedMapVoter(),
		desyncVoter(),
		mutualDrawVoter(),
		singlePlayerVoter(),
		gameResultVoter(),
		gameLengthVoter(rankedMinTimeMultiplicator, now),
		teamsUnlockedVoter(),
		hasAIVoter(),
	}
}

func isRankedVoter(modService ModService) ValidityVoter {
	return func(g *Game) Validity {
		if g.featuredMod == nil || !g.featuredMod.Ranked {
			return ValidityBadMod
		}
		for _, mod := range g.simMods {
			if !modService.IsModRanked(mod.UID) {
				return ValidityBadMod
			}
		}
		return ValidityValid
	}
}

func victoryConditionVoter(modService ModService) ValidityVoter {
	return func(g *Game) Validity {
		if g.victoryCond != VictoryConditionDemoralization && !modService.IsCoop(g.featuredMod) {
			return ValidityWrongVictoryCondition
		}
		return ValidityValid
	}
}

func freeForAllVoter() ValidityVoter {
	return func(g *Game) Validity {
		if isFreeForAll(g) {
			return ValidityFreeForAll
		}
		return ValidityValid
	}
}

// isFreeForAll holds when three or more players each occupy a distinct real
// team. Players on the "no team" team are each their own party.
func isFreeForAll(g *Game) bool {
	if len(g.playerStats) < 3 {
		return false
	}
	seen := make(map[int]struct{})
	for _, stats := range g.playerStats {
		if stats.Team == NoTeamID {
			continue
		}
		if _, dup := seen[stats.Team]; dup {
			return false
		}
		seen[stats.Team] = struct{}{}
	}
	return true
}

func evenTeamsVoter(modService ModService) ValidityVoter {
	return func(g *Game) Validity {
		if modService.IsCoop(g.featuredMod) {
			return ValidityValid
		}
		if !areTeamsEven(g) {
			return ValidityUnevenTeams
		}
		return ValidityValid
	}
}

// areTeamsEven holds when all teams have equal size, except that the "no
// team" team may coexist only with single-member teams.
func areTeamsEven(g *Game) bool {
	playersPerTeam := make(map[int]int)
	for _, stats := range g.playerStats {
		playersPerTeam[stats.Team]++
	}

	if _, ok := playersPerTeam[NoTeamID]; ok {
		for team, count := range playersPerTeam {
			if team != NoTeamID && count != 1 {
				return false
			}
		}
		return true
	}

	size := -1
	for _, count := range playersPerTeam {
		if size == -1 {
			size = count
		} else if count != size {
			return false
		}
	}
	return true
}

func fogOfWarVoter() ValidityVoter {
	return optionVoter(OptionFogOfWar, "explored", ValidityNoFogOfWar)
}

func cheatsEnabledVoter() ValidityVoter {
	return optionVoter(OptionCheatsEnabled, "false", ValidityCheatsEnabled)
}

func prebuiltUnitsVoter() ValidityVoter {
	return optionVoter(OptionPrebuiltUnits, "Off", ValidityPrebuiltEnabled)
}

func noRushVoter() ValidityVoter {
	return optionVoter(OptionNoRush, "Off", ValidityNoRushEnabled)
}

func teamsUnlockedVoter() ValidityVoter {
	return optionVoter(OptionTeamLock, "locked", ValidityTeamsUnlocked)
}

// optionVoter requires the named option to hold exactly the required value
func optionVoter(key, required string, verdict Validity) ValidityVoter {
	return func(g *Game) Validity {
		if value, ok := g.options[key]; !ok || optionString(value) != required {
			return verdict
		}
		return ValidityValid
	}
}

func teamSpawnVoter(modService ModService) ValidityVoter {
	return coopOptionVoter(modService, OptionTeamSpawn, "fixed", ValiditySpawnNotFixed)
}

func civiliansRevealedVoter(modService ModService) ValidityVoter {
	return coopOptionVoter(modService, OptionCiviliansRevealed, "No", ValidityCiviliansRevealed)
}

func difficultyVoter(modService ModService) ValidityVoter {
	return func(g *Game) Validity {
		if !modService.IsCoop(g.featuredMod) {
			return ValidityValid
		}
		if difficulty, ok := optionInt(g.options[OptionDifficulty]); !ok || difficulty != CoopDifficulty {
			return ValidityWrongDifficulty
		}
		return ValidityValid
	}
}

func expansionDisabledVoter(modService ModService) ValidityVoter {
	return func(g *Game) Validity {
		if !modService.IsCoop(g.featuredMod) {
			return ValidityValid
		}
		if expansion, ok := optionInt(g.options[OptionExpansion]); !ok || expansion != DefaultExpansion {
			return ValidityExpansionDisabled
		}
		return ValidityValid
	}
}

// coopOptionVoter applies an option gate only to coop games
func coopOptionVoter(modService ModService, key, required string, verdict Validity) ValidityVoter {
	voter := optionVoter(key, required, verdict)
	return func(g *Game) Validity {
		if !modService.IsCoop(g.featuredMod) {
			return ValidityValid
		}
		return voter(g)
	}
}

func restrictedUnitsVoter() ValidityVoter {
	return func(g *Game) Validity {
		value, ok := g.options[OptionRestrictedCategories]
		if !ok {
			return ValidityValid
		}
		if restricted, ok := optionInt(value); !ok || restricted != 0 {
			return ValidityBadUnitRestrictions
		}
		return ValidityValid
	}
}

func rankedMapVoter() ValidityVoter {
	return func(g *Game) Validity {
		if g.mapVersion == nil || !g.mapVersion.Ranked {
			return ValidityBadMap
		}
		return ValidityValid
	}
}

func desyncVoter() ValidityVoter {
	return func(g *Game) Validity {
		if g.desyncCount > len(g.playerStats) {
			return ValidityTooManyDesyncs
		}
		return ValidityValid
	}
}

func mutualDrawVoter() ValidityVoter {
	return func(g *Game) Validity {
		if g.mutuallyAgreedDraw {
			return ValidityMutualDraw
		}
		return ValidityValid
	}
}

func singlePlayerVoter() ValidityVoter {
	return func(g *Game) Validity {
		if len(g.playerStats) < 2 {
			return ValiditySinglePlayer
		}
		return ValidityValid
	}
}

func gameResultVoter() ValidityVoter {
	return func(g *Game) Validity {
		if len(g.reportedArmyResults) == 0 {
			return ValidityUnknownResult
		}
		return ValidityValid
	}
}

func gameLengthVoter(rankedMinTimeMultiplicator int, now func() time.Time) ValidityVoter {
	return func(g *Game) Validity {
		if g.startTime == nil {
			return ValidityTooShort
		}
		minimum := time.Duration(len(g.playerStats)*rankedMinTimeMultiplicator) * time.Second
		if now().Sub(*g.startTime) < minimum {
			return ValidityTooShort
		}
		return ValidityValid
	}
}

func hasAIVoter() ValidityVoter {
	return func(g *Game) Validity {
		if len(g.aiOptions) > 0 {
			return ValidityHasAI
		}
		return ValidityValid
	}
}
