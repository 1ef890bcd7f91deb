package game

// GameState represents the lifecycle state of a game
type GameState string

const (
	GameStateInitializing GameState = "INITIALIZING"
	GameStateOpen         GameState = "OPEN"
	GameStatePlaying      GameState = "PLAYING"
	GameStateEnded        GameState = "ENDED"
	GameStateClosed       GameState = "CLOSED"
)

// validGameTransitions maps each game state to the states it may be entered from
var validGameTransitions = map[GameState][]GameState{
	GameStateOpen:    {GameStateInitializing},
	GameStatePlaying: {GameStateOpen},
	GameStateEnded:   {GameStatePlaying, GameStateOpen},
	GameStateClosed:  {GameStateInitializing, GameStateOpen, GameStatePlaying, GameStateEnded},
}

// CanTransitionGame reports whether a game may move from oldState to newState
func CanTransitionGame(oldState, newState GameState) bool {
	for _, from := range validGameTransitions[newState] {
		if from == oldState {
			return true
		}
	}
	return false
}

// PlayerGameState represents a single player's view of its current game
type PlayerGameState string

const (
	PlayerGameStateNone         PlayerGameState = "NONE"
	PlayerGameStateIdle         PlayerGameState = "IDLE"
	PlayerGameStateInitializing PlayerGameState = "INITIALIZING"
	PlayerGameStateLobby        PlayerGameState = "LOBBY"
	PlayerGameStateLaunching    PlayerGameState = "LAUNCHING"
	PlayerGameStateEnded        PlayerGameState = "ENDED"
	PlayerGameStateClosed       PlayerGameState = "CLOSED"
)

// validPlayerTransitions maps each player-game state to its legal predecessors
var validPlayerTransitions = map[PlayerGameState][]PlayerGameState{
	PlayerGameStateNone:         {PlayerGameStateInitializing, PlayerGameStateLobby, PlayerGameStateLaunching, PlayerGameStateEnded, PlayerGameStateClosed, PlayerGameStateIdle},
	PlayerGameStateIdle:         {PlayerGameStateNone, PlayerGameStateInitializing},
	PlayerGameStateInitializing: {PlayerGameStateNone, PlayerGameStateIdle},
	PlayerGameStateLobby:        {PlayerGameStateInitializing},
	PlayerGameStateLaunching:    {PlayerGameStateLobby},
	PlayerGameStateEnded:        {PlayerGameStateLaunching},
	PlayerGameStateClosed:       {PlayerGameStateInitializing, PlayerGameStateLobby, PlayerGameStateLaunching, PlayerGameStateEnded},
}

// CanTransitionPlayer reports whether a player may move from oldState to newState
func CanTransitionPlayer(oldState, newState PlayerGameState) bool {
	for _, from := range validPlayerTransitions[newState] {
		if from == oldState {
			return true
		}
	}
	return false
}

// Validity is the per-game verdict deciding whether results may affect ratings
type Validity string

const (
	ValidityValid                 Validity = "VALID"
	ValidityTooManyDesyncs        Validity = "TOO_MANY_DESYNCS"
	ValidityWrongVictoryCondition Validity = "WRONG_VICTORY_CONDITION"
	ValidityNoFogOfWar            Validity = "NO_FOG_OF_WAR"
	ValidityCheatsEnabled         Validity = "CHEATS_ENABLED"
	ValidityPrebuiltEnabled       Validity = "PREBUILT_ENABLED"
	ValidityNoRushEnabled         Validity = "NORUSH_ENABLED"
	ValidityBadUnitRestrictions   Validity = "BAD_UNIT_RESTRICTIONS"
	ValidityBadMap                Validity = "BAD_MAP"
	ValidityTooShort              Validity = "TOO_SHORT"
	ValidityBadMod                Validity = "BAD_MOD"
	ValidityFreeForAll            Validity = "FREE_FOR_ALL"
	ValidityUnevenTeams           Validity = "UNEVEN_TEAMS"
	ValidityUnknownResult         Validity = "UNKNOWN_RESULT"
	ValidityTeamsUnlocked         Validity = "TEAMS_UNLOCKED"
	ValidityHasAI                 Validity = "HAS_AI_PLAYERS"
	ValidityCiviliansRevealed     Validity = "CIVILIANS_REVEALED"
	ValidityWrongDifficulty       Validity = "WRONG_DIFFICULTY"
	ValidityExpansionDisabled     Validity = "EXPANSION_DISABLED"
	ValiditySpawnNotFixed         Validity = "SPAWN_NOT_FIXED"
	ValidityMutualDraw            Validity = "MUTUAL_DRAW"
	ValiditySinglePlayer          Validity = "SINGLE_PLAYER"
	ValidityServerShutdown        Validity = "SERVER_SHUTDOWN"
)

// Outcome is the reported fate of one army
type Outcome string

const (
	OutcomeUnknown    Outcome = "UNKNOWN"
	OutcomeVictory    Outcome = "VICTORY"
	OutcomeDefeat     Outcome = "DEFEAT"
	OutcomeDraw       Outcome = "DRAW"
	OutcomeMutualDraw Outcome = "MUTUAL_DRAW"
)

// GameVisibility controls who may see a game in the lobby list
type GameVisibility string

const (
	GameVisibilityPublic  GameVisibility = "PUBLIC"
	GameVisibilityFriends GameVisibility = "FRIENDS"
)

// LobbyMode selects how the client lobby behaves for this game
type LobbyMode string

const (
	LobbyModeDefault  LobbyMode = "DEFAULT"
	LobbyModeAutoJoin LobbyMode = "AUTO_JOIN"
)

// VictoryCondition is the parsed value of the victory-condition game option
type VictoryCondition string

const (
	VictoryConditionDemoralization VictoryCondition = "DEMORALIZATION"
	VictoryConditionDomination     VictoryCondition = "DOMINATION"
	VictoryConditionEradication    VictoryCondition = "ERADICATION"
	VictoryConditionSandbox        VictoryCondition = "SANDBOX"
	VictoryConditionUnknown        VictoryCondition = "UNKNOWN"
)

// VictoryConditionFromString parses the wire value of the victory-condition option
func VictoryConditionFromString(value string) VictoryCondition {
	switch value {
	case "demoralization":
		return VictoryConditionDemoralization
	case "domination":
		return VictoryConditionDomination
	case "eradication":
		return VictoryConditionEradication
	case "sandbox":
		return VictoryConditionSandbox
	default:
		return VictoryConditionUnknown
	}
}

// RatingType selects which rating bucket an update applies to
type RatingType string

const (
	RatingTypeGlobal    RatingType = "GLOBAL"
	RatingTypeLadder1v1 RatingType = "LADDER_1V1"
)
