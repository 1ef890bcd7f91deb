package game

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a request error returned to the reporting client
type ErrorCode string

const (
	ErrAlreadyInGame                    ErrorCode = "ALREADY_IN_GAME"
	ErrNotInAGame                       ErrorCode = "NOT_IN_A_GAME"
	ErrNoSuchGame                       ErrorCode = "NO_SUCH_GAME"
	ErrGameNotJoinable                  ErrorCode = "GAME_NOT_JOINABLE"
	ErrInvalidPassword                  ErrorCode = "INVALID_PASSWORD"
	ErrHostOnlyOption                   ErrorCode = "HOST_ONLY_OPTION"
	ErrInvalidGameState                 ErrorCode = "INVALID_GAME_STATE"
	ErrInvalidPlayerGameStateTransition ErrorCode = "INVALID_PLAYER_GAME_STATE_TRANSITION"
	ErrInvalidFeaturedMod               ErrorCode = "INVALID_FEATURED_MOD"
	ErrCantRestoreGameDoesntExist       ErrorCode = "CANT_RESTORE_GAME_DOESNT_EXIST"
	ErrCantRestoreGameNotParticipant    ErrorCode = "CANT_RESTORE_GAME_NOT_PARTICIPANT"
)

// RequestError is a structured error returned to the requesting client.
// Telemetry failures (repeated client chatter) are logged instead; see the
// engine methods for which plane applies.
type RequestError struct {
	Code ErrorCode
	Args []interface{}
}

func (e *RequestError) Error() string {
	if len(e.Args) == 0 {
		return string(e.Code)
	}
	parts := make([]string, len(e.Args))
	for i, arg := range e.Args {
		parts[i] = fmt.Sprintf("%v", arg)
	}
	return fmt.Sprintf("%s: %s", e.Code, strings.Join(parts, ", "))
}

// NewRequestError builds a RequestError with the given code and arguments
func NewRequestError(code ErrorCode, args ...interface{}) *RequestError {
	return &RequestError{Code: code, Args: args}
}

// verify returns a RequestError with the given code unless the condition holds
func verify(condition bool, code ErrorCode, args ...interface{}) error {
	if condition {
		return nil
	}
	return NewRequestError(code, args...)
}
