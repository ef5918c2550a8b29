package engine

import (
	"errors"
	"fmt"
)

// Error represents a contract violation detected by the store or a
// composite reducer.
//
// Errors are synchronous and the engine never retries. Codes:
//   - ErrCodeArgument: a required function argument was nil, or options conflict
//   - ErrCodeActionShape: an action was not an object or had no defined type
//   - ErrCodeReentrancy: the store was used while its reducer was running
//   - ErrCodeReducerContract: a reducer returned an absent (nil) value
//   - ErrCodeObserver: an observable subscription got a nil observer
//   - ErrCodeMiddlewareConstruction: middleware dispatched while being built
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key names the reducer slice involved (composite reducers only).
	Key string

	// ActionType is the type of the action being processed, if any.
	ActionType string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeArgument indicates a nil function argument or conflicting options.
	ErrCodeArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeActionShape indicates a malformed action.
	ErrCodeActionShape ErrorCode = "INVALID_ACTION"

	// ErrCodeReentrancy indicates a store call made while the reducer was running.
	ErrCodeReentrancy ErrorCode = "REENTRANT_CALL"

	// ErrCodeReducerContract indicates a reducer returned an absent value.
	ErrCodeReducerContract ErrorCode = "REDUCER_CONTRACT"

	// ErrCodeObserver indicates an invalid observer.
	ErrCodeObserver ErrorCode = "INVALID_OBSERVER"

	// ErrCodeMiddlewareConstruction indicates dispatch during middleware setup.
	ErrCodeMiddlewareConstruction ErrorCode = "MIDDLEWARE_CONSTRUCTION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.ActionType != "":
		return fmt.Sprintf("%s: %s (key=%s, action=%s)", e.Code, e.Message, e.Key, e.ActionType)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	case e.ActionType != "":
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.ActionType)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsArgumentError reports whether err is an ErrCodeArgument error.
// Middleware construction errors count as argument errors.
func IsArgumentError(err error) bool {
	return hasCode(err, ErrCodeArgument) || hasCode(err, ErrCodeMiddlewareConstruction)
}

// IsActionShapeError reports whether err is an ErrCodeActionShape error.
func IsActionShapeError(err error) bool {
	return hasCode(err, ErrCodeActionShape)
}

// IsReentrancyError reports whether err is an ErrCodeReentrancy error.
func IsReentrancyError(err error) bool {
	return hasCode(err, ErrCodeReentrancy)
}

// IsReducerContractError reports whether err is an ErrCodeReducerContract error.
func IsReducerContractError(err error) bool {
	return hasCode(err, ErrCodeReducerContract)
}

// IsObserverError reports whether err is an ErrCodeObserver error.
func IsObserverError(err error) bool {
	return hasCode(err, ErrCodeObserver)
}

func argumentError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeArgument, Message: fmt.Sprintf(format, args...)}
}

func reentrancyError(message string) *Error {
	return &Error{Code: ErrCodeReentrancy, Message: message}
}

// NewReducerContractError builds the error raised when a reducer returns an
// absent value. key is empty for a root reducer.
func NewReducerContractError(key, actionType, message string) *Error {
	return &Error{
		Code:       ErrCodeReducerContract,
		Message:    message,
		Key:        key,
		ActionType: actionType,
	}
}
