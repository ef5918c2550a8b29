package engine

import (
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/tally/ir"
)

// Reserved action types.
//
// These are private to the engine: reducers must never switch on them. Any
// reducer that returns its current state for unknown types handles them
// correctly. The random suffix is generated once per process so application
// action types cannot collide with them by accident.
var (
	// ActionTypeInit seeds the initial state when a store is created.
	ActionTypeInit = "@@tally/INIT" + randomSuffix()

	// ActionTypeReplace re-seeds state after ReplaceReducer.
	ActionTypeReplace = "@@tally/REPLACE" + randomSuffix()
)

const probeUnknownActionPrefix = "@@tally/PROBE_UNKNOWN_ACTION"

// ProbeUnknownActionType returns a fresh action type that no reducer can know
// about. Each call returns a different value.
func ProbeUnknownActionType() string {
	return probeUnknownActionPrefix + randomSuffix()
}

// IsReservedActionType reports whether t is one of the engine's private types.
func IsReservedActionType(t ir.IRValue) bool {
	s, ok := t.(ir.IRString)
	if !ok {
		return false
	}
	return string(s) == ActionTypeInit ||
		string(s) == ActionTypeReplace ||
		strings.HasPrefix(string(s), probeUnknownActionPrefix)
}

// randomSuffix returns ".xxxx.xxxx" built from random UUID bits.
func randomSuffix() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "." + hex[:6] + "." + hex[6:12]
}

func initAction() ir.Action {
	return ir.NewAction(ActionTypeInit)
}

func replaceAction() ir.Action {
	return ir.NewAction(ActionTypeReplace)
}

func probeAction() ir.Action {
	return ir.NewAction(ProbeUnknownActionType())
}
