package journal

import (
	"database/sql"
	"fmt"

	"github.com/roach88/tally/ir"
)

// marshalAction converts an action to canonical JSON TEXT for storage.
func marshalAction(action ir.Action) (string, error) {
	data, err := ir.MarshalCanonical(action)
	if err != nil {
		return "", fmt.Errorf("marshal action: %w", err)
	}
	return string(data), nil
}

// unmarshalAction parses canonical JSON TEXT back to an action.
func unmarshalAction(data string) (ir.Action, error) {
	action, err := ir.ParseAction([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}
	return action, nil
}

// marshalState converts an optional state to canonical JSON. An absent
// state is stored as SQL NULL, which keeps it distinct from a JSON null.
func marshalState(state ir.IRValue) (sql.NullString, error) {
	if state == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(state)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal state: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalState(data sql.NullString) (ir.IRValue, error) {
	if !data.Valid {
		return nil, nil
	}
	state, err := ir.ParseJSON([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, nil
}
