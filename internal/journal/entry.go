package journal

import (
	"context"
	"fmt"

	"github.com/roach88/tally/ir"
)

// Entry is one applied action.
type Entry struct {
	ID         string
	SessionID  string
	Seq        int64
	ActionType string
	Action     ir.Action
	StateHash  string
}

// NewEntry builds the entry for action applied at seq, producing state.
func NewEntry(sessionID string, seq int64, action ir.Action, state ir.IRValue) (Entry, error) {
	id, err := ir.EntryID(sessionID, seq, action)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry: %w", err)
	}
	hash, err := ir.StateHash(state)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry: %w", err)
	}
	return Entry{
		ID:         id,
		SessionID:  sessionID,
		Seq:        seq,
		ActionType: action.TypeName(),
		Action:     action,
		StateHash:  hash,
	}, nil
}

// AppendEntry inserts an entry.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: rewriting the same entry is
// a no-op, while a different action at a seq already taken fails on the
// (session_id, seq) primary key.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (j *Journal) AppendEntry(ctx context.Context, e Entry) error {
	actionJSON, err := marshalAction(e.Action)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO entries
		(id, session_id, seq, action_type, action, state_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.SessionID,
		e.Seq,
		e.ActionType,
		actionJSON,
		e.StateHash,
	)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// ReadEntries returns every entry of a session in seq order.
// Returns an empty slice (not nil) if the session has no entries.
func (j *Journal) ReadEntries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, seq, action_type, action, state_hash
		FROM entries
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var actionJSON string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &e.ActionType, &actionJSON, &e.StateHash); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Action, err = unmarshalAction(actionJSON)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// LastSeq returns the highest seq recorded for a session, or 0.
func (j *Journal) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM entries WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// CountByType returns how many entries of each action type a session has.
func (j *Journal) CountByType(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT action_type, COUNT(*) FROM entries
		WHERE session_id = ?
		GROUP BY action_type
		ORDER BY action_type COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var actionType string
		var n int
		if err := rows.Scan(&actionType, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[actionType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}
