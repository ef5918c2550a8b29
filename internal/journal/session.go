package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tally/ir"
)

// Session describes one store lifetime.
type Session struct {
	ID               string
	SpecHash         string
	Preloaded        ir.IRValue // nil when the store had no preloaded state
	InitialStateHash string
	EngineVersion    string
	IRVersion        string
}

// NewSession builds a Session for a store that has just been created from
// preloaded and now holds initial.
func NewSession(id, specHash string, preloaded, initial ir.IRValue) (Session, error) {
	hash, err := ir.StateHash(initial)
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	return Session{
		ID:               id,
		SpecHash:         specHash,
		Preloaded:        preloaded,
		InitialStateHash: hash,
		EngineVersion:    ir.EngineVersion,
		IRVersion:        ir.IRVersion,
	}, nil
}

// CreateSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (j *Journal) CreateSession(ctx context.Context, s Session) error {
	preloaded, err := marshalState(s.Preloaded)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, spec_hash, preloaded, initial_state_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		s.ID,
		s.SpecHash,
		preloaded,
		s.InitialStateHash,
		s.EngineVersion,
		s.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
// Returns sql.ErrNoRows (wrapped) if not found.
func (j *Journal) GetSession(ctx context.Context, id string) (Session, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, spec_hash, preloaded, initial_state_hash, engine_version, ir_version
		FROM sessions
		WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// ListSessions returns every session ordered by ID. UUIDv7 IDs make this
// creation order.
func (j *Journal) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, spec_hash, preloaded, initial_state_hash, engine_version, ir_version
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var preloaded sql.NullString
	if err := row.Scan(&s.ID, &s.SpecHash, &preloaded, &s.InitialStateHash, &s.EngineVersion, &s.IRVersion); err != nil {
		return Session{}, err
	}
	state, err := unmarshalState(preloaded)
	if err != nil {
		return Session{}, err
	}
	s.Preloaded = state
	return s, nil
}
