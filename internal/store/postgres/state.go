package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/jackc/pgx/v5"
)

// State is a core.StateStore holding the active run in the single
// import_state row. The version column backs compare-and-swap.
type State struct {
	db DBTX
}

func NewState(db DBTX) *State {
	return &State{db: db}
}

func (s *State) Create(ctx context.Context, st *core.ImportState) error {
	st.Version = 1
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode import state: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO import_state (run_id, version, payload) VALUES ($1, $2, $3)
		ON CONFLICT (slot) DO NOTHING`,
		st.RunID, st.Version, payload)
	if err != nil {
		return fmt.Errorf("insert import state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRunActive
	}
	return nil
}

func (s *State) Load(ctx context.Context) (*core.ImportState, error) {
	var (
		payload []byte
		version int64
	)
	err := s.db.QueryRow(ctx, `SELECT payload, version FROM import_state WHERE slot = 'active'`).Scan(&payload, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNoActiveRun
		}
		return nil, fmt.Errorf("load import state: %w", err)
	}

	var st core.ImportState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStateCorruption, err)
	}
	st.Version = version
	return &st, nil
}

func (s *State) CompareAndSwap(ctx context.Context, st *core.ImportState) error {
	next := st.Clone()
	next.Version = st.Version + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode import state: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE import_state SET version = $1, payload = $2, updated_at = now()
		WHERE slot = 'active' AND run_id = $3 AND version = $4`,
		next.Version, payload, st.RunID, st.Version)
	if err != nil {
		return fmt.Errorf("update import state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrStateConflict
	}
	st.Version = next.Version
	return nil
}

func (s *State) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM import_state WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("delete import state: %w", err)
	}
	return nil
}

func (s *State) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM import_state WHERE slot = 'active'`); err != nil {
		return fmt.Errorf("clear import state: %w", err)
	}
	return nil
}
