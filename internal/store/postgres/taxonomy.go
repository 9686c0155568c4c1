package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/PostImport/internal/core"
)

// Taxonomy is a core.TaxonomyStore over the terms and post_terms tables.
type Taxonomy struct {
	db DB
}

func NewTaxonomy(db DB) *Taxonomy {
	return &Taxonomy{db: db}
}

func (s *Taxonomy) FindTermByName(ctx context.Context, name string) (*core.Term, error) {
	var t core.Term
	err := s.db.QueryRow(ctx, `SELECT id, name FROM terms WHERE name = $1`, name).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// CreateTerm returns the existing term when name is already taken.
func (s *Taxonomy) CreateTerm(ctx context.Context, name string) (*core.Term, error) {
	var t core.Term
	err := s.db.QueryRow(ctx,
		`INSERT INTO terms (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name`, name).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, fmt.Errorf("create term %q: %w", name, err)
	}
	return &t, nil
}

func (s *Taxonomy) SetRecordTerms(ctx context.Context, recordID int64, termIDs []int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, `DELETE FROM post_terms WHERE post_id = $1`, recordID); err != nil {
		return fmt.Errorf("clear terms of post %d: %w", recordID, err)
	}
	if len(termIDs) > 0 {
		_, err := tx.Exec(ctx,
			`INSERT INTO post_terms (post_id, term_id)
			SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`,
			recordID, termIDs)
		if err != nil {
			return fmt.Errorf("assign terms to post %d: %w", recordID, err)
		}
	}
	return tx.Commit(ctx)
}

// RecordTerms returns the term names linked to a record, sorted.
func (s *Taxonomy) RecordTerms(ctx context.Context, recordID int64) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.name FROM post_terms pt JOIN terms t ON t.id = pt.term_id
		WHERE pt.post_id = $1 ORDER BY t.name`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
