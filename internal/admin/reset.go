// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/PostImport/internal/store/postgres"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// Resetter clears imported data.
type Resetter struct {
	DB postgres.DBTX
}

type resetFn func(ctx context.Context) error

// ResetAll deletes every post, term, asset row, log line and the active run.
// Asset files on disk are left in place.
// This is a destructive operation - use with caution.
func (r *Resetter) ResetAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	return r.runResets(ctx, []resetFn{
		r.ResetState,
		r.truncate("import_log"),
		r.truncate("post_terms"),
		r.truncate("terms"),
		r.truncate("assets"),
		r.truncate("posts"),
	})
}

// ResetState drops the active run without touching imported posts. The
// temporary source file of that run is not removed.
func (r *Resetter) ResetState(ctx context.Context) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM import_state`); err != nil {
		return fmt.Errorf("reset import_state: %w", err)
	}
	return nil
}

func (r *Resetter) truncate(table string) resetFn {
	return func(ctx context.Context) error {
		if _, err := r.DB.Exec(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
		return nil
	}
}

func (r *Resetter) runResets(ctx context.Context, resets []resetFn) error {
	for _, reset := range resets {
		if err := reset(ctx); err != nil {
			return err
		}
	}
	return nil
}
