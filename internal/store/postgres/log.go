package postgres

import (
	"context"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
)

// Log is a core.DiagnosticLog over the import_log table.
type Log struct {
	db DBTX
}

func NewLog(db DBTX) *Log {
	return &Log{db: db}
}

func (l *Log) Append(ctx context.Context, e core.Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := l.db.Exec(ctx,
		`INSERT INTO import_log (run_id, row_number, message, logged_at) VALUES ($1, $2, $3, $4)`,
		e.RunID, e.Row, e.Message, e.Time)
	return err
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]core.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(ctx,
		`SELECT run_id, row_number, message, logged_at FROM import_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]core.Entry, 0, limit)
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.RunID, &e.Row, &e.Message, &e.Time); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
