// Package diaglog writes the per-row diagnostic trail to a plain text file.
package diaglog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
)

// TimeLayout formats the bracketed timestamp that starts every line.
const TimeLayout = "2006-01-02 15:04:05"

// File is an append-only core.DiagnosticLog. Each entry becomes one line of
// the form "[timestamp] message".
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens path for appending, creating it and its directory if needed.
func Open(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open diagnostic log: %w", err)
	}
	return &File{f: f, path: path}, nil
}

// Path returns the log file location.
func (l *File) Path() string {
	return l.path
}

func (l *File) Append(_ context.Context, e core.Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := fmt.Fprintf(l.f, "[%s] %s\n", e.Time.Format(TimeLayout), Format(e))
	return err
}

// Close closes the underlying file.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Format renders the message part of a line, prefixing the row number when
// the entry belongs to one.
func Format(e core.Entry) string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return e.Message
}
