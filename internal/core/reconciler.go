package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/PostImport/internal/headers"
	"github.com/JonMunkholm/PostImport/internal/logging"
)

// Reconciler decides whether a row creates, updates or skips a record.
type Reconciler struct {
	records RecordStore
	terms   TaxonomyStore
	now     func() time.Time
}

// NewReconciler returns a Reconciler over the given stores.
func NewReconciler(records RecordStore, terms TaxonomyStore) *Reconciler {
	return &Reconciler{records: records, terms: terms, now: time.Now}
}

// Reconcile maps one row onto a record. fields holds the values of the
// resolved roles only; an absent role is a disabled feature.
func (r *Reconciler) Reconcile(ctx context.Context, fields map[headers.Role]string, skipExisting bool) Outcome {
	title := strings.TrimSpace(fields[headers.Title])
	body := strings.TrimSpace(fields[headers.Content])
	if title == "" {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipValidation, Err: &ValidationError{Field: "Title"}}
	}
	if body == "" {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipValidation, Err: &ValidationError{Field: "Content"}}
	}

	title = TransformTitle(title)
	if title == "" {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipValidation, Err: &ValidationError{Field: "Title"}}
	}

	recordType := valueOr(fields[headers.PostType], DefaultRecordType)
	status := valueOr(fields[headers.Status], DefaultRecordStatus)

	existing, err := r.findExisting(ctx, fields[headers.Identifier], title, recordType)
	if err != nil {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipStore, Err: err}
	}
	if existing != nil && skipExisting {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipDuplicate, Record: existing}
	}

	rec := existing
	kind := OutcomeUpdated
	if rec == nil {
		rec = &Record{Type: recordType}
		kind = OutcomeCreated
	}
	rec.Title = title
	rec.Content = fields[headers.Content]
	rec.Status = status
	rec.Date = ParseDate(fields[headers.Date], r.now())

	id, err := r.records.Upsert(ctx, rec)
	if err != nil {
		return Outcome{Kind: OutcomeSkipped, Reason: SkipStore, Err: &StoreError{Op: "upsert record", Err: err}}
	}
	rec.ID = id

	out := Outcome{Kind: kind, Record: rec}
	if raw, ok := fields[headers.Category]; ok && strings.TrimSpace(raw) != "" {
		out.Warnings = r.assignCategories(ctx, id, raw)
	}
	return out
}

// findExisting looks the record up by numeric identifier, then by title.
func (r *Reconciler) findExisting(ctx context.Context, identifier, title, recordType string) (*Record, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(identifier), 10, 64); err == nil && id > 0 {
		rec, err := r.records.FindByID(ctx, id)
		switch {
		case err == nil && rec.Type == recordType:
			return rec, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, &StoreError{Op: "find record by id", Err: err}
		}
	}

	rec, err := r.records.FindByTitleAndType(ctx, title, recordType)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "find record by title", Err: err}
	}
	return rec, nil
}

// assignCategories resolves each "|" separated name to a term and replaces
// the record's term set. Failures are returned as warnings.
func (r *Reconciler) assignCategories(ctx context.Context, recordID int64, raw string) []string {
	var (
		warnings []string
		ids      []int64
		seen     = make(map[int64]bool)
	)
	logger := logging.WithFields(ctx, "record_id", recordID)

	for _, name := range SplitCategories(raw) {
		term, err := r.terms.FindTermByName(ctx, name)
		if errors.Is(err, ErrNotFound) {
			term, err = r.terms.CreateTerm(ctx, name)
		}
		if err != nil {
			logger.Warn("category term unavailable", "term", name, "error", err)
			warnings = append(warnings, fmt.Sprintf("category %q: %v", name, err))
			continue
		}
		if !seen[term.ID] {
			seen[term.ID] = true
			ids = append(ids, term.ID)
		}
	}

	if len(ids) == 0 {
		return warnings
	}
	if err := r.terms.SetRecordTerms(ctx, recordID, ids); err != nil {
		logger.Warn("assign categories failed", "error", err)
		warnings = append(warnings, fmt.Sprintf("assign categories: %v", err))
	}
	return warnings
}

// SplitCategories splits a "|" separated list, trimming names and dropping
// empty ones.
func SplitCategories(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, "|") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func valueOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
