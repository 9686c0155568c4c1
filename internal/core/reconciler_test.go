package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/headers"
	"github.com/JonMunkholm/PostImport/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func newReconciler() (*core.Reconciler, *memory.Records, *memory.Taxonomy) {
	records := memory.NewRecords()
	terms := memory.NewTaxonomy()
	r := core.NewReconciler(records, terms)
	core.SetReconcilerClock(r, func() time.Time { return fixedNow })
	return r, records, terms
}

func row(kv ...string) map[headers.Role]string {
	m := make(map[headers.Role]string)
	for i := 0; i+1 < len(kv); i += 2 {
		m[headers.Role(kv[i])] = kv[i+1]
	}
	return m
}

func TestReconcile_Validation(t *testing.T) {
	tests := []struct {
		name   string
		fields map[headers.Role]string
		field  string
	}{
		{name: "empty title", fields: row("title", "", "content", "<p>x</p>"), field: "Title"},
		{name: "blank title", fields: row("title", "   ", "content", "<p>x</p>"), field: "Title"},
		{name: "empty content", fields: row("title", "A", "content", ""), field: "Content"},
		{name: "invalid bytes only", fields: row("title", "\xff\xfe", "content", "x"), field: "Title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, records, _ := newReconciler()
			out := r.Reconcile(context.Background(), tt.fields, false)

			assert.Equal(t, core.OutcomeSkipped, out.Kind)
			assert.Equal(t, core.SkipValidation, out.Reason)
			var verr *core.ValidationError
			require.True(t, errors.As(out.Err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, records.Upserts())
		})
	}
}

func TestReconcile_CreateUpdateSkip(t *testing.T) {
	r, records, _ := newReconciler()
	ctx := context.Background()
	fields := row("title", "MY FIRST POST", "content", "<p>hi</p>")

	created := r.Reconcile(ctx, fields, false)
	require.Equal(t, core.OutcomeCreated, created.Kind)
	assert.Equal(t, "My first post", created.Record.Title)
	assert.Equal(t, core.DefaultRecordType, created.Record.Type)
	assert.Equal(t, core.DefaultRecordStatus, created.Record.Status)
	assert.Equal(t, fixedNow, created.Record.Date)

	updated := r.Reconcile(ctx, row("title", "my first post", "content", "<p>new</p>"), false)
	require.Equal(t, core.OutcomeUpdated, updated.Kind)
	assert.Equal(t, created.Record.ID, updated.Record.ID)

	skipped := r.Reconcile(ctx, fields, true)
	assert.Equal(t, core.OutcomeSkipped, skipped.Kind)
	assert.Equal(t, core.SkipDuplicate, skipped.Reason)
	assert.Equal(t, created.Record.ID, skipped.Record.ID)

	all := records.All()
	require.Len(t, all, 1)
	assert.Equal(t, "<p>new</p>", all[0].Content)
	assert.Equal(t, 2, records.Upserts())
}

func TestReconcile_IdentityByID(t *testing.T) {
	r, records, _ := newReconciler()
	ctx := context.Background()

	orig := r.Reconcile(ctx, row("title", "Original", "content", "x"), false)
	require.Equal(t, core.OutcomeCreated, orig.Kind)
	id := orig.Record.ID

	renamed := r.Reconcile(ctx, row("identifier", " 1 ", "title", "Renamed", "content", "y"), false)
	require.Equal(t, core.OutcomeUpdated, renamed.Kind)
	assert.Equal(t, id, renamed.Record.ID)
	assert.Equal(t, "Renamed", renamed.Record.Title)

	otherType := r.Reconcile(ctx, row("identifier", "1", "title", "Renamed", "content", "z", "post_type", "page"), false)
	assert.Equal(t, core.OutcomeCreated, otherType.Kind, "id match with a different type must not be reused")

	unknownID := r.Reconcile(ctx, row("identifier", "999", "title", "renamed", "content", "w"), false)
	assert.Equal(t, core.OutcomeUpdated, unknownID.Kind, "unknown id falls back to title")
	assert.Equal(t, id, unknownID.Record.ID)

	assert.Len(t, records.All(), 2)
}

func TestReconcile_FieldsAndDate(t *testing.T) {
	r, _, _ := newReconciler()
	out := r.Reconcile(context.Background(), row(
		"title", "Draft page", "content", "x",
		"post_type", "page", "status", "draft",
		"date", "2021-02-03 04:05:06",
	), false)

	require.Equal(t, core.OutcomeCreated, out.Kind)
	assert.Equal(t, "page", out.Record.Type)
	assert.Equal(t, "draft", out.Record.Status)
	assert.Equal(t, time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC), out.Record.Date)
}

func TestReconcile_CategoriesReplaceSet(t *testing.T) {
	r, _, terms := newReconciler()
	ctx := context.Background()

	first := r.Reconcile(ctx, row("title", "A", "content", "x", "category", "News| Tech ||News"), false)
	require.Equal(t, core.OutcomeCreated, first.Kind)
	assert.Empty(t, first.Warnings)
	assert.Equal(t, []string{"News", "Tech"}, terms.RecordTerms(first.Record.ID))

	second := r.Reconcile(ctx, row("title", "A", "content", "x", "category", "Sports"), false)
	require.Equal(t, core.OutcomeUpdated, second.Kind)
	assert.Equal(t, []string{"Sports"}, terms.RecordTerms(first.Record.ID))

	third := r.Reconcile(ctx, row("title", "A", "content", "x", "category", "  "), false)
	require.Equal(t, core.OutcomeUpdated, third.Kind)
	assert.Equal(t, []string{"Sports"}, terms.RecordTerms(first.Record.ID), "empty value leaves terms alone")
}

type failingRecords struct {
	*memory.Records
	upsertErr error
	findErr   error
}

func (f *failingRecords) Upsert(ctx context.Context, rec *core.Record) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	return f.Records.Upsert(ctx, rec)
}

func (f *failingRecords) FindByTitleAndType(ctx context.Context, title, recordType string) (*core.Record, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Records.FindByTitleAndType(ctx, title, recordType)
}

func TestReconcile_StoreErrors(t *testing.T) {
	tests := []struct {
		name  string
		store *failingRecords
	}{
		{name: "upsert fails", store: &failingRecords{Records: memory.NewRecords(), upsertErr: errors.New("disk full")}},
		{name: "lookup fails", store: &failingRecords{Records: memory.NewRecords(), findErr: errors.New("connection reset")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := core.NewReconciler(tt.store, memory.NewTaxonomy())
			out := r.Reconcile(context.Background(), row("title", "A", "content", "x"), false)

			assert.Equal(t, core.OutcomeSkipped, out.Kind)
			assert.Equal(t, core.SkipStore, out.Reason)
			var serr *core.StoreError
			assert.True(t, errors.As(out.Err, &serr))
		})
	}
}

type flakyTaxonomy struct {
	*memory.Taxonomy
	failName string
	setErr   error
}

func (f *flakyTaxonomy) CreateTerm(ctx context.Context, name string) (*core.Term, error) {
	if name == f.failName {
		return nil, errors.New("term insert failed")
	}
	return f.Taxonomy.CreateTerm(ctx, name)
}

func (f *flakyTaxonomy) SetRecordTerms(ctx context.Context, recordID int64, ids []int64) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Taxonomy.SetRecordTerms(ctx, recordID, ids)
}

func TestReconcile_TermErrorsArePartial(t *testing.T) {
	tax := &flakyTaxonomy{Taxonomy: memory.NewTaxonomy(), failName: "Broken"}
	r := core.NewReconciler(memory.NewRecords(), tax)

	out := r.Reconcile(context.Background(), row("title", "A", "content", "x", "category", "Good|Broken"), false)
	require.Equal(t, core.OutcomeCreated, out.Kind)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "Broken")
	assert.Equal(t, []string{"Good"}, tax.RecordTerms(out.Record.ID))

	tax.setErr = errors.New("link failed")
	out = r.Reconcile(context.Background(), row("title", "B", "content", "x", "category", "Good"), false)
	require.Equal(t, core.OutcomeCreated, out.Kind)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "assign categories")
}

func TestSplitCategories(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"News|Tech", []string{"News", "Tech"}},
		{" a | | b ", []string{"a", "b"}},
		{"", nil},
		{"|", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, core.SplitCategories(tt.in), tt.in)
	}
}
