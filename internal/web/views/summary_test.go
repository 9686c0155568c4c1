package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, data SummaryData) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Summary(data).Render(context.Background(), &buf))
	return buf.String()
}

func TestSummary_NoRun(t *testing.T) {
	html := render(t, SummaryData{})
	assert.Contains(t, html, "No import running.")
	assert.Contains(t, html, `action="/api/imports"`)
	assert.Contains(t, html, "Nothing logged yet.")
}

func TestSummary_ActiveRun(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	html := render(t, SummaryData{
		Run: &core.ImportState{
			RunID:      "run-1",
			SourceFile: "/data/imports/posts.csv",
			RowCursor:  12,
			Phase:      core.PhaseSuspended,
			Counters:   core.Counters{Created: 7, Updated: 2, Skipped: 1},
			UpdatedAt:  at,
		},
		Recent: []core.Entry{{Time: at, Row: 4, Message: `skipped <b>"x"</b>`}},
	})

	assert.Contains(t, html, "posts.csv")
	assert.NotContains(t, html, "/data/imports")
	assert.Contains(t, html, "7 created, 2 updated, 1 skipped")
	assert.Contains(t, html, "Cancel import")
	assert.NotContains(t, html, `action="/api/imports"`)
	assert.Contains(t, html, "row 4: skipped &lt;b&gt;")
	assert.Equal(t, 1, strings.Count(html, "row 4:"))
	assert.NotContains(t, html, "<b>")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestSummary_WriteError(t *testing.T) {
	err := Summary(SummaryData{}).Render(context.Background(), failingWriter{})
	assert.ErrorIs(t, err, assert.AnError)
}
