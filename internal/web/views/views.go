// Package views renders the HTML pages of the import server as templ
// components. Edit the .templ files and run `templ generate`.
package views

import (
	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/diaglog"
)

const timeLayout = diaglog.TimeLayout

// SummaryData is everything the summary page shows.
type SummaryData struct {
	// Run is nil when no import is active.
	Run    *core.ImportState
	Recent []core.Entry
}

func entryText(e core.Entry) string {
	return diaglog.Format(e)
}
