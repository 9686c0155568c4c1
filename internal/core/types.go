package core

import (
	"time"

	"github.com/JonMunkholm/PostImport/internal/headers"
)

// Phase is the lifecycle position of an import run.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInitializing Phase = "initializing"
	PhaseRunning      Phase = "running"
	PhaseSuspended    Phase = "suspended"
	PhaseCompleted    Phase = "completed"
	PhaseAborted      Phase = "aborted"
)

// Default record attributes applied when a row leaves them blank.
const (
	DefaultRecordType   = "post"
	DefaultRecordStatus = "publish"
)

// FirstDataRow is the row number of the first row after the header.
const FirstDataRow = 2

// Counters aggregates row outcomes for a run.
type Counters struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Total returns the number of rows accounted for.
func (c Counters) Total() int {
	return c.Created + c.Updated + c.Skipped
}

// ImportState is the persisted snapshot of the single active run.
// ByteOffset always points at the start of the next unread row and
// RowCursor is that row's 1-based number (the header is row 1).
type ImportState struct {
	RunID          string                  `json:"run_id"`
	SourceFile     string                  `json:"source_file"`
	RowCursor      int                     `json:"row_cursor"`
	ByteOffset     int64                   `json:"byte_offset"`
	ChunkSize      int                     `json:"chunk_size"`
	SkipExisting   bool                    `json:"skip_existing"`
	Delimiter      string                  `json:"delimiter"`
	Headers        []string                `json:"headers"`
	ResolvedFields map[headers.Role]string `json:"resolved_fields"`
	Counters       Counters                `json:"counters"`
	Phase          Phase                   `json:"phase"`

	// Version is bumped by the state store on every successful write.
	Version    int64     `json:"version"`
	LeaseOwner string    `json:"lease_owner,omitempty"`
	LeaseUntil time.Time `json:"lease_until,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolved rebuilds the header resolution captured at start.
func (s *ImportState) Resolved() headers.Resolved {
	return headers.Resolved{Headers: s.Headers, Fields: s.ResolvedFields}
}

// DelimiterRune returns the run's delimiter, defaulting to a comma.
func (s *ImportState) DelimiterRune() rune {
	for _, r := range s.Delimiter {
		return r
	}
	return ','
}

// LeaseHeld reports whether another chunk holds a live lease at now.
func (s *ImportState) LeaseHeld(now time.Time) bool {
	return s.LeaseOwner != "" && now.Before(s.LeaseUntil)
}

// Clone returns a deep copy.
func (s *ImportState) Clone() *ImportState {
	c := *s
	c.Headers = append([]string(nil), s.Headers...)
	c.ResolvedFields = make(map[headers.Role]string, len(s.ResolvedFields))
	for k, v := range s.ResolvedFields {
		c.ResolvedFields[k] = v
	}
	return &c
}

// Record is an imported post.
type Record struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	Date            time.Time `json:"date"`
	FeaturedAssetID int64     `json:"featured_asset_id,omitempty"`
	GalleryAssetIDs []int64   `json:"gallery_asset_ids,omitempty"`
}

// Term is a category in the taxonomy store.
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Asset is a stored media file. DerivedName is its dedup identity.
type Asset struct {
	ID          int64  `json:"id"`
	DerivedName string `json:"derived_name"`
	GUID        string `json:"guid"`
	Filename    string `json:"filename"`
	Path        string `json:"path,omitempty"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// NewAsset is the input to AssetStore.Store.
type NewAsset struct {
	Data        []byte
	Filename    string
	GUID        string
	DerivedName string
	MimeType    string
	RecordID    int64
}

// Trigger asks the scheduler to run the next chunk of a run.
type Trigger struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
}

// Trigger reasons.
const (
	ReasonStart    = "start"
	ReasonContinue = "continue"
	ReasonSweep    = "sweep"
	ReasonManual   = "manual"
)

// Entry is one line of the diagnostic trail.
type Entry struct {
	Time    time.Time
	RunID   string
	Row     int
	Message string
}

// OutcomeKind classifies what happened to a row.
type OutcomeKind string

const (
	OutcomeCreated OutcomeKind = "created"
	OutcomeUpdated OutcomeKind = "updated"
	OutcomeSkipped OutcomeKind = "skipped"
)

// SkipReason explains a skipped row.
type SkipReason string

const (
	SkipBlank      SkipReason = "blank"
	SkipValidation SkipReason = "validation"
	SkipDuplicate  SkipReason = "duplicate"
	SkipStore      SkipReason = "store"
)

// Outcome is the result of reconciling one row.
type Outcome struct {
	Kind   OutcomeKind
	Reason SkipReason
	Record *Record
	Err    error

	// Warnings are non-fatal problems, such as a category that could not be
	// created.
	Warnings []string
}

// StartRequest describes a new import.
type StartRequest struct {
	SourceFile   string
	SkipExisting bool
	Delimiter    rune
	ChunkSize    int
}

// ChunkResult summarizes one RunChunk invocation.
type ChunkResult struct {
	RunID     string   `json:"run_id"`
	Phase     Phase    `json:"phase"`
	Processed int      `json:"processed"`
	RowCursor int      `json:"row_cursor"`
	Counters  Counters `json:"counters"`
}
