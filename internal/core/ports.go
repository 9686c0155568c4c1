package core

import (
	"context"
	"time"
)

// RecordStore persists imported posts. Finders return ErrNotFound when no
// record matches.
type RecordStore interface {
	FindByID(ctx context.Context, id int64) (*Record, error)
	FindByTitleAndType(ctx context.Context, title, recordType string) (*Record, error)
	// Upsert creates the record when ID is zero and updates it otherwise.
	// It returns the record id.
	Upsert(ctx context.Context, rec *Record) (int64, error)
}

// TaxonomyStore manages category terms.
type TaxonomyStore interface {
	FindTermByName(ctx context.Context, name string) (*Term, error)
	CreateTerm(ctx context.Context, name string) (*Term, error)
	// SetRecordTerms replaces the record's term set.
	SetRecordTerms(ctx context.Context, recordID int64, termIDs []int64) error
}

// AssetStore indexes media files by derived name.
type AssetStore interface {
	FindByDerivedName(ctx context.Context, name string) (*Asset, error)
	Store(ctx context.Context, in NewAsset) (*Asset, error)
	// GenerateMetadata fills derived attributes such as image dimensions.
	// Stores that cannot do so return nil.
	GenerateMetadata(ctx context.Context, assetID int64) error
}

// BlobStore holds asset bytes.
type BlobStore interface {
	Put(ctx context.Context, filename string, data []byte) (path string, err error)
	Dimensions(ctx context.Context, path string) (width, height int, err error)
}

// AssetResolver turns a remote URL into a stored asset.
type AssetResolver interface {
	Resolve(ctx context.Context, url string, recordID int64) (*Asset, error)
}

// Scheduler delivers triggers at least once.
type Scheduler interface {
	ScheduleOnce(ctx context.Context, t Trigger) error
}

// DiagnosticLog is the append-only per-row trail.
type DiagnosticLog interface {
	Append(ctx context.Context, e Entry) error
}

// StateStore holds the single active ImportState.
type StateStore interface {
	// Create stores st if no run is active and sets st.Version to 1.
	// It returns ErrRunActive otherwise.
	Create(ctx context.Context, st *ImportState) error
	// Load returns the active state or ErrNoActiveRun.
	Load(ctx context.Context) (*ImportState, error)
	// CompareAndSwap writes st if the stored version equals st.Version and
	// increments st.Version on success. It returns ErrStateConflict when the
	// stored version differs or the run is gone.
	CompareAndSwap(ctx context.Context, st *ImportState) error
	// Delete removes the state if it belongs to runID. Deleting an absent
	// run is not an error.
	Delete(ctx context.Context, runID string) error
	// Clear removes whatever state is stored, including one that no longer
	// decodes. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Metrics receives import events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RowProcessed(kind OutcomeKind, reason SkipReason)
	AssetResolved(result string)
	ChunkFinished(phase Phase, elapsed time.Duration)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) RowProcessed(OutcomeKind, SkipReason) {}
func (NopMetrics) AssetResolved(string)                 {}
func (NopMetrics) ChunkFinished(Phase, time.Duration)   {}
