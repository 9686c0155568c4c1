package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/PostImport/internal/content"
	"github.com/JonMunkholm/PostImport/internal/csvfile"
	"github.com/JonMunkholm/PostImport/internal/gallery"
	"github.com/JonMunkholm/PostImport/internal/headers"
	"github.com/JonMunkholm/PostImport/internal/logging"
	"github.com/google/uuid"
)

// releaseTimeout bounds the lease release issued after the chunk context
// is done.
const releaseTimeout = 5 * time.Second

// RunnerConfig tunes chunk execution.
type RunnerConfig struct {
	ChunkSize       int
	ExecutionBudget time.Duration
	BudgetFraction  float64
	LeaseTTL        time.Duration
	// PollInterval is how long RunToCompletion waits on a busy lease.
	PollInterval time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 25
	}
	if c.ExecutionBudget <= 0 {
		c.ExecutionBudget = 30 * time.Second
	}
	if c.BudgetFraction <= 0 || c.BudgetFraction > 1 {
		c.BudgetFraction = 0.8
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return c
}

// softBudget is the elapsed time after which a chunk stops taking rows.
func (c RunnerConfig) softBudget() time.Duration {
	return time.Duration(float64(c.ExecutionBudget) * c.BudgetFraction)
}

// Deps are the collaborators of a Runner.
type Deps struct {
	State      StateStore
	Records    RecordStore
	Taxonomy   TaxonomyStore
	Assets     AssetResolver
	Scheduler  Scheduler
	Diagnostic DiagnosticLog
	Headers    *headers.Resolver
	Metrics    Metrics
}

// Runner drives an import through its chunks. Every state write is a
// compare-and-swap, so concurrent triggers for the same run are tolerated.
type Runner struct {
	state      StateStore
	records    RecordStore
	reconciler *Reconciler
	assets     AssetResolver
	scheduler  Scheduler
	diag       DiagnosticLog
	headers    *headers.Resolver
	metrics    Metrics
	cfg        RunnerConfig
	now        func() time.Time
}

// NewRunner wires a Runner. Metrics and Headers may be nil.
func NewRunner(deps Deps, cfg RunnerConfig) *Runner {
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Headers == nil {
		deps.Headers = headers.NewResolver(nil)
	}
	return &Runner{
		state:      deps.State,
		records:    deps.Records,
		reconciler: NewReconciler(deps.Records, deps.Taxonomy),
		assets:     deps.Assets,
		scheduler:  deps.Scheduler,
		diag:       deps.Diagnostic,
		headers:    deps.Headers,
		metrics:    deps.Metrics,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// Start validates the source header, persists a new ImportState and
// schedules the first chunk. The source file belongs to the run from here
// on and is deleted when the run ends or is rejected.
func (r *Runner) Start(ctx context.Context, req StartRequest) (*ImportState, error) {
	if _, err := r.loadState(ctx); err == nil {
		return nil, ErrRunActive
	} else if !errors.Is(err, ErrNoActiveRun) && !errors.Is(err, ErrStateCorruption) {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if req.Delimiter == 0 {
		req.Delimiter = ','
	}
	if req.ChunkSize <= 0 {
		req.ChunkSize = r.cfg.ChunkSize
	}

	reader, err := csvfile.Open(req.SourceFile, req.Delimiter)
	if err != nil {
		r.removeSource(ctx, req.SourceFile)
		r.metrics.ChunkFinished(PhaseAborted, 0)
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer reader.Close()

	raw, err := reader.ReadHeader()
	if err != nil {
		r.removeSource(ctx, req.SourceFile)
		r.metrics.ChunkFinished(PhaseAborted, 0)
		if errors.Is(err, csvfile.ErrNoHeader) {
			return nil, &StructuralError{Err: err}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	resolved, err := r.headers.Resolve(raw)
	if err != nil {
		r.removeSource(ctx, req.SourceFile)
		r.metrics.ChunkFinished(PhaseAborted, 0)
		r.record(ctx, "", 1, "Import aborted: %v", err)
		return nil, &StructuralError{Err: err}
	}

	now := r.now()
	st := &ImportState{
		RunID:          uuid.New().String(),
		SourceFile:     req.SourceFile,
		RowCursor:      FirstDataRow,
		ByteOffset:     reader.Offset(),
		ChunkSize:      req.ChunkSize,
		SkipExisting:   req.SkipExisting,
		Delimiter:      string(req.Delimiter),
		Headers:        resolved.Headers,
		ResolvedFields: resolved.Fields,
		Phase:          PhaseInitializing,
		StartedAt:      now,
		UpdatedAt:      now,
	}

	if err := r.state.Create(ctx, st); err != nil {
		r.removeSource(ctx, req.SourceFile)
		return nil, err
	}

	ctx = logging.WithRunID(ctx, st.RunID)
	logging.FromContext(ctx).Info("import started",
		"source", st.SourceFile,
		"chunk_size", st.ChunkSize,
		"skip_existing", st.SkipExisting,
		"resolved", len(st.ResolvedFields),
	)
	r.record(ctx, st.RunID, 1, "Import started with columns %s", strings.Join(st.Headers, ", "))

	r.schedule(ctx, st.RunID, ReasonStart)
	return st, nil
}

// RunChunk processes the next chunk of runID. An empty runID targets the
// active run. Stale or duplicate triggers return ErrNoActiveRun or
// ErrChunkInProgress without side effects.
func (r *Runner) RunChunk(ctx context.Context, runID string) (ChunkResult, error) {
	start := r.now()

	st, err := r.loadState(ctx)
	if errors.Is(err, ErrStateCorruption) {
		return ChunkResult{RunID: runID, Phase: PhaseAborted}, err
	}
	if err != nil {
		return ChunkResult{RunID: runID, Phase: PhaseIdle}, err
	}
	if runID != "" && st.RunID != runID {
		return ChunkResult{RunID: runID, Phase: PhaseIdle}, ErrNoActiveRun
	}
	if st.LeaseHeld(start) {
		return resultOf(st, 0), ErrChunkInProgress
	}

	ctx = logging.WithRunID(ctx, st.RunID)
	logger := logging.FromContext(ctx)

	st.LeaseOwner = uuid.New().String()
	st.LeaseUntil = start.Add(r.cfg.LeaseTTL)
	st.Phase = PhaseRunning
	st.UpdatedAt = start
	if err := r.state.CompareAndSwap(ctx, st); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return resultOf(st, 0), ErrChunkInProgress
		}
		return resultOf(st, 0), fmt.Errorf("claim lease: %w", err)
	}

	reader, err := csvfile.Open(st.SourceFile, st.DelimiterRune())
	if err != nil {
		return r.abort(ctx, st, fmt.Errorf("%w: open source: %v", ErrStateCorruption, err))
	}
	defer reader.Close()

	if err := reader.Seek(st.ByteOffset); err != nil {
		return r.abort(ctx, st, fmt.Errorf("%w: %v", ErrStateCorruption, err))
	}

	resolved := st.Resolved()
	index := resolved.Index()
	processed := 0

	for processed < st.ChunkSize {
		if ctx.Err() != nil {
			break
		}
		if processed > 0 && r.now().Sub(start) > r.cfg.softBudget() {
			logger.Debug("chunk budget reached", "processed", processed)
			break
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return r.complete(ctx, st, processed, start)
		}
		if err != nil {
			return r.abort(ctx, st, fmt.Errorf("read row %d: %w", st.RowCursor, err))
		}

		r.processRow(ctx, st, resolved, index, row)

		st.RowCursor++
		st.ByteOffset = reader.Offset()
		st.LeaseUntil = r.now().Add(r.cfg.LeaseTTL)
		st.UpdatedAt = r.now()
		if err := r.state.CompareAndSwap(ctx, st); err != nil {
			if errors.Is(err, ErrStateConflict) {
				logger.Info("import state replaced or cancelled, stopping chunk", "row", st.RowCursor-1)
				r.metrics.ChunkFinished(PhaseIdle, r.now().Sub(start))
				return resultOf(st, processed+1), ErrStateConflict
			}
			return resultOf(st, processed+1), fmt.Errorf("persist state: %w", err)
		}
		processed++
	}

	return r.suspend(ctx, st, processed, start)
}

// suspend releases the lease and schedules the next chunk.
func (r *Runner) suspend(ctx context.Context, st *ImportState, processed int, start time.Time) (ChunkResult, error) {
	writeCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
	}

	st.LeaseOwner = ""
	st.LeaseUntil = time.Time{}
	st.Phase = PhaseSuspended
	st.UpdatedAt = r.now()
	if err := r.state.CompareAndSwap(writeCtx, st); err != nil {
		return resultOf(st, processed), fmt.Errorf("release lease: %w", err)
	}

	r.metrics.ChunkFinished(PhaseSuspended, r.now().Sub(start))
	logging.FromContext(ctx).Info("import chunk finished",
		"processed", processed,
		"next_row", st.RowCursor,
		"created", st.Counters.Created,
		"updated", st.Counters.Updated,
		"skipped", st.Counters.Skipped,
	)

	if ctx.Err() == nil {
		r.schedule(ctx, st.RunID, ReasonContinue)
	}
	return resultOf(st, processed), nil
}

// complete ends the run at end of file.
func (r *Runner) complete(ctx context.Context, st *ImportState, processed int, start time.Time) (ChunkResult, error) {
	if err := r.state.Delete(ctx, st.RunID); err != nil {
		return resultOf(st, processed), fmt.Errorf("delete state: %w", err)
	}
	r.removeSource(ctx, st.SourceFile)

	st.Phase = PhaseCompleted
	r.metrics.ChunkFinished(PhaseCompleted, r.now().Sub(start))
	logging.FromContext(ctx).Info("import completed",
		"created", st.Counters.Created,
		"updated", st.Counters.Updated,
		"skipped", st.Counters.Skipped,
	)
	r.record(ctx, st.RunID, st.RowCursor, "Import completed: %s", Summary(st.Counters))
	return resultOf(st, processed), nil
}

// abort clears the run after a fatal error.
func (r *Runner) abort(ctx context.Context, st *ImportState, cause error) (ChunkResult, error) {
	if err := r.state.Delete(ctx, st.RunID); err != nil {
		logging.FromContext(ctx).Error("delete state after abort failed", "error", err)
	}
	r.removeSource(ctx, st.SourceFile)

	st.Phase = PhaseAborted
	r.metrics.ChunkFinished(PhaseAborted, 0)
	logging.FromContext(ctx).Error("import aborted", "row", st.RowCursor, "error", cause)
	r.record(ctx, st.RunID, st.RowCursor, "Import aborted: %v", cause)
	return resultOf(st, 0), cause
}

// Cancel ends the active run without processing the remaining rows. Rows
// already imported are kept.
func (r *Runner) Cancel(ctx context.Context) (*ImportState, error) {
	st, err := r.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.state.Delete(ctx, st.RunID); err != nil {
		return nil, fmt.Errorf("delete state: %w", err)
	}
	r.removeSource(ctx, st.SourceFile)

	ctx = logging.WithRunID(ctx, st.RunID)
	logging.FromContext(ctx).Info("import cancelled", "next_row", st.RowCursor)
	r.record(ctx, st.RunID, st.RowCursor, "Import cancelled: %s", Summary(st.Counters))
	return st, nil
}

// Status returns the active ImportState or ErrNoActiveRun.
func (r *Runner) Status(ctx context.Context) (*ImportState, error) {
	return r.loadState(ctx)
}

// loadState loads the active run. A state that no longer decodes cannot be
// resumed or cancelled, so it is cleared and the corruption error returned.
// The run's source file is left behind because its path is unknown.
func (r *Runner) loadState(ctx context.Context) (*ImportState, error) {
	st, err := r.state.Load(ctx)
	if err == nil || !errors.Is(err, ErrStateCorruption) {
		return st, err
	}

	logger := logging.FromContext(ctx)
	if clearErr := r.state.Clear(ctx); clearErr != nil {
		logger.Error("clear corrupted import state failed", "error", clearErr)
		return nil, errors.Join(err, clearErr)
	}
	r.metrics.ChunkFinished(PhaseAborted, 0)
	logger.Error("import aborted, corrupted state cleared", "error", err)
	r.record(ctx, "", 0, "Import aborted: %v", err)
	return nil, err
}

// RunToCompletion runs chunks of runID back to back until the run ends.
// It waits while another worker holds the lease.
func (r *Runner) RunToCompletion(ctx context.Context, runID string) (ChunkResult, error) {
	for {
		res, err := r.RunChunk(ctx, runID)
		switch {
		case errors.Is(err, ErrChunkInProgress):
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(r.cfg.PollInterval):
			}
			continue
		case err != nil:
			return res, err
		}

		switch res.Phase {
		case PhaseCompleted, PhaseAborted:
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}
}

// Trigger handles a scheduler trigger. Stale and duplicate triggers are
// expected and only logged at debug level.
func (r *Runner) Trigger(ctx context.Context, t Trigger) {
	res, err := r.RunChunk(ctx, t.RunID)
	logger := logging.WithFields(logging.WithRunID(ctx, t.RunID), "reason", t.Reason)
	switch {
	case errors.Is(err, ErrNoActiveRun), errors.Is(err, ErrChunkInProgress), errors.Is(err, ErrStateConflict):
		logger.Debug("trigger ignored", "error", err)
	case err != nil:
		logger.Error("import chunk failed", "phase", res.Phase, "error", err)
	}
}

func (r *Runner) processRow(ctx context.Context, st *ImportState, resolved headers.Resolved, index map[string]int, row csvfile.Row) {
	rowNum := st.RowCursor
	logger := logging.WithFields(ctx, "row", rowNum)

	if row.Kind == csvfile.RowBlank {
		st.Counters.Skipped++
		r.metrics.RowProcessed(OutcomeSkipped, SkipBlank)
		logger.Debug("blank row skipped")
		r.record(ctx, st.RunID, rowNum, "empty row, skipped")
		return
	}

	values := csvfile.Fit(row.Fields, len(resolved.Headers))
	fields := make(map[headers.Role]string, len(resolved.Fields))
	for role, col := range resolved.Fields {
		if i, ok := index[col]; ok {
			fields[role] = values[i]
		}
	}

	out := r.reconciler.Reconcile(ctx, fields, st.SkipExisting)
	r.metrics.RowProcessed(out.Kind, out.Reason)
	for _, w := range out.Warnings {
		r.record(ctx, st.RunID, rowNum, "%s", w)
	}

	switch out.Kind {
	case OutcomeSkipped:
		st.Counters.Skipped++
		logger.Info("row skipped", "reason", out.Reason, "error", out.Err)
		if out.Err != nil {
			r.record(ctx, st.RunID, rowNum, "skipped (%s): %v", out.Reason, out.Err)
		} else {
			r.record(ctx, st.RunID, rowNum, "skipped (%s), record %d exists", out.Reason, out.Record.ID)
		}
		return
	case OutcomeCreated:
		st.Counters.Created++
	case OutcomeUpdated:
		st.Counters.Updated++
	}

	logger.Info("row imported", "outcome", out.Kind, "record_id", out.Record.ID)
	r.record(ctx, st.RunID, rowNum, "%s record %d %q", out.Kind, out.Record.ID, out.Record.Title)
	r.enrich(ctx, st.RunID, rowNum, out.Record, fields)
}

// enrich applies content cleanup and attaches images. Asset failures are
// recorded and never fail the row.
func (r *Runner) enrich(ctx context.Context, runID string, rowNum int, rec *Record, fields map[headers.Role]string) {
	changed := false

	if cleaned := content.Clean(rec.Content); cleaned.Changed() {
		rec.Content = cleaned.HTML
		changed = true
		for _, e := range cleaned.Emoji {
			r.record(ctx, runID, rowNum, "replaced emoji image with %s in record %d", e, rec.ID)
		}
	}

	if raw := strings.TrimSpace(fields[headers.FeaturedImageURL]); raw != "" {
		asset, err := r.assets.Resolve(ctx, raw, rec.ID)
		switch {
		case err != nil:
			r.record(ctx, runID, rowNum, "featured image %s: %v", raw, err)
		case !strings.HasPrefix(asset.MimeType, "image/"):
			r.record(ctx, runID, rowNum, "featured image %s is %s, not attached", raw, asset.MimeType)
		case rec.FeaturedAssetID != asset.ID:
			rec.FeaturedAssetID = asset.ID
			changed = true
		}
	}

	if layout := strings.TrimSpace(fields[headers.LayoutJSON]); layout != "" {
		if ids, ok := r.galleryAssets(ctx, runID, rowNum, rec.ID, layout); ok && !slices.Equal(ids, rec.GalleryAssetIDs) {
			rec.GalleryAssetIDs = ids
			changed = true
		}
	}

	if !changed {
		return
	}
	if _, err := r.records.Upsert(ctx, rec); err != nil {
		serr := &StoreError{Op: "save record", Err: err}
		logging.WithFields(ctx, "row", rowNum, "record_id", rec.ID).Warn("record partially applied", "error", serr)
		r.record(ctx, runID, rowNum, "%v", serr)
	}
}

// galleryAssets resolves every gallery URL in layout, keeping the first
// occurrence of each asset id. ok is false when nothing was resolved.
func (r *Runner) galleryAssets(ctx context.Context, runID string, rowNum int, recordID int64, layout string) ([]int64, bool) {
	urls, err := gallery.Extract(layout)
	if err != nil {
		r.record(ctx, runID, rowNum, "no gallery: %v", err)
		return nil, false
	}

	var ids []int64
	seen := make(map[int64]bool)
	for _, u := range urls {
		asset, err := r.assets.Resolve(ctx, u, recordID)
		if err != nil {
			r.record(ctx, runID, rowNum, "gallery image %s: %v", u, err)
			continue
		}
		if !seen[asset.ID] {
			seen[asset.ID] = true
			ids = append(ids, asset.ID)
		}
	}
	return ids, len(ids) > 0
}

func (r *Runner) schedule(ctx context.Context, runID, reason string) {
	if err := r.scheduler.ScheduleOnce(ctx, Trigger{RunID: runID, Reason: reason}); err != nil {
		logging.FromContext(ctx).Warn("schedule next chunk failed, sweeper will retry", "error", err)
	}
}

// record appends to the diagnostic trail. A failing sink is logged only.
func (r *Runner) record(ctx context.Context, runID string, row int, format string, args ...any) {
	if r.diag == nil {
		return
	}
	e := Entry{Time: r.now(), RunID: runID, Row: row, Message: fmt.Sprintf(format, args...)}
	if err := r.diag.Append(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("diagnostic log append failed", "error", err)
	}
}

func (r *Runner) removeSource(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.FromContext(ctx).Warn("remove source file failed", "path", path, "error", err)
	}
}

// Summary renders counters for humans.
func Summary(c Counters) string {
	return fmt.Sprintf("%d created, %d updated, %d skipped", c.Created, c.Updated, c.Skipped)
}

func resultOf(st *ImportState, processed int) ChunkResult {
	return ChunkResult{
		RunID:     st.RunID,
		Phase:     st.Phase,
		Processed: processed,
		RowCursor: st.RowCursor,
		Counters:  st.Counters,
	}
}
