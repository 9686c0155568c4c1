// Package memory implements every store port in process memory. It backs the
// dry-run mode of the CLI and the engine tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
)

// Records is an in-memory core.RecordStore.
type Records struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]core.Record
	upsert int
}

func NewRecords() *Records {
	return &Records{byID: make(map[int64]core.Record)}
}

func (s *Records) FindByID(_ context.Context, id int64) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// FindByTitleAndType returns the lowest-id match.
func (s *Records) FindByTitleAndType(_ context.Context, title, recordType string) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *core.Record
	for _, rec := range s.byID {
		if rec.Title == title && rec.Type == recordType && (found == nil || rec.ID < found.ID) {
			found = cloneRecord(rec)
		}
	}
	if found == nil {
		return nil, core.ErrNotFound
	}
	return found, nil
}

func (s *Records) Upsert(_ context.Context, rec *core.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert++
	stored := *cloneRecord(*rec)
	if stored.ID == 0 {
		s.nextID++
		stored.ID = s.nextID
	} else if _, ok := s.byID[stored.ID]; !ok {
		return 0, core.ErrNotFound
	}
	s.byID[stored.ID] = stored
	return stored.ID, nil
}

// All returns the stored records ordered by id.
func (s *Records) All() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Record, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, *cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upserts returns how many times Upsert was called.
func (s *Records) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upsert
}

func cloneRecord(rec core.Record) *core.Record {
	rec.GalleryAssetIDs = append([]int64(nil), rec.GalleryAssetIDs...)
	return &rec
}

// Taxonomy is an in-memory core.TaxonomyStore.
type Taxonomy struct {
	mu     sync.RWMutex
	nextID int64
	byName map[string]core.Term
	links  map[int64][]int64
}

func NewTaxonomy() *Taxonomy {
	return &Taxonomy{byName: make(map[string]core.Term), links: make(map[int64][]int64)}
}

func (s *Taxonomy) FindTermByName(_ context.Context, name string) (*core.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term, ok := s.byName[name]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &term, nil
}

func (s *Taxonomy) CreateTerm(_ context.Context, name string) (*core.Term, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if term, ok := s.byName[name]; ok {
		return &term, nil
	}
	s.nextID++
	term := core.Term{ID: s.nextID, Name: name}
	s.byName[name] = term
	return &term, nil
}

func (s *Taxonomy) SetRecordTerms(_ context.Context, recordID int64, termIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[recordID] = append([]int64(nil), termIDs...)
	return nil
}

// RecordTerms returns the term names linked to a record, sorted.
func (s *Taxonomy) RecordTerms(recordID int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[int64]string, len(s.byName))
	for _, t := range s.byName {
		names[t.ID] = t.Name
	}
	var out []string
	for _, id := range s.links[recordID] {
		out = append(out, names[id])
	}
	sort.Strings(out)
	return out
}

// Assets is an in-memory core.AssetStore. Bytes are handed to blobs when it
// is set and dropped otherwise.
type Assets struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]core.Asset
	byName map[string]int64
	blobs  core.BlobStore
}

func NewAssets(blobs core.BlobStore) *Assets {
	return &Assets{byID: make(map[int64]core.Asset), byName: make(map[string]int64), blobs: blobs}
}

func (s *Assets) FindByDerivedName(_ context.Context, name string) (*core.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return nil, core.ErrNotFound
	}
	a := s.byID[id]
	return &a, nil
}

func (s *Assets) Store(ctx context.Context, in core.NewAsset) (*core.Asset, error) {
	var path string
	if s.blobs != nil {
		p, err := s.blobs.Put(ctx, in.Filename, in.Data)
		if err != nil {
			return nil, err
		}
		path = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	a := core.Asset{
		ID:          s.nextID,
		DerivedName: in.DerivedName,
		GUID:        in.GUID,
		Filename:    in.Filename,
		Path:        path,
		MimeType:    in.MimeType,
		Size:        int64(len(in.Data)),
	}
	s.byID[a.ID] = a
	if _, taken := s.byName[a.DerivedName]; !taken {
		s.byName[a.DerivedName] = a.ID
	}
	return &a, nil
}

func (s *Assets) GenerateMetadata(ctx context.Context, assetID int64) error {
	s.mu.RLock()
	a, ok := s.byID[assetID]
	s.mu.RUnlock()
	if !ok {
		return core.ErrNotFound
	}
	if s.blobs == nil || a.Path == "" {
		return nil
	}

	w, h, err := s.blobs.Dimensions(ctx, a.Path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a.Width, a.Height = w, h
	s.byID[assetID] = a
	return nil
}

// Len returns the number of stored assets.
func (s *Assets) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// State is an in-memory core.StateStore.
type State struct {
	mu  sync.Mutex
	cur *core.ImportState
}

func NewState() *State {
	return &State{}
}

func (s *State) Create(_ context.Context, st *core.ImportState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		return core.ErrRunActive
	}
	st.Version = 1
	s.cur = st.Clone()
	return nil
}

func (s *State) Load(_ context.Context) (*core.ImportState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return nil, core.ErrNoActiveRun
	}
	return s.cur.Clone(), nil
}

func (s *State) CompareAndSwap(_ context.Context, st *core.ImportState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.RunID != st.RunID || s.cur.Version != st.Version {
		return core.ErrStateConflict
	}
	st.Version++
	s.cur = st.Clone()
	return nil
}

func (s *State) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil && s.cur.RunID == runID {
		s.cur = nil
	}
	return nil
}

func (s *State) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = nil
	return nil
}

// Log is an in-memory core.DiagnosticLog.
type Log struct {
	mu      sync.Mutex
	entries []core.Entry
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(_ context.Context, e core.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.entries = append(l.entries, e)
	return nil
}

// Entries returns a copy of the appended entries.
func (l *Log) Entries() []core.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Entry(nil), l.entries...)
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(_ context.Context, limit int) ([]core.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.Entry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}

// Scheduler records triggers without running them. Drain hands them back.
type Scheduler struct {
	mu       sync.Mutex
	triggers []core.Trigger
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) ScheduleOnce(_ context.Context, t core.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = append(s.triggers, t)
	return nil
}

// Drain returns and clears the recorded triggers.
func (s *Scheduler) Drain() []core.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.triggers
	s.triggers = nil
	return out
}
