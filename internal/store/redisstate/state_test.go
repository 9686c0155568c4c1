package redisstate

import (
	"context"
	"testing"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T) (*State, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test"), mr
}

func TestState_Lifecycle(t *testing.T) {
	s, _ := newState(t)
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, core.ErrNoActiveRun)

	st := &core.ImportState{
		RunID:      "run-1",
		SourceFile: "/tmp/a.csv",
		RowCursor:  core.FirstDataRow,
		Headers:    []string{"Title", "Content"},
		Phase:      core.PhaseInitializing,
	}
	require.NoError(t, s.Create(ctx, st))
	assert.Equal(t, int64(1), st.Version)
	assert.ErrorIs(t, s.Create(ctx, &core.ImportState{RunID: "run-2"}), core.ErrRunActive)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, []string{"Title", "Content"}, loaded.Headers)
	assert.Equal(t, int64(1), loaded.Version)

	loaded.RowCursor = 5
	loaded.Counters.Created = 3
	require.NoError(t, s.CompareAndSwap(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, again.RowCursor)
	assert.Equal(t, 3, again.Counters.Created)
	assert.Equal(t, int64(2), again.Version)
}

func TestState_CompareAndSwapConflicts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(st *core.ImportState)
	}{
		{"stale version", func(st *core.ImportState) { st.Version = 1 }},
		{"future version", func(st *core.ImportState) { st.Version = 9 }},
		{"other run", func(st *core.ImportState) { st.RunID = "run-2" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newState(t)
			ctx := context.Background()

			st := &core.ImportState{RunID: "run-1"}
			require.NoError(t, s.Create(ctx, st))
			require.NoError(t, s.CompareAndSwap(ctx, st))

			stale := st.Clone()
			tt.mutate(stale)
			assert.ErrorIs(t, s.CompareAndSwap(ctx, stale), core.ErrStateConflict)

			current, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), current.Version)
		})
	}
}

func TestState_Delete(t *testing.T) {
	s, mr := newState(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "missing"), "absent run")

	st := &core.ImportState{RunID: "run-1"}
	require.NoError(t, s.Create(ctx, st))

	require.NoError(t, s.Delete(ctx, "run-2"))
	assert.True(t, mr.Exists(s.Key()), "other run id leaves state alone")

	require.NoError(t, s.Delete(ctx, "run-1"))
	assert.False(t, mr.Exists(s.Key()))
	assert.ErrorIs(t, s.CompareAndSwap(ctx, st), core.ErrStateConflict)

	require.NoError(t, s.Create(ctx, &core.ImportState{RunID: "run-3"}), "slot is free again")
}

func TestState_LoadCorrupt(t *testing.T) {
	s, mr := newState(t)
	ctx := context.Background()

	mr.HSet(s.Key(), "version", "1", "payload", "{not json")
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, core.ErrStateCorruption)

	mr.Del(s.Key())
	mr.HSet(s.Key(), "payload", "{}")
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, core.ErrStateCorruption)
}

func TestState_Clear(t *testing.T) {
	s, mr := newState(t)
	ctx := context.Background()

	require.NoError(t, s.Clear(ctx), "clearing an empty slot")

	mr.HSet(s.Key(), "version", "1", "payload", "{not json")
	require.NoError(t, s.Clear(ctx))
	assert.False(t, mr.Exists(s.Key()))

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, core.ErrNoActiveRun)
}

func TestRunner_ClearsCorruptedRedisState(t *testing.T) {
	s, mr := newState(t)
	ctx := context.Background()
	runner := core.NewRunner(core.Deps{
		State:     s,
		Records:   memory.NewRecords(),
		Taxonomy:  memory.NewTaxonomy(),
		Scheduler: core.NopScheduler{},
	}, core.RunnerConfig{})

	mr.HSet(s.Key(), "run_id", "run-1", "version", "3", "payload", "{not json")

	_, err := runner.RunChunk(ctx, "run-1")
	assert.ErrorIs(t, err, core.ErrStateCorruption)
	assert.False(t, mr.Exists(s.Key()))

	_, err = runner.Cancel(ctx)
	assert.ErrorIs(t, err, core.ErrNoActiveRun)
}
