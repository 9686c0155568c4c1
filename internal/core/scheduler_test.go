package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ScheduleOnce(t *testing.T) {
	q := core.NewQueue(1)
	ctx := context.Background()

	require.NoError(t, q.ScheduleOnce(ctx, core.Trigger{RunID: "a"}))
	assert.Equal(t, 1, q.Pending())
	assert.ErrorIs(t, q.ScheduleOnce(ctx, core.Trigger{RunID: "b"}), core.ErrQueueFull)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, q.ScheduleOnce(cancelled, core.Trigger{RunID: "c"}), context.Canceled)
}

func TestQueue_RunDeliversInOrder(t *testing.T) {
	q := core.NewQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, q.ScheduleOnce(ctx, core.Trigger{RunID: id}))
	}

	got := make(chan string, 3)
	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(_ context.Context, t core.Trigger) { got <- t.RunID })
		close(done)
	}()

	var ids []string
	for range 3 {
		select {
		case id := <-got:
			ids = append(ids, id)
		case <-time.After(time.Second):
			t.Fatal("trigger not delivered")
		}
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestQueue_DrivesRunnerToCompletion(t *testing.T) {
	h := newHarness(t, core.RunnerConfig{ChunkSize: 1})
	q := core.NewQueue(4)
	runner := core.NewRunner(core.Deps{
		State:     h.state,
		Records:   h.records,
		Taxonomy:  h.taxonomy,
		Assets:    &staticResolver{},
		Scheduler: q,
	}, core.RunnerConfig{ChunkSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx, runner.Trigger)

	_, err := runner.Start(ctx, core.StartRequest{SourceFile: h.writeCSV(t, "a.csv", "Title,Content\nA,x\nB,y\nC,z\n")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := runner.Status(ctx)
		return err != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, h.records.All(), 3)
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, core.RunnerConfig{})
	core.SetRunnerClock(h.runner, func() time.Time { return now })
	ctx := context.Background()

	triggered, err := h.runner.Sweep(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, triggered, "no run, nothing to sweep")

	st, err := h.runner.Start(ctx, core.StartRequest{SourceFile: h.writeCSV(t, "a.csv", "Title,Content\nA,x\n")})
	require.NoError(t, err)
	h.scheduler.Drain()

	triggered, err = h.runner.Sweep(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, triggered, "fresh run is left alone")

	now = now.Add(2 * time.Minute)
	triggered, err = h.runner.Sweep(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, []core.Trigger{{RunID: st.RunID, Reason: core.ReasonSweep}}, h.scheduler.Drain())

	held, err := h.state.Load(ctx)
	require.NoError(t, err)
	held.LeaseOwner = "worker"
	held.LeaseUntil = now.Add(time.Minute)
	require.NoError(t, h.state.CompareAndSwap(ctx, held))

	triggered, err = h.runner.Sweep(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, triggered, "live lease is not swept")
}

func TestNopScheduler(t *testing.T) {
	assert.NoError(t, core.NopScheduler{}.ScheduleOnce(context.Background(), core.Trigger{}))
}

func TestResume(t *testing.T) {
	h := newHarness(t, core.RunnerConfig{})
	ctx := context.Background()

	_, err := h.runner.Resume(ctx)
	assert.ErrorIs(t, err, core.ErrNoActiveRun)

	st, err := h.runner.Start(ctx, core.StartRequest{SourceFile: h.writeCSV(t, "a.csv", "Title,Content\nA,x\n")})
	require.NoError(t, err)
	h.scheduler.Drain()

	got, err := h.runner.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.RunID, got.RunID)
	assert.Equal(t, []core.Trigger{{RunID: st.RunID, Reason: core.ReasonManual}}, h.scheduler.Drain())
}
