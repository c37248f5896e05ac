package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hhsearch/crawlcontrol/internal/runtime/memory"
)

func TestRegistryBasics(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, KindTrainer, memory.New(), newFakeClock())
	reg := NewRegistry()
	require.Zero(t, reg.Len())

	p := f.New("job-b", nil, nil)
	reg.Put(p)
	reg.Put(f.New("job-a", nil, nil))
	require.Equal(t, 2, reg.Len())
	require.Equal(t, []string{"job-a", "job-b"}, reg.IDs())

	got, ok := reg.Get("job-b")
	require.True(t, ok)
	require.Equal(t, p, got)

	reg.Remove("job-b")
	_, ok = reg.Get("job-b")
	require.False(t, ok)
	require.Equal(t, 1, reg.Len())
}

func TestLoadAllEmptyOrMissingRoot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newTestFactory(t, KindTrainer, memory.New(), newFakeClock())
	f.Root = f.Root + "/does-not-exist"

	reg, err := LoadAll(ctx, f)
	require.NoError(t, err)
	require.Zero(t, reg.Len())
}

func TestLoadAllRecoversLiveJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New()
	rt.Add("h-1", true)
	rt.Add("h-2", true)
	rt.Add("h-dead", false)
	clock := newFakeClock()
	f := newTestFactory(t, KindTrainer, rt, clock)

	seedJobDir(t, f, "job-1", "h-1")
	clock.advance(time.Second)
	seedJobDir(t, f, "job-2", "h-2")
	clock.advance(time.Second)
	seedJobDir(t, f, "job-dead", "h-dead")

	reg, err := LoadAll(ctx, f)
	require.NoError(t, err)
	require.Equal(t, []string{"job-1", "job-2"}, reg.IDs())
}

func TestLoadAllDuplicateJobIDLastWriterWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New()
	rt.Add("h-old", true)
	rt.Add("h-new", true)
	clock := newFakeClock()
	f := newTestFactory(t, KindTrainer, rt, clock)

	seedJobDir(t, f, "job-1", "h-old")
	clock.advance(time.Second)
	newDir := seedJobDir(t, f, "job-1", "h-new")

	reg, err := LoadAll(ctx, f)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	p, ok := reg.Get("job-1")
	require.True(t, ok)
	require.Equal(t, newDir, p.Root())

	// The older duplicate's worker was stopped and reclaimed.
	_, stillThere := rt.Get("h-old")
	require.False(t, stillThere)
	_, alive := rt.Get("h-new")
	require.True(t, alive)
}

func TestLoadAllStopFailureOnDuplicateIsNonFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New()
	rt.Add("h-old", true)
	rt.Add("h-new", true)
	clock := newFakeClock()
	f := newTestFactory(t, KindTrainer, rt, clock)

	seedJobDir(t, f, "job-1", "h-old")
	clock.advance(time.Second)
	newDir := seedJobDir(t, f, "job-1", "h-new")

	rt.StopErr = context.DeadlineExceeded
	reg, err := LoadAll(ctx, f)
	require.NoError(t, err)

	p, ok := reg.Get("job-1")
	require.True(t, ok)
	require.Equal(t, newDir, p.Root())
}

func TestSnapshotSortsAndCopies(t *testing.T) {
	t.Parallel()

	f := newTestFactory(t, KindTrainer, memory.New(), newFakeClock())
	reg := NewRegistry()
	reg.Put(f.New("job-b", nil, nil))
	reg.Put(f.New("job-a", nil, nil))

	infos := reg.Snapshot()
	require.Len(t, infos, 2)
	require.Equal(t, "job-a", infos[0].ID)
	require.Equal(t, "job-b", infos[1].ID)
	require.NotEmpty(t, infos[0].Root)
	require.Empty(t, infos[0].Handle)
}
