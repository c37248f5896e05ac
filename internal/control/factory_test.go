package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hhsearch/crawlcontrol/internal/runtime"
	"github.com/hhsearch/crawlcontrol/internal/runtime/memory"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseKind("trainer")
	require.NoError(t, err)
	require.Equal(t, KindTrainer, kind)

	kind, err = ParseKind("crawler")
	require.NoError(t, err)
	require.Equal(t, KindCrawler, kind)

	_, err = ParseKind("watcher")
	require.Error(t, err)
}

// seedJobDir lays out a complete job directory as Start would have left it.
func seedJobDir(t *testing.T, f *Factory, id string, handle runtime.Handle) string {
	t.Helper()
	dir := JobPath(f.Root, id, f.Clock.Now())
	paths := NewPaths(dir)
	require.NoError(t, paths.Mkdir())
	require.NoError(t, os.WriteFile(paths.ID, []byte(id), 0o640))
	require.NoError(t, writeSeeds(paths.Seeds, []string{"http://seed.example"}))
	require.NoError(t, os.WriteFile(paths.Clf, []byte("clf-data"), 0o640))
	require.NoError(t, os.WriteFile(paths.Handle, []byte(handle), 0o640))
	return dir
}

func TestLoadRunningRebuildsLiveJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New()
	rt.Add("h-1", true)
	f := newTestFactory(t, KindTrainer, rt, newFakeClock())
	dir := seedJobDir(t, f, "job-1", "h-1")

	p, err := f.LoadRunning(ctx, dir)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, "job-1", p.ID())
	require.Equal(t, dir, p.Root())
	require.Equal(t, runtime.Handle("h-1"), p.Handle())

	// Seeds rebuilt from disk: a restart must be able to stop-then-start.
	tp := p.(*TrainerProcess)
	require.Equal(t, []string{"http://seed.example"}, tp.seeds)
	require.Equal(t, []byte("clf-data"), tp.clfData)
}

func TestLoadRunningMissingRequiredFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New()
	rt.Add("h-1", true)
	f := newTestFactory(t, KindTrainer, rt, newFakeClock())

	for _, remove := range []func(Paths) string{
		func(p Paths) string { return p.ID },
		func(p Paths) string { return p.Handle },
		func(p Paths) string { return p.Seeds },
		func(p Paths) string { return p.Clf },
	} {
		dir := seedJobDir(t, f, "job-1", "h-1")
		require.NoError(t, os.Remove(remove(NewPaths(dir))))

		p, err := f.LoadRunning(ctx, dir)
		require.NoError(t, err)
		require.Nil(t, p)
		require.NoError(t, os.RemoveAll(dir))
	}
}

func TestLoadRunningUnknownHandleDeletesMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New() // no such handle registered
	f := newTestFactory(t, KindTrainer, rt, newFakeClock())
	dir := seedJobDir(t, f, "job-1", "gone")

	p, err := f.LoadRunning(ctx, dir)
	require.NoError(t, err)
	require.Nil(t, p)

	_, statErr := os.Stat(NewPaths(dir).Handle)
	require.True(t, os.IsNotExist(statErr))
	require.Zero(t, rt.RemoveCalls())
}

func TestLoadRunningDeadWorkerIsReclaimed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New()
	rt.Add("h-dead", false)
	f := newTestFactory(t, KindTrainer, rt, newFakeClock())
	dir := seedJobDir(t, f, "job-1", "h-dead")

	p, err := f.LoadRunning(ctx, dir)
	require.NoError(t, err)
	require.Nil(t, p)

	_, statErr := os.Stat(NewPaths(dir).Handle)
	require.True(t, os.IsNotExist(statErr))
	require.Equal(t, 1, rt.RemoveCalls())
	require.Zero(t, rt.Len())
}

func TestLoadRunningBuildsConfiguredKind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := memory.New()
	rt.Add("h-1", true)
	f := newTestFactory(t, KindCrawler, rt, newFakeClock())
	dir := seedJobDir(t, f, "job-1", "h-1")

	p, err := f.LoadRunning(ctx, dir)
	require.NoError(t, err)
	require.IsType(t, &CrawlerProcess{}, p)
}

func TestNewDerivesPathOnce(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	f := newTestFactory(t, KindTrainer, memory.New(), clock)

	p := f.New("job-1", nil, nil)
	root := p.Root()
	require.Equal(t, filepath.Dir(root), f.Root)

	// Advancing the clock must not move an existing instance's directory.
	clock.advance(5 * time.Minute)
	require.Equal(t, root, p.Root())
}
