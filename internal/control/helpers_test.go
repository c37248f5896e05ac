package control

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/runtime/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestFactory(t *testing.T, kind Kind, rt *memory.Runtime, clock Clock) *Factory {
	t.Helper()
	return &Factory{
		Kind:         kind,
		Runtime:      rt,
		Clock:        clock,
		Logger:       zap.NewNop(),
		Root:         t.TempDir(),
		Image:        "test-image",
		SampleRatePM: 3,
	}
}

// writeItems writes a gzipped JSON-lines item stream into the job
// directory. Lines are written verbatim so tests can include garbage.
func writeItems(t *testing.T, dir string, lines ...string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, "items.jl.gz"))
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	for _, line := range lines {
		_, err := zw.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// writeTruncatedItems writes a complete gzip member with the given lines
// followed by a second member cut off mid-stream, simulating a worker
// caught mid-write after a feed reopen.
func writeTruncatedItems(t *testing.T, dir string, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, "items.jl.gz")

	var complete bytes.Buffer
	zw := gzip.NewWriter(&complete)
	for _, line := range lines {
		_, err := zw.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	var partial bytes.Buffer
	zw = gzip.NewWriter(&partial)
	_, err := zw.Write([]byte(`{"url": "http://example.com/truncated", "processed": 99999`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	cut := partial.Bytes()[:partial.Len()/2]

	require.NoError(t, os.WriteFile(path, append(complete.Bytes(), cut...), 0o640))
}
