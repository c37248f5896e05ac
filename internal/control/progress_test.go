package control

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatProgress(t *testing.T) {
	t.Parallel()

	item := crawlItem{
		Processed:       10,
		CrawledDomains:  2,
		RelevantDomains: 1,
		Return:          50,
		T:               100,
		Enqueued:        5,
		DomainsOpen:     3,
	}
	want := "10 pages processed from 2 domains (1 relevant), average score 50.0, " +
		"5 requests enqueued, 3 domains open."
	require.Equal(t, want, formatProgress(item))
}

func TestFormatProgressZeroValues(t *testing.T) {
	t.Parallel()

	want := "0 pages processed from 0 domains (0 relevant), average score 0.0, " +
		"0 requests enqueued, 0 domains open."
	require.Equal(t, want, formatProgress(crawlItem{}))
}

func TestFormatProgressNeverDividesByZero(t *testing.T) {
	t.Parallel()

	// Non-zero return with t absent must still yield score 0.0.
	got := formatProgress(crawlItem{Return: 123})
	require.Contains(t, got, "average score 0.0")
}

func TestFormatProgressThousandsSeparators(t *testing.T) {
	t.Parallel()

	item := crawlItem{Processed: 1234567, Enqueued: 1000}
	got := formatProgress(item)
	require.Contains(t, got, "1,234,567 pages processed")
	require.Contains(t, got, "1,000 requests enqueued")
}

func TestPageSample(t *testing.T) {
	t.Parallel()

	require.Nil(t, pageSample(crawlItem{Processed: 3}))

	sample := pageSample(crawlItem{URL: "http://example.com"})
	require.NotNil(t, sample)
	require.Equal(t, "http://example.com", sample.URL)
	require.Nil(t, sample.Score)

	reward := 0.5
	sample = pageSample(crawlItem{URL: "http://example.com", Reward: &reward})
	require.NotNil(t, sample.Score)
	require.InDelta(t, 50.0, *sample.Score, 0.001)
}

func TestPageSampleZeroReward(t *testing.T) {
	t.Parallel()

	reward := 0.0
	sample := pageSample(crawlItem{URL: "http://example.com", Reward: &reward})
	require.NotNil(t, sample.Score)
	require.InDelta(t, 0.0, *sample.Score, 0.001)
}

func TestLastValidItemsReturnsTail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeItems(t, dir,
		`{"processed": 1}`,
		`{"processed": 2}`,
		`{"processed": 3}`,
	)

	items, err := lastValidItems(filepath.Join(dir, "items.jl.gz"), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(2), items[0].Processed)
	require.Equal(t, int64(3), items[1].Processed)
}

func TestLastValidItemsSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeItems(t, dir,
		`{"processed": 1}`,
		`{"processed": 2, "url": "http://e`,
		`not json at all`,
	)

	items, err := lastValidItems(filepath.Join(dir, "items.jl.gz"), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(1), items[0].Processed)
}

func TestLastValidItemsToleratesTruncatedStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTruncatedItems(t, dir, `{"processed": 7}`, `{"processed": 8}`)

	items, err := lastValidItems(filepath.Join(dir, "items.jl.gz"), 5)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	require.Equal(t, int64(8), items[len(items)-1].Processed)
}

func TestLastValidItemsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := lastValidItems(filepath.Join(t.TempDir(), "items.jl.gz"), 1)
	require.Error(t, err)
}

func TestCommafy(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for in, want := range cases {
		require.Equal(t, want, commafy(in))
	}
}
