package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// crawlItem is one record of the worker's item stream. Counters default to
// zero when absent; Reward distinguishes absent from zero.
type crawlItem struct {
	URL             string   `json:"url"`
	Reward          *float64 `json:"reward"`
	Processed       int64    `json:"processed"`
	CrawledDomains  int64    `json:"crawled_domains"`
	RelevantDomains int64    `json:"relevant_domains"`
	Return          float64  `json:"return"`
	T               int64    `json:"t"`
	Enqueued        int64    `json:"enqueued"`
	DomainsOpen     int64    `json:"domains_open"`
}

// lastValidItems returns up to n tail records of a gzipped JSON-lines file,
// oldest first. The worker appends to the file while we read, so a
// truncated gzip stream or a malformed trailing line is expected: reading
// stops at the first decode error and whatever parsed cleanly is returned.
func lastValidItems(path string, n int) ([]crawlItem, error) {
	if n <= 0 {
		n = 1
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open item stream: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read item stream: %w", err)
	}
	// Multistream decoding matters: the worker reopens the gzip feed on
	// restart, producing concatenated members.
	zr.Multistream(true)

	items := make([]crawlItem, 0, n)
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var item crawlItem
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			// Partially written record; skip it.
			continue
		}
		if len(items) == n {
			copy(items, items[1:])
			items = items[:n-1]
		}
		items = append(items, item)
	}
	// A scanner error here means the tail of the stream was cut off
	// mid-write. Everything before it is still good.
	return items, nil
}

// formatProgress renders the fixed-format progress line from one record.
// The average score is 100*return/t, defined as zero when t is zero.
func formatProgress(item crawlItem) string {
	score := 0.0
	if item.T > 0 {
		score = 100 * item.Return / float64(item.T)
	}
	return fmt.Sprintf(
		"%s pages processed from %s domains (%s relevant), average score %.1f, %s requests enqueued, %s domains open.",
		commafy(item.Processed),
		commafy(item.CrawledDomains),
		commafy(item.RelevantDomains),
		score,
		commafy(item.Enqueued),
		commafy(item.DomainsOpen),
	)
}

// pageSample extracts the record's page sample, or nil when the record
// carries no URL. Score is 100*reward when a reward is present.
func pageSample(item crawlItem) *PageSample {
	if item.URL == "" {
		return nil
	}
	sample := &PageSample{URL: item.URL}
	if item.Reward != nil {
		score := 100 * *item.Reward
		sample.Score = &score
	}
	return sample
}

// commafy formats an integer with thousands separators.
func commafy(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
