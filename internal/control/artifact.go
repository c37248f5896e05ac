package control

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// checkpointPattern matches the worker's model checkpoint files. The
// embedded integer increases monotonically across a crawl.
var checkpointPattern = regexp.MustCompile(`^Q-(\d+)\.joblib$`)

// ArtifactTracker detects newly produced model checkpoints in one job
// directory. Delivery is at-most-once per distinct file name; a checkpoint
// rewritten under the same name is not redelivered.
type ArtifactTracker struct {
	dir      string
	lastFile string
}

// NewArtifactTracker tracks checkpoints under dir.
func NewArtifactTracker(dir string) *ArtifactTracker {
	return &ArtifactTracker{dir: dir}
}

// LatestNew returns the bytes of the highest-numbered checkpoint if it has
// not been returned before, or nil when there is nothing new. Candidates
// are ordered by the parsed integer, not lexically, so Q-10 sorts after
// Q-9 regardless of digit width.
func (t *ArtifactTracker) LatestNew() ([]byte, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("scan checkpoints: %w", err)
	}

	best := ""
	bestSeq := int64(-1)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := checkpointPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		seq, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if seq > bestSeq {
			bestSeq = seq
			best = entry.Name()
		}
	}
	if best == "" || best == t.lastFile {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(t.dir, best))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", best, err)
	}
	t.lastFile = best
	return data, nil
}
