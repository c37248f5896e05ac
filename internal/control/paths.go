// Package control implements the crawl job lifecycle: deterministic job
// directories, per-job worker processes, progress and model extraction, and
// the registry rebuilt from disk at startup.
package control

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hhsearch/crawlcontrol/internal/hash/sha256"
)

// Job directory contract shared with the worker image. The worker sees the
// directory mounted at MountDir and reads/writes these names.
const (
	idFile     = "id.txt"
	seedsFile  = "seeds.txt"
	clfFile    = "page_clf.joblib"
	handleFile = "pid.txt"
	itemsFile  = "items.jl.gz"

	// MountDir is where the job directory appears inside the worker.
	MountDir = "/job"
)

// JobPath derives the job directory for an id created at the given time:
// <root>/<unix seconds>_<first 12 hex of sha256(id)>. Two construction
// times for one id yield different directories, which is what lets
// reconciliation resolve duplicates by directory age.
func JobPath(root, id string, now time.Time) string {
	hasher := sha256.New()
	name := fmt.Sprintf("%d_%s", now.Unix(), hasher.Short([]byte(id)))
	return filepath.Join(root, name)
}

// Paths resolves the well-known files inside one job directory.
type Paths struct {
	Root   string
	ID     string
	Seeds  string
	Clf    string
	Handle string
	Items  string
}

// NewPaths builds Paths for a job directory.
func NewPaths(root string) Paths {
	return Paths{
		Root:   root,
		ID:     filepath.Join(root, idFile),
		Seeds:  filepath.Join(root, seedsFile),
		Clf:    filepath.Join(root, clfFile),
		Handle: filepath.Join(root, handleFile),
		Items:  filepath.Join(root, itemsFile),
	}
}

// Mkdir creates the job directory.
func (p Paths) Mkdir() error {
	if err := os.MkdirAll(p.Root, 0o750); err != nil {
		return fmt.Errorf("create job directory: %w", err)
	}
	return nil
}

// required returns the files that must exist for a job to be considered
// recoverable at reconciliation time.
func (p Paths) required() []string {
	return []string{p.ID, p.Handle, p.Seeds, p.Clf}
}

// allExist reports whether every required file is present.
func (p Paths) allExist() bool {
	for _, path := range p.required() {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}
