package control

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry is the set of currently tracked processes, at most one per job
// id. The control loop is its only writer; the mutex exists so the status
// API can read a consistent snapshot.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Process
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]Process)}
}

// Get returns the process for an id.
func (r *Registry) Get(id string) (Process, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[id]
	return p, ok
}

// Put registers a process, replacing any previous entry for the id.
func (r *Registry) Put(p Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p.ID()] = p
}

// Remove evicts the process for an id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, id)
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.procs)
}

// IDs returns registered job ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// JobInfo is a read-only view of one registered job for the status API.
type JobInfo struct {
	ID             string    `json:"id"`
	Root           string    `json:"root"`
	Handle         string    `json:"handle"`
	LastProgress   string    `json:"last_progress,omitempty"`
	LastProgressAt time.Time `json:"last_progress_at,omitzero"`
}

// Snapshot returns the registered jobs sorted by id.
func (r *Registry) Snapshot() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]JobInfo, 0, len(r.procs))
	for _, p := range r.procs {
		progress, at := p.LastProgress()
		infos = append(infos, JobInfo{
			ID:             p.ID(),
			Root:           p.Root(),
			Handle:         string(p.Handle()),
			LastProgress:   progress,
			LastProgressAt: at,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// LoadAll rebuilds the registry from the jobs root. Directories are visited
// in name order; names embed the creation timestamp, so when two
// directories resolve to the same job id the later one wins and the earlier
// one's worker is stopped. The filesystem plus runtime inspection is the
// only source of truth; no registry file exists.
func LoadAll(ctx context.Context, f *Factory) (*Registry, error) {
	reg := NewRegistry()
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return reg, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(f.Root, entry.Name())
		p, err := f.LoadRunning(ctx, dir)
		if err != nil {
			// Disk or runtime trouble on one directory never aborts
			// reconciliation.
			f.Logger.Warn("skipping job directory",
				zap.String("root", dir), zap.Error(err))
			continue
		}
		if p == nil {
			continue
		}
		if old, ok := reg.Get(p.ID()); ok {
			f.Logger.Info("duplicate job directory, stopping older worker",
				zap.String("job_id", p.ID()),
				zap.String("old_root", old.Root()),
				zap.String("new_root", p.Root()),
			)
			if stopErr := old.Stop(ctx); stopErr != nil {
				f.Logger.Warn("failed to stop duplicate worker",
					zap.String("job_id", p.ID()), zap.Error(stopErr))
			}
		}
		reg.Put(p)
	}
	return reg, nil
}
