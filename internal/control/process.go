package control

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/runtime"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// PageSample is one sampled crawled page. Score is absent when the record
// carried no reward.
type PageSample struct {
	URL   string   `json:"url"`
	Score *float64 `json:"score,omitempty"`
}

// ProgressUpdate is the derived status of one job at one poll.
type ProgressUpdate struct {
	Progress string
	Pages    []PageSample
}

// Process is the capability set of one tracked crawl job. Implementations
// are not safe for concurrent use; the control loop is their only caller.
type Process interface {
	ID() string
	Root() string
	Handle() runtime.Handle
	LastProgress() (string, time.Time)

	// Start persists the job state and launches the worker.
	Start(ctx context.Context) error
	// Stop terminates and reclaims the worker; no-op when none is running.
	Stop(ctx context.Context) error
	// PollUpdates returns a progress update, or nil when nothing changed
	// since the previous poll.
	PollUpdates(ctx context.Context) (*ProgressUpdate, error)
	// PollModel returns newly produced model bytes, or nil when there are
	// none. Kinds that do not train always return nil.
	PollModel(ctx context.Context) ([]byte, error)
}

// process carries the state shared by both job kinds.
type process struct {
	id           string
	seeds        []string
	clfData      []byte
	image        string
	paths        Paths
	rt           runtime.Runtime
	clock        Clock
	logger       *zap.Logger
	sampleRatePM float64

	handle         runtime.Handle
	lastProgress   string
	lastProgressAt time.Time
}

func (p *process) ID() string             { return p.id }
func (p *process) Root() string           { return p.paths.Root }
func (p *process) Handle() runtime.Handle { return p.handle }

// LastProgress returns the last progress text sent and when it changed.
func (p *process) LastProgress() (string, time.Time) {
	return p.lastProgress, p.lastProgressAt
}

// sampleQuota is the adaptive cap on page samples surfaced per update:
// ceil(rate * minutes since the progress text last changed), or 1 before
// any progress has been observed.
func (p *process) sampleQuota() int {
	if p.lastProgressAt.IsZero() {
		return 1
	}
	idle := p.clock.Now().Sub(p.lastProgressAt).Minutes()
	if idle < 0 {
		idle = 0
	}
	return int(math.Ceil(p.sampleRatePM * idle))
}

// start persists the job state, launches the worker with the given argv and
// records the handle both in memory and as an on-disk marker.
func (p *process) start(ctx context.Context, args []string) error {
	if p.handle != "" {
		return fmt.Errorf("crawl %q already has worker handle %s", p.id, p.handle)
	}
	if err := p.paths.Mkdir(); err != nil {
		return err
	}
	if err := os.WriteFile(p.paths.ID, []byte(p.id), 0o640); err != nil {
		return fmt.Errorf("write id marker: %w", err)
	}
	if err := writeSeeds(p.paths.Seeds, p.seeds); err != nil {
		return err
	}
	if err := os.WriteFile(p.paths.Clf, p.clfData, 0o640); err != nil {
		return fmt.Errorf("write classifier: %w", err)
	}

	p.logger.Info("starting crawl",
		zap.String("job_id", p.id),
		zap.String("root", p.paths.Root),
		zap.String("image", p.image),
	)
	handle, err := p.rt.Launch(ctx, runtime.LaunchSpec{
		Image:    p.image,
		HostDir:  p.paths.Root,
		MountDir: MountDir,
		Args:     args,
	})
	if err != nil {
		return fmt.Errorf("launch worker: %w", err)
	}
	p.handle = handle
	if err := os.WriteFile(p.paths.Handle, []byte(handle), 0o640); err != nil {
		return fmt.Errorf("write handle marker: %w", err)
	}
	p.logger.Info("crawl started",
		zap.String("job_id", p.id),
		zap.String("handle", string(handle)),
	)
	return nil
}

// stop terminates the worker, reclaims its resources and deletes the handle
// marker. Calling it with no worker running is a logged no-op.
func (p *process) stop(ctx context.Context) error {
	if p.handle == "" {
		p.logger.Info("cannot stop crawl: it is not running", zap.String("job_id", p.id))
		return nil
	}
	if err := p.rt.Stop(ctx, p.handle); err != nil {
		return fmt.Errorf("stop worker: %w", err)
	}
	p.logger.Info("crawl stopped, removing worker",
		zap.String("job_id", p.id),
		zap.String("handle", string(p.handle)),
	)
	if err := p.rt.Remove(ctx, p.handle); err != nil {
		return fmt.Errorf("remove worker: %w", err)
	}
	if err := os.Remove(p.paths.Handle); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete handle marker: %w", err)
	}
	p.logger.Info("removed worker", zap.String("handle", string(p.handle)))
	p.handle = ""
	return nil
}

// finishUpdate applies change detection: an update is surfaced only when
// the progress text differs from the previous poll's.
func (p *process) finishUpdate(progress string, pages []PageSample) *ProgressUpdate {
	if progress == p.lastProgress {
		return nil
	}
	p.lastProgress = progress
	p.lastProgressAt = p.clock.Now()
	return &ProgressUpdate{Progress: progress, Pages: pages}
}

// writeSeeds persists the seed list, one URL per CSV record.
func writeSeeds(path string, seeds []string) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	for _, seed := range seeds {
		if err := w.Write([]string{seed}); err != nil {
			return fmt.Errorf("encode seeds: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode seeds: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o640); err != nil {
		return fmt.Errorf("write seeds: %w", err)
	}
	return nil
}

// readSeeds loads the persisted seed list.
func readSeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seeds: %w", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse seeds: %w", err)
	}
	seeds := make([]string, 0, len(records))
	for _, rec := range records {
		if len(rec) > 0 {
			seeds = append(seeds, rec[0])
		}
	}
	return seeds, nil
}
