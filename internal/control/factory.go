package control

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/runtime"
)

// Kind selects the job variant the service manages.
type Kind string

// The two supported job kinds.
const (
	KindTrainer Kind = "trainer"
	KindCrawler Kind = "crawler"
)

// ParseKind validates a kind string from the CLI.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTrainer, KindCrawler:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown job kind %q (want trainer or crawler)", s)
	}
}

// Factory builds and reconstructs processes of one kind. All shared
// configuration (jobs root, image, sample rate) is injected here once
// instead of living in ambient state.
type Factory struct {
	Kind         Kind
	Runtime      runtime.Runtime
	Clock        Clock
	Logger       *zap.Logger
	Root         string
	Image        string
	SampleRatePM float64
}

// New constructs an unstarted process for a fresh job. The job directory is
// derived once here and never recomputed.
func (f *Factory) New(id string, seeds []string, clfData []byte) Process {
	root := JobPath(f.Root, id, f.Clock.Now())
	return f.build(id, seeds, clfData, root, "")
}

// LoadRunning reconstructs a process purely from a job directory and
// runtime inspection. It returns (nil, nil) when the directory does not
// hold a running job: required files missing, handle unknown to the
// runtime, or worker no longer alive. Stale on-disk state is cleaned up on
// the way out.
func (f *Factory) LoadRunning(ctx context.Context, dir string) (Process, error) {
	paths := NewPaths(dir)
	if !paths.allExist() {
		return nil, nil
	}

	handleBytes, err := os.ReadFile(paths.Handle)
	if err != nil {
		return nil, fmt.Errorf("read handle marker: %w", err)
	}
	handle := runtime.Handle(strings.TrimSpace(string(handleBytes)))

	state, err := f.Runtime.Inspect(ctx, handle)
	if err != nil {
		// Unknown handle or inspection failure: either way the marker
		// is stale and the job is not running.
		f.Logger.Info("removing stale handle marker",
			zap.String("root", dir),
			zap.String("handle", string(handle)),
			zap.Error(err),
		)
		if rmErr := os.Remove(paths.Handle); rmErr != nil {
			return nil, fmt.Errorf("delete stale handle marker: %w", rmErr)
		}
		return nil, nil
	}
	if !state.Running {
		// Worker exited while we were down; reclaim it.
		if rmErr := os.Remove(paths.Handle); rmErr != nil {
			return nil, fmt.Errorf("delete handle marker: %w", rmErr)
		}
		if rmErr := f.Runtime.Remove(ctx, handle); rmErr != nil {
			f.Logger.Warn("failed to remove stopped worker",
				zap.String("handle", string(handle)), zap.Error(rmErr))
		}
		return nil, nil
	}

	idBytes, err := os.ReadFile(paths.ID)
	if err != nil {
		return nil, fmt.Errorf("read id marker: %w", err)
	}
	seeds, err := readSeeds(paths.Seeds)
	if err != nil {
		return nil, err
	}
	clfData, err := os.ReadFile(paths.Clf)
	if err != nil {
		return nil, fmt.Errorf("read classifier: %w", err)
	}

	return f.build(strings.TrimSpace(string(idBytes)), seeds, clfData, dir, handle), nil
}

func (f *Factory) build(id string, seeds []string, clfData []byte, root string, handle runtime.Handle) Process {
	base := process{
		id:           id,
		seeds:        seeds,
		clfData:      clfData,
		image:        f.Image,
		paths:        NewPaths(root),
		rt:           f.Runtime,
		clock:        f.Clock,
		logger:       f.Logger,
		sampleRatePM: f.SampleRatePM,
		handle:       handle,
	}
	if f.Kind == KindCrawler {
		return &CrawlerProcess{process: base}
	}
	return &TrainerProcess{process: base, tracker: NewArtifactTracker(root)}
}
