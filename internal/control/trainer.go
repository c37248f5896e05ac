package control

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// TrainerProcess runs the link-model trainer worker. It is the only kind
// that produces model checkpoints.
type TrainerProcess struct {
	process
	tracker *ArtifactTracker
}

// trainerArgs is the deterministic worker invocation. All paths reference
// the persisted job files under the container mount.
func trainerArgs() []string {
	return []string{
		"scrapy", "crawl", "relevant",
		"-a", "seeds_url=" + MountDir + "/" + seedsFile,
		"-a", "checkpoint_path=" + MountDir,
		"-a", "classifier_path=" + MountDir + "/" + clfFile,
		"-o", "gzip:" + MountDir + "/items.jl",
		"-a", "export_cdr=0",
		"--logfile", MountDir + "/spider.log",
		"-L", "INFO",
		"-s", "CLOSESPIDER_ITEMCOUNT=1000000",
	}
}

// Start persists the job state and launches the trainer worker.
func (p *TrainerProcess) Start(ctx context.Context) error {
	return p.start(ctx, trainerArgs())
}

// Stop terminates and reclaims the worker.
func (p *TrainerProcess) Stop(ctx context.Context) error {
	return p.stop(ctx)
}

// PollUpdates derives a progress update from the last valid item stream
// record. At most one page sample is surfaced per update.
func (p *TrainerProcess) PollUpdates(_ context.Context) (*ProgressUpdate, error) {
	if _, err := os.Stat(p.paths.Items); err != nil {
		return p.finishUpdate("Crawl is not running yet", nil), nil
	}
	items, err := lastValidItems(p.paths.Items, 1)
	if err != nil {
		p.logger.Debug("item stream not readable yet",
			zap.String("job_id", p.id), zap.Error(err))
	}
	if len(items) == 0 {
		return p.finishUpdate("Crawl started, no updates yet", nil), nil
	}
	last := items[len(items)-1]
	var pages []PageSample
	if sample := pageSample(last); sample != nil {
		pages = append(pages, *sample)
	}
	return p.finishUpdate(formatProgress(last), pages), nil
}

// PollModel returns the latest unseen checkpoint's bytes, or nil.
func (p *TrainerProcess) PollModel(_ context.Context) ([]byte, error) {
	return p.tracker.LatestNew()
}
