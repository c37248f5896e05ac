package control

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// CrawlerProcess runs the broad-crawl worker, which consumes a trained
// model and produces pages but no checkpoints.
type CrawlerProcess struct {
	process
}

func crawlerArgs() []string {
	return []string{
		"scrapy", "crawl", "deepdeep",
		"-a", "seeds_url=" + MountDir + "/" + seedsFile,
		"-a", "clf_url=" + MountDir + "/" + clfFile,
		"-o", "gzip:" + MountDir + "/items.jl",
		"--logfile", MountDir + "/spider.log",
		"-L", "INFO",
	}
}

// Start persists the job state and launches the crawler worker.
func (p *CrawlerProcess) Start(ctx context.Context) error {
	return p.start(ctx, crawlerArgs())
}

// Stop terminates and reclaims the worker.
func (p *CrawlerProcess) Stop(ctx context.Context) error {
	return p.stop(ctx)
}

// PollUpdates derives progress from the newest item stream record and
// surfaces page samples from the stream tail, capped by the adaptive
// sample quota so reporting volume tracks idle time.
func (p *CrawlerProcess) PollUpdates(_ context.Context) (*ProgressUpdate, error) {
	if _, err := os.Stat(p.paths.Items); err != nil {
		return p.finishUpdate("Crawl is not running yet", nil), nil
	}
	quota := p.sampleQuota()
	items, err := lastValidItems(p.paths.Items, quota)
	if err != nil {
		p.logger.Debug("item stream not readable yet",
			zap.String("job_id", p.id), zap.Error(err))
	}
	if len(items) == 0 {
		return p.finishUpdate("Crawl started, no updates yet", nil), nil
	}
	var pages []PageSample
	for _, item := range items {
		if sample := pageSample(item); sample != nil {
			pages = append(pages, *sample)
		}
	}
	return p.finishUpdate(formatProgress(items[len(items)-1]), pages), nil
}

// PollModel always returns nil: the crawler kind does not train.
func (p *CrawlerProcess) PollModel(_ context.Context) ([]byte, error) {
	return nil, nil
}
