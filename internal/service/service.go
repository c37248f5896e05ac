// Package service runs the control loop: it consumes start/stop commands
// from the inbound bus, drives crawl worker processes through the runtime,
// and periodically relays progress, page samples and model artifacts to the
// outbound channels.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/bus"
	"github.com/hhsearch/crawlcontrol/internal/control"
	"github.com/hhsearch/crawlcontrol/internal/metrics"
)

// Config controls Service behavior.
type Config struct {
	// CheckUpdatesEvery is the number of loop iterations between outbound
	// update rounds.
	CheckUpdatesEvery int
	// PollTimeout bounds a single inbound fetch. An iteration ends when a
	// fetch comes back empty.
	PollTimeout time.Duration
}

// Outbound groups the three relay channels.
type Outbound struct {
	Progress bus.Writer
	Pages    bus.Writer
	Model    bus.Writer
}

// Service wires the command reader, the job registry and the outbound
// writers into a single-threaded loop. All registry mutation happens on the
// loop goroutine; the registry itself is safe for concurrent readers.
type Service struct {
	kind     control.Kind
	reader   bus.Reader
	out      Outbound
	factory  *control.Factory
	registry *control.Registry
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Service.
func New(
	kind control.Kind,
	reader bus.Reader,
	out Outbound,
	factory *control.Factory,
	registry *control.Registry,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CheckUpdatesEvery <= 0 {
		cfg.CheckUpdatesEvery = 50
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 200 * time.Millisecond
	}
	return &Service{
		kind:     kind,
		reader:   reader,
		out:      out,
		factory:  factory,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Registry exposes the job registry for read-only consumers such as the
// status API.
func (s *Service) Registry() *control.Registry {
	return s.registry
}

// Run blocks, alternating between draining inbound commands and relaying
// updates, until the context finishes or an administrative stop command
// arrives. Inbound offsets are committed only after the iteration that
// consumed them completes.
func (s *Service) Run(ctx context.Context) error {
	counter := 0
	for {
		counter++
		fetched, terminate := s.drainCommands(ctx)
		if counter%s.cfg.CheckUpdatesEvery == 0 {
			s.sendUpdates(ctx)
		}
		if len(fetched) > 0 {
			if err := s.reader.CommitMessages(ctx, fetched...); err != nil {
				s.logger.Error("offset commit failed", zap.Error(err))
			}
		}
		if terminate {
			s.logger.Info("stop command received, terminating")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// drainCommands fetches and dispatches inbound messages until a fetch times
// out. It returns the messages consumed this iteration and whether an
// administrative stop was seen.
func (s *Service) drainCommands(ctx context.Context) ([]kafka.Message, bool) {
	var fetched []kafka.Message
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		msg, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				s.logger.Error("fetch failed", zap.Error(err))
			}
			return fetched, false
		}
		fetched = append(fetched, msg)
		if s.dispatch(ctx, msg.Value) {
			return fetched, true
		}
	}
}

// dispatch routes one command payload. It reports whether the payload was
// an administrative stop.
func (s *Service) dispatch(ctx context.Context, payload []byte) bool {
	cmd, kind := parseCommand(payload)
	switch kind {
	case cmdStopService:
		metrics.ObserveCommand(string(s.kind), "stop-service")
		return true
	case cmdStartCrawl:
		metrics.ObserveCommand(string(s.kind), "start")
		s.startCrawl(ctx, cmd)
	case cmdStopCrawl:
		metrics.ObserveCommand(string(s.kind), "stop")
		s.stopCrawl(ctx, cmd.ID)
	default:
		metrics.ObserveDroppedCommand(string(s.kind))
		s.logger.Error("dropping malformed command", zap.ByteString("payload", payload))
	}
	return false
}

// startCrawl replaces any process already registered under the command id
// and launches a fresh one. A stop failure on the old process is logged but
// does not block the replacement.
func (s *Service) startCrawl(ctx context.Context, cmd command) {
	if old, ok := s.registry.Get(cmd.ID); ok {
		s.logger.Info("restarting job", zap.String("id", cmd.ID))
		if err := old.Stop(ctx); err != nil {
			metrics.ObserveRuntimeFailure(string(s.kind), "stop")
			s.logger.Error("failed to stop previous process",
				zap.String("id", cmd.ID), zap.Error(err))
		}
		s.registry.Remove(cmd.ID)
	}
	clf, err := control.DecodeModel(*cmd.PageModel)
	if err != nil {
		s.logger.Error("dropping start command, bad page model",
			zap.String("id", cmd.ID), zap.Error(err))
		return
	}
	proc := s.factory.New(cmd.ID, cmd.Seeds, clf)
	if err := proc.Start(ctx); err != nil {
		metrics.ObserveRuntimeFailure(string(s.kind), "start")
		s.logger.Error("failed to start job",
			zap.String("id", cmd.ID), zap.Error(err))
		return
	}
	s.registry.Put(proc)
	metrics.SetJobsRunning(string(s.kind), s.registry.Len())
}

// stopCrawl stops the process registered under id. The registry entry is
// evicted even when the runtime stop fails.
func (s *Service) stopCrawl(ctx context.Context, id string) {
	proc, ok := s.registry.Get(id)
	if !ok {
		s.logger.Info("stop command for unknown job, ignoring", zap.String("id", id))
		return
	}
	if err := proc.Stop(ctx); err != nil {
		metrics.ObserveRuntimeFailure(string(s.kind), "stop")
		s.logger.Error("failed to stop job", zap.String("id", id), zap.Error(err))
	}
	s.registry.Remove(id)
	metrics.SetJobsRunning(string(s.kind), s.registry.Len())
}

// sendUpdates polls every registered process once and publishes whatever
// changed. Poll and publish failures affect only the process at hand.
func (s *Service) sendUpdates(ctx context.Context) {
	for _, id := range s.registry.IDs() {
		proc, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		s.relayProgress(ctx, proc)
		s.relayModel(ctx, proc)
	}
}

func (s *Service) relayProgress(ctx context.Context, proc control.Process) {
	update, err := proc.PollUpdates(ctx)
	if err != nil {
		s.logger.Error("progress poll failed",
			zap.String("id", proc.ID()), zap.Error(err))
		return
	}
	if update == nil {
		return
	}
	s.publish(ctx, s.out.Progress, "progress", proc.ID(), progressMessage{
		ID:       proc.ID(),
		Progress: update.Progress,
	})
	if len(update.Pages) > 0 {
		s.publish(ctx, s.out.Pages, "pages", proc.ID(), pagesMessage{
			ID:         proc.ID(),
			PageSample: update.Pages,
		})
	}
}

func (s *Service) relayModel(ctx context.Context, proc control.Process) {
	data, err := proc.PollModel(ctx)
	if err != nil {
		s.logger.Error("model poll failed",
			zap.String("id", proc.ID()), zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	encoded, err := control.EncodeModel(data)
	if err != nil {
		s.logger.Error("model encode failed",
			zap.String("id", proc.ID()), zap.Error(err))
		return
	}
	s.publish(ctx, s.out.Model, "model", proc.ID(), modelMessage{
		ID:    proc.ID(),
		Model: encoded,
	})
}

func (s *Service) publish(ctx context.Context, w bus.Writer, channel, id string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal failed",
			zap.String("channel", channel), zap.String("id", id), zap.Error(err))
		return
	}
	if err := w.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		s.logger.Error("publish failed",
			zap.String("channel", channel), zap.String("id", id), zap.Error(err))
		return
	}
	metrics.ObserveUpdatePublished(string(s.kind), channel)
	s.logger.Info("sending update",
		zap.String("channel", channel),
		zap.String("id", id),
		zap.Int("bytes", len(payload)),
	)
}
