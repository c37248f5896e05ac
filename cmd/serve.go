package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/control"
)

// newServeCmd creates the 'serve' subcommand. One serve process manages
// jobs of exactly one kind; run two processes to serve both kinds.
func newServeCmd() *cobra.Command {
	var (
		dockerImage  string
		kafkaBrokers []string
	)

	cmd := &cobra.Command{
		Use:   "serve <kind>",
		Short: "Run the control loop for one job kind (trainer or crawler)",
		Long: `Consumes start/stop commands from the kind's input topic, manages the
matching docker workers, and publishes progress, page samples and model
checkpoints until interrupted or stopped via the bus.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := control.ParseKind(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dockerImage != "" {
				switch kind {
				case control.KindTrainer:
					cfg.Docker.TrainerImage = dockerImage
				case control.KindCrawler:
					cfg.Docker.CrawlerImage = dockerImage
				}
			}
			if len(kafkaBrokers) > 0 {
				cfg.Kafka.Brokers = kafkaBrokers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, kind)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()

			a.Logger().Info("control loop starting", zap.String("kind", string(kind)))
			if err := a.Service().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("control loop: %w", err)
			}
			a.Logger().Info("control loop finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&dockerImage, "docker-image", "", "override the worker image for this kind")
	cmd.Flags().StringSliceVar(&kafkaBrokers, "kafka-broker", nil, "override the Kafka broker list")

	return cmd
}
