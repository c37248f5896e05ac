// Package cmd defines and implements the CLI commands for the crawlcontrol
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hhsearch/crawlcontrol/internal/app"
	"github.com/hhsearch/crawlcontrol/internal/config"
	"github.com/hhsearch/crawlcontrol/internal/control"
	"github.com/hhsearch/crawlcontrol/internal/service"
)

var cfgFile string

// App is the slice of the application container the commands use. It is an
// interface so tests can inject a stub factory.
type App interface {
	Close()
	Logger() *zap.Logger
	Service() *service.Service
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context, cfg config.Config, kind control.Kind) (App, error) {
	return app.New(ctx, cfg, kind)
}

// loadConfig reads the configuration file named by --config, falling back
// to defaults and environment variables when the flag is empty.
var loadConfig = func() (config.Config, error) {
	return config.Load(cfgFile)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlcontrol",
		Short: "Control service for long-running crawl workers.",
		Long: `crawlcontrol drives dockerized crawl workers from commands on a Kafka
bus. It starts and stops trainer and crawler jobs, recovers running jobs
from their on-disk state after a restart, and relays crawl progress, page
samples and trained model checkpoints to the outbound topics.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus CRAWLCONTROL_* env)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "crawlcontrol: %v\n", err)
		os.Exit(1)
	}
}
