package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "crawlcontrol", cfg.Kafka.GroupID)
	require.Equal(t, 50, cfg.Service.CheckUpdatesEvery)
	require.Equal(t, 200*time.Millisecond, cfg.PollTimeout())
	require.InDelta(t, 3, cfg.Service.TargetSampleRatePM, 0.001)
	require.Equal(t, "docker", cfg.Runtime.Provider)
	require.True(t, cfg.API.Enabled)
	require.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  group_id: hh-control
jobs:
  root: /var/lib/crawlcontrol
docker:
  trainer_image: deep-deep:latest
  crawler_image: dd-crawler:latest
service:
  check_updates_every: 10
  poll_timeout_ms: 500
  target_sample_rate_pm: 1.5
api:
  enabled: false
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "hh-control", cfg.Kafka.GroupID)
	require.Equal(t, "/var/lib/crawlcontrol", cfg.Jobs.Root)
	require.Equal(t, 10, cfg.Service.CheckUpdatesEvery)
	require.Equal(t, 500*time.Millisecond, cfg.PollTimeout())
	require.InDelta(t, 1.5, cfg.Service.TargetSampleRatePM, 0.001)
	require.False(t, cfg.API.Enabled)
	require.False(t, cfg.Logging.Development)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Kafka.Brokers = nil
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Service.CheckUpdatesEvery = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Service.TargetSampleRatePM = -1
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Runtime.Provider = "podman"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.API.Enabled = true
	cfg.API.Addr = ""
	require.Error(t, cfg.Validate())
}

func TestRootAndImageForKind(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, filepath.Join("data", "trainer-jobs"), cfg.RootFor("trainer"))
	require.Equal(t, filepath.Join("data", "crawler-jobs"), cfg.RootFor("crawler"))
	require.Equal(t, "deep-deep", cfg.ImageFor("trainer"))
	require.Equal(t, "dd-crawler", cfg.ImageFor("crawler"))
}
