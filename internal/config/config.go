// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Docker  DockerConfig  `mapstructure:"docker"`
	Service ServiceConfig `mapstructure:"service"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// KafkaConfig locates the message bus.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

// JobsConfig controls job directory placement.
type JobsConfig struct {
	Root string `mapstructure:"root"`
}

// RuntimeConfig selects the worker runtime backend. "docker" shells out to
// the Docker CLI; "memory" keeps workers in process for local development.
type RuntimeConfig struct {
	Provider string `mapstructure:"provider"`
}

// DockerConfig names the worker images per job kind.
type DockerConfig struct {
	TrainerImage string `mapstructure:"trainer_image"`
	CrawlerImage string `mapstructure:"crawler_image"`
}

// ServiceConfig governs control loop behavior.
type ServiceConfig struct {
	// CheckUpdatesEvery is the number of loop iterations between update
	// broadcasts. Together with PollTimeoutMs it defines responsiveness.
	CheckUpdatesEvery int `mapstructure:"check_updates_every"`
	PollTimeoutMs     int `mapstructure:"poll_timeout_ms"`
	// TargetSampleRatePM caps how many page samples per minute of idle
	// time a job surfaces in one update.
	TargetSampleRatePM float64 `mapstructure:"target_sample_rate_pm"`
}

// APIConfig controls the read-only status HTTP server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLCONTROL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "crawlcontrol")
	v.SetDefault("jobs.root", "data")
	v.SetDefault("runtime.provider", "docker")
	v.SetDefault("docker.trainer_image", "deep-deep")
	v.SetDefault("docker.crawler_image", "dd-crawler")
	v.SetDefault("service.check_updates_every", 50)
	v.SetDefault("service.poll_timeout_ms", 200)
	v.SetDefault("service.target_sample_rate_pm", 3)
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8081")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id must be set")
	}
	if c.Jobs.Root == "" {
		return fmt.Errorf("jobs.root must be set")
	}
	if c.Runtime.Provider != "docker" && c.Runtime.Provider != "memory" {
		return fmt.Errorf("unknown runtime provider: %s", c.Runtime.Provider)
	}
	if c.Service.CheckUpdatesEvery <= 0 {
		return fmt.Errorf("service.check_updates_every must be > 0")
	}
	if c.Service.PollTimeoutMs <= 0 {
		return fmt.Errorf("service.poll_timeout_ms must be > 0")
	}
	if c.Service.TargetSampleRatePM <= 0 {
		return fmt.Errorf("service.target_sample_rate_pm must be > 0")
	}
	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("api.addr must be set when api is enabled")
	}
	return nil
}

// RootFor returns the jobs root directory for a job kind. Each kind owns
// its own tree so reconciliation never mixes trainer and crawler jobs.
func (c Config) RootFor(kind string) string {
	return filepath.Join(c.Jobs.Root, kind+"-jobs")
}

// ImageFor returns the configured worker image for a job kind.
func (c Config) ImageFor(kind string) string {
	if kind == "crawler" {
		return c.Docker.CrawlerImage
	}
	return c.Docker.TrainerImage
}

// PollTimeout converts the poll timeout config into a duration.
func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.Service.PollTimeoutMs) * time.Millisecond
}
