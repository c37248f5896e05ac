// Package main hosts the crawlcontrol service entrypoint.
//
// Architecture overview:
//   - Control loop: internal/service consumes JSON start/stop commands from
//     the kind's dd-<kind>-input Kafka topic, drives one docker worker per
//     job through internal/runtime, and commits consumer offsets only after
//     the iteration that handled them completes.
//   - Job state: there is no persisted registry. Each job owns a directory
//     under the jobs root holding its id, seeds, page classifier and worker
//     handle; internal/control rebuilds the in-memory registry from those
//     directories at startup and discards stale ones.
//   - Relay: every N loop iterations each registered job is polled for new
//     progress lines, page samples and model checkpoints, which are
//     published to the dd-<kind>-progress, -pages and -model topics.
//   - Plumbing: Viper populates config from file and CRAWLCONTROL_* env
//     vars; zap provides structured logging; Prometheus metrics and the
//     read-only job view are served by the chi server in internal/api.
//
// Run locally: crawlcontrol serve trainer --config config.yaml. The process
// reacts to SIGINT/SIGTERM by draining the loop; workers keep running and
// are picked up again on the next start.
package main
