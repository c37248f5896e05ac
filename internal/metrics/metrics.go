// Package metrics exposes Prometheus collectors for the control service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	commandsTotal         *prometheus.CounterVec
	commandsDroppedTotal  *prometheus.CounterVec
	jobsRunning           *prometheus.GaugeVec
	updatesPublishedTotal *prometheus.CounterVec
	runtimeFailuresTotal  *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		commandsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcontrol_commands_total",
				Help: "Total number of bus commands handled, labeled by kind and command.",
			},
			[]string{"kind", "command"},
		)

		commandsDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcontrol_commands_dropped_total",
				Help: "Total number of malformed or unrecognized bus commands dropped.",
			},
			[]string{"kind"},
		)

		jobsRunning = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawlcontrol_jobs_running",
				Help: "Number of currently registered crawl jobs.",
			},
			[]string{"kind"},
		)

		updatesPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcontrol_updates_published_total",
				Help: "Total number of outbound updates published, labeled by kind and channel.",
			},
			[]string{"kind", "channel"},
		)

		runtimeFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlcontrol_runtime_failures_total",
				Help: "Total number of worker runtime call failures, labeled by kind and operation.",
			},
			[]string{"kind", "op"},
		)
	})
}

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCommand records one handled command.
func ObserveCommand(kind, command string) {
	if commandsTotal == nil {
		return
	}
	commandsTotal.WithLabelValues(kind, command).Inc()
}

// ObserveDroppedCommand records one dropped command.
func ObserveDroppedCommand(kind string) {
	if commandsDroppedTotal == nil {
		return
	}
	commandsDroppedTotal.WithLabelValues(kind).Inc()
}

// SetJobsRunning records the current registry size.
func SetJobsRunning(kind string, n int) {
	if jobsRunning == nil {
		return
	}
	jobsRunning.WithLabelValues(kind).Set(float64(n))
}

// ObserveUpdatePublished records one outbound publish on a channel
// (progress, pages or model).
func ObserveUpdatePublished(kind, channel string) {
	if updatesPublishedTotal == nil {
		return
	}
	updatesPublishedTotal.WithLabelValues(kind, channel).Inc()
}

// ObserveRuntimeFailure records a failed runtime call (launch, stop, ...).
func ObserveRuntimeFailure(kind, op string) {
	if runtimeFailuresTotal == nil {
		return
	}
	runtimeFailuresTotal.WithLabelValues(kind, op).Inc()
}
