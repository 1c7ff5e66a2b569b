// Package metrics exposes the orchestrator's Prometheus
// instrumentation: counters for plugin invocations and observations,
// gauges for inbox depth and active application count. Grounded on the
// pack's pervasive use of github.com/prometheus/client_golang for
// exactly this "register a handful of process-wide collectors, serve
// them on /metrics" shape.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PluginInvocationsTotal counts every plugin launch, labeled by
	// plugin name and outcome ("ok" or "error").
	PluginInvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_plugin_invocations_total",
		Help: "Total plugin invocations, labeled by plugin and result.",
	}, []string{"plugin", "result"})

	// ObservationsTotal counts every observation a handler records.
	ObservationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agora_observations_total",
		Help: "Total observations recorded across every application.",
	})

	// InboxDepth reports the current number of messages queued for
	// the worker pool.
	InboxDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agora_inbox_depth",
		Help: "Number of messages currently queued for dispatch.",
	})

	// HandlersActive reports the number of applications currently
	// registered.
	HandlersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agora_handlers_active",
		Help: "Number of application handlers currently registered.",
	})
)

// Register adds every collector to reg. Called once at startup with
// the registry the diagnostics server exposes on /metrics.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(PluginInvocationsTotal, ObservationsTotal, InboxDepth, HandlersActive)
}
