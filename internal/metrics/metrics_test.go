package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegisterAgainstAFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { Register(reg) })

	PluginInvocationsTotal.WithLabelValues("doe", "ok").Inc()
	ObservationsTotal.Inc()
	InboxDepth.Set(3)
	HandlersActive.Set(1)

	metrics, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metrics)
}
