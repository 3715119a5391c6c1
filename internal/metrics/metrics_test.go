package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGathers(t *testing.T) {
	NotificationsIngested.WithLabelValues("vessel_event", "stored").Inc()
	StreamEvictions.Inc()

	families, err := Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["vessel_notify_notifications_ingested_total"])
	assert.True(t, names["vessel_notify_stream_evictions_total"])
	assert.True(t, names["go_goroutines"])
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(ScreeningOutcomes.WithLabelValues("timed_out"))
	ScreeningOutcomes.WithLabelValues("timed_out").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ScreeningOutcomes.WithLabelValues("timed_out")))
}
