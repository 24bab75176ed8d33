package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionStarted()
	m.SessionStarted()
	m.SessionClosed("drained", 3*time.Second)
	m.PathMismatch()
	m.AudioFrame(3200, 120)
	m.AudioFrame(3200, 0)
	m.Echo()
	m.Transcript(true)
	m.Transcript(false)
	m.Transcript(false)
	m.BackendError("google", "Unavailable")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsClosed.WithLabelValues("drained")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PathMismatches))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AudioFrames))
	assert.Equal(t, 6400.0, testutil.ToFloat64(m.AudioBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EchoFrames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transcripts.WithLabelValues("final")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transcripts.WithLabelValues("interim")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendErrors.WithLabelValues("google", "Unavailable")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var rmsSamples uint64
	for _, mf := range families {
		if mf.GetName() == "speechrelay_audio_rms" {
			rmsSamples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), rmsSamples)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionStarted()
		m.SessionClosed("errored", time.Second)
		m.PathMismatch()
		m.AudioFrame(2, 1)
		m.Echo()
		m.Transcript(true)
		m.BackendError("google", "Unknown")
	})
}
