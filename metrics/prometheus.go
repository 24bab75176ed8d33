package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the relay. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsClosed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	PathMismatches  prometheus.Counter

	// Inbound metrics
	AudioFrames prometheus.Counter
	AudioBytes  prometheus.Counter
	AudioRMS    prometheus.Histogram
	EchoFrames  prometheus.Counter

	// Backend metrics
	Transcripts   *prometheus.CounterVec
	BackendErrors *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "speechrelay_active_sessions",
			Help: "Current number of open streaming sessions",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_sessions_started_total",
			Help: "Total number of streaming sessions started",
		}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speechrelay_sessions_closed_total",
			Help: "Total number of streaming sessions closed, by how the backend stream ended",
		}, []string{"outcome"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechrelay_session_duration_seconds",
			Help:    "Duration of streaming sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		PathMismatches: f.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_path_mismatches_total",
			Help: "Connections made to a path other than the expected one",
		}),
		AudioFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_audio_frames_total",
			Help: "Total number of binary audio frames received from clients",
		}),
		AudioBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_audio_bytes_total",
			Help: "Total number of audio bytes received from clients",
		}),
		AudioRMS: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechrelay_audio_rms",
			Help:    "RMS level of inbound 16-bit audio frames",
			Buckets: []float64{0, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000, 32768},
		}),
		EchoFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "speechrelay_echo_frames_total",
			Help: "Total number of text frames echoed back to clients",
		}),
		Transcripts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speechrelay_transcripts_total",
			Help: "Total number of transcript frames relayed, by kind",
		}, []string{"kind"}),
		BackendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speechrelay_backend_errors_total",
			Help: "Total number of backend failures, by backend and status code",
		}, []string{"backend", "code"}),
	}
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionsStarted.Inc()
}

func (m *Metrics) SessionClosed(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionsClosed.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) PathMismatch() {
	if m == nil {
		return
	}
	m.PathMismatches.Inc()
}

func (m *Metrics) AudioFrame(size, rms int) {
	if m == nil {
		return
	}
	m.AudioFrames.Inc()
	m.AudioBytes.Add(float64(size))
	m.AudioRMS.Observe(float64(rms))
}

func (m *Metrics) Echo() {
	if m == nil {
		return
	}
	m.EchoFrames.Inc()
}

func (m *Metrics) Transcript(final bool) {
	if m == nil {
		return
	}
	kind := "interim"
	if final {
		kind = "final"
	}
	m.Transcripts.WithLabelValues(kind).Inc()
}

func (m *Metrics) BackendError(backend, code string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(backend, code).Inc()
}
