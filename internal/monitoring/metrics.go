package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the per-frame chain.
type Metrics struct {
	FramesProcessed prometheus.Counter
	FramesAborted   *prometheus.CounterVec   // by reason: timeout, config, canceled
	StageLatency    *prometheus.HistogramVec // by stage
	Peaks           prometheus.Histogram
	Targets         prometheus.Histogram
	Ghosts          prometheus.Histogram
	Diagnostics     *prometheus.CounterVec // by kind
	EgoSpeed        prometheus.Gauge
	EgoConfident    prometheus.Gauge
	SinkErrors      *prometheus.CounterVec // by sink
}

// NewMetrics registers a fresh set of collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	countBuckets := []float64{0, 1, 2, 4, 8, 16, 32, 64, 128}

	return &Metrics{
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "radarchain_frames_processed_total",
			Help: "Frames that completed every stage",
		}),
		FramesAborted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarchain_frames_aborted_total",
			Help: "Frames abandoned before producing a result",
		}, []string{"reason"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radarchain_stage_seconds",
			Help:    "Wall time spent in each processing stage",
			Buckets: prometheus.ExponentialBuckets(50e-6, 2, 14),
		}, []string{"stage"}),
		Peaks: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "radarchain_peaks_per_frame",
			Help:    "CFAR peaks per frame",
			Buckets: countBuckets,
		}),
		Targets: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "radarchain_targets_per_frame",
			Help:    "Targets surviving the ghost filter per frame",
			Buckets: countBuckets,
		}),
		Ghosts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "radarchain_ghosts_per_frame",
			Help:    "Targets rejected as ghosts per frame",
			Buckets: countBuckets,
		}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarchain_diagnostics_total",
			Help: "Non-fatal per-frame diagnostics",
		}, []string{"kind"}),
		EgoSpeed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "radarchain_ego_speed_mps",
			Help: "Most recent ego-speed estimate",
		}),
		EgoConfident: factory.NewGauge(prometheus.GaugeOpts{
			Name: "radarchain_ego_confident",
			Help: "1 when the most recent ego estimate was confident",
		}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarchain_sink_errors_total",
			Help: "Failures delivering frame results to a sink",
		}, []string{"sink"}),
	}
}

// ObserveStage records the duration of one stage. Safe on a nil receiver.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveFrame records the per-frame counts of a completed frame.
func (m *Metrics) ObserveFrame(peaks, targets, ghosts int, egoSpeed float64, egoConfident bool) {
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	m.Peaks.Observe(float64(peaks))
	m.Targets.Observe(float64(targets))
	m.Ghosts.Observe(float64(ghosts))
	m.EgoSpeed.Set(egoSpeed)
	if egoConfident {
		m.EgoConfident.Set(1)
	} else {
		m.EgoConfident.Set(0)
	}
}

// FrameAborted counts a frame that produced no result.
func (m *Metrics) FrameAborted(reason string) {
	if m == nil {
		return
	}
	m.FramesAborted.WithLabelValues(reason).Inc()
}

// Diagnostic counts a non-fatal per-frame condition.
func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(kind).Inc()
}

// SinkError counts a failed sink delivery.
func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}
