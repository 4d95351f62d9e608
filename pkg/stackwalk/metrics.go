package stackwalk

import "github.com/prometheus/client_golang/prometheus"

// Metrics records per-strategy frame-recovery counts and per-walk frame
// totals, modeled on the corpus's symbolizer.Metrics nil-safe
// constructor: a nil Registerer yields a Metrics that is safe to use but
// never registered.
type Metrics struct {
	framesByTrust *prometheus.CounterVec
	framesPerWalk prometheus.Histogram
}

// NewMetrics builds a Metrics registered against reg, or unregistered if
// reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesByTrust: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashproc_stackwalk_frames_total",
			Help: "Frames recovered during stack walks, by trust level.",
		}, []string{"trust"}),
		framesPerWalk: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crashproc_stackwalk_frames_per_walk",
			Help:    "Number of physical frames recovered per walk.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.framesByTrust, m.framesPerWalk)
	}
	return m
}

// NewNullMetrics returns a Metrics whose collectors are never registered:
// they still count, but nothing exports them, for callers that don't care
// about walk metrics.
func NewNullMetrics() *Metrics {
	return NewMetrics(nil)
}

func (m *Metrics) observe(stack CallStack) {
	if m == nil {
		return
	}
	physical := 0
	for _, f := range stack {
		m.framesByTrust.WithLabelValues(f.Trust.String()).Inc()
		if f.Trust != TrustInlineExpansion {
			physical++
		}
	}
	m.framesPerWalk.Observe(float64(physical))
}
