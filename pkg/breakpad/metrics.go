package breakpad

import "github.com/prometheus/client_golang/prometheus"

// Metrics follows the teacher's nil-safe registerer pattern
// (symbolizer.metrics): constructed unconditionally, registered only
// when a non-nil Registerer is supplied, so a Resolver used in tests or
// one-shot CLI runs never needs a Prometheus server wired up.
type Metrics struct {
	lookupTotal     *prometheus.CounterVec
	cacheOperations *prometheus.CounterVec
	parseErrors     prometheus.Counter
}

// NewMetrics builds a Metrics struct, registering its collectors with
// reg unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashproc_symbol_lookup_total",
			Help: "Total number of Supplier lookups by result.",
		}, []string{"result"}),
		cacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashproc_symbol_cache_operations_total",
			Help: "Total number of symbol table cache operations by outcome.",
		}, []string{"outcome"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashproc_symbol_parse_errors_total",
			Help: "Total number of symbol files marked corrupt while parsing.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.lookupTotal, m.cacheOperations, m.parseErrors)
	}
	return m
}

// NewNullMetrics returns a Metrics struct whose collectors are never
// registered: they still count, but nothing exports them — the default for
// callers that don't care about Prometheus.
func NewNullMetrics() *Metrics {
	return NewMetrics(nil)
}
