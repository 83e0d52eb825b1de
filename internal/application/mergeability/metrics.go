package mergeability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "mergecheck"
	metricsSubsystem = "mergeability"
)

// Check outcomes recorded by the checks_total counter.
const (
	outcomeSkipped  = "skipped"
	outcomeCacheHit = "cache_hit"
	outcomeSuccess  = "success"
	outcomeFailed   = "failed"
	outcomeError    = "error"
)

// Metrics holds the Prometheus collectors of the check pipeline. A nil
// *Metrics records nothing.
type Metrics struct {
	checksTotal      *prometheus.CounterVec
	cacheErrorsTotal *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "checks_total",
			Help:      "Mergeability checks processed, by check identity and outcome",
		}, []string{"check", "outcome"}),
		cacheErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "cache_errors_total",
			Help:      "Result cache operations that failed and were treated as a miss",
		}, []string{"op"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a mergeability run",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"result"}),
	}
}

func (m *Metrics) observeCheck(identity, outcome string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(identity, outcome).Inc()
}

func (m *Metrics) cacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) observeRun(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}
