package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sig-0/ibkrrates/storage/types"
)

const (
	Namespace       = "ibkrrates"
	SubsystemSystem = "system"
	SubsystemIngest = "ingest"

	labelType   = "type"
	labelStatus = "status"

	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the Prometheus collectors of the rate ingestion
type Metrics struct {
	registry *prometheus.Registry

	startTime prometheus.Gauge

	runsTotal     *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	lastSuccessAt *prometheus.GaugeVec
}

// New creates a new metrics collector on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: Namespace,
	}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: SubsystemSystem,
		Name:      "start_timestamp_seconds",
		Help:      "The time the service started.",
	})
	m.startTime.SetToCurrentTime()
	m.registry.MustRegister(m.startTime)

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemIngest,
		Name:      "runs_total",
		Help:      "The total number of rate table ingest runs.",
	}, []string{labelType, labelStatus})
	m.registry.MustRegister(m.runsTotal)

	m.recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemIngest,
		Name:      "records_total",
		Help:      "The total number of rate records extracted by successful runs.",
	}, []string{labelType})
	m.registry.MustRegister(m.recordsTotal)

	m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: SubsystemIngest,
		Name:      "run_duration_seconds",
		Help:      "Time to fetch, extract and save a rate table.",
	}, []string{labelType})
	m.registry.MustRegister(m.runDuration)

	m.lastSuccessAt = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: SubsystemIngest,
		Name:      "last_success_timestamp_seconds",
		Help:      "The time of the last successful run.",
	}, []string{labelType})
	m.registry.MustRegister(m.lastSuccessAt)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome of a single ingest run
func (m *Metrics) ObserveRun(rateType types.RateType, elapsed time.Duration, records int, err error) {
	if m == nil {
		return
	}

	m.runDuration.WithLabelValues(rateType.String()).Observe(elapsed.Seconds())

	if err != nil {
		m.runsTotal.WithLabelValues(rateType.String(), statusFailure).Inc()

		return
	}

	m.runsTotal.WithLabelValues(rateType.String(), statusSuccess).Inc()
	m.recordsTotal.WithLabelValues(rateType.String()).Add(float64(records))
	m.lastSuccessAt.WithLabelValues(rateType.String()).SetToCurrentTime()
}
