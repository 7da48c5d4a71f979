package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "feels_like"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Calculation endpoint metrics.
	Computations        *prometheus.CounterVec // labels: source={http,pipeline}, outcome={success,invalid}
	ApparentTemperature prometheus.Histogram
	HTTPRequests        *prometheus.CounterVec // labels: code
	RateLimited         prometheus.Counter

	// Pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	SkippedReadings         *prometheus.CounterVec // labels: reason={invalid_input,malformed,duplicate}
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// multiple tests can each build their own without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computations_total",
			Help:      "Apparent temperature computations by source and outcome.",
		}, []string{"source", "outcome"}),
		ApparentTemperature: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apparent_temperature_celsius",
			Help:      "Distribution of computed apparent temperatures.",
			Buckets:   []float64{-30, -20, -10, 0, 10, 18, 24, 30, 38, 45, 55},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Calculation endpoint requests by status code.",
		}, []string{"code"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Calculation requests rejected by the rate limiter.",
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total messages written to the sink topic.",
		}),
		SkippedReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_readings_total",
			Help:      "Source messages that were committed without being published, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Computations,
		m.ApparentTemperature,
		m.HTTPRequests,
		m.RateLimited,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.SkippedReadings,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
	}
}

// ObserveComputation records one engine call. apparentC is ignored when err is non-nil.
func (m *Metrics) ObserveComputation(source string, apparentC float64, err error) {
	if err != nil {
		m.Computations.WithLabelValues(source, "invalid").Inc()
		return
	}
	m.Computations.WithLabelValues(source, "success").Inc()
	m.ApparentTemperature.Observe(apparentC)
}
