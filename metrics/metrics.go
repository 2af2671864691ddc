// Package metrics provides the Prometheus metrics exported by finddrugs.
//
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - rate_limiter_buckets_total: Gauge of tracked client buckets
//
// Analysis metrics:
//   - finddrugs_notes_analyzed_total: Counter with the group label
//   - finddrugs_ambiguous_lines_total: Counter of medication lines outside any section
//   - finddrugs_record_errors_total: Counter of notes that could not be analyzed
//   - finddrugs_lexicon_generics: Gauge with the size of the loaded lexicon
//
// All metrics are registered with the Prometheus default registry during package
// initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	NotesAnalyzedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finddrugs_notes_analyzed_total",
			Help: "Notes analyzed, by exposure group",
		},
		[]string{"group"},
	)

	AmbiguousLinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finddrugs_ambiguous_lines_total",
			Help: "Medication lines seen outside any tracked section",
		},
	)

	RecordErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finddrugs_record_errors_total",
			Help: "Notes skipped because their record could not be analyzed",
		},
	)

	LexiconGenerics = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "finddrugs_lexicon_generics",
			Help: "Number of generics in the loaded drug lexicon",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(NotesAnalyzedTotal)
	prometheus.MustRegister(AmbiguousLinesTotal)
	prometheus.MustRegister(RecordErrorsTotal)
	prometheus.MustRegister(LexiconGenerics)
}

// ObserveGroup counts one analyzed note
func ObserveGroup(group string) {
	NotesAnalyzedTotal.WithLabelValues(group).Inc()
}
