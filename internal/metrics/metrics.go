package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "steakboard"

var (
	ledgerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_calls_total",
			Help:      "Remote ledger RPC calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)
	ledgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_call_duration_seconds",
			Help:      "Remote ledger RPC latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	pageFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_total",
			Help:      "Paginator fetches by scope and outcome",
		},
		[]string{"scope", "outcome"},
	)
	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Analysis submissions by outcome",
		},
		[]string{"outcome"},
	)
	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation polls by terminal outcome",
		},
		[]string{"outcome"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
	uploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes of images accepted for upload",
		},
	)
)

// Registry holds every steakboard collector.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(ledgerCalls, ledgerDuration, pageFetches, submissions, confirmations, httpDuration, uploadBytes)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// LedgerTimer starts timing a ledger call; call the returned func with the
// call's error when it completes.
func LedgerTimer(method string) func(error) {
	timer := prometheus.NewTimer(ledgerDuration.WithLabelValues(method))
	return func(err error) {
		timer.ObserveDuration()
		ledgerCalls.WithLabelValues(method, outcome(err)).Inc()
	}
}

func PageFetch(scope string, err error) {
	pageFetches.WithLabelValues(scope, outcome(err)).Inc()
}

func Submission(err error) {
	submissions.WithLabelValues(outcome(err)).Inc()
}

// Confirmation records accepted, rejected, timeout or error.
func Confirmation(result string) {
	confirmations.WithLabelValues(result).Inc()
}

func UploadBytes(n int64) {
	uploadBytes.Add(float64(n))
}

// HTTPRequest observes one served API request.
func HTTPRequest(route, method string, status int, seconds float64) {
	httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(seconds)
}
