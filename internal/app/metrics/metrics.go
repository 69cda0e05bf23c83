package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "community_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "community_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_layer",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Total number of recorded ledger transactions.",
		},
		[]string{"kind"},
	)

	governanceVotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_layer",
			Subsystem: "governance",
			Name:      "votes_total",
			Help:      "Total number of accepted ballots.",
		},
		[]string{"choice"},
	)

	goalContributions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "community_layer",
			Subsystem: "governance",
			Name:      "goal_contributions_total",
			Help:      "Total number of community goal contributions.",
		},
	)

	providerRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community_layer",
			Subsystem: "integrations",
			Name:      "provider_refreshes_total",
			Help:      "Total stats provider fetch attempts by outcome.",
		},
		[]string{"provider", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerTransactions,
		governanceVotes,
		goalContributions,
		providerRefreshes,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransaction counts one recorded ledger transaction.
func RecordTransaction(kind string) {
	ledgerTransactions.WithLabelValues(kind).Inc()
}

// RecordVote counts one accepted ballot.
func RecordVote(choice string) {
	governanceVotes.WithLabelValues(choice).Inc()
}

// RecordContribution counts one goal contribution.
func RecordContribution() {
	goalContributions.Inc()
}

// RecordProviderRefresh counts one stats provider fetch attempt.
func RecordProviderRefresh(provider string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	providerRefreshes.WithLabelValues(provider, outcome).Inc()
}

// HTTPInFlight tracks a request entering and leaving the handler stack.
func HTTPInFlight(delta float64) {
	httpInFlight.Add(delta)
}

// RecordHTTPRequest counts a finished request and observes its duration.
func RecordHTTPRequest(method, path, status string, seconds float64) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(seconds)
}
