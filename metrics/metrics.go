// Package metrics exposes prometheus collectors for the fetch and
// derivation pipeline. Everything registers on Registry so the preview
// server can serve /metrics without touching the global default.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/folkevalget/folkevalget/engine"
)

// Registry holds every folkevalget collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// FetchRequests counts individual ODA API requests, retries included.
	FetchRequests = factory.NewCounter(prometheus.CounterOpts{
		Name: "folkevalget_fetch_requests_total",
		Help: "ODA API requests issued, including retries",
	})

	// FetchRetries counts ODA requests that were retried after a failure.
	FetchRetries = factory.NewCounter(prometheus.CounterOpts{
		Name: "folkevalget_fetch_retries_total",
		Help: "ODA API requests retried after a transient failure",
	})

	// FetchRows counts rows received across all endpoints.
	FetchRows = factory.NewCounter(prometheus.CounterOpts{
		Name: "folkevalget_fetch_rows_total",
		Help: "Rows received from the ODA API",
	})
)

var (
	runProfiles = factory.NewGauge(prometheus.GaugeOpts{
		Name: "folkevalget_run_profiles",
		Help: "Member profiles produced by the latest derivation",
	})

	runVotes = factory.NewGauge(prometheus.GaugeOpts{
		Name: "folkevalget_run_votes",
		Help: "Vote summaries produced by the latest derivation",
	})

	runBallots = factory.NewGauge(prometheus.GaugeOpts{
		Name: "folkevalget_run_ballots",
		Help: "Individual ballots tallied by the latest derivation",
	})

	runDropped = factory.NewGauge(prometheus.GaugeOpts{
		Name: "folkevalget_run_dropped_rows",
		Help: "Relation and ballot rows dropped by the latest derivation",
	})

	runIssues = factory.NewGauge(prometheus.GaugeOpts{
		Name: "folkevalget_run_integrity_issues",
		Help: "Integrity issues surfaced by the latest derivation",
	})

	runDuration = factory.NewGauge(prometheus.GaugeOpts{
		Name: "folkevalget_run_duration_seconds",
		Help: "Wall time of the latest derivation run",
	})
)

// ObserveRun records the outcome of one derivation run.
func ObserveRun(stats engine.Stats, issues int, duration time.Duration) {
	runProfiles.Set(float64(stats.Profiles))
	runVotes.Set(float64(stats.Votes))
	runBallots.Set(float64(stats.Ballots))
	runDropped.Set(float64(stats.DroppedRelations + stats.DroppedBallots))
	runIssues.Set(float64(issues))
	runDuration.Set(duration.Seconds())
}

// Handler serves Registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
