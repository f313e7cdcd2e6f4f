package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_transitions_total",
			Help: "Stage transition requests by target stage and outcome",
		},
		[]string{"target", "outcome"},
	)

	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_dispatches_total",
			Help: "Notification dispatch attempts by result",
		},
		[]string{"result"},
	)

	FeedbackSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_feedback_submissions_total",
			Help: "Interview feedback submissions by result",
		},
		[]string{"result"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_external_call_duration_seconds",
			Help:    "Duration of calls to the repository, dispatcher and directory",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collaborator", "operation"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_http_requests_total",
			Help: "API requests by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_http_request_duration_seconds",
			Help:    "API request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RosterSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_roster_size",
			Help: "Number of candidates in the last loaded roster per job",
		},
		[]string{"job_id"},
	)
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Result maps an error onto the result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
