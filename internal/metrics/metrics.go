// Package metrics exposes Prometheus collectors for the session server.
package metrics

import (
	"errors"
	"net/http"

	"github.com/gaia-magnetics/magclient/internal/lifecycle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "magclient"

	// Labels
	outcomeLabel = "outcome"
	stateLabel   = "state"
)

// Submission outcomes.
const (
	SubmissionAccepted  = "accepted"
	SubmissionRejected  = "rejected"
	SubmissionFailed    = "failed"
	SubmissionCancelled = "cancelled"
)

// Poll outcomes.
const (
	PollOK    = "ok"
	PollError = "error"
)

var submissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "number of job submissions partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var pollsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "polls_total",
		Help:      "number of job status polls partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var transitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "number of lifecycle transitions partitioned by target state",
	},
	[]string{stateLabel},
)

var degradedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "polling_degraded_total",
		Help:      "number of times polling for a job was reported degraded",
	},
)

var sessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "number of open client sessions",
	},
)

func init() {
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(degradedTotal)
	prometheus.MustRegister(sessionsActive)
}

// Recorder turns lifecycle events into metric updates. The zero value is ready
// to use and one Recorder may be shared by every session.
type Recorder struct{}

var _ lifecycle.Listener = Recorder{}

func (Recorder) HandleEvent(e lifecycle.Event) {
	switch e.Type {
	case lifecycle.EventTransition:
		transitionsTotal.With(prometheus.Labels{stateLabel: string(e.To)}).Inc()
		if e.From == lifecycle.StateSubmitting {
			submissionsTotal.With(prometheus.Labels{outcomeLabel: submissionOutcome(e)}).Inc()
		}
	case lifecycle.EventPolled:
		pollsTotal.With(prometheus.Labels{outcomeLabel: PollOK}).Inc()
	case lifecycle.EventPollError:
		pollsTotal.With(prometheus.Labels{outcomeLabel: PollError}).Inc()
	case lifecycle.EventDegraded:
		degradedTotal.Inc()
	}
}

func submissionOutcome(e lifecycle.Event) string {
	switch {
	case e.To != lifecycle.StateIdle:
		return SubmissionAccepted
	case e.Err == nil:
		return SubmissionCancelled
	case errors.Is(e.Err, lifecycle.ErrRejected):
		return SubmissionRejected
	default:
		return SubmissionFailed
	}
}

func SessionOpened() { sessionsActive.Inc() }

func SessionClosed() { sessionsActive.Dec() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
