// Package metrics holds the prometheus collectors for HTTP traffic and for
// the session and device bookkeeping.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportit_sessions_started_total",
			Help: "Sessions opened, by source (login, auto-login)",
		},
		[]string{"source"},
	)

	SessionsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportit_sessions_committed_total",
		Help: "Sessions whose elapsed time was committed",
	})

	MinutesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportit_session_minutes_committed_total",
		Help: "Minutes added to time-spent totals",
	})

	CommitFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportit_commit_failures_total",
		Help: "Session commits that failed on storage",
	})

	DeviceRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportit_device_registrations_total",
			Help: "Device registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportit_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		HttpRequestsTotal, HttpRequestDuration,
		SessionsStarted, SessionsCommitted, MinutesCommitted, CommitFailures,
		DeviceRegistrations, Logins,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
