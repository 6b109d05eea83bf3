// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Checkins counts check-in attempts by track and classified outcome.
	Checkins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_checkins_total",
		Help: "Check-in attempts by track and outcome.",
	}, []string{"track", "outcome"})

	// AdmissionRejected counts requests bounced by the fixed-window
	// admission controller, per endpoint.
	AdmissionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_admission_rejected_total",
		Help: "Requests rejected by the per-endpoint admission window.",
	}, []string{"endpoint"})

	// StoreRequests counts spreadsheet API round trips by method and result.
	StoreRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_store_requests_total",
		Help: "Spreadsheet API calls by method and result.",
	}, []string{"method", "result"})

	// AuditAppendFailures counts audit rows that missed their in-request
	// append and were handed to the retry queue.
	AuditAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_audit_append_failures_total",
		Help: "Audit log appends that failed and were queued for retry.",
	})
)
