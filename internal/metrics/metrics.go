// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets committed to the registry",
		},
		[]string{"event"},
	)

	checkins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_checkins_total",
			Help: "Validation outcomes by status",
		},
		[]string{"outcome"},
	)

	encodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_encode_failures_total",
			Help: "Credentials that could not be rendered",
		},
	)

	sequenceRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_retries_total",
			Help: "Ticket number allocations that had to be retried",
		},
		[]string{"reason"},
	)

	issueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_issue_duration_seconds",
			Help:    "Time spent issuing a ticket, allocation and insert included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
)

// TicketIssued counts a committed ticket.
func TicketIssued(event string, took time.Duration) {
	ticketsIssued.WithLabelValues(event).Inc()
	issueDuration.Observe(took.Seconds())
}

// CheckIn counts one validation outcome: valid, already_checked_in,
// not_found or error.
func CheckIn(outcome string) { checkins.WithLabelValues(outcome).Inc() }

// EncodeFailed counts a degraded credential.
func EncodeFailed() { encodeFailures.Inc() }

// SequenceRetry counts a retried allocation. reason is either
// "sequence_conflict" or "duplicate_number".
func SequenceRetry(reason string) { sequenceRetries.WithLabelValues(reason).Inc() }
