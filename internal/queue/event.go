// Package queue defines message payloads exchanged over the message broker
// together with the publisher used by the services and the audit consumer
// that appends them to log files.
package queue

// Queue names. Each event type has its own durable queue; the routing key
// on the default exchange equals the queue name.
const (
	TicketIssuedQueue    = "ticket.issued"
	TicketCheckedInQueue = "ticket.checked_in"
)

// TicketIssuedEvent is published after a ticket row has been committed.
// It carries enough information for downstream consumers to log or notify
// without querying the primary database.
type TicketIssuedEvent struct {
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	Event        string `json:"event"`
	IssuedBy     uint64 `json:"issued_by"`
	IssuedAt     string `json:"issued_at"`
}

// TicketCheckedInEvent is published once per ticket, by the scan that won
// the check-in. Repeated scans of a used ticket do not publish.
type TicketCheckedInEvent struct {
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	Event        string `json:"event"`
	ScannedBy    uint64 `json:"scanned_by"`
	ScannedAt    string `json:"scanned_at"`
}
