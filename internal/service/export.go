package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/encoder"
	"github.com/iliyamo/ticket-gate/internal/model"
)

// Exporter lists tickets for reporting. It never writes.
type Exporter struct {
	tickets TicketStore
	enc     encoder.Encoder
}

// NewExporter returns an Exporter over tickets.
func NewExporter(tickets TicketStore, enc encoder.Encoder) *Exporter {
	return &Exporter{tickets: tickets, enc: enc}
}

// List returns the tickets matching f ordered by ticket number. Every row
// carries its derived status and a freshly rendered credential; a row whose
// credential fails to render is returned with an empty one.
func (e *Exporter) List(ctx context.Context, actor model.Actor, f model.TicketFilter) ([]model.TicketStatus, error) {
	if err := access.Authorize(actor, access.Export); err != nil {
		return nil, err
	}
	if f.ScannedFrom != nil && f.ScannedTo != nil && !f.ScannedFrom.Before(*f.ScannedTo) {
		return nil, fmt.Errorf("%w: scanned_from must be before scanned_to", ErrInvalidInput)
	}
	tickets, err := e.tickets.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]model.TicketStatus, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, annotate(e.enc, t))
	}
	return out, nil
}
