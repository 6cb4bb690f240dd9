package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/encoder"
	"github.com/iliyamo/ticket-gate/internal/metrics"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/queue"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

// CheckIn moves tickets from issued to checked in. The transition happens
// at most once per ticket: the store's compare-and-set on the used flag
// picks a single winner among concurrent scanners and every other scan
// reports the winner's scanned_at and scanned_by.
type CheckIn struct {
	tickets     TicketStore
	enc         encoder.Encoder
	pub         queue.Publisher
	maxAttempts int
	now         func() time.Time
}

// NewCheckIn wires a CheckIn. maxAttempts bounds the read and
// compare-and-set rounds of one validation.
func NewCheckIn(tickets TicketStore, enc encoder.Encoder, pub queue.Publisher, maxAttempts int) *CheckIn {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if pub == nil {
		pub = queue.Noop{}
	}
	return &CheckIn{tickets: tickets, enc: enc, pub: pub, maxAttempts: maxAttempts, now: time.Now}
}

// Validate checks in the ticket whose id equals the scanned payload. A
// ticket that is already used is not an error: it is returned with status
// already_checked_in and its original scan details.
func (c *CheckIn) Validate(ctx context.Context, actor model.Actor, payload string) (*model.TicketStatus, error) {
	if err := access.Authorize(actor, access.ScanTicket); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(payload)
	if id == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		t, err := c.tickets.Get(ctx, id)
		if err != nil {
			c.count(err)
			return nil, err
		}
		if t.Used {
			return c.report(actor, *t, false), nil
		}

		won, err := c.tickets.MarkUsed(ctx, id, c.now().UTC(), actor.ID)
		if err != nil {
			c.count(err)
			return nil, err
		}
		if !won {
			// Someone else flipped the flag (or deleted the row) between the
			// read and the write; the next read tells which.
			continue
		}
		t, err = c.tickets.Get(ctx, id)
		if err != nil {
			c.count(err)
			return nil, err
		}
		return c.report(actor, *t, true), nil
	}
	metrics.CheckIn("error")
	return nil, fmt.Errorf("%w: ticket %s kept changing during check-in", repository.ErrStoreUnavailable, id)
}

func (c *CheckIn) report(actor model.Actor, t model.Ticket, won bool) *model.TicketStatus {
	st := annotate(c.enc, t)
	if won {
		st.Status = model.StatusValid
		metrics.CheckIn(string(model.StatusValid))
		log.Info().Str("ticket_id", t.TicketID).Str("event", t.Event).Uint64("actor_id", actor.ID).Msg("ticket checked in")

		ev := queue.TicketCheckedInEvent{TicketID: t.TicketID, TicketNumber: t.TicketNumber, Event: t.Event}
		if t.ScannedBy != nil {
			ev.ScannedBy = *t.ScannedBy
		}
		if t.ScannedAt != nil {
			ev.ScannedAt = t.ScannedAt.UTC().Format(time.RFC3339Nano)
		}
		publishAsync(c.pub, queue.TicketCheckedInQueue, ev)
		return &st
	}
	st.Status = model.StatusAlreadyCheckedIn
	metrics.CheckIn(string(model.StatusAlreadyCheckedIn))
	log.Info().Str("ticket_id", t.TicketID).Uint64("actor_id", actor.ID).Msg("ticket already checked in")
	return &st
}

func (c *CheckIn) count(err error) {
	if errors.Is(err, repository.ErrNotFound) {
		metrics.CheckIn("not_found")
		return
	}
	metrics.CheckIn("error")
}
