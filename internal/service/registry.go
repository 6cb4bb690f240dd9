package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/encoder"
	"github.com/iliyamo/ticket-gate/internal/metrics"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/queue"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

// publishTimeout bounds the background delivery of a domain event.
const publishTimeout = 5 * time.Second

// RegistryConfig tunes ticket issuance.
type RegistryConfig struct {
	// NumberWidth is the zero padding applied to ticket numbers.
	NumberWidth int
	// MaxAttempts bounds how many numbers one issuance may allocate.
	MaxAttempts int
}

// Registry issues, edits and removes tickets.
type Registry struct {
	tickets TicketStore
	seq     Sequencer
	enc     encoder.Encoder
	pub     queue.Publisher
	cfg     RegistryConfig
	now     func() time.Time
}

// NewRegistry wires a Registry. A nil publisher disables events.
func NewRegistry(tickets TicketStore, seq Sequencer, enc encoder.Encoder, pub queue.Publisher, cfg RegistryConfig) *Registry {
	if cfg.NumberWidth <= 0 {
		cfg.NumberWidth = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if pub == nil {
		pub = queue.Noop{}
	}
	return &Registry{tickets: tickets, seq: seq, enc: enc, pub: pub, cfg: cfg, now: time.Now}
}

// IssueRequest carries the holder fields and the event tag of a new ticket.
type IssueRequest struct {
	model.HolderFields
	Event string `json:"event"`
}

func (r IssueRequest) missing() []string {
	trimmed := model.HolderFields{
		Name:         strings.TrimSpace(r.Name),
		IDCardNumber: strings.TrimSpace(r.IDCardNumber),
		DateOfBirth:  strings.TrimSpace(r.DateOfBirth),
		PhoneNumber:  strings.TrimSpace(r.PhoneNumber),
	}
	out := trimmed.Missing()
	if strings.TrimSpace(r.Event) == "" {
		out = append(out, "event")
	}
	return out
}

// Issue creates a ticket. The identity and event pair is checked before a
// number is allocated; the unique index on the pair settles races between
// concurrent issuers. A number that turns out to be taken is discarded and
// a fresh one allocated. Once the row is committed the ticket is returned
// even if its credential cannot be rendered.
func (r *Registry) Issue(ctx context.Context, actor model.Actor, req IssueRequest) (*model.TicketStatus, error) {
	if err := access.Authorize(actor, access.CreateTicket); err != nil {
		return nil, err
	}
	if miss := req.missing(); len(miss) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(miss, ", "))
	}

	start := time.Now()
	exists, err := r.tickets.IdentityExists(ctx, req.IDCardNumber, req.Event, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: a ticket for this id card already exists for event %q", repository.ErrConflict, req.Event)
	}

	t, err := r.insertWithFreshNumber(ctx, req)
	if err != nil {
		return nil, err
	}
	took := time.Since(start)
	metrics.TicketIssued(t.Event, took)
	log.Info().
		Str("ticket_id", t.TicketID).
		Str("ticket_number", t.TicketNumber).
		Str("event", t.Event).
		Uint64("actor_id", actor.ID).
		Dur("took", took).
		Msg("ticket issued")

	publishAsync(r.pub, queue.TicketIssuedQueue, queue.TicketIssuedEvent{
		TicketID:     t.TicketID,
		TicketNumber: t.TicketNumber,
		Event:        t.Event,
		IssuedBy:     actor.ID,
		IssuedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	})

	st := annotate(r.enc, *t)
	return &st, nil
}

func (r *Registry) insertWithFreshNumber(ctx context.Context, req IssueRequest) (*model.Ticket, error) {
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		n, err := r.seq.Next(ctx, repository.TicketSequenceKey)
		if errors.Is(err, repository.ErrSequenceConflict) {
			metrics.SequenceRetry("sequence_conflict")
			log.Debug().Err(err).Int("attempt", attempt).Msg("sequence allocation conflict; retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		now := r.now().UTC()
		t := &model.Ticket{
			TicketID:     uuid.NewString(),
			TicketNumber: model.FormatTicketNumber(n, r.cfg.NumberWidth),
			Name:         req.Name,
			IDCardNumber: req.IDCardNumber,
			DateOfBirth:  req.DateOfBirth,
			PhoneNumber:  req.PhoneNumber,
			Event:        req.Event,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = r.tickets.Insert(ctx, t)
		if errors.Is(err, repository.ErrDuplicateNumber) {
			metrics.SequenceRetry("duplicate_number")
			log.Warn().Str("ticket_number", t.TicketNumber).Msg("allocated ticket number already in use; allocating again")
			continue
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: a ticket for this id card already exists for event %q", repository.ErrConflict, req.Event)
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	log.Error().Int("attempts", r.cfg.MaxAttempts).Msg("ticket number allocation exhausted")
	return nil, fmt.Errorf("%w: ticket number allocation gave up after %d attempts", repository.ErrStoreUnavailable, r.cfg.MaxAttempts)
}

// Get returns one ticket with its status and credential.
func (r *Registry) Get(ctx context.Context, actor model.Actor, ticketID string) (*model.TicketStatus, error) {
	if err := access.Authorize(actor, access.Export); err != nil {
		return nil, err
	}
	t, err := r.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	st := annotate(r.enc, *t)
	return &st, nil
}

// Edit applies an administrative correction. Check-in state is not part
// of the patch and cannot be changed here.
func (r *Registry) Edit(ctx context.Context, actor model.Actor, ticketID string, p model.TicketPatch) (*model.TicketStatus, error) {
	if err := access.Authorize(actor, access.EditTicket); err != nil {
		return nil, err
	}
	if p.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	for name, v := range map[string]*string{
		"name": p.Name, "id_card_number": p.IDCardNumber, "date_of_birth": p.DateOfBirth,
		"phone_number": p.PhoneNumber, "event": p.Event,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, name)
		}
	}

	if p.IDCardNumber != nil || p.Event != nil {
		cur, err := r.tickets.Get(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		next := *cur
		p.Apply(&next)
		exists, err := r.tickets.IdentityExists(ctx, next.IDCardNumber, next.Event, ticketID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: a ticket for this id card already exists for event %q", repository.ErrConflict, next.Event)
		}
	}

	t, err := r.tickets.Update(ctx, ticketID, p)
	if err != nil {
		return nil, err
	}
	log.Info().Str("ticket_id", ticketID).Uint64("actor_id", actor.ID).Msg("ticket edited")
	st := annotate(r.enc, *t)
	return &st, nil
}

// Delete removes one ticket. Its number is not reissued.
func (r *Registry) Delete(ctx context.Context, actor model.Actor, ticketID string) error {
	if err := access.Authorize(actor, access.DeleteTicket); err != nil {
		return err
	}
	if err := r.tickets.Delete(ctx, ticketID); err != nil {
		return err
	}
	log.Info().Str("ticket_id", ticketID).Uint64("actor_id", actor.ID).Msg("ticket deleted")
	return nil
}

// DeleteAll removes every ticket when confirm is true and returns how many
// were removed. The sequence counter keeps its value.
func (r *Registry) DeleteAll(ctx context.Context, actor model.Actor, confirm bool) (int64, error) {
	if err := access.Authorize(actor, access.DeleteTicket); err != nil {
		return 0, err
	}
	if !confirm {
		return 0, fmt.Errorf("%w: pass confirm=true to delete every ticket", ErrPreconditionRequired)
	}
	n, err := r.tickets.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	log.Warn().Int64("deleted", n).Uint64("actor_id", actor.ID).Msg("all tickets deleted")
	return n, nil
}

// publishAsync delivers ev in the background; a broker outage never
// affects the request that produced the event.
func publishAsync(pub queue.Publisher, q string, ev any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := pub.Publish(ctx, q, ev); err != nil {
			log.Warn().Err(err).Str("queue", q).Msg("event publish failed")
		}
	}()
}
