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
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

// Events manages the event catalogue that operators pick event tags from.
type Events struct {
	events EventStore
}

func NewEvents(events EventStore) *Events { return &Events{events: events} }

// NewEvent is the input of Create. Date is YYYY-MM-DD.
type NewEvent struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	Location string `json:"location"`
}

func (s *Events) Create(ctx context.Context, actor model.Actor, in NewEvent) (*model.Event, error) {
	if err := access.Authorize(actor, access.CreateEvent); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	e := &model.Event{
		ID:        uuid.NewString(),
		Name:      name,
		Date:      in.Date,
		Location:  strings.TrimSpace(in.Location),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.events.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: event %q already exists on %s", repository.ErrConflict, name, in.Date)
		}
		return nil, err
	}
	log.Info().Str("event_id", e.ID).Str("name", e.Name).Uint64("actor_id", actor.ID).Msg("event created")
	return e, nil
}

func (s *Events) List(ctx context.Context, actor model.Actor) ([]model.Event, error) {
	if err := access.Authorize(actor, access.ViewEvents); err != nil {
		return nil, err
	}
	return s.events.List(ctx)
}

// Delete removes an event. Tickets tagged with it are kept.
func (s *Events) Delete(ctx context.Context, actor model.Actor, id string) error {
	if err := access.Authorize(actor, access.DeleteEvent); err != nil {
		return err
	}
	return s.events.Delete(ctx, id)
}
