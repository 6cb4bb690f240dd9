// Package service holds the ticket registry, the check-in state machine,
// the export layer and the account and event services. Storage is reached
// through the small interfaces below, satisfied by the MySQL repositories
// and by their in-memory counterparts.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// TicketStore persists tickets. MarkUsed must be an atomic compare-and-set
// on the used flag.
type TicketStore interface {
	Insert(ctx context.Context, t *model.Ticket) error
	Get(ctx context.Context, ticketID string) (*model.Ticket, error)
	IdentityExists(ctx context.Context, idCard, event, excludeID string) (bool, error)
	MarkUsed(ctx context.Context, ticketID string, at time.Time, by uint64) (bool, error)
	Query(ctx context.Context, f model.TicketFilter) ([]model.Ticket, error)
	Update(ctx context.Context, ticketID string, p model.TicketPatch) (*model.Ticket, error)
	Delete(ctx context.Context, ticketID string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Sequencer hands out strictly increasing values per key. Two callers
// never receive the same value.
type Sequencer interface {
	Next(ctx context.Context, key string) (uint64, error)
}

// UserStore persists operator accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Delete(ctx context.Context, id uint64) error
	BumpTokenVersion(ctx context.Context, id uint64) (int, error)
	TouchLogin(ctx context.Context, id uint64, at time.Time) error
}

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	List(ctx context.Context) ([]model.Event, error)
	Delete(ctx context.Context, id string) error
}
