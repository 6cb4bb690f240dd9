package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// The Mem* repositories keep state in process memory behind a mutex.
// They honour the same contracts as the MySQL repositories (unique
// numbers and identities, compare-and-set check-in) but only for a
// single process: use them for development and tests, never behind a
// load balancer.

// MemTicketRepo is an in-memory ticket store and sequence allocator.
type MemTicketRepo struct {
	mu         sync.Mutex
	tickets    map[string]model.Ticket
	numbers    map[string]string // ticket_number -> ticket_id
	identities map[string]string // id_card_number|event -> ticket_id
	seq        map[string]uint64
}

// NewMemTicketRepo returns an empty MemTicketRepo.
func NewMemTicketRepo() *MemTicketRepo {
	return &MemTicketRepo{
		tickets:    map[string]model.Ticket{},
		numbers:    map[string]string{},
		identities: map[string]string{},
		seq:        map[string]uint64{},
	}
}

func identityKey(idCard, event string) string { return idCard + "|" + event }

func cloneTicket(t model.Ticket) model.Ticket {
	if t.ScannedAt != nil {
		at := *t.ScannedAt
		t.ScannedAt = &at
	}
	if t.ScannedBy != nil {
		by := *t.ScannedBy
		t.ScannedBy = &by
	}
	return t
}

// Next increments the named counter.
func (m *MemTicketRepo) Next(_ context.Context, key string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[key]++
	return m.seq[key], nil
}

// Current returns the named counter.
func (m *MemTicketRepo) Current(_ context.Context, key string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq[key], nil
}

// Raise moves the named counter up to v.
func (m *MemTicketRepo) Raise(_ context.Context, key string, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[key] = max(m.seq[key], v)
	return nil
}

// MaxSequence returns the highest numeric ticket_number stored.
func (m *MemTicketRepo) MaxSequence(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var top uint64
	for number := range m.numbers {
		if n, err := strconv.ParseUint(number, 10, 64); err == nil {
			top = max(top, n)
		}
	}
	return top, nil
}

// Insert stores t.
func (m *MemTicketRepo) Insert(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[t.TicketID]; ok {
		return ErrConflict
	}
	if _, ok := m.numbers[t.TicketNumber]; ok {
		return ErrDuplicateNumber
	}
	ik := identityKey(t.IDCardNumber, t.Event)
	if _, ok := m.identities[ik]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	t.Used, t.ScannedAt, t.ScannedBy = false, nil, nil
	m.tickets[t.TicketID] = cloneTicket(*t)
	m.numbers[t.TicketNumber] = t.TicketID
	m.identities[ik] = t.TicketID
	return nil
}

// Get fetches a ticket by id.
func (m *MemTicketRepo) Get(_ context.Context, ticketID string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneTicket(t)
	return &c, nil
}

// IdentityExists reports whether another ticket holds the pair.
func (m *MemTicketRepo) IdentityExists(_ context.Context, idCard, event, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.identities[identityKey(idCard, event)]
	return ok && id != excludeID, nil
}

// MarkUsed is the compare-and-set check-in.
func (m *MemTicketRepo) MarkUsed(_ context.Context, ticketID string, at time.Time, by uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok || t.Used {
		return false, nil
	}
	at = at.UTC()
	t.Used, t.ScannedAt, t.ScannedBy, t.UpdatedAt = true, &at, &by, at
	m.tickets[ticketID] = t
	return true, nil
}

// Query returns tickets matching f ordered by ticket number.
func (m *MemTicketRepo) Query(_ context.Context, f model.TicketFilter) ([]model.Ticket, error) {
	m.mu.Lock()
	out := []model.Ticket{}
	for _, t := range m.tickets {
		if f.Match(t) {
			out = append(out, cloneTicket(t))
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].TicketNumber, out[j].TicketNumber
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return out, nil
}

// Update applies a constrained patch.
func (m *MemTicketRepo) Update(_ context.Context, ticketID string, p model.TicketPatch) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	oldKey := identityKey(t.IDCardNumber, t.Event)
	p.Apply(&t)
	newKey := identityKey(t.IDCardNumber, t.Event)
	if newKey != oldKey {
		if _, taken := m.identities[newKey]; taken {
			return nil, ErrConflict
		}
		delete(m.identities, oldKey)
		m.identities[newKey] = ticketID
	}
	t.UpdatedAt = time.Now().UTC()
	m.tickets[ticketID] = t
	c := cloneTicket(t)
	return &c, nil
}

// Delete removes a ticket. Its number stays consumed.
func (m *MemTicketRepo) Delete(_ context.Context, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	delete(m.tickets, ticketID)
	delete(m.identities, identityKey(t.IDCardNumber, t.Event))
	delete(m.numbers, t.TicketNumber)
	return nil
}

// DeleteAll removes every ticket; counters are kept.
func (m *MemTicketRepo) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.tickets))
	m.tickets = map[string]model.Ticket{}
	m.numbers = map[string]string{}
	m.identities = map[string]string{}
	return n, nil
}

// MemUserRepo is an in-memory user store.
type MemUserRepo struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

// NewMemUserRepo returns an empty MemUserRepo.
func NewMemUserRepo() *MemUserRepo { return &MemUserRepo{users: map[uint64]model.User{}} }

func (m *MemUserRepo) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	if u.TokenVersion == 0 {
		u.TokenVersion = 1
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.nextID++
	u.ID = m.nextID
	m.users[u.ID] = *u
	return nil
}

func (m *MemUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemUserRepo) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemUserRepo) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemUserRepo) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MemUserRepo) BumpTokenVersion(_ context.Context, id uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	u.TokenVersion++
	m.users[id] = u
	return u.TokenVersion, nil
}

func (m *MemUserRepo) TouchLogin(_ context.Context, id uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	u.LastLogin = &at
	m.users[id] = u
	return nil
}

// MemEventRepo is an in-memory event store.
type MemEventRepo struct {
	mu     sync.Mutex
	events map[string]model.Event
}

// NewMemEventRepo returns an empty MemEventRepo.
func NewMemEventRepo() *MemEventRepo { return &MemEventRepo{events: map[string]model.Event{}} }

func (m *MemEventRepo) Create(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.events {
		if existing.Name == e.Name && existing.Date == e.Date {
			return ErrConflict
		}
	}
	if _, ok := m.events[e.ID]; ok {
		return ErrConflict
	}
	m.events[e.ID] = *e
	return nil
}

func (m *MemEventRepo) List(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemEventRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}
