package model

import (
	"fmt"
	"time"
)

// Ticket is an issued admission record as stored in the `tickets` table.
// The check-in fields (Used, ScannedAt, ScannedBy) always change together
// and only once: either all three are unset or all three are set.
//
// Fields:
//
//	TicketID     – random UUID, primary key and scan payload.
//	TicketNumber – zero padded display number allocated from the ticket sequence.
//	Name, IDCardNumber, DateOfBirth, PhoneNumber – holder fields, stored as given.
//	Event        – event tag; (IDCardNumber, Event) is unique.
//	Used         – true once the ticket has been checked in.
//	ScannedAt    – time of the successful check-in (nil until then).
//	ScannedBy    – id of the actor that checked the ticket in (nil until then).
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last modification timestamp.
type Ticket struct {
	TicketID     string     `json:"ticket_id"`      // tickets.ticket_id
	TicketNumber string     `json:"ticket_number"`  // tickets.ticket_number
	Name         string     `json:"name"`           // tickets.name
	IDCardNumber string     `json:"id_card_number"` // tickets.id_card_number
	DateOfBirth  string     `json:"date_of_birth"`  // tickets.date_of_birth
	PhoneNumber  string     `json:"phone_number"`   // tickets.phone_number
	Event        string     `json:"event"`          // tickets.event
	Used         bool       `json:"used"`           // tickets.used
	ScannedAt    *time.Time `json:"scanned_at"`     // tickets.scanned_at (nullable)
	ScannedBy    *uint64    `json:"scanned_by"`     // tickets.scanned_by (nullable)
	CreatedAt    time.Time  `json:"created_at"`     // tickets.created_at
	UpdatedAt    time.Time  `json:"updated_at"`     // tickets.updated_at
}

// HolderFields are the caller supplied attributes of a new ticket.
type HolderFields struct {
	Name         string `json:"name"`
	IDCardNumber string `json:"id_card_number"`
	DateOfBirth  string `json:"date_of_birth"`
	PhoneNumber  string `json:"phone_number"`
}

// Missing returns the JSON names of the empty holder fields.
func (h HolderFields) Missing() []string {
	var out []string
	if h.Name == "" {
		out = append(out, "name")
	}
	if h.IDCardNumber == "" {
		out = append(out, "id_card_number")
	}
	if h.DateOfBirth == "" {
		out = append(out, "date_of_birth")
	}
	if h.PhoneNumber == "" {
		out = append(out, "phone_number")
	}
	return out
}

// TicketPatch is the closed set of fields an administrator may correct on
// an existing ticket. Nil pointers leave the column untouched. Check-in
// state is deliberately absent so an edit can never break the
// used/scanned_at/scanned_by invariant.
type TicketPatch struct {
	Name         *string `json:"name,omitempty"`
	IDCardNumber *string `json:"id_card_number,omitempty"`
	DateOfBirth  *string `json:"date_of_birth,omitempty"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	Event        *string `json:"event,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TicketPatch) Empty() bool {
	return p.Name == nil && p.IDCardNumber == nil && p.DateOfBirth == nil &&
		p.PhoneNumber == nil && p.Event == nil
}

// Apply copies the set fields of p onto t.
func (p TicketPatch) Apply(t *Ticket) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.IDCardNumber != nil {
		t.IDCardNumber = *p.IDCardNumber
	}
	if p.DateOfBirth != nil {
		t.DateOfBirth = *p.DateOfBirth
	}
	if p.PhoneNumber != nil {
		t.PhoneNumber = *p.PhoneNumber
	}
	if p.Event != nil {
		t.Event = *p.Event
	}
}

// CheckInStatus is the derived state reported for a ticket.
type CheckInStatus string

const (
	StatusValid            CheckInStatus = "valid"
	StatusAlreadyCheckedIn CheckInStatus = "already_checked_in"
)

// StatusOf derives the reported status from the used flag.
func StatusOf(t Ticket) CheckInStatus {
	if t.Used {
		return StatusAlreadyCheckedIn
	}
	return StatusValid
}

// TicketStatus is a ticket annotated with its check-in status and an
// encoded credential. Credential is a PNG data URI, or empty when the
// encoder failed for this ticket.
type TicketStatus struct {
	Ticket
	Status          CheckInStatus `json:"status"`
	Credential      string        `json:"qr"`
	CredentialError string        `json:"qr_error,omitempty"`
}

// TicketFilter narrows export queries. Zero values mean "no filter".
type TicketFilter struct {
	Used        *bool
	Event       string
	ScannedBy   *uint64
	ScannedFrom *time.Time
	ScannedTo   *time.Time
}

// Match reports whether t satisfies every set predicate of f. ScannedFrom
// is inclusive and ScannedTo exclusive; a time bound excludes tickets
// that were never scanned.
func (f TicketFilter) Match(t Ticket) bool {
	if f.Used != nil && t.Used != *f.Used {
		return false
	}
	if f.Event != "" && t.Event != f.Event {
		return false
	}
	if f.ScannedBy != nil && (t.ScannedBy == nil || *t.ScannedBy != *f.ScannedBy) {
		return false
	}
	if f.ScannedFrom != nil && (t.ScannedAt == nil || t.ScannedAt.Before(*f.ScannedFrom)) {
		return false
	}
	if f.ScannedTo != nil && (t.ScannedAt == nil || !t.ScannedAt.Before(*f.ScannedTo)) {
		return false
	}
	return true
}

// FormatTicketNumber renders a sequence value zero padded to width digits.
// Values wider than width are rendered in full.
func FormatTicketNumber(n uint64, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%0*d", width, n)
}
