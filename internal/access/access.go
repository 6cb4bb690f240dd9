// Package access answers whether an actor may perform an action. It is a
// pure lookup over a static role to action table; the admin role is
// handled by an explicit check in front of the table rather than as a row
// of it.
package access

import (
	"errors"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// Action names checked by handlers and services.
const (
	ScanTicket   = "scan_ticket"
	CreateTicket = "create_ticket"
	EditTicket   = "edit_ticket"
	DeleteTicket = "delete_ticket"
	Export       = "export"
	CreateUser   = "create_user"
	CreateEvent  = "create_event"
	ViewEvents   = "view_events"
	DeleteEvent  = "delete_event"
)

var (
	// ErrUnauthenticated is returned when no actor has been resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the actor's role lacks the action.
	ErrForbidden = errors.New("forbidden")
)

var permissions = map[string]map[string]bool{
	model.RoleSubadmin: {
		CreateTicket: true,
		EditTicket:   true,
		DeleteTicket: true,
		Export:       true,
		CreateEvent:  true,
		ViewEvents:   true,
	},
	model.RoleEditor: {
		EditTicket: true,
		ViewEvents: true,
	},
	model.RoleScanner: {
		ScanTicket: true,
	},
}

// Allowed reports whether role may perform action.
func Allowed(role, action string) bool {
	if role == model.RoleAdmin {
		return true
	}
	return permissions[role][action]
}

// Authorize checks actor against action.
func Authorize(actor model.Actor, action string) error {
	if actor.Anonymous() {
		return ErrUnauthenticated
	}
	if !Allowed(actor.Role, action) {
		return ErrForbidden
	}
	return nil
}

// Actions lists the actions granted to role, admin excluded.
func Actions(role string) []string {
	set := permissions[role]
	out := make([]string, 0, len(set))
	for _, a := range []string{ScanTicket, CreateTicket, EditTicket, DeleteTicket, Export, CreateUser, CreateEvent, ViewEvents, DeleteEvent} {
		if set[a] {
			out = append(out, a)
		}
	}
	return out
}
