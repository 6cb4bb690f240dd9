package model

import "time"

// Event is a row of the `events` table. Tickets reference events by tag
// only, so deleting an event leaves its tickets in place.
type Event struct {
	ID        string    `json:"id"`         // events.id
	Name      string    `json:"name"`       // events.name
	Date      string    `json:"date"`       // events.date (YYYY-MM-DD)
	Location  string    `json:"location"`   // events.location
	CreatedAt time.Time `json:"created_at"` // events.created_at
}
