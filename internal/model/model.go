package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Position is a geographic coordinate in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Valid reports whether both coordinates are finite and within range.
func (p Position) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return false
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Event is a location-tagged volunteer event. Records are immutable once
// created; the volunteer list grows server-side and is only read here.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DateTime    time.Time `json:"date_time"`
	OrganizerID string    `json:"organizer_id"`
	Position    Position  `json:"position"`

	VolunteersNeeded int      `json:"volunteers_needed"`
	VolunteerIDs     []string `json:"volunteer_ids"`

	ImageURL string `json:"image_url,omitempty"`

	// Recurrence is an optional raw RRULE string (e.g. "FREQ=WEEKLY").
	// Empty means the event happens exactly once, at DateTime.
	Recurrence string `json:"recurrence,omitempty"`
}

// NewID returns a client-generated opaque event identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the invariants a new event must satisfy before it is
// sent to the server.
func (e *Event) Validate() error {
	if e.ID == "" {
		return errors.New("event: missing id")
	}
	if e.Name == "" {
		return errors.New("event: missing name")
	}
	if e.DateTime.IsZero() {
		return errors.New("event: missing date_time")
	}
	if e.OrganizerID == "" {
		return errors.New("event: missing organizer_id")
	}
	if !e.Position.Valid() {
		return fmt.Errorf("event: invalid position (%v, %v)", e.Position.Latitude, e.Position.Longitude)
	}
	if e.VolunteersNeeded < 0 {
		return fmt.Errorf("event: volunteers_needed must be >= 0, got %d", e.VolunteersNeeded)
	}
	return nil
}

// Occurrence is a single concrete instance of an event after recurrence
// expansion. For non-recurring events Start equals the event's DateTime.
type Occurrence struct {
	EventID string

	// InstanceKey distinguishes occurrences of the same recurring event.
	InstanceKey string

	Name        string
	Description string
	OrganizerID string
	Position    Position

	VolunteersNeeded int
	VolunteerIDs     []string

	ImageURL string

	Start time.Time
}

// Upcoming keeps only events whose DateTime is strictly after now. The
// same now must be used for a whole listing so cached and fresh data are
// filtered identically; callers read the clock once and pass it in.
// The input slice is never mutated.
func Upcoming(events []Event, now time.Time) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.DateTime.After(now) {
			out = append(out, ev)
		}
	}
	return out
}

// UpcomingOccurrences applies the same strictly-after-now window to
// expanded occurrences.
func UpcomingOccurrences(occs []Occurrence, now time.Time) []Occurrence {
	out := make([]Occurrence, 0, len(occs))
	for _, occ := range occs {
		if occ.Start.After(now) {
			out = append(out, occ)
		}
	}
	return out
}
