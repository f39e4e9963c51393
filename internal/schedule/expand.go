package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "volpin/internal/log"
	"volpin/internal/model"
)

const defaultMaxOccurrencesPerEvent = 1000

// Config controls occurrence expansion.
type Config struct {
	// RangeStart / RangeEnd bound the inclusive expansion window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps expansion of a single recurring event.
	// Zero means defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// Result wraps expanded occurrences plus truncation info.
type Result struct {
	Occurrences []model.Occurrence
	// TruncatedEvents lists event IDs that hit the per-event cap.
	TruncatedEvents []string
}

// Expand turns events into concrete occurrences inside the window.
// Events without a Recurrence rule contribute at most one occurrence, at
// their DateTime. Recurring events are expanded through their RRULE with
// the event's DateTime as DTSTART; an unparseable rule falls back to the
// single-occurrence behavior so a bad rule never hides the event.
func Expand(events []model.Event, cfg Config) (Result, error) {
	var result Result

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("schedule: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	occs := make([]model.Occurrence, 0, len(events))

	for i := range events {
		ev := &events[i]

		if ev.Recurrence == "" {
			if inWindow(ev.DateTime, cfg) {
				occs = append(occs, makeOccurrence(ev, ev.DateTime))
			}
			continue
		}

		expanded, hitCap := expandRecurring(ev, cfg)
		occs = append(occs, expanded...)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.ID)
			appLog.Error("schedule: occurrences truncated",
				errors.New("per-event cap reached"),
				"event_id", ev.ID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Occurrences = occs
	return result, nil
}

func expandRecurring(ev *model.Event, cfg Config) ([]model.Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.Recurrence)
	if err != nil {
		appLog.Error("schedule: bad recurrence rule, treating event as one-off", err,
			"event_id", ev.ID, "rrule", ev.Recurrence)
		if inWindow(ev.DateTime, cfg) {
			return []model.Occurrence{makeOccurrence(ev, ev.DateTime)}, false
		}
		return nil, false
	}

	r.DTStart(ev.DateTime)

	starts := r.Between(
		cfg.RangeStart.In(ev.DateTime.Location()),
		cfg.RangeEnd.In(ev.DateTime.Location()),
		true,
	)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, start := range starts {
		out = append(out, makeOccurrence(ev, start))
	}
	return out, hitCap
}

func makeOccurrence(ev *model.Event, start time.Time) model.Occurrence {
	return model.Occurrence{
		EventID:          ev.ID,
		InstanceKey:      fmt.Sprintf("%s/%s", ev.ID, start.UTC().Format(time.RFC3339)),
		Name:             ev.Name,
		Description:      ev.Description,
		OrganizerID:      ev.OrganizerID,
		Position:         ev.Position,
		VolunteersNeeded: ev.VolunteersNeeded,
		VolunteerIDs:     ev.VolunteerIDs,
		ImageURL:         ev.ImageURL,
		Start:            start,
	}
}

func inWindow(t time.Time, cfg Config) bool {
	if t.Before(cfg.RangeStart) {
		return false
	}
	if t.After(cfg.RangeEnd) {
		return false
	}
	return true
}
