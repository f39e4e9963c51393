package feed

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"volpin/internal/model"
)

// Default shift length used for DTEND; the event model carries a start
// instant only.
const defaultDuration = 2 * time.Hour

// Build serializes occurrences as an iCalendar feed so users can
// subscribe to upcoming volunteer events from their own calendar apps.
func Build(occs []model.Occurrence, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//volpin//volunteer events//EN")

	for _, occ := range occs {
		ev := cal.AddEvent(occ.InstanceKey)
		ev.SetDtStampTime(now)
		ev.SetStartAt(occ.Start)
		ev.SetEndAt(occ.Start.Add(defaultDuration))
		ev.SetSummary(occ.Name)
		if occ.Description != "" {
			ev.SetDescription(occ.Description)
		}
		ev.SetLocation(fmt.Sprintf("%.6f,%.6f", occ.Position.Latitude, occ.Position.Longitude))
	}

	return cal.Serialize()
}
