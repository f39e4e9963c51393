package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volpin/internal/model"
)

func TestBuildFeed(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	occs := []model.Occurrence{
		{
			EventID:     "ev-1",
			InstanceKey: "ev-1/2026-09-12T10:00:00Z",
			Name:        "Beach cleanup",
			Description: "Bring gloves",
			Position:    model.Position{Latitude: 35.1, Longitude: 129.03},
			Start:       time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
		},
		{
			EventID:     "ev-2",
			InstanceKey: "ev-2/2026-09-13T09:00:00Z",
			Name:        "Food drive",
			Position:    model.Position{Latitude: 37.55, Longitude: 126.97},
			Start:       time.Date(2026, 9, 13, 9, 0, 0, 0, time.UTC),
		},
	}

	body := Build(occs, now)

	require.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Contains(t, body, "METHOD:PUBLISH")
	assert.Contains(t, body, "SUMMARY:Beach cleanup")
	assert.Contains(t, body, "SUMMARY:Food drive")
	assert.Contains(t, body, "UID:ev-1/2026-09-12T10:00:00Z")
	assert.Contains(t, body, "DESCRIPTION:Bring gloves")
	assert.Contains(t, body, "LOCATION:35.100000")
	assert.Contains(t, body, "END:VCALENDAR")
}

func TestBuildEmptyFeed(t *testing.T) {
	body := Build(nil, time.Now())
	require.Contains(t, body, "BEGIN:VCALENDAR")
	assert.NotContains(t, body, "BEGIN:VEVENT")
}
