package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionValid(t *testing.T) {
	cases := []struct {
		name string
		pos  Position
		want bool
	}{
		{"origin", Position{0, 0}, true},
		{"typical", Position{37.55, 126.97}, true},
		{"lat edge", Position{90, 180}, true},
		{"lat too big", Position{90.01, 0}, false},
		{"lon too small", Position{0, -180.5}, false},
		{"nan latitude", Position{math.NaN(), 0}, false},
		{"inf longitude", Position{0, math.Inf(1)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.pos.Valid())
		})
	}
}

func TestEventValidate(t *testing.T) {
	valid := func() Event {
		return Event{
			ID:          NewID(),
			Name:        "Beach cleanup",
			DateTime:    time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
			OrganizerID: "user-1",
			Position:    Position{Latitude: 35.1, Longitude: 129.0},
		}
	}

	t.Run("valid event passes", func(t *testing.T) {
		ev := valid()
		require.NoError(t, ev.Validate())
	})

	t.Run("negative volunteers rejected", func(t *testing.T) {
		ev := valid()
		ev.VolunteersNeeded = -1
		require.Error(t, ev.Validate())
	})

	t.Run("zero volunteers allowed", func(t *testing.T) {
		ev := valid()
		ev.VolunteersNeeded = 0
		require.NoError(t, ev.Validate())
	})

	t.Run("missing organizer rejected", func(t *testing.T) {
		ev := valid()
		ev.OrganizerID = ""
		require.Error(t, ev.Validate())
	})

	t.Run("non-finite position rejected", func(t *testing.T) {
		ev := valid()
		ev.Position.Latitude = math.NaN()
		require.Error(t, ev.Validate())
	})
}

func TestUpcomingWindowBoundary(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	events := []Event{
		{ID: "past", DateTime: now.Add(-time.Second)},
		{ID: "boundary", DateTime: now},
		{ID: "future", DateTime: now.Add(time.Second)},
	}

	got := Upcoming(events, now)
	require.Len(t, got, 1)
	assert.Equal(t, "future", got[0].ID)

	// The filter must never mutate the input records.
	assert.Equal(t, "past", events[0].ID)
	assert.Equal(t, now, events[1].DateTime)
	assert.Len(t, events, 3)
}

func TestUpcomingOccurrences(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	occs := []Occurrence{
		{InstanceKey: "a", Start: now.Add(-time.Hour)},
		{InstanceKey: "b", Start: now},
		{InstanceKey: "c", Start: now.Add(time.Hour)},
		{InstanceKey: "d", Start: now.Add(48 * time.Hour)},
	}

	got := UpcomingOccurrences(occs, now)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].InstanceKey)
	assert.Equal(t, "d", got[1].InstanceKey)
}

func TestNewIDUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	require.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
