package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volpin/internal/auth"
	"volpin/internal/model"
)

func TestListEvents(t *testing.T) {
	events := []model.Event{
		{
			ID:          "ev-1",
			Name:        "Beach cleanup",
			DateTime:    time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
			OrganizerID: "user-9",
			Position:    model.Position{Latitude: 35.1, Longitude: 129.03},
		},
	}

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/events", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(events)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, auth.Session{UserID: "user-9", Token: "tok-123"})

	got, err := client.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].ID)
	assert.True(t, got[0].DateTime.Equal(events[0].DateTime))
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestListEventsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, auth.Session{})
	_, err := client.ListEvents(context.Background())
	require.Error(t, err)
}

func TestCreateEvent(t *testing.T) {
	var received model.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/events", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, auth.Session{UserID: "user-9"})

	ev := model.Event{
		ID:          model.NewID(),
		Name:        "Food drive",
		DateTime:    time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		OrganizerID: "user-9",
		Position:    model.Position{Latitude: 37.55, Longitude: 126.97},
	}
	require.NoError(t, client.CreateEvent(context.Background(), ev))
	assert.Equal(t, ev.ID, received.ID)
	assert.Equal(t, "Food drive", received.Name)
}

func TestCreateEventRejectsInvalidBeforeSending(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits++
	}))
	defer srv.Close()

	client := NewClient(srv.URL, auth.Session{UserID: "user-9"})

	ev := model.Event{ID: "x"} // missing nearly everything
	require.Error(t, client.CreateEvent(context.Background(), ev))
	assert.Zero(t, hits, "invalid events must not reach the wire")
}

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"https://events.example.org/api/events?token=abc": "https://events.example.org/...(redacted)",
		"http://127.0.0.1:9090":                           "http://127.0.0.1:9090/...(redacted)",
		"garbage":                                         "remote://...(redacted)",
	}
	for in, want := range cases {
		assert.Equal(t, want, redactURL(in))
	}
}
