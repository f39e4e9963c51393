package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"volpin/internal/config"
	"volpin/internal/feed"
	"volpin/internal/fetch"
	appLog "volpin/internal/log"
	"volpin/internal/model"
	"volpin/internal/remote"
	"volpin/internal/schedule"
	"volpin/internal/selection"
)

// EventsKey is the cache slot name for the remote event list.
const EventsKey = "events"

// Server exposes the local HTTP surface: JSON API, embedded map UI,
// rendered snapshot and ICS feed.
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	store  fetch.Store
	client *remote.Client

	// selMu serializes inputs to the selection machine; HTTP handlers
	// run concurrently but the machine expects one event at a time.
	selMu   sync.Mutex
	machine selection.Machine

	// In-memory cache for the events listing to avoid redundant
	// fetch/expand work on every HTTP request.
	eventsMu    sync.RWMutex
	eventsCache *eventsCacheEntry
}

// embeddedStatic contains the exported map UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server. store backs the resilient fetch; client
// talks to the remote events service.
func NewServer(cfg *config.Config, store fetch.Store, client *remote.Client) *Server {
	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		store:  store,
		client: client,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler, with basic auth applied when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="volpin", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/selection", s.handleSelectionState)
	s.mux.HandleFunc("/api/selection/start", s.handleSelectionStart)
	s.mux.HandleFunc("/api/selection/tap", s.handleSelectionTap)
	s.mux.HandleFunc("/api/selection/cancel", s.handleSelectionCancel)
	s.mux.HandleFunc("/api/selection/confirm", s.handleSelectionConfirm)
	s.mux.HandleFunc("/api/feed.ics", s.handleFeed)
	s.mux.HandleFunc("/preview.png", s.handlePreview)

	// Embedded map UI; all non-/api/* paths fall back to this handler.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded map UI from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Never serve HTML for API paths; a missing API route is a 404.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// handlePreview serves the last rendered map snapshot from disk. The
// path matches the capture pipeline in cmd/volpin.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath())
}

// positionDTO is the JSON shape for coordinates.
type positionDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// occurrenceDTO is a JSON-friendly view of one event occurrence.
type occurrenceDTO struct {
	EventID          string      `json:"event_id"`
	InstanceKey      string      `json:"instance_key"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	OrganizerID      string      `json:"organizer_id"`
	Position         positionDTO `json:"position"`
	VolunteersNeeded int         `json:"volunteers_needed"`
	VolunteerIDs     []string    `json:"volunteer_ids"`
	ImageURL         string      `json:"image_url,omitempty"`
	Start            time.Time   `json:"start"`
}

// eventsResponse is the JSON response shape for GET /api/events.
type eventsResponse struct {
	Occurrences  []occurrenceDTO `json:"occurrences"`
	TruncatedIDs []string        `json:"truncated_ids,omitempty"`

	// Degraded is true when neither the service nor the cache had data
	// and the listing is the defined empty result.
	Degraded bool `json:"degraded"`

	// CameraFit tells the map UI whether fit-to-all-events may run. It
	// reflects the live selection state and is never cached.
	CameraFit bool `json:"camera_fit"`

	RangeStart      time.Time `json:"range_start"`
	RangeEnd        time.Time `json:"range_end"`
	DisplayTimeZone string    `json:"display_timezone"`
}

type eventsCacheEntry struct {
	resp eventsResponse
	// days is the horizon the entry was computed for; a request with a
	// different horizon must not reuse it.
	days      int
	updatedAt time.Time
}

// handleEvents returns upcoming occurrences within the horizon.
//
// GET /api/events?days=30&refresh=1
//   - days:    horizon in days (default from config)
//   - refresh: skip the short in-memory response cache
//
// The event list itself comes through the resilient fetcher: fresh from
// the service when it answers, otherwise the last cached list. Only when
// both fail does the listing degrade to the empty state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Method == http.MethodPost {
		s.handleCreateEvent(w, r)
		return
	}

	ctx := r.Context()

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	bypassCache := q.Get("refresh") == "1"

	const responseCacheTTL = 30 * time.Second

	if !bypassCache {
		s.eventsMu.RLock()
		ec := s.eventsCache
		s.eventsMu.RUnlock()
		if ec != nil && ec.days == days && time.Since(ec.updatedAt) < responseCacheTTL {
			resp := ec.resp
			resp.CameraFit = s.cameraFitAllowed()
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	loc := resolveLocationOrUTC(s.cfg.Timezone)

	// One clock read per listing so the window boundary is consistent
	// across all items, cached or fresh.
	now := time.Now().In(loc)
	rangeEnd := now.AddDate(0, 0, days)

	events, fetchErr := fetch.Do(ctx, s.store, EventsKey, s.client.ListEvents)
	degraded := false
	if fetchErr != nil {
		if !errors.Is(fetchErr, fetch.ErrNoDataAvailable) {
			appLog.Error("events listing failed", fetchErr)
		}
		// Graceful empty state: the UI shows an empty list, never a
		// blocking error.
		degraded = true
		events = nil
	}

	expanded, err := schedule.Expand(events, schedule.Config{
		RangeStart: now,
		RangeEnd:   rangeEnd,
	})
	if err != nil {
		appLog.Error("events expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	occs := model.UpcomingOccurrences(expanded.Occurrences, now)

	dtos := make([]occurrenceDTO, 0, len(occs))
	for _, occ := range occs {
		dtos = append(dtos, occurrenceDTO{
			EventID:          occ.EventID,
			InstanceKey:      occ.InstanceKey,
			Name:             occ.Name,
			Description:      occ.Description,
			OrganizerID:      occ.OrganizerID,
			Position:         positionDTO{Latitude: occ.Position.Latitude, Longitude: occ.Position.Longitude},
			VolunteersNeeded: occ.VolunteersNeeded,
			VolunteerIDs:     occ.VolunteerIDs,
			ImageURL:         occ.ImageURL,
			Start:            occ.Start,
		})
	}

	resp := eventsResponse{
		Occurrences:     dtos,
		TruncatedIDs:    expanded.TruncatedEvents,
		Degraded:        degraded,
		RangeStart:      now,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	}

	// A degraded listing is not cached: once the service recovers, the
	// very next request should see real data instead of a remembered
	// empty state.
	if !degraded {
		s.eventsMu.Lock()
		s.eventsCache = &eventsCacheEntry{resp: resp, days: days, updatedAt: time.Now()}
		s.eventsMu.Unlock()
	}

	resp.CameraFit = s.cameraFitAllowed()
	writeJSON(w, http.StatusOK, resp)
}

// createEventRequest is the JSON body for POST /api/events.
type createEventRequest struct {
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	DateTime         time.Time   `json:"date_time"`
	Position         positionDTO `json:"position"`
	VolunteersNeeded int         `json:"volunteers_needed"`
	ImageURL         string      `json:"image_url,omitempty"`
	Recurrence       string      `json:"recurrence,omitempty"`
}

// handleCreateEvent submits a new event to the remote service. Writes
// bypass the cache entirely; the next listing refresh picks the event up
// from the server.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session := s.client.Session()
	if !session.Authenticated() {
		writeError(w, http.StatusUnauthorized, remote.ErrUnauthenticated.Error())
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev := model.Event{
		ID:               model.NewID(),
		Name:             req.Name,
		Description:      req.Description,
		DateTime:         req.DateTime,
		OrganizerID:      session.UserID,
		Position:         model.Position{Latitude: req.Position.Latitude, Longitude: req.Position.Longitude},
		VolunteersNeeded: req.VolunteersNeeded,
		VolunteerIDs:     []string{},
		ImageURL:         req.ImageURL,
		Recurrence:       req.Recurrence,
	}

	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.client.CreateEvent(ctx, ev); err != nil {
		appLog.Error("event create failed", err, "id", ev.ID)
		writeError(w, http.StatusBadGateway, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, ev)
}

// selectionResponse is the JSON shape for all selection endpoints.
type selectionResponse struct {
	State    string `json:"state"`
	Accepted bool   `json:"accepted"`

	// Pending is the dropped pin, present only in location_chosen.
	Pending *positionDTO `json:"pending,omitempty"`

	// CameraFit mirrors the events response so the UI can re-check
	// fit suppression after every transition.
	CameraFit bool `json:"camera_fit"`
}

func (s *Server) handleSelectionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.selMu.Lock()
	resp := s.selectionSnapshot(true)
	s.selMu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelectionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.selMu.Lock()
	accepted := s.machine.Start()
	resp := s.selectionSnapshot(accepted)
	s.selMu.Unlock()

	appLog.Debug("selection start", "accepted", accepted, "state", resp.State)
	writeJSON(w, http.StatusOK, resp)
}

// tapRequest is a single map-surface tap.
type tapRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleSelectionTap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req tapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !(model.Position{Latitude: req.Latitude, Longitude: req.Longitude}).Valid() {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}

	s.selMu.Lock()
	accepted := s.machine.Tap(req.Latitude, req.Longitude)
	resp := s.selectionSnapshot(accepted)
	s.selMu.Unlock()

	appLog.Debug("selection tap", "accepted", accepted, "state", resp.State,
		"latitude", req.Latitude, "longitude", req.Longitude)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelectionCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.selMu.Lock()
	accepted := s.machine.Cancel()
	resp := s.selectionSnapshot(accepted)
	s.selMu.Unlock()

	appLog.Debug("selection cancel", "accepted", accepted, "state", resp.State)
	writeJSON(w, http.StatusOK, resp)
}

// confirmResponse carries the creation-form initialization data handed
// off by a successful confirm.
type confirmResponse struct {
	selectionResponse
	Location *positionDTO `json:"location,omitempty"`
}

func (s *Server) handleSelectionConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.selMu.Lock()
	loc, accepted := s.machine.Confirm()
	resp := confirmResponse{selectionResponse: s.selectionSnapshot(accepted)}
	s.selMu.Unlock()

	if accepted {
		resp.Location = &positionDTO{Latitude: loc.Latitude, Longitude: loc.Longitude}
	}

	appLog.Debug("selection confirm", "accepted", accepted, "state", resp.State)
	writeJSON(w, http.StatusOK, resp)
}

// selectionSnapshot builds a response from the current machine state.
// Callers must hold selMu.
func (s *Server) selectionSnapshot(accepted bool) selectionResponse {
	resp := selectionResponse{
		State:     s.machine.State().String(),
		Accepted:  accepted,
		CameraFit: s.machine.CameraFitAllowed(),
	}
	if pending, ok := s.machine.Pending(); ok {
		resp.Pending = &positionDTO{Latitude: pending.Latitude, Longitude: pending.Longitude}
	}
	return resp
}

func (s *Server) cameraFitAllowed() bool {
	s.selMu.Lock()
	defer s.selMu.Unlock()
	return s.machine.CameraFitAllowed()
}

// handleFeed serves upcoming occurrences as an iCalendar feed.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	loc := resolveLocationOrUTC(s.cfg.Timezone)
	now := time.Now().In(loc)

	events, err := fetch.Do(ctx, s.store, EventsKey, s.client.ListEvents)
	if err != nil {
		// Same graceful degradation as the listing: an empty calendar.
		events = nil
	}

	expanded, err := schedule.Expand(events, schedule.Config{
		RangeStart: now,
		RangeEnd:   now.AddDate(0, 0, s.cfg.HorizonDays),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	body := feed.Build(model.UpcomingOccurrences(expanded.Occurrences, now), now)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
