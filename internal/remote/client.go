package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"volpin/internal/auth"
	appLog "volpin/internal/log"
	"volpin/internal/model"
)

const requestTimeout = 15 * time.Second

// Client talks to the remote volunteer-events service over HTTP JSON.
// Reads go through the resilient fetcher; writes are plain remote calls
// and are never cached.
type Client struct {
	baseURL string
	session auth.Session
	http    *http.Client
}

// NewClient creates a client for the service at baseURL (no trailing
// slash required). The session's token, if set, is attached as a bearer
// token on every request.
func NewClient(baseURL string, session auth.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// ListEvents fetches the authoritative event list.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	url := c.baseURL + "/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	appLog.Debug("events list start", "url", redactURL(url))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: list events: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var events []model.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("remote: decode events: %w", err)
	}

	appLog.Info("events list success", "url", redactURL(url), "count", len(events))
	return events, nil
}

// CreateEvent submits a new event. This is a plain remote write: no cache
// update, no retry, no optimistic local insert.
func (c *Client) CreateEvent(ctx context.Context, ev model.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	url := c.baseURL + "/events"

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote: create event: %s", resp.Status)
	}

	appLog.Info("event created", "id", ev.ID, "url", redactURL(url))
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
}

// redactURL strips path and query from a URL for logging, since service
// URLs may carry tokens.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i < 0 {
		return "remote://...(redacted)"
	}

	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return u[:i+3+j] + redactedSuffix
	}
	return u + redactedSuffix
}

// ErrUnauthenticated reports a create attempted without an organizer
// identity configured.
var ErrUnauthenticated = errors.New("remote: no authenticated organizer configured")

// Session exposes the client's read-only auth session.
func (c *Client) Session() auth.Session {
	return c.session
}
