package auth

// Session is the process-wide authenticated identity. It is loaded once
// from config at startup and read-only afterwards; login/logout lifecycle
// belongs to the surrounding platform, not this daemon.
type Session struct {
	// UserID stamps OrganizerID on events created through this client.
	UserID string
	// Token is sent as a bearer token on every request to the events
	// service. May be empty for open deployments.
	Token string
}

// Authenticated reports whether events can be created with this session.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}
