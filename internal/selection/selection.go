package selection

// The event-creation flow used to be driven by independent boolean and
// nullable fields on the map screen. That allowed states like "not
// creating, but a pin is set". This package replaces the flags with one
// explicit machine so the pin exists exactly when the state says so.

// State is the phase of the pin-drop event-creation flow.
type State int

const (
	// Idle: no creation flow in progress. The map may auto-fit its
	// camera to the loaded events only in this state.
	Idle State = iota
	// SelectingLocation: the user started creating an event and is
	// choosing a spot on the map.
	SelectingLocation
	// LocationChosen: a pin has been dropped and awaits confirm or
	// cancel.
	LocationChosen
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SelectingLocation:
		return "selecting_location"
	case LocationChosen:
		return "location_chosen"
	default:
		return "unknown"
	}
}

// Location is the pending pin coordinate.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Machine drives the pin-drop flow. The zero value is ready to use and
// starts in Idle. Transitions never fail: inputs that do not apply to
// the current state are ignored and reported by the bool return.
//
// Machine is not goroutine-safe; callers deliver inputs one at a time
// (the web layer serializes with a mutex).
type Machine struct {
	state   State
	pending *Location
}

// State returns the current phase.
func (m *Machine) State() State {
	return m.state
}

// Pending returns the dropped pin. The pin exists if and only if the
// state is LocationChosen.
func (m *Machine) Pending() (Location, bool) {
	if m.pending == nil {
		return Location{}, false
	}
	return *m.pending, true
}

// CameraFitAllowed reports whether the map may auto-fit its camera to
// the event set. Fitting mid-selection would fight the user's pin
// placement, so it is allowed only in Idle.
func (m *Machine) CameraFitAllowed() bool {
	return m.state == Idle
}

// Start begins the creation flow from Idle.
func (m *Machine) Start() bool {
	if m.state != Idle {
		return false
	}
	m.pending = nil
	m.state = SelectingLocation
	return true
}

// Tap records a map tap as the pending pin. Only the first tap counts:
// once a pin is set, further taps are ignored until an explicit cancel.
func (m *Machine) Tap(latitude, longitude float64) bool {
	if m.state != SelectingLocation {
		return false
	}
	m.pending = &Location{Latitude: latitude, Longitude: longitude}
	m.state = LocationChosen
	return true
}

// Cancel abandons the flow and discards any pending pin.
func (m *Machine) Cancel() bool {
	if m.state == Idle {
		return false
	}
	m.pending = nil
	m.state = Idle
	return true
}

// Confirm hands the pending pin off as creation-form initialization data
// and resets the machine to Idle. It reports false (and hands off
// nothing) unless a pin is pending.
func (m *Machine) Confirm() (Location, bool) {
	if m.state != LocationChosen || m.pending == nil {
		return Location{}, false
	}
	loc := *m.pending
	m.pending = nil
	m.state = Idle
	return loc, true
}
