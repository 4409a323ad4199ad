package playback

// Session is the ephemeral playback state for one project. It is owned by
// the Engine and only touched from the engine goroutine.
type Session struct {
	ProjectID   string
	ActiveTrack string
	// Position is the logical timeline position in seconds.
	Position  float64
	IsPlaying bool
	Upcoming  []CuePoint

	switching bool

	// latest user seek recorded while a switch was in flight
	pendingUserSeek    float64
	hasPendingUserSeek bool
}

func newSession(projectID string) Session {
	return Session{ProjectID: projectID}
}

// Switching reports whether a track switch is in flight.
func (s *Session) Switching() bool { return s.switching }

// TryEnterSwitching claims the switch slot. It returns false when a switch
// is already in flight.
func (s *Session) TryEnterSwitching() bool {
	if s.switching {
		return false
	}
	s.switching = true
	s.hasPendingUserSeek = false
	return true
}

// ExitSwitching releases the switch slot.
func (s *Session) ExitSwitching() {
	s.switching = false
	s.hasPendingUserSeek = false
}

func (s *Session) recordUserSeek(pos float64) {
	if !s.switching {
		return
	}
	s.pendingUserSeek = pos
	s.hasPendingUserSeek = true
}

// settledPosition is the position a switch should resume at: the latest
// user seek made during the switch, or fallback.
func (s *Session) settledPosition(fallback float64) float64 {
	if s.hasPendingUserSeek {
		return s.pendingUserSeek
	}
	return fallback
}
