package playback

import (
	"errors"
	"fmt"
)

// ErrNoTracks is returned when playback is requested for a project without tracks.
var ErrNoTracks = errors.New("no tracks available to play")

// ErrUnknownTrack is returned when a track id is not part of the open project.
var ErrUnknownTrack = errors.New("unknown track")

// ErrSwitchInFlight is returned when a manual track change collides with an
// automatic switch.
var ErrSwitchInFlight = errors.New("track switch in progress")

// errSourceReplaced resolves a pending play request whose source was swapped out.
var errSourceReplaced = errors.New("audio source replaced before playback started")

// errPlayCancelled resolves a pending play request dropped by Pause or Stop.
var errPlayCancelled = errors.New("playback paused before it started")

// LoadError means the audio source failed to resolve or decode.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PlaybackBlockedError means the output refused to start playback
// (autoplay policy, device busy, source superseded).
type PlaybackBlockedError struct {
	Err error
}

func (e *PlaybackBlockedError) Error() string {
	return fmt.Sprintf("playback blocked: %v", e.Err)
}

func (e *PlaybackBlockedError) Unwrap() error { return e.Err }

// NoAlternateTrackError is reported when a switch is requested but the
// project has no track other than the active one. It is an expected no-op.
type NoAlternateTrackError struct {
	ActiveTrackID string
	TrackCount    int
}

func (e *NoAlternateTrackError) Error() string {
	return fmt.Sprintf("no alternate track for %q (%d track(s) in project)", e.ActiveTrackID, e.TrackCount)
}

// PersistenceError means a cue time could not be saved. The local edit is kept.
type PersistenceError struct {
	CueID string
	Time  float64
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save cue %s at %.2fs: %v", e.CueID, e.Time, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
