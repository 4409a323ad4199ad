package playback

import "context"

// SwitchReason is what triggered a track switch.
type SwitchReason int

const (
	ReasonCue SwitchReason = iota
	ReasonTrackEnded
	// ReasonForced is a seek or scrub at or past the first cue.
	ReasonForced
)

func (r SwitchReason) String() string {
	switch r {
	case ReasonCue:
		return "cue"
	case ReasonTrackEnded:
		return "track_ended"
	case ReasonForced:
		return "forced"
	default:
		return "unknown"
	}
}

// SwitchResult is reported once for every accepted switch request.
type SwitchResult struct {
	Reason   SwitchReason
	From     string
	To       string
	Position float64
	// Resumed is true when playback was restarted on the new track.
	Resumed bool
	// Err is a *NoAlternateTrackError, *LoadError or *PlaybackBlockedError.
	Err error
}

// Observer is the UI side of the engine. Calls happen on the engine goroutine
// and must not block.
type Observer interface {
	ProgressChanged(position, duration float64)
	TrackChanged(track Track)
	StateChanged(playing bool)
	CuesChanged(cues, upcoming []CuePoint)
	SwitchCompleted(result SwitchResult)
	// Notify surfaces a user-visible failure.
	Notify(err error)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) ProgressChanged(float64, float64) {}
func (NopObserver) TrackChanged(Track) {}
func (NopObserver) StateChanged(bool) {}
func (NopObserver) CuesChanged([]CuePoint, []CuePoint) {}
func (NopObserver) SwitchCompleted(SwitchResult) {}
func (NopObserver) Notify(error) {}

// CueStore persists cue time edits.
type CueStore interface {
	UpdateCueTime(ctx context.Context, projectID, cueID string, seconds float64) error
}

// ProjectLoader fetches the playback view of a project.
type ProjectLoader interface {
	GetProject(ctx context.Context, projectID string) (Project, error)
}

// Locator builds the audio URL of a track.
type Locator func(projectID, trackID string) string

// DefaultLocator points at the audio route of the API server.
func DefaultLocator(projectID, trackID string) string {
	return "/projects/" + projectID + "/audio/" + trackID + ".mp3"
}
