package playback

// EventKind identifies a notification raised by a Device.
type EventKind int

const (
	// EventLoaded reports that metadata (duration) of the source is available.
	EventLoaded EventKind = iota
	// EventLoadFailed reports that the source could not be fetched or decoded.
	EventLoadFailed
	// EventPlaying reports that a Play request was honoured.
	EventPlaying
	// EventPlayFailed reports that a Play request was refused.
	EventPlayFailed
	// EventTimeUpdate is the periodic position tick while playing.
	EventTimeUpdate
	// EventEnded reports that the source played to its end.
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventLoadFailed:
		return "load_failed"
	case EventPlaying:
		return "playing"
	case EventPlayFailed:
		return "play_failed"
	case EventTimeUpdate:
		return "time_update"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is raised by a Device. Gen is the source generation the event
// belongs to, as passed to Load.
type Event struct {
	Kind     EventKind
	Gen      uint64
	Position float64
	Duration float64
	Err      error
}

// Device is a single audio output. Implementations report progress through
// the sink installed with Attach; they may call it from any goroutine unless
// the engine runs with the default inline executor, in which case the sink
// must be called from the engine goroutine.
type Device interface {
	// Attach installs the event sink. Called once by NewEngine.
	Attach(sink func(Event))
	// Load starts loading url as source generation gen and pauses output.
	Load(gen uint64, url string)
	// Play starts output of generation gen. It is only called after
	// EventLoaded for gen; a device may refuse an earlier call with
	// EventPlayFailed.
	Play(gen uint64)
	// Pause halts output, keeping the position. A play request the device
	// is still holding is dropped and must not start output later.
	Pause()
	// SetPosition moves the play head; seconds is already clamped.
	SetPosition(seconds float64)
	// Position returns the play head in seconds.
	Position() float64
	// Close releases the output.
	Close() error
}
