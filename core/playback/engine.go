package playback

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"DMPlayer/logger"
)

const persistTimeout = 10 * time.Second

// Engine is the cue-switching player for one project at a time. It ties the
// Clock, the cue scheduler, the switch coordinator and the interaction guard
// to a single Session.
//
// Engine is not safe for concurrent use. Run every call on one goroutine,
// usually through a Loop.
type Engine struct {
	clock    *Clock
	dev      Device
	session  Session
	project  Project
	rng      *rand.Rand
	locator  Locator
	store    CueStore
	observer Observer
	post     func(func())

	// bumped whenever the session is torn down, so continuations of an
	// abandoned switch or play request become no-ops
	epoch uint64
	// bumped by Pause and Stop to cancel a pending Play
	playReq uint64

	scrub   scrubState
	cueDrag cueDragState
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoop routes device events and asynchronous completions through l.
// Required for devices that report from their own goroutines.
func WithLoop(l *Loop) Option {
	return func(e *Engine) { e.post = func(fn func()) { l.Post(fn) } }
}

// WithRand sets the source used to pick replacement tracks.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLocator sets how track audio URLs are built.
func WithLocator(l Locator) Option {
	return func(e *Engine) { e.locator = l }
}

// WithCueStore sets where cue drags and edits are persisted.
func WithCueStore(s CueStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithObserver sets the UI collaborator.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine driving dev.
func NewEngine(dev Device, opts ...Option) *Engine {
	e := &Engine{
		dev:      dev,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		locator:  DefaultLocator,
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = newClock(dev, e)
	dev.Attach(func(ev Event) {
		if e.post != nil {
			e.post(func() { e.HandleEvent(ev) })
			return
		}
		e.HandleEvent(ev)
	})
	return e
}

// State is a read-only view of the engine.
type State struct {
	ProjectID   string
	ActiveTrack string
	Position    float64
	Duration    float64
	IsPlaying   bool
	Switching   bool
	Scrubbing   bool
	CuePoints   []CuePoint
	Upcoming    []CuePoint
}

// Snapshot returns the current state. Slices are copies.
func (e *Engine) Snapshot() State {
	dur, _ := e.clock.Duration()
	return State{
		ProjectID:   e.session.ProjectID,
		ActiveTrack: e.session.ActiveTrack,
		Position:    e.session.Position,
		Duration:    dur,
		IsPlaying:   e.session.IsPlaying,
		Switching:   e.session.Switching(),
		Scrubbing:   e.scrub.active,
		CuePoints:   append([]CuePoint(nil), e.project.CuePoints...),
		Upcoming:    append([]CuePoint(nil), e.session.Upcoming...),
	}
}

// Clock exposes the playback clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Open loads a project snapshot and starts a fresh session. Any previous
// session is torn down first.
func (e *Engine) Open(p Project) {
	e.teardown()
	e.project = cloneProject(p)
	e.session = newSession(p.ID)
	e.recompute()
	logger.Info("project opened",
		logger.String("projectId", p.ID),
		logger.Int("tracks", len(p.Tracks)),
		logger.Int("cues", len(p.CuePoints)))
}

// Close stops playback and forgets the project.
func (e *Engine) Close() {
	e.teardown()
	e.project = Project{}
	e.session = Session{}
}

func (e *Engine) teardown() {
	e.epoch++
	e.playReq++
	e.scrub = scrubState{}
	e.cueDrag = cueDragState{}
	if e.session.ActiveTrack != "" {
		e.clock.Pause()
	}
	if e.session.IsPlaying {
		e.session.IsPlaying = false
		e.observer.StateChanged(false)
	}
}

// Play starts or resumes playback. A random track is picked when none is
// active. The returned error covers synchronous refusals only; device
// failures arrive through Observer.Notify.
func (e *Engine) Play() error {
	if len(e.project.Tracks) == 0 {
		return ErrNoTracks
	}
	if e.session.Switching() {
		// honoured by the in-flight switch when it resumes playback
		if !e.session.IsPlaying {
			e.session.IsPlaying = true
			e.observer.StateChanged(true)
		}
		return nil
	}
	if e.session.ActiveTrack == "" {
		t := e.project.Tracks[e.rng.Intn(len(e.project.Tracks))]
		e.load(t)
		e.clock.Seek(e.session.Position)
	}
	e.startPlayback()
	return nil
}

// PlayTrack makes the track with id active, keeping the timeline position,
// and starts playback.
func (e *Engine) PlayTrack(id string) error {
	t, ok := e.project.track(id)
	if !ok {
		return fmt.Errorf("track %q: %w", id, ErrUnknownTrack)
	}
	if e.session.Switching() {
		return ErrSwitchInFlight
	}
	if t.ID != e.session.ActiveTrack {
		e.load(t)
		e.clock.Seek(e.session.Position)
	}
	e.startPlayback()
	return nil
}

func (e *Engine) startPlayback() {
	epoch, req := e.epoch, e.playReq
	e.clock.Play().Then(func(err error) {
		if e.epoch != epoch || e.playReq != req {
			return
		}
		if err != nil {
			logger.Warn("playback did not start",
				logger.String("trackId", e.session.ActiveTrack),
				logger.ErrorField(err))
			e.observer.Notify(err)
			return
		}
		if !e.session.IsPlaying {
			e.session.IsPlaying = true
			e.observer.StateChanged(true)
		}
		e.session.Position = e.clock.Position()
		e.recompute()
	})
}

// Pause halts playback and keeps the position.
func (e *Engine) Pause() {
	e.playReq++
	if e.session.ActiveTrack != "" {
		e.clock.Pause()
	}
	if e.session.IsPlaying {
		e.session.IsPlaying = false
		e.observer.StateChanged(false)
	}
}

// Stop halts playback and rewinds to the start. The active track is kept.
func (e *Engine) Stop() {
	e.Pause()
	if e.session.ActiveTrack != "" {
		e.clock.Stop()
	}
	e.session.Position = 0
	e.session.recordUserSeek(0)
	dur, _ := e.clock.Duration()
	e.observer.ProgressChanged(0, dur)
	e.recompute()
}

// HandleEvent feeds a device event to the clock.
func (e *Engine) HandleEvent(ev Event) {
	e.clock.handle(ev)
}

func (e *Engine) advanced(pos float64) {
	if e.session.Switching() || e.scrub.active {
		return
	}
	e.session.Position = pos
	dur, _ := e.clock.Duration()
	e.observer.ProgressChanged(pos, dur)
	if !e.session.IsPlaying {
		return
	}

	crossing, fired, remaining := CheckCrossing(pos, e.session.Upcoming)
	e.session.Upcoming = remaining
	if !fired {
		return
	}
	logger.Debug("cue crossed",
		logger.String("cueId", crossing.Cue.ID),
		logger.Float64("cueTime", crossing.Cue.Time),
		logger.Float64("position", pos),
		logger.Int("passed", crossing.Passed))
	e.switchTrack(ReasonCue)
}

func (e *Engine) finished() {
	if e.session.Switching() {
		return
	}
	dur, _ := e.clock.Duration()
	e.session.Position = dur
	e.switchTrack(ReasonTrackEnded)
}

func (e *Engine) loadFailed(err error) {
	logger.Warn("audio source failed to load",
		logger.String("trackId", e.session.ActiveTrack),
		logger.ErrorField(err))
	if e.session.Switching() {
		// the coordinator recovers through the load future
		return
	}
	// the pending play request reports err to the observer
	if e.session.IsPlaying {
		e.session.IsPlaying = false
		e.observer.StateChanged(false)
	}
}

// AddTrack appends a track uploaded after the project was opened.
func (e *Engine) AddTrack(t Track) {
	if _, ok := e.project.track(t.ID); ok {
		return
	}
	e.project.Tracks = append(e.project.Tracks, t)
}

// RemoveTrack forgets a deleted track. Removing the active track stops
// playback and clears the active track.
func (e *Engine) RemoveTrack(id string) {
	tracks := e.project.Tracks[:0]
	for _, t := range e.project.Tracks {
		if t.ID != id {
			tracks = append(tracks, t)
		}
	}
	e.project.Tracks = tracks
	if id != e.session.ActiveTrack {
		return
	}

	logger.Info("active track removed, stopping playback", logger.String("trackId", id))
	e.teardown()
	e.session = newSession(e.project.ID)
	e.recompute()
	e.observer.TrackChanged(Track{})
	e.observer.ProgressChanged(0, 0)
}

// load makes t the active track and hands its source to the clock.
func (e *Engine) load(t Track) *Future {
	e.session.ActiveTrack = t.ID
	e.observer.TrackChanged(t)
	return e.clock.SetSource(e.locator(e.project.ID, t.ID))
}

// recompute rebuilds the upcoming cues from the session position.
func (e *Engine) recompute() {
	e.session.Upcoming = RecomputeUpcoming(e.project.CuePoints, e.session.Position)
	e.observer.CuesChanged(e.cues(), append([]CuePoint(nil), e.session.Upcoming...))
}

func (e *Engine) cues() []CuePoint {
	return append([]CuePoint(nil), e.project.CuePoints...)
}

// async runs work off the engine goroutine when a loop is installed and
// delivers its result back on it. Without a loop it runs inline.
func (e *Engine) async(work func() error, done func(error)) {
	if e.post == nil {
		done(work())
		return
	}
	go func() {
		err := work()
		e.post(func() { done(err) })
	}()
}

func (e *Engine) persistCue(projectID, cueID string, seconds float64) {
	if e.store == nil || projectID == "" {
		return
	}
	store := e.store
	epoch := e.epoch
	e.async(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return store.UpdateCueTime(ctx, projectID, cueID, seconds)
	}, func(err error) {
		if err == nil {
			return
		}
		perr := &PersistenceError{CueID: cueID, Time: seconds, Err: err}
		logger.Error("failed to save cue time",
			logger.String("projectId", projectID),
			logger.String("cueId", cueID),
			logger.ErrorField(err))
		if e.epoch == epoch {
			e.observer.Notify(perr)
		}
	})
}
