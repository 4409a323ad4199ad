package playback

import (
	"errors"
	"math"

	"DMPlayer/logger"
)

// clockListener receives the clock's unsolicited notifications.
type clockListener interface {
	advanced(position float64)
	finished()
	loadFailed(err error)
}

// Clock owns the single active audio output: current source, duration and
// play head. Every source change bumps a generation counter so that late
// events from a previous source are discarded.
type Clock struct {
	dev      Device
	listener clockListener

	gen         uint64
	url         string
	duration    float64
	hasDuration bool

	// deferred seek requested before metadata was known
	pendingSeek    float64
	hasPendingSeek bool

	// play requested before metadata was known, issued on load
	pendingPlay bool
	loadErr     *LoadError

	load *Future
	play *Future
}

func newClock(dev Device, listener clockListener) *Clock {
	return &Clock{dev: dev, listener: listener}
}

// SetSource replaces the audio source. Any deferred seek for the previous
// source is discarded. The returned future resolves once metadata for the
// new source is available, or with a *LoadError.
func (c *Clock) SetSource(url string) *Future {
	if c.load != nil {
		c.load.resolve(&LoadError{URL: c.url, Err: errSourceReplaced})
	}
	if c.play != nil {
		c.play.resolve(&PlaybackBlockedError{Err: errSourceReplaced})
		c.play = nil
	}

	c.gen++
	c.url = url
	c.duration = 0
	c.hasDuration = false
	c.hasPendingSeek = false
	c.pendingPlay = false
	c.loadErr = nil

	load := newFuture()
	c.load = load
	c.dev.Load(c.gen, url)
	return load
}

// Seek moves the play head, clamped to [0, duration]. Before the source
// metadata is known the request is kept and applied once on load.
func (c *Clock) Seek(seconds float64) {
	if !c.hasDuration {
		c.pendingSeek = seconds
		c.hasPendingSeek = true
		return
	}
	c.dev.SetPosition(c.clamp(seconds))
}

// Play starts output of the current source. The future resolves when the
// device confirms, or with a *PlaybackBlockedError or *LoadError. Before
// metadata is known the request is held and handed to the device on load.
func (c *Clock) Play() *Future {
	if c.url == "" {
		return resolvedFuture(&PlaybackBlockedError{Err: errors.New("no audio source")})
	}
	if c.loadErr != nil {
		return resolvedFuture(c.loadErr)
	}
	if c.play != nil && !c.play.Done() {
		return c.play
	}
	play := newFuture()
	c.play = play
	if !c.hasDuration {
		c.pendingPlay = true
		return play
	}
	c.dev.Play(c.gen)
	return play
}

// Pause halts output and keeps the position. A play request that has not
// started yet is dropped and its future resolves with *PlaybackBlockedError.
func (c *Clock) Pause() {
	c.pendingPlay = false
	c.dev.Pause()
	if c.play != nil {
		play := c.play
		c.play = nil
		play.resolve(&PlaybackBlockedError{Err: errPlayCancelled})
	}
}

// Stop halts output and rewinds to the start.
func (c *Clock) Stop() {
	c.Pause()
	if c.hasDuration {
		c.dev.SetPosition(0)
		return
	}
	c.hasPendingSeek = false
}

// Position returns the play head in seconds.
func (c *Clock) Position() float64 {
	return c.dev.Position()
}

// Duration returns the duration of the current source and whether it is known.
func (c *Clock) Duration() (float64, bool) {
	return c.duration, c.hasDuration
}

// Loaded reports whether the current source's metadata is available.
func (c *Clock) Loaded() bool { return c.hasDuration }

// Source returns the URL of the current source.
func (c *Clock) Source() string { return c.url }

func (c *Clock) clamp(seconds float64) float64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	if c.hasDuration && seconds > c.duration {
		return c.duration
	}
	return seconds
}

// handle consumes a device event. Must run on the engine goroutine.
func (c *Clock) handle(ev Event) {
	if ev.Gen != c.gen {
		logger.Debug("dropping stale device event",
			logger.String("kind", ev.Kind.String()),
			logger.Uint64("eventGen", ev.Gen),
			logger.Uint64("currentGen", c.gen))
		return
	}

	switch ev.Kind {
	case EventLoaded:
		c.duration = math.Max(ev.Duration, 0)
		c.hasDuration = true
		if c.hasPendingSeek {
			c.hasPendingSeek = false
			c.dev.SetPosition(c.clamp(c.pendingSeek))
		}
		if c.load != nil {
			load := c.load
			c.load = nil
			load.resolve(nil)
		}
		if c.pendingPlay {
			c.pendingPlay = false
			c.dev.Play(c.gen)
		}

	case EventLoadFailed:
		err := &LoadError{URL: c.url, Err: ev.Err}
		c.loadErr = err
		c.pendingPlay = false
		if c.play != nil {
			play := c.play
			c.play = nil
			play.resolve(err)
		}
		if c.load != nil {
			load := c.load
			c.load = nil
			load.resolve(err)
		}
		c.listener.loadFailed(err)

	case EventPlaying:
		if c.play != nil {
			play := c.play
			c.play = nil
			play.resolve(nil)
		}

	case EventPlayFailed:
		if c.play != nil {
			play := c.play
			c.play = nil
			play.resolve(&PlaybackBlockedError{Err: ev.Err})
		}

	case EventTimeUpdate:
		c.listener.advanced(ev.Position)

	case EventEnded:
		c.listener.finished()
	}
}
