package playback

import (
	"fmt"
	"sync"
)

// SimDevice is a headless Device driven by a virtual clock. Time only moves
// when Advance is called. Events are emitted synchronously from the calling
// goroutine.
type SimDevice struct {
	// Durations maps a source URL to its length in seconds. Unknown URLs
	// fail to load.
	Durations map[string]float64
	// ManualLoad holds loads until CompleteLoad or FailLoad.
	ManualLoad bool
	// ManualPlay holds play requests until ConfirmPlay or RejectPlay.
	ManualPlay bool
	// PlayErr makes every play request fail.
	PlayErr error

	mu          sync.Mutex
	sink        func(Event)
	gen         uint64
	url         string
	duration    float64
	loaded      bool
	failed      bool
	position    float64
	playing     bool
	pendingPlay bool
	loads       []string
}

// NewSimDevice creates a device knowing the given source durations.
func NewSimDevice(durations map[string]float64) *SimDevice {
	if durations == nil {
		durations = make(map[string]float64)
	}
	return &SimDevice{Durations: durations}
}

func (d *SimDevice) Attach(sink func(Event)) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
}

func (d *SimDevice) emit(ev Event) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (d *SimDevice) Load(gen uint64, url string) {
	d.mu.Lock()
	d.gen = gen
	d.url = url
	d.duration = 0
	d.loaded = false
	d.failed = false
	d.position = 0
	d.playing = false
	d.pendingPlay = false
	d.loads = append(d.loads, url)
	manual := d.ManualLoad
	d.mu.Unlock()

	if !manual {
		d.finishLoad(nil)
	}
}

// CompleteLoad finishes a held load.
func (d *SimDevice) CompleteLoad() { d.finishLoad(nil) }

// FailLoad fails a held load with err.
func (d *SimDevice) FailLoad(err error) { d.finishLoad(err) }

func (d *SimDevice) finishLoad(err error) {
	d.mu.Lock()
	gen, url := d.gen, d.url
	dur, known := d.Durations[url]
	if err == nil && !known {
		err = fmt.Errorf("no such source %q", url)
	}
	if err != nil {
		d.failed = true
		d.pendingPlay = false
		d.mu.Unlock()
		d.emit(Event{Kind: EventLoadFailed, Gen: gen, Err: err})
		return
	}
	d.duration = dur
	d.loaded = true
	d.mu.Unlock()

	d.emit(Event{Kind: EventLoaded, Gen: gen, Duration: dur})
}

func (d *SimDevice) Play(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	switch {
	case d.failed:
		d.mu.Unlock()
		d.emit(Event{Kind: EventPlayFailed, Gen: gen, Err: fmt.Errorf("source %q unavailable", d.url)})
		return
	case !d.loaded:
		// 与流式后端一致，加载完成前拒绝播放
		d.mu.Unlock()
		d.emit(Event{Kind: EventPlayFailed, Gen: gen, Err: fmt.Errorf("source %q not loaded", d.url)})
		return
	case d.PlayErr != nil:
		err := d.PlayErr
		d.mu.Unlock()
		d.emit(Event{Kind: EventPlayFailed, Gen: gen, Err: err})
		return
	case d.ManualPlay:
		d.pendingPlay = true
		d.mu.Unlock()
		return
	}
	d.playing = true
	d.mu.Unlock()
	d.emit(Event{Kind: EventPlaying, Gen: gen})
}

// ConfirmPlay honours a held play request.
func (d *SimDevice) ConfirmPlay() {
	d.mu.Lock()
	if !d.pendingPlay || !d.loaded {
		d.mu.Unlock()
		return
	}
	d.pendingPlay = false
	d.playing = true
	gen := d.gen
	d.mu.Unlock()
	d.emit(Event{Kind: EventPlaying, Gen: gen})
}

// RejectPlay refuses a held play request with err.
func (d *SimDevice) RejectPlay(err error) {
	d.mu.Lock()
	if !d.pendingPlay {
		d.mu.Unlock()
		return
	}
	d.pendingPlay = false
	gen := d.gen
	d.mu.Unlock()
	d.emit(Event{Kind: EventPlayFailed, Gen: gen, Err: err})
}

// Pause halts output and drops a held play request.
func (d *SimDevice) Pause() {
	d.mu.Lock()
	d.playing = false
	d.pendingPlay = false
	d.mu.Unlock()
}

func (d *SimDevice) SetPosition(seconds float64) {
	d.mu.Lock()
	d.position = seconds
	d.mu.Unlock()
}

func (d *SimDevice) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *SimDevice) Close() error {
	d.Pause()
	return nil
}

// Playing reports whether the device is producing output.
func (d *SimDevice) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// Source returns the URL of the current source.
func (d *SimDevice) Source() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Loads returns every URL loaded so far, in order.
func (d *SimDevice) Loads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.loads...)
}

// Advance moves the virtual clock by dt seconds while playing and emits a
// time update, followed by an end event when the source is exhausted.
func (d *SimDevice) Advance(dt float64) {
	d.mu.Lock()
	if !d.playing {
		d.mu.Unlock()
		return
	}
	gen := d.gen
	d.position += dt
	ended := d.position >= d.duration
	if ended {
		d.position = d.duration
		d.playing = false
	}
	pos := d.position
	d.mu.Unlock()

	d.emit(Event{Kind: EventTimeUpdate, Gen: gen, Position: pos})
	if ended {
		d.emit(Event{Kind: EventEnded, Gen: gen})
	}
}

// AdvanceTo advances the virtual clock to pos.
func (d *SimDevice) AdvanceTo(pos float64) {
	d.Advance(pos - d.Position())
}
