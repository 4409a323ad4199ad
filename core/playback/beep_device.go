package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"

	"DMPlayer/logger"
)

const (
	deviceSampleRate = beep.SampleRate(44100)
	tickInterval     = 250 * time.Millisecond
	resampleQuality  = 4
)

// Fetcher opens the audio bytes behind a source URL.
type Fetcher func(ctx context.Context, url string) (io.ReadCloser, error)

var speakerOnce sync.Once

// BeepDevice plays MP3 sources on the system speaker. Sources are fetched
// fully into memory, decoded and resampled to the speaker rate.
//
// It reports from its own goroutines, so the engine must run with WithLoop.
type BeepDevice struct {
	fetch Fetcher

	mu       sync.Mutex
	sink     func(Event)
	gen      uint64
	cancel   context.CancelFunc
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	queued   bool
	playing  bool
	stop     chan struct{}
}

// NewBeepDevice initialises the speaker and starts the progress ticker.
func NewBeepDevice(fetch Fetcher) (*BeepDevice, error) {
	var initErr error
	speakerOnce.Do(func() {
		initErr = speaker.Init(deviceSampleRate, deviceSampleRate.N(100*time.Millisecond))
	})
	if initErr != nil {
		return nil, fmt.Errorf("init speaker: %w", initErr)
	}
	d := &BeepDevice{fetch: fetch, stop: make(chan struct{})}
	go d.tick()
	return d, nil
}

func (d *BeepDevice) Attach(sink func(Event)) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
}

func (d *BeepDevice) emit(ev Event) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (d *BeepDevice) Load(gen uint64, url string) {
	speaker.Clear()

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.closeStreamer()
	ctx, cancel := context.WithCancel(context.Background())
	d.gen = gen
	d.cancel = cancel
	d.queued = false
	d.playing = false
	d.mu.Unlock()

	go d.load(ctx, gen, url)
}

func (d *BeepDevice) load(ctx context.Context, gen uint64, url string) {
	streamer, format, err := d.decode(ctx, url)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.emit(Event{Kind: EventLoadFailed, Gen: gen, Err: err})
		}
		return
	}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		streamer.Close()
		return
	}
	d.streamer = streamer
	d.format = format
	d.ctrl = &beep.Ctrl{Paused: true}
	d.ctrl.Streamer = beep.Seq(
		beep.Resample(resampleQuality, format.SampleRate, deviceSampleRate, streamer),
		beep.Callback(func() { go d.ended(gen) }),
	)
	d.mu.Unlock()

	duration := format.SampleRate.D(streamer.Len()).Seconds()
	logger.Debug("audio source decoded",
		logger.String("url", url),
		logger.Float64("duration", duration))
	d.emit(Event{Kind: EventLoaded, Gen: gen, Duration: duration})
}

func (d *BeepDevice) decode(ctx context.Context, url string) (beep.StreamSeekCloser, beep.Format, error) {
	body, err := d.fetch(ctx, url)
	if err != nil {
		return nil, beep.Format{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("read %s: %w", url, err)
	}
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", url, err)
	}
	return streamer, format, nil
}

func (d *BeepDevice) ended(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.playing = false
	d.mu.Unlock()
	d.emit(Event{Kind: EventEnded, Gen: gen})
}

func (d *BeepDevice) Play(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	if d.ctrl == nil {
		d.mu.Unlock()
		d.emit(Event{Kind: EventPlayFailed, Gen: gen, Err: errors.New("source not loaded")})
		return
	}
	ctrl := d.ctrl
	queue := !d.queued
	d.queued = true
	d.playing = true
	d.mu.Unlock()

	speaker.Lock()
	ctrl.Paused = false
	speaker.Unlock()
	if queue {
		speaker.Play(ctrl)
	}
	d.emit(Event{Kind: EventPlaying, Gen: gen})
}

func (d *BeepDevice) Pause() {
	d.mu.Lock()
	ctrl := d.ctrl
	d.playing = false
	d.mu.Unlock()
	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = true
	speaker.Unlock()
}

func (d *BeepDevice) SetPosition(seconds float64) {
	d.mu.Lock()
	streamer, format := d.streamer, d.format
	d.mu.Unlock()
	if streamer == nil {
		return
	}

	n := format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if n >= streamer.Len() {
		n = streamer.Len() - 1
	}
	if n < 0 {
		n = 0
	}
	speaker.Lock()
	err := streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		logger.Warn("seek failed", logger.Float64("seconds", seconds), logger.ErrorField(err))
	}
}

func (d *BeepDevice) Position() float64 {
	d.mu.Lock()
	streamer, format := d.streamer, d.format
	d.mu.Unlock()
	if streamer == nil {
		return 0
	}
	speaker.Lock()
	n := streamer.Position()
	speaker.Unlock()
	return format.SampleRate.D(n).Seconds()
}

func (d *BeepDevice) tick() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.mu.Lock()
			playing, gen := d.playing, d.gen
			d.mu.Unlock()
			if playing {
				d.emit(Event{Kind: EventTimeUpdate, Gen: gen, Position: d.Position()})
			}
		}
	}
}

// Close stops output and the ticker.
func (d *BeepDevice) Close() error {
	speaker.Clear()
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.closeStreamer()
	return nil
}

// closeStreamer must be called with d.mu held.
func (d *BeepDevice) closeStreamer() {
	if d.streamer != nil {
		if err := d.streamer.Close(); err != nil {
			logger.Debug("close streamer", logger.ErrorField(err))
		}
	}
	d.streamer = nil
	d.ctrl = nil
}
