package player

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"DMPlayer/core/playback"
)

// LineObserver prints engine activity as plain lines, one per event.
// Progress updates are not printed.
type LineObserver struct {
	playback.NopObserver

	mu    sync.Mutex
	w     io.Writer
	names map[string]string
}

// NewLineObserver writes to w, naming tracks from p.
func NewLineObserver(w io.Writer, p playback.Project) *LineObserver {
	names := make(map[string]string, len(p.Tracks))
	for _, t := range p.Tracks {
		names[t.ID] = t.DisplayName
	}
	return &LineObserver{w: w, names: names}
}

func (o *LineObserver) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format+"\n", args...)
}

func (o *LineObserver) name(id string) string {
	if n, ok := o.names[id]; ok && n != "" {
		return n
	}
	return id
}

func (o *LineObserver) TrackChanged(t playback.Track) {
	o.printf("track   %s", o.name(t.ID))
}

func (o *LineObserver) StateChanged(playing bool) {
	if playing {
		o.printf("state   playing")
	} else {
		o.printf("state   paused")
	}
}

func (o *LineObserver) SwitchCompleted(r playback.SwitchResult) {
	if r.Err != nil {
		o.printf("switch  %s: %v", r.Reason, r.Err)
		return
	}
	o.printf("switch  %s: %s -> %s at %s", r.Reason, o.name(r.From), o.name(r.To), formatTime(r.Position))
}

func (o *LineObserver) Notify(err error) {
	o.printf("error   %v", err)
}

// RunHeadless starts playback and drives dev in real time, scaled by speed,
// until ctx is cancelled. The loop must already be running.
func RunHeadless(ctx context.Context, eng *playback.Engine, loop *playback.Loop, dev *playback.SimDevice, speed float64) error {
	if speed <= 0 {
		speed = 1
	}
	started := make(chan error, 1)
	if !loop.Post(func() { started <- eng.Play() }) {
		return playback.ErrLoopClosed
	}
	select {
	case err := <-started:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return nil
	}

	const tick = 100 * time.Millisecond
	step := tick.Seconds() * speed
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			loop.Post(func() { dev.Advance(step) })
		}
	}
}
