package player

import (
	"math/rand"
	"strings"
	"testing"

	"DMPlayer/core/playback"

	tea "github.com/charmbracelet/bubbletea"
)

type harness struct {
	eng  *playback.Engine
	dev  *playback.SimDevice
	msgs []tea.Msg
	m    Model
}

func newHarness(t *testing.T, cues []playback.CuePoint, tracks ...playback.Track) *harness {
	t.Helper()
	p := playback.Project{ID: "p1", Tracks: tracks, CuePoints: cues}
	durations := make(map[string]float64)
	for _, tr := range tracks {
		durations[playback.DefaultLocator("p1", tr.ID)] = tr.Duration
	}

	h := &harness{dev: playback.NewSimDevice(durations)}
	bridge := &Bridge{}
	bridge.Attach(func(msg tea.Msg) { h.msgs = append(h.msgs, msg) })
	h.eng = playback.NewEngine(h.dev,
		playback.WithObserver(bridge),
		playback.WithRand(rand.New(rand.NewSource(1))),
	)
	h.eng.Open(p)
	// 直接在当前 goroutine 执行
	inline := func(fn func()) { fn() }
	h.m = NewModel(h.eng, inline, bridge, "Test Set", p)
	h.flush()
	return h
}

// flush feeds every engine message collected so far into the model.
func (h *harness) flush() {
	for len(h.msgs) > 0 {
		msg := h.msgs[0]
		h.msgs = h.msgs[1:]
		next, _ := h.m.Update(msg)
		h.m = next.(Model)
	}
}

func (h *harness) press(k tea.KeyMsg) tea.Cmd {
	next, cmd := h.m.Update(k)
	h.m = next.(Model)
	h.flush()
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTogglePlayPause(t *testing.T) {
	h := newHarness(t, nil, playback.Track{ID: "a", DisplayName: "Intro", Duration: 30})

	h.press(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !h.eng.Snapshot().IsPlaying || !h.dev.Playing() {
		t.Fatal("space should start playback")
	}
	if !h.m.playing || h.m.track.ID != "a" {
		t.Fatalf("model not updated: playing=%v track=%q", h.m.playing, h.m.track.ID)
	}
	if view := h.m.View(); !strings.Contains(view, "Intro") || !strings.Contains(view, "▶") {
		t.Fatalf("view missing track state:\n%s", view)
	}

	h.press(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if h.eng.Snapshot().IsPlaying || h.m.playing {
		t.Fatal("second space should pause")
	}
}

func TestPlayWithoutTracksShowsNotice(t *testing.T) {
	h := newHarness(t, nil)

	h.press(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if h.m.notice == "" {
		t.Fatal("expected a notice")
	}
	if !strings.Contains(h.m.View(), "! ") {
		t.Fatal("notice not rendered")
	}
}

func TestNumberKeySelectsTrack(t *testing.T) {
	h := newHarness(t, nil,
		playback.Track{ID: "a", DisplayName: "A", Duration: 30},
		playback.Track{ID: "b", DisplayName: "B", Duration: 30},
	)

	h.press(runes("2"))
	if got := h.eng.Snapshot().ActiveTrack; got != "b" {
		t.Fatalf("active track = %q, want b", got)
	}
	h.press(runes("9"))
	if got := h.eng.Snapshot().ActiveTrack; got != "b" {
		t.Fatalf("out of range key changed track to %q", got)
	}
}

func TestSeekKeys(t *testing.T) {
	h := newHarness(t, nil, playback.Track{ID: "a", Duration: 60})
	h.press(runes("1"))
	h.dev.AdvanceTo(20)
	h.flush()

	h.press(tea.KeyMsg{Type: tea.KeyRight})
	if got := h.eng.Snapshot().Position; got != 25 {
		t.Fatalf("position after right = %v, want 25", got)
	}
	h.press(tea.KeyMsg{Type: tea.KeyLeft})
	if got := h.eng.Snapshot().Position; got != 20 {
		t.Fatalf("position after left = %v, want 20", got)
	}
}

func TestCueNudge(t *testing.T) {
	h := newHarness(t,
		[]playback.CuePoint{{ID: "c1", Time: 10}, {ID: "c2", Time: 40}},
		playback.Track{ID: "a", Duration: 60},
	)

	// 未选中时不生效
	h.press(runes("]"))
	if got := h.eng.Snapshot().CuePoints[0].Time; got != 10 {
		t.Fatalf("cue moved without selection: %v", got)
	}

	h.press(tea.KeyMsg{Type: tea.KeyTab})
	h.press(runes("]"))
	if got := h.eng.Snapshot().CuePoints[0].Time; got != 11 {
		t.Fatalf("cue time = %v, want 11", got)
	}
	h.press(runes("["))
	h.press(runes("["))
	if got := h.eng.Snapshot().CuePoints[0].Time; got != 9 {
		t.Fatalf("cue time = %v, want 9", got)
	}
}

func TestScrubCommit(t *testing.T) {
	h := newHarness(t, nil, playback.Track{ID: "a", Duration: 60})
	h.press(runes("1"))

	h.press(runes("."))
	h.press(runes("."))
	if !h.m.scrubbing || !h.eng.Scrubbing() {
		t.Fatal("scrub should be active")
	}
	if h.m.scrubPos != 10 {
		t.Fatalf("scrub position = %v", h.m.scrubPos)
	}

	h.press(tea.KeyMsg{Type: tea.KeyEnter})
	if h.m.scrubbing || h.eng.Scrubbing() {
		t.Fatal("enter should end the scrub")
	}
	if got := h.eng.Snapshot().Position; got != 10 {
		t.Fatalf("position = %v, want 10", got)
	}
}

func TestQuitAndResize(t *testing.T) {
	h := newHarness(t, nil)

	next, _ := h.m.Update(tea.WindowSizeMsg{Width: 300, Height: 40})
	if w := next.(Model).progress.Width; w != 80 {
		t.Fatalf("progress width = %d, want 80", w)
	}
	next, _ = h.m.Update(tea.WindowSizeMsg{Width: 10, Height: 40})
	if w := next.(Model).progress.Width; w != 20 {
		t.Fatalf("progress width = %d, want 20", w)
	}

	cmd := h.press(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should quit")
	}
}

func TestFormatTime(t *testing.T) {
	tests := map[float64]string{0: "0:00", 59.9: "0:59", 61: "1:01", 3600: "60:00", -3: "0:00"}
	for in, want := range tests {
		if got := formatTime(in); got != want {
			t.Errorf("formatTime(%v) = %q, want %q", in, got, want)
		}
	}
}
