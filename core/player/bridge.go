package player

import (
	"sync"

	"DMPlayer/core/playback"

	tea "github.com/charmbracelet/bubbletea"
)

// Message types sent from the engine goroutine to the UI.
type (
	ProgressMsg struct {
		Position float64
		Duration float64
	}
	TrackMsg struct {
		Track playback.Track
	}
	StateMsg struct {
		Playing bool
	}
	CuesMsg struct {
		Cues     []playback.CuePoint
		Upcoming []playback.CuePoint
	}
	SwitchMsg struct {
		Result playback.SwitchResult
	}
	NoticeMsg struct {
		Err error
	}
	scrubMsg struct {
		Active bool
	}
)

// Bridge is the engine observer feeding a running tea.Program. Messages sent
// before the program is attached are dropped.
type Bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// Attach sets the function used to deliver messages, usually Program.Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (b *Bridge) ProgressChanged(position, duration float64) {
	b.Send(ProgressMsg{Position: position, Duration: duration})
}

func (b *Bridge) TrackChanged(t playback.Track) { b.Send(TrackMsg{Track: t}) }

func (b *Bridge) StateChanged(playing bool) { b.Send(StateMsg{Playing: playing}) }

func (b *Bridge) CuesChanged(cues, upcoming []playback.CuePoint) {
	b.Send(CuesMsg{Cues: cues, Upcoming: upcoming})
}

func (b *Bridge) SwitchCompleted(r playback.SwitchResult) { b.Send(SwitchMsg{Result: r}) }

func (b *Bridge) Notify(err error) { b.Send(NoticeMsg{Err: err}) }
