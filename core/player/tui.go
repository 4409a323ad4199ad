package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"DMPlayer/core/playback"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	seekStep  = 5.0
	nudgeStep = 1.0
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	trackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	cueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	selectedCueStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFE66D"))
)

type keyMap struct {
	Toggle    key.Binding
	Stop      key.Binding
	Back      key.Binding
	Forward   key.Binding
	ScrubBack key.Binding
	ScrubFwd  key.Binding
	Commit    key.Binding
	NextCue   key.Binding
	CueEarly  key.Binding
	CueLate   key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Back:      key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "-5s")),
		Forward:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "+5s")),
		ScrubBack: key.NewBinding(key.WithKeys("shift+left", ","), key.WithHelp(",", "scrub back")),
		ScrubFwd:  key.NewBinding(key.WithKeys("shift+right", "."), key.WithHelp(".", "scrub fwd")),
		Commit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "release scrub")),
		NextCue:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "select cue")),
		CueEarly:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "cue -1s")),
		CueLate:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "cue +1s")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Stop, k.Back, k.Forward, k.ScrubFwd, k.Commit, k.NextCue, k.CueLate, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Stop, k.Back, k.Forward},
		{k.ScrubBack, k.ScrubFwd, k.Commit},
		{k.NextCue, k.CueEarly, k.CueLate, k.Quit},
	}
}

// Model is the Bubble Tea model of the interactive player. Every engine call
// is posted to the engine goroutine; the model only renders what the engine
// reports back.
type Model struct {
	eng    *playback.Engine
	post   func(func())
	bridge *Bridge

	name   string
	tracks []playback.Track

	track     playback.Track
	position  float64
	duration  float64
	playing   bool
	cues      []playback.CuePoint
	upcoming  []playback.CuePoint
	selected  int
	scrubbing bool
	scrubPos  float64
	last      *playback.SwitchResult
	notice    string

	keys     keyMap
	help     help.Model
	progress progress.Model
	width    int
}

// NewModel creates the player UI for an opened project.
func NewModel(eng *playback.Engine, post func(func()), bridge *Bridge, name string, p playback.Project) Model {
	prog := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	prog.Width = 50
	return Model{
		eng:      eng,
		post:     post,
		bridge:   bridge,
		name:     name,
		tracks:   p.Tracks,
		cues:     p.CuePoints,
		selected: -1,
		keys:     defaultKeys(),
		help:     help.New(),
		progress: prog,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// engine runs fn on the engine goroutine.
func (m Model) engine(fn func(e *playback.Engine)) {
	m.post(func() { fn(m.eng) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ProgressMsg:
		m.position, m.duration = msg.Position, msg.Duration

	case TrackMsg:
		m.track = msg.Track
		m.position = 0

	case StateMsg:
		m.playing = msg.Playing

	case CuesMsg:
		m.cues, m.upcoming = msg.Cues, msg.Upcoming
		if m.selected >= len(m.cues) {
			m.selected = -1
		}

	case SwitchMsg:
		r := msg.Result
		m.last = &r
		if r.Err != nil {
			var none *playback.NoAlternateTrackError
			if !errors.As(r.Err, &none) {
				m.notice = r.Err.Error()
			}
		}

	case NoticeMsg:
		m.notice = msg.Err.Error()

	case scrubMsg:
		m.scrubbing = msg.Active
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		m.notice = ""
		bridge := m.bridge
		m.engine(func(e *playback.Engine) {
			if e.Snapshot().IsPlaying {
				e.Pause()
				return
			}
			if err := e.Play(); err != nil {
				bridge.Notify(err)
			}
		})

	case key.Matches(msg, m.keys.Stop):
		m.engine(func(e *playback.Engine) { e.Stop() })

	case key.Matches(msg, m.keys.Back, m.keys.Forward):
		pos := m.position - seekStep
		if key.Matches(msg, m.keys.Forward) {
			pos = m.position + seekStep
		}
		pos = math.Max(pos, 0)
		m.engine(func(e *playback.Engine) { e.ClickSeek(pos) })

	case key.Matches(msg, m.keys.ScrubBack, m.keys.ScrubFwd):
		if !m.scrubbing {
			m.scrubbing = true
			m.scrubPos = m.position
		}
		step := seekStep
		if key.Matches(msg, m.keys.ScrubBack) {
			step = -seekStep
		}
		m.scrubPos = math.Max(m.scrubPos+step, 0)
		pos, bridge := m.scrubPos, m.bridge
		m.engine(func(e *playback.Engine) {
			if !e.Scrubbing() {
				e.BeginScrub()
			}
			e.MoveScrub(pos)
			bridge.Send(scrubMsg{Active: e.Scrubbing()})
		})

	case key.Matches(msg, m.keys.Commit):
		if m.scrubbing {
			m.scrubbing = false
			pos := m.scrubPos
			m.engine(func(e *playback.Engine) {
				if e.Scrubbing() {
					e.EndScrub(pos)
				}
			})
		}

	case key.Matches(msg, m.keys.NextCue):
		if len(m.cues) > 0 {
			m.selected = (m.selected + 1) % len(m.cues)
		}

	case key.Matches(msg, m.keys.CueEarly, m.keys.CueLate):
		if m.selected < 0 || m.selected >= len(m.cues) {
			return m, nil
		}
		cue := m.cues[m.selected]
		t := cue.Time + nudgeStep
		if key.Matches(msg, m.keys.CueEarly) {
			t = cue.Time - nudgeStep
		}
		m.engine(func(e *playback.Engine) {
			if e.BeginCueDrag(cue.ID) {
				e.MoveCueDrag(t)
				e.EndCueDrag()
			}
		})

	default:
		// 1-9 plays a specific track
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if i := int(s[0] - '1'); i < len(m.tracks) {
				id, bridge := m.tracks[i].ID, m.bridge
				m.engine(func(e *playback.Engine) {
					if err := e.PlayTrack(id); err != nil {
						bridge.Notify(err)
					}
				})
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("DMPlayer · " + m.name))
	b.WriteString("\n")

	status := "⏸"
	if m.playing {
		status = "▶"
	}
	name := m.track.DisplayName
	if name == "" {
		name = dimStyle.Render("no track")
	} else {
		name = trackStyle.Render(name)
	}
	fmt.Fprintf(&b, "%s %s\n\n", status, name)

	pos := m.position
	if m.scrubbing {
		pos = m.scrubPos
	}
	ratio := 0.0
	if m.duration > 0 {
		ratio = math.Min(pos/m.duration, 1)
	}
	b.WriteString(m.progress.ViewAs(ratio))
	fmt.Fprintf(&b, "  %s / %s", formatTime(pos), formatTime(m.duration))
	if m.scrubbing {
		b.WriteString(infoStyle.Render("  (scrubbing)"))
	}
	b.WriteString("\n")
	b.WriteString(m.timeline())
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s  %d cue(s), %d upcoming\n",
		infoStyle.Render("cues"), len(m.cues), len(m.upcoming))
	if m.selected >= 0 && m.selected < len(m.cues) {
		fmt.Fprintf(&b, "%s  %s\n", infoStyle.Render("selected"), formatTime(m.cues[m.selected].Time))
	}
	if m.last != nil {
		fmt.Fprintf(&b, "%s  %s\n", infoStyle.Render("last switch"), describeSwitch(*m.last, m.tracks))
	}
	if m.notice != "" {
		b.WriteString(errorStyle.Render("! "+m.notice) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// timeline renders cue markers under the progress bar.
func (m Model) timeline() string {
	width := m.progress.Width
	if width <= 0 || m.duration <= 0 {
		return ""
	}
	cells := make([]string, width)
	for i := range cells {
		cells[i] = dimStyle.Render("─")
	}
	for i, c := range m.cues {
		if c.Time > m.duration {
			continue
		}
		x := int(c.Time / m.duration * float64(width-1))
		style := cueStyle
		if i == m.selected {
			style = selectedCueStyle
		}
		cells[x] = style.Render("◆")
	}
	return strings.Join(cells, "")
}

func describeSwitch(r playback.SwitchResult, tracks []playback.Track) string {
	name := func(id string) string {
		for _, t := range tracks {
			if t.ID == id {
				return t.DisplayName
			}
		}
		return id
	}
	var none *playback.NoAlternateTrackError
	switch {
	case errors.As(r.Err, &none):
		return fmt.Sprintf("%s: no other track", r.Reason)
	case r.Err != nil:
		return fmt.Sprintf("%s: failed (%v)", r.Reason, r.Err)
	default:
		return fmt.Sprintf("%s: %s → %s at %s", r.Reason, name(r.From), name(r.To), formatTime(r.Position))
	}
}

func formatTime(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	s := int(sec)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.bridge.Attach(p.Send)
	defer m.bridge.Attach(nil)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
