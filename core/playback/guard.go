package playback

import (
	"math"

	"DMPlayer/logger"
)

type scrubState struct {
	active  bool
	preview float64
}

type cueDragState struct {
	active bool
	id     string
}

// ClickSeek moves playback to pos. Landing at or past the earliest cue of
// the project forces a track switch instead of a plain relocation.
func (e *Engine) ClickSeek(pos float64) {
	pos = e.clampPosition(pos)
	e.session.Position = pos
	if e.session.ActiveTrack != "" {
		e.clock.Seek(pos)
	}
	dur, _ := e.clock.Duration()
	e.observer.ProgressChanged(pos, dur)

	forced := e.pastFirstCue(pos) && e.session.ActiveTrack != ""
	if e.session.Switching() {
		e.session.recordUserSeek(pos)
		if forced {
			logger.Debug("seek past first cue during switch, forced switch dropped",
				logger.Float64("position", pos))
		}
		return
	}
	if forced {
		e.switchTrack(ReasonForced)
		return
	}
	e.recompute()
}

// BeginScrub starts a timeline drag. Until EndScrub, position updates are
// previews only and playback ticks are not applied.
func (e *Engine) BeginScrub() {
	e.scrub = scrubState{active: true, preview: e.session.Position}
}

// MoveScrub previews pos. Reaching the first cue ends the drag at once and
// commits pos, which forces a switch.
func (e *Engine) MoveScrub(pos float64) {
	if !e.scrub.active {
		return
	}
	pos = e.clampPosition(pos)
	e.scrub.preview = pos
	dur, _ := e.clock.Duration()
	e.observer.ProgressChanged(pos, dur)

	if e.pastFirstCue(pos) {
		logger.Debug("scrub reached first cue, ending drag", logger.Float64("position", pos))
		e.scrub = scrubState{}
		e.ClickSeek(pos)
	}
}

// EndScrub commits the drag at pos. It is a no-op when MoveScrub already
// ended the drag.
func (e *Engine) EndScrub(pos float64) {
	if !e.scrub.active {
		return
	}
	e.scrub = scrubState{}
	e.ClickSeek(pos)
}

// Scrubbing reports whether a timeline drag is in progress.
func (e *Engine) Scrubbing() bool { return e.scrub.active }

// BeginCueDrag starts dragging the cue with id. It returns false when the
// cue does not exist.
func (e *Engine) BeginCueDrag(id string) bool {
	if e.project.cueIndex(id) < 0 {
		return false
	}
	e.cueDrag = cueDragState{active: true, id: id}
	return true
}

// MoveCueDrag moves the dragged cue to seconds locally. Nothing is persisted
// and the upcoming cues are left alone until the drag ends.
func (e *Engine) MoveCueDrag(seconds float64) {
	if !e.cueDrag.active {
		return
	}
	i := e.project.cueIndex(e.cueDrag.id)
	if i < 0 {
		e.cueDrag = cueDragState{}
		return
	}
	e.project.CuePoints[i].Time = e.clampPosition(seconds)
	e.observer.CuesChanged(e.cues(), append([]CuePoint(nil), e.session.Upcoming...))
}

// EndCueDrag finishes a cue drag: the cue list is re-sorted, the upcoming
// cues are recomputed and the new time is persisted once.
func (e *Engine) EndCueDrag() {
	if !e.cueDrag.active {
		return
	}
	id := e.cueDrag.id
	e.cueDrag = cueDragState{}
	i := e.project.cueIndex(id)
	if i < 0 {
		return
	}
	seconds := e.project.CuePoints[i].Time
	sortCues(e.project.CuePoints)
	e.recompute()
	e.persistCue(e.project.ID, id, seconds)
}

// EditCueTime sets a cue time from an edit form and persists it.
func (e *Engine) EditCueTime(id string, seconds float64) bool {
	if !e.UpdateCue(CuePoint{ID: id, Time: seconds}) {
		return false
	}
	e.persistCue(e.project.ID, id, math.Max(seconds, 0))
	return true
}

// AddCue inserts a cue created elsewhere.
func (e *Engine) AddCue(c CuePoint) {
	if e.project.cueIndex(c.ID) >= 0 {
		e.UpdateCue(c)
		return
	}
	c.Time = math.Max(c.Time, 0)
	e.project.CuePoints = append(e.project.CuePoints, c)
	sortCues(e.project.CuePoints)
	e.recompute()
}

// UpdateCue applies a cue time change made elsewhere without persisting it.
func (e *Engine) UpdateCue(c CuePoint) bool {
	i := e.project.cueIndex(c.ID)
	if i < 0 {
		return false
	}
	e.project.CuePoints[i].Time = math.Max(c.Time, 0)
	sortCues(e.project.CuePoints)
	e.recompute()
	return true
}

// RemoveCue forgets a deleted cue.
func (e *Engine) RemoveCue(id string) {
	i := e.project.cueIndex(id)
	if i < 0 {
		return
	}
	e.project.CuePoints = append(e.project.CuePoints[:i], e.project.CuePoints[i+1:]...)
	if e.cueDrag.id == id {
		e.cueDrag = cueDragState{}
	}
	e.recompute()
}

func (e *Engine) pastFirstCue(pos float64) bool {
	first, ok := firstCue(e.project.CuePoints)
	return ok && pos >= first.Time
}

// clampPosition bounds a timeline position to [0, duration]; the upper
// bound applies only once the active source's duration is known.
func (e *Engine) clampPosition(pos float64) float64 {
	if math.IsNaN(pos) || pos < 0 {
		return 0
	}
	if dur, ok := e.clock.Duration(); ok && e.session.ActiveTrack != "" && pos > dur {
		return dur
	}
	return pos
}
