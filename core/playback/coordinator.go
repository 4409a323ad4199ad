package playback

import (
	"errors"
	"math"

	"DMPlayer/logger"
)

// switchTrack replaces the active track with a random other track while
// keeping the timeline position. Requests made while a switch is in flight
// are dropped; the in-flight switch recomputes the upcoming cues when it
// completes.
//
// Every exit path releases the switch slot and recomputes the upcoming cues.
func (e *Engine) switchTrack(reason SwitchReason) {
	if !e.session.TryEnterSwitching() {
		logger.Debug("switch already in flight, request dropped",
			logger.String("reason", reason.String()))
		return
	}

	from := e.session.ActiveTrack
	pos := e.session.Position
	candidates := e.project.alternates(from)
	if len(candidates) == 0 {
		e.noAlternate(reason, from, pos)
		return
	}

	next := candidates[e.rng.Intn(len(candidates))]
	logger.Info("switching track",
		logger.String("reason", reason.String()),
		logger.String("from", from),
		logger.String("to", next.ID),
		logger.Float64("position", pos))

	epoch := e.epoch
	e.load(next).Then(func(err error) {
		if e.epoch != epoch {
			return
		}
		result := SwitchResult{Reason: reason, From: from, To: next.ID}
		if err != nil {
			e.failSwitch(result, err)
			return
		}
		e.resume(result, pos)
	})
}

func (e *Engine) noAlternate(reason SwitchReason, from string, pos float64) {
	err := &NoAlternateTrackError{ActiveTrackID: from, TrackCount: len(e.project.Tracks)}
	logger.Debug("no alternate track, keeping current one",
		logger.String("trackId", from),
		logger.String("reason", reason.String()))

	result := SwitchResult{Reason: reason, From: from, To: from, Position: pos, Resumed: e.session.IsPlaying, Err: err}
	if reason == ReasonTrackEnded {
		// nothing left to play: behave like a stop
		e.session.ExitSwitching()
		e.Stop()
		result.Position = 0
		result.Resumed = false
		e.recompute()
		e.observer.SwitchCompleted(result)
		return
	}
	e.finishSwitch(result)
}

// resume seeks the freshly loaded track and restarts playback if the
// session still wants it.
func (e *Engine) resume(result SwitchResult, snapshot float64) {
	dur, _ := e.clock.Duration()
	target := e.session.settledPosition(snapshot)
	if result.Reason == ReasonTrackEnded && target >= dur {
		target = 0
	}
	seekTime := math.Max(0, math.Min(target, dur))
	e.clock.Seek(seekTime)
	e.session.Position = seekTime
	e.observer.ProgressChanged(seekTime, dur)
	result.Position = seekTime

	if !e.session.IsPlaying {
		logger.Debug("playback stopped during switch, not resuming",
			logger.String("trackId", result.To))
		e.finishSwitch(result)
		return
	}

	epoch := e.epoch
	e.clock.Play().Then(func(err error) {
		if e.epoch != epoch {
			return
		}
		if errors.Is(err, errPlayCancelled) {
			logger.Debug("playback paused during switch, not resuming",
				logger.String("trackId", result.To))
			result.Position = e.session.Position
			e.finishSwitch(result)
			return
		}
		if err != nil {
			e.failSwitch(result, err)
			return
		}
		result.Resumed = true
		result.Position = e.session.Position
		e.finishSwitch(result)
	})
}

func (e *Engine) failSwitch(result SwitchResult, err error) {
	logger.Error("track switch failed, playback stalled",
		logger.String("reason", result.Reason.String()),
		logger.String("from", result.From),
		logger.String("to", result.To),
		logger.ErrorField(err))
	result.Err = err
	result.Position = e.session.Position
	if e.session.IsPlaying {
		e.session.IsPlaying = false
		e.observer.StateChanged(false)
	}
	e.observer.Notify(err)
	e.finishSwitch(result)
}

func (e *Engine) finishSwitch(result SwitchResult) {
	e.session.ExitSwitching()
	e.recompute()
	e.observer.SwitchCompleted(result)
}
