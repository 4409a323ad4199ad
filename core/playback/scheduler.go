package playback

// Crossing describes a cue crossed by the play head. Passed counts every
// cue consumed by the same check, Cue included.
type Crossing struct {
	Cue    CuePoint
	Passed int
}

// RecomputeUpcoming returns the cues with Time > pos sorted ascending.
// cues is not modified.
func RecomputeUpcoming(cues []CuePoint, pos float64) []CuePoint {
	upcoming := make([]CuePoint, 0, len(cues))
	for _, c := range cues {
		if c.Time > pos {
			upcoming = append(upcoming, c)
		}
	}
	sortCues(upcoming)
	return upcoming
}

// CheckCrossing reports whether pos has reached the head of upcoming. All
// cues at or before pos are consumed together and reported as one crossing,
// so a jump over several cues never cascades into several switches.
func CheckCrossing(pos float64, upcoming []CuePoint) (Crossing, bool, []CuePoint) {
	if len(upcoming) == 0 || pos < upcoming[0].Time {
		return Crossing{}, false, upcoming
	}
	n := 1
	for n < len(upcoming) && upcoming[n].Time <= pos {
		n++
	}
	return Crossing{Cue: upcoming[0], Passed: n}, true, upcoming[n:]
}

// firstCue returns the earliest cue of cues, which need not be sorted.
func firstCue(cues []CuePoint) (CuePoint, bool) {
	if len(cues) == 0 {
		return CuePoint{}, false
	}
	first := cues[0]
	for _, c := range cues[1:] {
		if c.Time < first.Time {
			first = c
		}
	}
	return first, true
}
