package playback

import "sort"

// Track is a playable audio file of a project.
type Track struct {
	ID          string
	DisplayName string
	Duration    float64
}

// CuePoint marks a timeline position at which the active track is replaced.
type CuePoint struct {
	ID   string
	Time float64
}

// Project is the playback view of a project, loaded once per navigation.
type Project struct {
	ID        string
	Tracks    []Track
	CuePoints []CuePoint
}

// sortCues orders cues ascending by time; equal times keep their order.
func sortCues(cues []CuePoint) {
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Time < cues[j].Time })
}

func (p *Project) track(id string) (Track, bool) {
	for _, t := range p.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

func (p *Project) cueIndex(id string) int {
	for i, c := range p.CuePoints {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// alternates returns every track except the one with id.
func (p *Project) alternates(id string) []Track {
	out := make([]Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func cloneProject(p Project) Project {
	out := Project{ID: p.ID}
	out.Tracks = append([]Track(nil), p.Tracks...)
	out.CuePoints = append([]CuePoint(nil), p.CuePoints...)
	sortCues(out.CuePoints)
	return out
}
