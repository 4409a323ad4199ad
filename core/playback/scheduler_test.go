package playback

import (
	"math/rand"
	"testing"
)

func cueTimes(cues []CuePoint) []float64 {
	out := make([]float64, len(cues))
	for i, c := range cues {
		out[i] = c.Time
	}
	return out
}

func TestRecomputeUpcoming(t *testing.T) {
	cues := []CuePoint{{ID: "c", Time: 40}, {ID: "a", Time: 10}, {ID: "b", Time: 10}, {ID: "d", Time: 90}}

	tests := []struct {
		name string
		pos  float64
		want []string
	}{
		{"before all", 0, []string{"a", "b", "c", "d"}},
		{"exactly on duplicate time", 10, []string{"c", "d"}},
		{"between", 39.9, []string{"c", "d"}},
		{"after all", 120, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecomputeUpcoming(cues, tt.pos)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want ids %v", got, tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Fatalf("index %d: got %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	if cues[0].ID != "c" {
		t.Fatalf("input slice was reordered: %v", cues)
	}
}

func TestRecomputeUpcomingIsSortedSuffix(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		cues := make([]CuePoint, r.Intn(12))
		for j := range cues {
			cues[j] = CuePoint{ID: string(rune('a' + j)), Time: float64(r.Intn(60))}
		}
		sorted := append([]CuePoint(nil), cues...)
		sortCues(sorted)
		pos := float64(r.Intn(70)) - 5

		got := RecomputeUpcoming(cues, pos)

		var want []CuePoint
		for _, c := range sorted {
			if c.Time > pos {
				want = append(want, c)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("pos %.0f: got %v, want %v", pos, cueTimes(got), cueTimes(want))
		}
		for k := range want {
			if got[k] != want[k] {
				t.Fatalf("pos %.0f: got %v, want %v", pos, got, want)
			}
		}
	}
}

func TestCheckCrossing(t *testing.T) {
	upcoming := []CuePoint{{ID: "a", Time: 10}, {ID: "b", Time: 20}, {ID: "c", Time: 20}, {ID: "d", Time: 30}}

	if _, fired, rest := CheckCrossing(9.99, upcoming); fired || len(rest) != 4 {
		t.Fatalf("fired before the head cue: fired=%v rest=%v", fired, rest)
	}

	crossing, fired, rest := CheckCrossing(10, upcoming)
	if !fired || crossing.Cue.ID != "a" || crossing.Passed != 1 {
		t.Fatalf("unexpected crossing %+v fired=%v", crossing, fired)
	}
	if len(rest) != 3 {
		t.Fatalf("head not consumed: %v", rest)
	}

	// a jump over several cues is one crossing
	crossing, fired, rest = CheckCrossing(25, rest)
	if !fired || crossing.Cue.ID != "b" || crossing.Passed != 2 {
		t.Fatalf("unexpected crossing %+v fired=%v", crossing, fired)
	}
	if len(rest) != 1 || rest[0].ID != "d" {
		t.Fatalf("passed cues not dropped: %v", rest)
	}
}

func TestCheckCrossingNeverFiresTwice(t *testing.T) {
	upcoming := []CuePoint{{ID: "a", Time: 5}}
	_, fired, rest := CheckCrossing(6, upcoming)
	if !fired {
		t.Fatal("expected first check to fire")
	}
	if _, fired, _ = CheckCrossing(6, rest); fired {
		t.Fatal("second check at the same position fired again")
	}
}

func TestCheckCrossingEmpty(t *testing.T) {
	if _, fired, _ := CheckCrossing(1e9, nil); fired {
		t.Fatal("empty cue list fired")
	}
}
