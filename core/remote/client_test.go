package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"DMPlayer/core/playback"
	"DMPlayer/model"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/p1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid token"})
			return
		}
		json.NewEncoder(w).Encode(model.ProjectDetail{
			Project: model.Project{ID: "p1", Name: "Set"},
			Tracks: []model.Track{
				{ID: "t1", OriginalName: "a.mp3", DisplayName: "Alpha", Duration: 90},
				{ID: "t2", OriginalName: "b.mp3", Duration: 60},
			},
			CuePoints: []model.CuePoint{{ID: "c1", Time: 10}},
		})
	})
	mux.HandleFunc("/api/projects/p1/cues/c1", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Time float64 `json:"time"`
		}
		if r.Method != http.MethodPut || json.NewDecoder(r.Body).Decode(&body) != nil || body.Time != 42 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(model.CuePoint{ID: "c1", Time: body.Time})
	})
	mux.HandleFunc("/projects/p1/audio/t1.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetProject(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/", "tok")

	p, err := c.GetProject(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Tracks) != 2 || p.Tracks[0].DisplayName != "Alpha" || p.Tracks[1].DisplayName != "b.mp3" {
		t.Fatalf("tracks = %+v", p.Tracks)
	}
	if len(p.CuePoints) != 1 || p.CuePoints[0].Time != 10 {
		t.Fatalf("cues = %+v", p.CuePoints)
	}

	_, err = NewClient(srv.URL, "").GetProject(context.Background(), "p1")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized || se.Message != "Invalid token" {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

func TestUpdateCueTime(t *testing.T) {
	c := NewClient(newTestServer(t).URL, "tok")
	if err := c.UpdateCueTime(context.Background(), "p1", "c1", 42); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateCueTime(context.Background(), "p1", "c1", 1); err == nil {
		t.Fatal("expected error for rejected update")
	}
}

func TestTrackURLAndOpen(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, "tok")

	var locate playback.Locator = c.TrackURL
	u := locate("p1", "t1")
	if u != srv.URL+"/projects/p1/audio/t1.mp3" {
		t.Fatalf("url = %q", u)
	}

	rc, err := c.Open(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "audio-bytes" {
		t.Fatalf("body = %q", body)
	}

	if _, err := c.Open(context.Background(), srv.URL+"/projects/p1/audio/missing.mp3"); err == nil {
		t.Fatal("expected error for missing audio")
	}
}
