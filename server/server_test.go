package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"DMPlayer/cache"
	"DMPlayer/config"
	"DMPlayer/core/project"
	"DMPlayer/model"
	"DMPlayer/repository"
	"DMPlayer/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	srv    *httptest.Server
	tracks repository.TrackRepository
	store  storage.AudioStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(model.Models()...); err != nil {
		t.Fatal(err)
	}

	webDir := t.TempDir()
	os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html>player</html>"), 0644)
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	hub := project.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	tracks := repository.NewGormTrackRepository(gdb)
	svc := project.NewService(
		repository.NewGormProjectRepository(gdb),
		tracks,
		repository.NewGormCueRepository(gdb),
		store,
		project.WithCache(cache.NewProjectCache(nil, 0)),
		project.WithHub(hub),
	)
	cfg := &config.Config{
		WebAppDir:   webDir,
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
		MaxUploadMB: 1,
	}
	srv := httptest.NewServer(NewRouter(Deps{
		Config:   cfg,
		Users:    repository.NewGormUserRepository(gdb),
		Projects: svc,
		Hub:      hub,
	}))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, tracks: tracks, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, e.srv.URL+path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email: email, Password: "pw", ArtistName: "Artist " + email,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	var out authResponse
	decode(t, resp, &out)
	return out.Token
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "dj@example.com")

	if resp := e.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email: "DJ@example.com", Password: "x", ArtistName: "Dup",
	}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "dj@example.com", Password: "bad"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status %d", resp.StatusCode)
	}

	resp := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "dj@example.com", Password: "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var login authResponse
	decode(t, resp, &login)

	resp = e.do(t, http.MethodGet, "/api/auth/status", login.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var status struct {
		User model.User `json:"user"`
	}
	decode(t, resp, &status)
	if status.User.Email != "dj@example.com" || status.User.PasswordHash != "" {
		t.Fatalf("status user = %+v", status.User)
	}

	if resp := e.do(t, http.MethodGet, "/api/auth/status", "garbage", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("invalid token status %d", resp.StatusCode)
	}
}

func TestProjectAndCueRoutes(t *testing.T) {
	e := newTestEnv(t)
	owner := e.register(t, "owner@example.com")
	other := e.register(t, "other@example.com")

	resp := e.do(t, http.MethodPost, "/api/projects", owner, map[string]interface{}{"name": "Set"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	var p model.Project
	decode(t, resp, &p)

	if resp := e.do(t, http.MethodGet, "/api/projects/"+p.ID, "", nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("anonymous private get %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/cues", other, map[string]float64{"time": 3}); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign cue create %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/cues", owner, map[string]string{}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("cue without time %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/cues", owner, map[string]float64{"time": -2}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative cue %d", resp.StatusCode)
	}

	var cue model.CuePoint
	for _, at := range []float64{40, 0, 15} {
		resp := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/cues", owner, map[string]float64{"time": at})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("cue create %d", resp.StatusCode)
		}
		decode(t, resp, &cue)
	}
	if resp := e.do(t, http.MethodPut, "/api/projects/"+p.ID+"/cues/"+cue.ID, owner, map[string]float64{"time": 50}); resp.StatusCode != http.StatusOK {
		t.Fatalf("cue update %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodPut, "/api/projects/"+p.ID+"/cues/missing", owner, map[string]float64{"time": 5}); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing cue update %d", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/api/projects/"+p.ID+"/cues", owner, nil)
	var cues []model.CuePoint
	decode(t, resp, &cues)
	if len(cues) != 3 || cues[0].Time != 0 || cues[1].Time != 40 || cues[2].Time != 50 {
		t.Fatalf("cues not sorted: %+v", cues)
	}

	if resp := e.do(t, http.MethodPut, "/api/projects/"+p.ID, owner, map[string]interface{}{"name": "Public Set", "public": true}); resp.StatusCode != http.StatusOK {
		t.Fatalf("update %d", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/api/gallery/projects", "", nil)
	var gallery []model.ProjectDetail
	decode(t, resp, &gallery)
	if len(gallery) != 1 || len(gallery[0].CuePoints) != 3 {
		t.Fatalf("gallery = %+v", gallery)
	}

	if resp := e.do(t, http.MethodDelete, "/api/projects/"+p.ID, other, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodDelete, "/api/projects/"+p.ID, owner, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete %d", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/api/projects/"+p.ID, owner, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted %d", resp.StatusCode)
	}
}

func TestUploadRejectsNonMP3(t *testing.T) {
	e := newTestEnv(t)
	owner := e.register(t, "owner@example.com")
	resp := e.do(t, http.MethodPost, "/api/projects", owner, map[string]interface{}{"name": "Set"})
	var p model.Project
	decode(t, resp, &p)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("tracks", "notes.txt")
	part.Write([]byte("not audio"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/api/projects/"+p.ID+"/tracks", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+owner)
	up, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer up.Body.Close()
	if up.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d", up.StatusCode)
	}
	var tracks []model.Track
	decode(t, up, &tracks)
	if len(tracks) != 0 {
		t.Fatalf("non-mp3 accepted: %+v", tracks)
	}
}

func TestAudioRangeRequest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	key := storage.TrackKey("p1", "t1")
	if err := e.store.Put(ctx, key, strings.NewReader("0123456789"), 10, "audio/mpeg"); err != nil {
		t.Fatal(err)
	}
	if err := e.tracks.Create(ctx, &model.Track{ID: "t1", ProjectID: "p1", OriginalName: "a.mp3", ObjectKey: key}); err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/projects/p1/audio/t1.mp3", nil)
	req.Header.Set("Range", "bytes=2-5")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusPartialContent || string(body) != "2345" {
		t.Fatalf("range response %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type %q", ct)
	}

	if resp := e.do(t, http.MethodGet, "/projects/p1/audio/missing.mp3", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing audio %d", resp.StatusCode)
	}
}

func TestStaticUI(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/", "", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "player") {
		t.Fatalf("static ui %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}
