package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"DMPlayer/core/project"
	"DMPlayer/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// ProjectHandler 项目、音轨、提示点 HTTP 处理器
type ProjectHandler struct {
	svc         *project.Service
	hub         *project.Hub
	maxUploadMB int
	upgrader    websocket.Upgrader
}

func NewProjectHandler(svc *project.Service, hub *project.Hub, maxUploadMB int) *ProjectHandler {
	return &ProjectHandler{
		svc:         svc,
		hub:         hub,
		maxUploadMB: maxUploadMB,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type projectRequest struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

type cueRequest struct {
	Time *float64 `json:"time"`
}

func (h *ProjectHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) GalleryHandler(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.Gallery(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *ProjectHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.svc.Create(r.Context(), UserIDFromContext(r.Context()), req.Name, req.Public)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *ProjectHandler) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.svc.Update(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"], req.Name, req.Public)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Delete(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UploadTracksHandler accepts one or more files in the multipart field "tracks".
func (h *ProjectHandler) UploadTracksHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxUploadMB)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["tracks"]
	uploads := make([]project.Upload, 0, len(files))
	for _, fh := range files {
		fh := fh
		uploads = append(uploads, project.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadSeekCloser, error) {
				return fh.Open()
			},
		})
	}

	tracks, err := h.svc.AddTracks(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"], uploads)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tracks)
}

func (h *ProjectHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := h.svc.DeleteTrack(r.Context(), UserIDFromContext(r.Context()), vars["id"], vars["trackId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *ProjectHandler) ListCuesHandler(w http.ResponseWriter, r *http.Request) {
	cues, err := h.svc.ListCues(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cues)
}

func decodeCueTime(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req cueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return 0, false
	}
	if req.Time == nil {
		writeError(w, http.StatusBadRequest, "Cue point time is required")
		return 0, false
	}
	return *req.Time, true
}

func (h *ProjectHandler) CreateCueHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := decodeCueTime(w, r)
	if !ok {
		return
	}
	cue, err := h.svc.CreateCue(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"], t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cue)
}

func (h *ProjectHandler) UpdateCueHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := decodeCueTime(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	cue, err := h.svc.UpdateCue(r.Context(), UserIDFromContext(r.Context()), vars["id"], vars["cueId"], t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cue)
}

func (h *ProjectHandler) DeleteCueHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cue, err := h.svc.DeleteCue(r.Context(), UserIDFromContext(r.Context()), vars["id"], vars["cueId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cue)
}

// AudioHandler 提供音频文件，支持 Range 请求
func (h *ProjectHandler) AudioHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	obj, info, err := h.svc.OpenAudio(r.Context(), vars["id"], vars["trackId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	modTime := info.LastModified
	if modTime.IsZero() {
		modTime = time.Unix(0, 0)
	}
	http.ServeContent(w, r, vars["trackId"]+".mp3", modTime, obj)
}

// WebSocketHandler 订阅项目变更事件
func (h *ProjectHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	if _, err := h.svc.Get(r.Context(), UserIDFromContext(r.Context()), projectID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := project.NewClient(h.hub, conn, projectID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(context.Background())

	logger.Info("WebSocket 连接建立", logger.String("project", projectID))
}
