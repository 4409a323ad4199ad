package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"DMPlayer/cache"
	"DMPlayer/core/audio"
	"DMPlayer/logger"
	"DMPlayer/model"
	"DMPlayer/repository"
	"DMPlayer/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	errProbe = errors.New("unreadable mp3")
)

// Upload 一个待处理的上传文件
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadSeekCloser, error)
}

// Service 项目、音轨和提示点的业务逻辑
type Service struct {
	projects repository.ProjectRepository
	tracks   repository.TrackRepository
	cues     repository.CueRepository
	store    storage.AudioStore

	cache       *cache.ProjectCache
	hub         *Hub
	concurrency int
	newID       func() string
	probe       func(io.ReadSeeker, string) (audio.Info, error)
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the project detail cache.
func WithCache(c *cache.ProjectCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithHub publishes change events to websocket subscribers.
func WithHub(h *Hub) Option {
	return func(s *Service) { s.hub = h }
}

// WithUploadConcurrency bounds how many uploaded files are processed at once.
func WithUploadConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewService(projects repository.ProjectRepository, tracks repository.TrackRepository,
	cues repository.CueRepository, store storage.AudioStore, opts ...Option) *Service {
	s := &Service{
		projects:    projects,
		tracks:      tracks,
		cues:        cues,
		store:       store,
		concurrency: 4,
		newID:       uuid.NewString,
		probe:       audio.Probe,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// owned loads a project the user may modify.
func (s *Service) owned(ctx context.Context, userID int64, projectID string) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if p.OwnerID != userID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *Service) changed(ctx context.Context, projectID string, typ EventType, data interface{}) {
	if err := s.cache.Invalidate(ctx, projectID); err != nil {
		logger.Warn("invalidate project cache failed", logger.String("project", projectID), logger.ErrorField(err))
	}
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(projectID, typ, data); err != nil {
		logger.Warn("publish project event failed", logger.String("event", string(typ)), logger.ErrorField(err))
	}
}

// List returns the user's own projects.
func (s *Service) List(ctx context.Context, userID int64) ([]*model.Project, error) {
	projects, err := s.projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	return projects, nil
}

// Gallery returns every public project with its tracks and cue points.
func (s *Service) Gallery(ctx context.Context) ([]*model.ProjectDetail, error) {
	projects, err := s.projects.ListPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("list public projects: %w", err)
	}
	details := make([]*model.ProjectDetail, 0, len(projects))
	for _, p := range projects {
		d, err := s.detail(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if d != nil {
			details = append(details, d)
		}
	}
	return details, nil
}

func (s *Service) Create(ctx context.Context, userID int64, name string, public bool) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	p := &model.Project{ID: s.newID(), OwnerID: userID, Name: name, Public: public}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	logger.Info("project created", logger.String("project", p.ID), logger.Int64("owner", userID))
	return p, nil
}

// Get returns the project detail if the viewer owns it or it is public.
// viewerID 0 is an anonymous viewer.
func (s *Service) Get(ctx context.Context, viewerID int64, projectID string) (*model.ProjectDetail, error) {
	d, err := s.detail(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	if !d.Public && (viewerID == 0 || d.OwnerID != viewerID) {
		return nil, ErrForbidden
	}
	return d, nil
}

// detail reads through the cache; nil, nil when the project does not exist.
func (s *Service) detail(ctx context.Context, projectID string) (*model.ProjectDetail, error) {
	if d, err := s.cache.Get(ctx, projectID); err != nil {
		logger.Warn("read project cache failed", logger.String("project", projectID), logger.ErrorField(err))
	} else if d != nil {
		return d, nil
	}

	d, err := s.projects.GetDetail(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project detail: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	if err := s.cache.Set(ctx, d); err != nil {
		logger.Warn("write project cache failed", logger.String("project", projectID), logger.ErrorField(err))
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, userID int64, projectID, name string, public bool) (*model.Project, error) {
	p, err := s.owned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	p.Name, p.Public = name, public
	if err := s.projects.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update project: %w", err)
	}
	s.changed(ctx, projectID, EventProjectUpdated, p)
	return p, nil
}

// Delete removes the project, its rows and its stored audio.
func (s *Service) Delete(ctx context.Context, userID int64, projectID string) (*model.Project, error) {
	p, err := s.owned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete project: %w", err)
	}
	if err := s.store.DeletePrefix(ctx, storage.ProjectPrefix(projectID)); err != nil {
		logger.Error("delete project audio failed", logger.String("project", projectID), logger.ErrorField(err))
	}
	s.changed(ctx, projectID, EventProjectDeleted, p)
	logger.Info("project deleted", logger.String("project", projectID))
	return p, nil
}

// AddTracks probes and stores the uploaded files concurrently. Files that are
// not MP3 or cannot be decoded are skipped. The stored tracks are returned in
// upload order.
func (s *Service) AddTracks(ctx context.Context, userID int64, projectID string, uploads []Upload) ([]model.Track, error) {
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrInvalidInput)
	}

	results := make([]*model.Track, len(uploads))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			t, err := s.storeTrack(gctx, projectID, up)
			if err != nil {
				if errors.Is(err, audio.ErrNotMP3) || errors.Is(err, errProbe) {
					logger.Warn("upload skipped",
						logger.String("project", projectID),
						logger.String("file", up.Filename),
						logger.ErrorField(err))
					return nil
				}
				return err
			}
			mu.Lock()
			results[i] = t
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	added := make([]model.Track, 0, len(uploads))
	for _, t := range results {
		if t != nil {
			added = append(added, *t)
		}
	}
	for i := range added {
		s.changed(ctx, projectID, EventTrackAdded, added[i])
	}
	if err != nil {
		return added, err
	}
	logger.Info("tracks uploaded",
		logger.String("project", projectID),
		logger.Int("accepted", len(added)),
		logger.Int("received", len(uploads)))
	return added, nil
}

func (s *Service) storeTrack(ctx context.Context, projectID string, up Upload) (*model.Track, error) {
	if !audio.IsMP3(up.Filename, up.ContentType) {
		return nil, audio.ErrNotMP3
	}
	f, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", up.Filename, err)
	}
	defer f.Close()

	info, err := s.probe(f, up.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errProbe, err)
	}

	t := &model.Track{
		ID:           s.newID(),
		ProjectID:    projectID,
		OriginalName: up.Filename,
		DisplayName:  info.Title,
		Size:         up.Size,
		Duration:     info.Duration,
	}
	t.ObjectKey = storage.TrackKey(projectID, t.ID)
	if err := s.store.Put(ctx, t.ObjectKey, f, up.Size, "audio/mpeg"); err != nil {
		return nil, fmt.Errorf("store %s: %w", up.Filename, err)
	}
	if err := s.tracks.Create(ctx, t); err != nil {
		if derr := s.store.Delete(context.Background(), t.ObjectKey); derr != nil {
			logger.Warn("cleanup stored audio failed", logger.String("key", t.ObjectKey), logger.ErrorField(derr))
		}
		return nil, fmt.Errorf("save track: %w", err)
	}
	return t, nil
}

func (s *Service) DeleteTrack(ctx context.Context, userID int64, projectID, trackID string) (*model.Track, error) {
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	t, err := s.tracks.GetByID(ctx, projectID, trackID)
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if err := s.tracks.Delete(ctx, projectID, trackID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete track: %w", err)
	}
	if err := s.store.Delete(ctx, t.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.Error("delete track audio failed", logger.String("key", t.ObjectKey), logger.ErrorField(err))
	}
	s.changed(ctx, projectID, EventTrackDeleted, t)
	return t, nil
}

// OpenAudio opens a track's stored audio. Audio URLs are unguessable ids and
// are served without authentication so plain media elements can fetch them.
func (s *Service) OpenAudio(ctx context.Context, projectID, trackID string) (storage.Object, storage.ObjectInfo, error) {
	t, err := s.tracks.GetByID(ctx, projectID, trackID)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("get track: %w", err)
	}
	if t == nil {
		return nil, storage.ObjectInfo{}, ErrNotFound
	}
	obj, info, err := s.store.Open(ctx, t.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	return obj, info, nil
}

// ListCues returns the cue points sorted by time.
func (s *Service) ListCues(ctx context.Context, viewerID int64, projectID string) ([]model.CuePoint, error) {
	d, err := s.Get(ctx, viewerID, projectID)
	if err != nil {
		return nil, err
	}
	return d.CuePoints, nil
}

func validTime(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return fmt.Errorf("%w: cue time must be a non-negative number of seconds", ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateCue(ctx context.Context, userID int64, projectID string, t float64) (*model.CuePoint, error) {
	if err := validTime(t); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	cue := &model.CuePoint{ID: s.newID(), ProjectID: projectID, Time: t}
	if err := s.cues.Create(ctx, cue); err != nil {
		return nil, fmt.Errorf("create cue: %w", err)
	}
	s.changed(ctx, projectID, EventCueCreated, cue)
	return cue, nil
}

func (s *Service) UpdateCue(ctx context.Context, userID int64, projectID, cueID string, t float64) (*model.CuePoint, error) {
	if err := validTime(t); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := s.cues.UpdateTime(ctx, projectID, cueID, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update cue: %w", err)
	}
	cue := &model.CuePoint{ID: cueID, ProjectID: projectID, Time: t}
	s.changed(ctx, projectID, EventCueUpdated, cue)
	return cue, nil
}

func (s *Service) DeleteCue(ctx context.Context, userID int64, projectID, cueID string) (*model.CuePoint, error) {
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	cue, err := s.cues.GetByID(ctx, projectID, cueID)
	if err != nil {
		return nil, fmt.Errorf("get cue: %w", err)
	}
	if cue == nil {
		return nil, ErrNotFound
	}
	if err := s.cues.Delete(ctx, projectID, cueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete cue: %w", err)
	}
	s.changed(ctx, projectID, EventCueDeleted, cue)
	return cue, nil
}
