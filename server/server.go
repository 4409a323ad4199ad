package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DMPlayer/cache"
	"DMPlayer/config"
	"DMPlayer/core/project"
	"DMPlayer/db"
	"DMPlayer/logger"
	"DMPlayer/repository"
	"DMPlayer/storage"

	"github.com/gorilla/mux"
)

// Deps 路由依赖
type Deps struct {
	Config   *config.Config
	Users    repository.UserRepository
	Projects *project.Service
	Hub      *project.Hub
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) *mux.Router {
	authHandler := NewAuthHandler(d.Users, d.Config.JWTSecret, d.Config.TokenTTL)
	projectHandler := NewProjectHandler(d.Projects, d.Hub, d.Config.MaxUploadMB)
	requireAuth := authHandler.AuthMiddleware
	optionalAuth := authHandler.OptionalAuth

	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/register", authHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", authHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/status", requireAuth(authHandler.StatusHandler)).Methods(http.MethodGet)

	// 项目
	router.HandleFunc("/api/gallery/projects", projectHandler.GalleryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/projects", requireAuth(projectHandler.ListProjectsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects", requireAuth(projectHandler.CreateProjectHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}", optionalAuth(projectHandler.GetProjectHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}", requireAuth(projectHandler.UpdateProjectHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/projects/{id}", requireAuth(projectHandler.DeleteProjectHandler)).Methods(http.MethodDelete)

	// 音轨
	router.HandleFunc("/api/projects/{id}/tracks", requireAuth(projectHandler.UploadTracksHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/tracks/{trackId}", requireAuth(projectHandler.DeleteTrackHandler)).Methods(http.MethodDelete)

	// 提示点
	router.HandleFunc("/api/projects/{id}/cues", optionalAuth(projectHandler.ListCuesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/projects/{id}/cues", requireAuth(projectHandler.CreateCueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/projects/{id}/cues/{cueId}", requireAuth(projectHandler.UpdateCueHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/projects/{id}/cues/{cueId}", requireAuth(projectHandler.DeleteCueHandler)).Methods(http.MethodDelete)

	// 音频与事件
	router.HandleFunc("/projects/{id}/audio/{trackId}.mp3", projectHandler.AudioHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/ws/projects/{id}", optionalAuth(projectHandler.WebSocketHandler))

	// Frontend UI serving
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(d.Config.WebAppDir)))

	return router
}

// NewAudioStore 根据配置选择存储后端
func NewAudioStore(ctx context.Context, cfg *config.Config) (storage.AudioStore, error) {
	switch cfg.StorageBackend {
	case "minio":
		return storage.NewMinioStore(ctx, cfg)
	case "local", "":
		return storage.NewLocalStore(cfg.LocalAudioDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Start initializes and starts the HTTP server. It blocks until SIGINT or
// SIGTERM and then shuts down gracefully.
func Start(cfg *config.Config) error {
	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseGormDB(gdb)
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	var projectCache *cache.ProjectCache
	if cfg.RedisAddr() != "" {
		if err := db.ConnectRedis(cfg); err != nil {
			return err
		}
		defer db.CloseRedis()
		projectCache = cache.NewProjectCache(db.RedisClient, cfg.CacheTTL)
		logger.Info("Redis cache enabled", logger.String("addr", cfg.RedisAddr()))
	} else {
		projectCache = cache.NewProjectCache(nil, cfg.CacheTTL)
	}

	store, err := NewAudioStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	hub := project.NewHub()
	go hub.Run()
	defer hub.Stop()

	svc := project.NewService(
		repository.NewGormProjectRepository(gdb),
		repository.NewGormTrackRepository(gdb),
		repository.NewGormCueRepository(gdb),
		store,
		project.WithCache(projectCache),
		project.WithHub(hub),
		project.WithUploadConcurrency(cfg.UploadConcurrency),
	)

	server := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: NewRouter(Deps{
			Config:   cfg,
			Users:    repository.NewGormUserRepository(gdb),
			Projects: svc,
			Hub:      hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// 不设 WriteTimeout，音频响应可能持续很久
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.ServerAddr),
			logger.String("storage", cfg.StorageBackend),
			logger.String("db", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
