package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"DMPlayer/core/auth"
	"DMPlayer/logger"
	"DMPlayer/model"
	"DMPlayer/repository"
)

type ctxKey int

const claimsKey ctxKey = iota

// AuthHandler 处理注册、登录和令牌校验
type AuthHandler struct {
	userRepo repository.UserRepository
	secret   []byte
	ttl      time.Duration
}

func NewAuthHandler(userRepo repository.UserRepository, secret string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, secret: []byte(secret), ttl: ttl}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	ArtistName  string `json:"artistName"`
	Description string `json:"description"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterHandler handles user registration requests
func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ArtistName = strings.TrimSpace(req.ArtistName)
	if req.Email == "" || req.Password == "" || req.ArtistName == "" {
		writeError(w, http.StatusBadRequest, "Email, password and artist name are required")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Register] 密码加密失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user := &model.User{
		Email:        req.Email,
		ArtistName:   req.ArtistName,
		Description:  req.Description,
		PasswordHash: hashed,
	}
	if err := h.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("[Register] 邮箱已存在", logger.String("email", req.Email))
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		logger.Error("[Register] 创建用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

// LoginHandler handles user login requests
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.userRepo.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		logger.Error("[Login] 查询用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Warn("[Login] 邮箱或密码错误", logger.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	logger.Info("[Login] 登录成功", logger.Int64("user", user.ID))
	h.respondWithToken(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user *model.User) {
	token, err := auth.Issue(h.secret, auth.Claims{
		UserID:     user.ID,
		Email:      user.Email,
		ArtistName: user.ArtistName,
	}, h.ttl)
	if err != nil {
		logger.Error("生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: user})
}

// StatusHandler returns the authenticated user.
func (h *AuthHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		logger.Error("查询用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "User no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "user": user})
}

// bearerToken 从 Authorization 头或 token 查询参数读取令牌
// WebSocket 和媒体元素无法设置请求头
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// AuthMiddleware rejects requests without a valid token.
func (h *AuthHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}
		claims, err := auth.Parse(h.secret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous requests through.
func (h *AuthHandler) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if claims, err := auth.Parse(h.secret, token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
			}
		}
		next.ServeHTTP(w, r)
	}
}

// UserIDFromContext returns 0 for anonymous requests.
func UserIDFromContext(ctx context.Context) int64 {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims.UserID
	}
	return 0
}
