package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/config"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/models"
	"mom-support-backend/pkg/utils"
)

const serviceVersion = "1.0.0"

// AuthHandler 认证处理器
type AuthHandler struct {
	config    *config.Config
	db        database.DatabaseInterface
	users     *auth.Users
	jwt       *utils.JWTService
	validator *utils.Validator
	logger    *slog.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface, jwt *utils.JWTService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		config:    cfg,
		db:        db,
		users:     auth.NewUsers(db),
		jwt:       jwt,
		validator: utils.NewValidator(),
		logger:    logger,
	}
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, user *models.User) {
	id := auth.Identity{UserID: user.ID, Email: user.EmailOrEmpty(), Anonymous: user.IsAnonymous}
	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(id)
	if err != nil {
		h.logger.Error("failed to generate tokens", "user_id", user.ID, "error", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	utils.WriteJSONResponse(w, status, models.UserLoginResponse{
		User:         user.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// Anonymous 创建匿名会话，用户稍后可通过注册升级
func (h *AuthHandler) Anonymous(w http.ResponseWriter, r *http.Request) {
	userID := uuid.New().String()
	if err := h.users.EnsureUser(r.Context(), userID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("anonymous session created", "user_id", userID)
	h.issue(w, http.StatusCreated, user)
}

// Register 用户注册；匿名会话调用时原地升级该用户，保留历史记录
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	anonymousID := ""
	if id, ok := auth.FromContext(r.Context()); ok && id.Anonymous {
		anonymousID = id.UserID
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password, anonymousID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("user registered", "user_id", user.ID, "upgraded", anonymousID == user.ID)
	h.issue(w, http.StatusCreated, user)
}

// Login 用户登录
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.issue(w, http.StatusOK, user)
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired refresh token")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// Me 返回当前用户
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := auth.ContextSource{}.CurrentIdentity(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	user, err := h.users.GetByID(r.Context(), id.UserID)
	if errors.Is(err, database.ErrNoRows) {
		// 匿名用户的记录在第一次写入前不存在
		fallback := models.User{ID: id.UserID, IsAnonymous: id.Anonymous}
		utils.WriteSuccessResponse(w, fallback.Public())
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteSuccessResponse(w, user.Public())
}

// HealthCheck 健康检查
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 测试数据库连接
	dbStatus := "healthy"
	if err := h.db.HealthCheck(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     "mom-support-backend",
		"version":     serviceVersion,
		"environment": h.config.Environment,
		"database":    h.db.Kind(),
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
		"status":      "healthy",
	})
}
