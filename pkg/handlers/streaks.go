package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mom-support-backend/pkg/models"
	"mom-support-backend/pkg/streak"
	"mom-support-backend/pkg/utils"
)

// StreakHandler 连续打卡接口
type StreakHandler struct {
	tracker   *streak.Tracker
	validator *utils.Validator
	logger    *slog.Logger
}

// NewStreakHandler 创建连续打卡处理器
func NewStreakHandler(tracker *streak.Tracker, logger *slog.Logger) *StreakHandler {
	return &StreakHandler{tracker: tracker, validator: utils.NewValidator(), logger: logger}
}

type streakParams struct {
	StreakType string `json:"streak_type" validate:"required,max=50,lowercase,excludesall= /"`
}

func (h *StreakHandler) streakType(w http.ResponseWriter, r *http.Request) (models.StreakType, bool) {
	p := streakParams{StreakType: chi.URLParam(r, "type")}
	if err := h.validator.Validate(&p); err != nil {
		writeServiceError(w, h.logger, err)
		return "", false
	}
	return models.StreakType(p.StreakType), true
}

// List GET /api/streaks
func (h *StreakHandler) List(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, h.tracker.GetUserStreaks(r.Context()))
}

// Week GET /api/streaks/{type}/week
func (h *StreakHandler) Week(w http.ResponseWriter, r *http.Request) {
	streakType, ok := h.streakType(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, h.tracker.GetWeekStreak(r.Context(), streakType))
}

// Record POST /api/streaks/{type}
func (h *StreakHandler) Record(w http.ResponseWriter, r *http.Request) {
	streakType, ok := h.streakType(w, r)
	if !ok {
		return
	}

	var req models.UpdateStreakRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	day, err := models.ParseDate(req.ActivityDate)
	if err != nil {
		utils.WriteBadRequestResponse(w, err.Error())
		return
	}

	rec := h.tracker.UpdateStreak(r.Context(), streakType, day)
	if rec == nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update streak")
		return
	}
	utils.WriteSuccessResponse(w, rec)
}
