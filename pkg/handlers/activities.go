package handlers

import (
	"log/slog"
	"net/http"

	"mom-support-backend/pkg/activity"
	"mom-support-backend/pkg/models"
	"mom-support-backend/pkg/utils"
)

const defaultWellnessDays = 7

// ActivityHandler 活动记录与健康概览接口
type ActivityHandler struct {
	activities *activity.Service
	today      func() models.Date
	validator  *utils.Validator
	logger     *slog.Logger
}

// NewActivityHandler 创建活动处理器；today 决定默认查询区间的结束日
func NewActivityHandler(activities *activity.Service, today func() models.Date, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activities: activities,
		today:      today,
		validator:  utils.NewValidator(),
		logger:     logger,
	}
}

// LogSituation POST /api/situations
func (h *ActivityHandler) LogSituation(w http.ResponseWriter, r *http.Request) {
	var req models.LogSituationRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	situation, err := h.activities.LogSituation(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteCreatedResponse(w, situation)
}

// LogMood POST /api/moods
func (h *ActivityHandler) LogMood(w http.ResponseWriter, r *http.Request) {
	var req models.LogMoodRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	entry, err := h.activities.LogMood(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteCreatedResponse(w, entry)
}

// LogSelfCare POST /api/self-care
func (h *ActivityHandler) LogSelfCare(w http.ResponseWriter, r *http.Request) {
	var req models.LogSelfCareRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	entry, err := h.activities.LogSelfCare(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteCreatedResponse(w, entry)
}

// period reads ?start=&end=, defaulting to the last seven days ending today.
func (h *ActivityHandler) period(w http.ResponseWriter, r *http.Request) (models.Date, models.Date, bool) {
	fields := map[string]string{}
	end, err := models.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		fields["end"] = "Must be a date in YYYY-MM-DD format"
	}
	start, err := models.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		fields["start"] = "Must be a date in YYYY-MM-DD format"
	}
	if len(fields) > 0 {
		utils.WriteValidationErrorResponse(w, "Invalid period", fields)
		return models.Date{}, models.Date{}, false
	}

	if end.IsZero() {
		end = h.today()
	}
	if start.IsZero() {
		start = end.AddDays(-(defaultWellnessDays - 1))
	}
	if start.After(end) {
		utils.WriteValidationErrorResponse(w, "Invalid period", map[string]string{"start": "Must not be after end"})
		return models.Date{}, models.Date{}, false
	}
	return start, end, true
}

// Situations GET /api/situations
func (h *ActivityHandler) Situations(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.period(w, r)
	if !ok {
		return
	}
	situations, err := h.activities.Situations(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if situations == nil {
		situations = []models.Situation{}
	}
	utils.WriteSuccessResponse(w, situations)
}

// SituationCategories GET /api/situations/categories
func (h *ActivityHandler) SituationCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.activities.SituationCategories(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if categories == nil {
		categories = []models.SituationCategory{}
	}
	utils.WriteSuccessResponse(w, categories)
}

// SelfCareCatalog GET /api/self-care/activities
func (h *ActivityHandler) SelfCareCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.activities.SelfCareCatalog(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteSuccessResponse(w, catalog)
}

// CreateSelfCareActivity POST /api/self-care/activities
func (h *ActivityHandler) CreateSelfCareActivity(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSelfCareActivityRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	activity, err := h.activities.CreateSelfCareActivity(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteCreatedResponse(w, activity)
}

// MoodHistory GET /api/moods
func (h *ActivityHandler) MoodHistory(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.period(w, r)
	if !ok {
		return
	}
	entries, err := h.activities.MoodHistory(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.MoodEntry{}
	}
	utils.WriteSuccessResponse(w, entries)
}

// SelfCareLogs GET /api/self-care
func (h *ActivityHandler) SelfCareLogs(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.period(w, r)
	if !ok {
		return
	}
	logs, err := h.activities.SelfCareLogs(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if logs == nil {
		logs = []models.SelfCareLog{}
	}
	utils.WriteSuccessResponse(w, logs)
}

// Wellness GET /api/wellness?start=&end=
func (h *ActivityHandler) Wellness(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.period(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, h.activities.GetWellnessSummary(r.Context(), start, end))
}
