package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mom-support-backend/pkg/content"
	"mom-support-backend/pkg/models"
	"mom-support-backend/pkg/utils"
)

// ContentHandler 指导内容与洞察接口
type ContentHandler struct {
	content *content.Service
	logger  *slog.Logger
}

// NewContentHandler 创建内容处理器
func NewContentHandler(svc *content.Service, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{content: svc, logger: logger}
}

// GuidanceCategories GET /api/guidance/categories
func (h *ContentHandler) GuidanceCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.content.GuidanceCategories(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if categories == nil {
		categories = []models.GuidanceCategory{}
	}
	utils.WriteSuccessResponse(w, categories)
}

// GuidanceLibrary GET /api/guidance?category=
func (h *ContentHandler) GuidanceLibrary(w http.ResponseWriter, r *http.Request) {
	categoryID := 0
	if raw := utils.GetQueryParam(r, "category", "all"); raw != "all" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			utils.WriteValidationErrorResponse(w, "Invalid category", map[string]string{"category": "Must be a category id or all"})
			return
		}
		categoryID = id
	}

	library, err := h.content.GuidanceLibrary(r.Context(), categoryID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteSuccessResponse(w, library)
}

// GuidanceResource GET /api/guidance/{id}
func (h *ContentHandler) GuidanceResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ids are uuids in postgres; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		utils.WriteNotFoundResponse(w, "guidance "+id+": resource not found")
		return
	}
	resource, err := h.content.GuidanceResource(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteSuccessResponse(w, resource)
}

// Recommendations GET /api/guidance/recommendations
func (h *ContentHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.content.Recommendations(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if recs == nil {
		recs = []models.GuidanceRecommendation{}
	}
	utils.WriteSuccessResponse(w, recs)
}

// Insights GET /api/insights
func (h *ContentHandler) Insights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.content.Insights(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if insights == nil {
		insights = []models.Insight{}
	}
	utils.WriteSuccessResponse(w, insights)
}

// ProgressSummaries GET /api/progress/summaries?limit=
func (h *ContentHandler) ProgressSummaries(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(utils.GetQueryParam(r, "limit", "0"))
	if err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid limit", map[string]string{"limit": "Must be a number"})
		return
	}
	summaries, err := h.content.ProgressSummaries(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if summaries == nil {
		summaries = []models.ProgressSummary{}
	}
	utils.WriteSuccessResponse(w, summaries)
}
