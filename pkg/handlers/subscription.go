package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
	"mom-support-backend/pkg/utils"
)

// SubscriptionHandler exposes plans, the caller's subscription and feature checks.
type SubscriptionHandler struct {
	entitlements *entitlement.Service
	validator    *utils.Validator
	logger       *slog.Logger
}

// NewSubscriptionHandler 创建订阅处理器
func NewSubscriptionHandler(entitlements *entitlement.Service, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		entitlements: entitlements,
		validator:    utils.NewValidator(),
		logger:       logger,
	}
}

// ListPlans GET /api/subscription/plans
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, h.entitlements.ListPlans(r.Context()))
}

// Current GET /api/subscription
//
// Users without a subscription get data: null together with the free plan code.
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	sub, err := h.entitlements.GetCurrentSubscription(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	planCode := models.PlanFree
	if sub != nil && sub.Plan != nil {
		planCode = sub.Plan.PlanCode
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"subscription": sub,
		"plan_code":    planCode,
	})
}

// Activate POST /api/subscription/activate
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req models.ActivateSubscriptionRequest
	if err := decode(r, h.validator, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	sub, err := h.entitlements.ActivateSubscription(r.Context(), req.PlanID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteCreatedResponse(w, sub)
}

// Cancel POST /api/subscription/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sub, err := h.entitlements.CancelSubscription(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteSuccessResponse(w, sub)
}

// Reactivate POST /api/subscription/reactivate
func (h *SubscriptionHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	sub, err := h.entitlements.ReactivateSubscription(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	utils.WriteSuccessResponse(w, sub)
}

// CheckFeature GET /api/features/{code}
func (h *SubscriptionHandler) CheckFeature(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		utils.WriteBadRequestResponse(w, "feature code is required")
		return
	}
	utils.WriteSuccessResponse(w, h.entitlements.CheckFeature(r.Context(), code))
}
