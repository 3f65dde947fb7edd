package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/config"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/utils"
)

const (
	signatureHeader    = "Billing-Signature"
	signatureTolerance = 5 * time.Minute
)

// BillingEvent is a signed notification from the billing provider.
type BillingEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       struct {
		SubscriptionID string `json:"subscription_id"`
		CustomData     struct {
			UserID string `json:"user_id"`
			PlanID string `json:"plan_id"`
		} `json:"custom_data"`
	} `json:"data"`
}

// WebhookHandler 处理计费平台回调，把事件落到订阅状态上
type WebhookHandler struct {
	config       *config.Config
	users        *auth.Users
	entitlements *entitlement.Service
	logger       *slog.Logger
	now          func() time.Time
}

// NewWebhookHandler 创建新的webhook处理器
func NewWebhookHandler(cfg *config.Config, db database.DatabaseInterface, entitlements *entitlement.Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		config:       cfg,
		users:        auth.NewUsers(db),
		entitlements: entitlements,
		logger:       logger,
		now:          time.Now,
	}
}

// HandleBillingWebhook POST /api/webhooks/billing
func (h *WebhookHandler) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	if h.config.BillingWebhookSecret == "" {
		utils.WriteNotFoundResponse(w, "Billing webhooks are not enabled")
		return
	}

	// 读取请求体
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Failed to read request body")
		return
	}

	// 验证webhook签名
	if !h.verifySignature(r.Header.Get(signatureHeader), body) {
		h.logger.Warn("rejected billing webhook", "reason", "invalid signature")
		utils.WriteUnauthorizedResponse(w, "Invalid webhook signature")
		return
	}

	var event BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid webhook payload")
		return
	}

	logger := h.logger.With("event_id", event.EventID, "event_type", event.EventType)

	var handle func(ctx context.Context) error
	switch event.EventType {
	case "subscription.activated", "subscription.created":
		handle = func(ctx context.Context) error {
			if event.Data.CustomData.PlanID == "" {
				return &utils.ValidationError{Fields: map[string]string{"plan_id": "This field is required"}}
			}
			_, err := h.entitlements.ActivateSubscription(ctx, event.Data.CustomData.PlanID)
			return err
		}
	case "subscription.canceled":
		handle = func(ctx context.Context) error {
			_, err := h.entitlements.CancelSubscription(ctx)
			return err
		}
	case "subscription.resumed":
		handle = func(ctx context.Context) error {
			_, err := h.entitlements.ReactivateSubscription(ctx)
			return err
		}
	default:
		logger.Info("ignoring billing event")
		utils.WriteSuccessResponse(w, map[string]string{"status": "ignored"})
		return
	}

	ctx, err := h.actAs(r.Context(), event.Data.CustomData.UserID)
	if err != nil {
		logger.Warn("billing event for unknown user", "user_id", event.Data.CustomData.UserID, "error", err)
		utils.WriteBadRequestResponse(w, err.Error())
		return
	}

	if err := handle(ctx); err != nil {
		// 重复投递的取消事件会找不到订阅，视为已处理
		if errors.Is(err, entitlement.ErrNotFound) && event.EventType == "subscription.canceled" {
			logger.Info("billing cancel already applied")
			utils.WriteSuccessResponse(w, map[string]string{"status": "processed"})
			return
		}
		logger.Error("failed to process billing event", "error", err)
		writeServiceError(w, h.logger, err)
		return
	}

	logger.Info("billing event processed", "user_id", event.Data.CustomData.UserID)
	utils.WriteSuccessResponse(w, map[string]string{"status": "processed"})
}

// actAs puts the event's user on the context so the services see them as
// the current user.
func (h *WebhookHandler) actAs(ctx context.Context, userID string) (context.Context, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("missing user_id in custom_data")
	}
	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return auth.WithIdentity(ctx, auth.Identity{
		UserID:    user.ID,
		Email:     user.EmailOrEmpty(),
		Anonymous: user.IsAnonymous,
	}), nil
}

// verifySignature checks "ts=<unix>;h1=<hex hmac-sha256 of ts:body>".
func (h *WebhookHandler) verifySignature(header string, body []byte) bool {
	if header == "" {
		return false
	}

	var ts, h1 string
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "ts=") {
			ts = strings.TrimPrefix(part, "ts=")
		} else if strings.HasPrefix(part, "h1=") {
			h1 = strings.TrimPrefix(part, "h1=")
		}
	}
	if ts == "" || h1 == "" {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if age := h.now().Sub(time.Unix(unix, 0)); age > signatureTolerance || age < -signatureTolerance {
		return false
	}

	return hmac.Equal([]byte(h1), []byte(SignBillingPayload(h.config.BillingWebhookSecret, ts, body)))
}

// SignBillingPayload computes the h1 value for a payload.
func SignBillingPayload(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
