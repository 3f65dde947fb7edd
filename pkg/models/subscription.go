package models

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"
)

// PlanCode identifies a catalog plan
type PlanCode string

const (
	PlanFree    PlanCode = "free"
	PlanPremium PlanCode = "premium"
	PlanFamily  PlanCode = "family"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusExpired  SubscriptionStatus = "expired"
)

// EntitledStatuses are the statuses that make a subscription "current".
var EntitledStatuses = []SubscriptionStatus{StatusActive, StatusTrialing}

// IsEntitled reports whether the status still grants plan features.
func (s SubscriptionStatus) IsEntitled() bool {
	return slices.Contains(EntitledStatuses, s)
}

// PlanFeaturesKind tags how a plan's features column was decoded.
type PlanFeaturesKind int

const (
	PlanFeaturesMissing PlanFeaturesKind = iota
	PlanFeaturesList
	PlanFeaturesMalformed
)

// PlanFeatures is the decoded "features" column of a plan.
// The stored shape is {"features": ["code", ...]}; anything else decodes as
// Missing (null/absent) or Malformed (raw bytes kept for logging).
type PlanFeatures struct {
	Kind  PlanFeaturesKind
	Codes []string
	Raw   json.RawMessage
}

// NewPlanFeatures 构造结构正确的功能列表
func NewPlanFeatures(codes ...string) PlanFeatures {
	return PlanFeatures{Kind: PlanFeaturesList, Codes: codes}
}

// Valid reports whether the feature list can be consulted directly.
func (p PlanFeatures) Valid() bool { return p.Kind == PlanFeaturesList }

// Contains 检查功能码是否在列表中
func (p PlanFeatures) Contains(code string) bool {
	for _, c := range p.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// UnmarshalJSON never fails: unexpected shapes become PlanFeaturesMalformed.
func (p *PlanFeatures) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	*p = PlanFeatures{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	// jsonb sometimes arrives double-encoded as a string
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil {
			return p.UnmarshalJSON([]byte(inner))
		}
	}

	var shape struct {
		Features *[]string `json:"features"`
	}
	if err := json.Unmarshal(trimmed, &shape); err != nil || shape.Features == nil {
		p.Kind = PlanFeaturesMalformed
		p.Raw = append(json.RawMessage(nil), trimmed...)
		return nil
	}
	p.Kind = PlanFeaturesList
	p.Codes = *shape.Features
	return nil
}

// MarshalJSON 按原样写回
func (p PlanFeatures) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PlanFeaturesList:
		codes := p.Codes
		if codes == nil {
			codes = []string{}
		}
		return json.Marshal(map[string][]string{"features": codes})
	case PlanFeaturesMalformed:
		if len(p.Raw) > 0 {
			return p.Raw, nil
		}
	}
	return []byte("null"), nil
}

// SubscriptionPlan represents a subscription plan
type SubscriptionPlan struct {
	ID           string       `json:"id"`
	PlanCode     PlanCode     `json:"plan_code"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	PriceMonthly float64      `json:"price_monthly"`
	PriceYearly  float64      `json:"price_yearly,omitempty"`
	TrialDays    int          `json:"trial_days"`
	IsActive     bool         `json:"is_active"`
	Features     PlanFeatures `json:"features"`
	CreatedAt    time.Time    `json:"created_at"`
}

// UserSubscription represents a user's subscription
type UserSubscription struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	PlanID           string             `json:"plan_id"`
	Status           SubscriptionStatus `json:"status"`
	AutoRenew        bool               `json:"auto_renew"`
	StartDate        time.Time          `json:"start_date"`
	EndDate          *time.Time         `json:"end_date,omitempty"`
	TrialEndDate     *time.Time         `json:"trial_end_date,omitempty"`
	CancellationDate *time.Time         `json:"cancellation_date,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`

	// 关联数据（PostgREST 嵌入资源名）
	Plan *SubscriptionPlan `json:"subscription_plans,omitempty"`
}

// PendingCancellation reports an entitled subscription that will not renew.
func (s *UserSubscription) PendingCancellation() bool {
	return s.Status.IsEntitled() && !s.AutoRenew
}

// ActivateSubscriptionRequest 模拟购买请求
type ActivateSubscriptionRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}
