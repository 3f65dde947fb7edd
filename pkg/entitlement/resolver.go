package entitlement

import (
	"context"
	"fmt"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/models"
)

const (
	reasonNotAuthenticated = "user not authenticated"
	reasonStoreFailure     = "failed to check subscription status"
	reasonNoSubscription   = "no active or trialing subscription"
	reasonAnonymous        = "anonymous users are limited to the free tier"
)

// Decision is the outcome of one feature check.
type Decision struct {
	FeatureCode string          `json:"feature_code"`
	Granted     bool            `json:"granted"`
	Reason      string          `json:"reason,omitempty"`
	PlanCode    models.PlanCode `json:"plan_code,omitempty"`
}

// HasFeatureAccess reports whether the current user may use featureCode. It
// never fails: missing identity and store errors deny.
func (s *Service) HasFeatureAccess(ctx context.Context, featureCode string) bool {
	return s.CheckFeature(ctx, featureCode).Granted
}

// CheckFeature is HasFeatureAccess with the reason attached.
func (s *Service) CheckFeature(ctx context.Context, featureCode string) Decision {
	id, err := s.identity.CurrentIdentity(ctx)
	authenticated := err == nil

	// basic_tracking only requires being a user; not audited
	if featureCode == FeatureBasicTracking || !authenticated {
		d := Decision{FeatureCode: featureCode, Granted: authenticated && featureCode == FeatureBasicTracking}
		if !authenticated {
			d.Reason = reasonNotAuthenticated
		}
		return d
	}

	d := s.decide(ctx, id, featureCode)
	s.recordAccess(ctx, id.UserID, d)

	s.logger.Debug("feature access checked",
		"user_id", id.UserID, "feature", featureCode, "granted", d.Granted, "reason", d.Reason)
	return d
}

func (s *Service) decide(ctx context.Context, id auth.Identity, featureCode string) Decision {
	d := Decision{FeatureCode: featureCode}

	if id.Anonymous {
		d.PlanCode = models.PlanFree
		d.Granted = IsFreeFeature(featureCode)
		if !d.Granted {
			d.Reason = reasonAnonymous
		}
		return d
	}

	sub, err := s.currentSubscription(ctx, id.UserID)
	if err != nil {
		s.logger.Error("failed to read subscription for feature check",
			"user_id", id.UserID, "feature", featureCode, "error", err)
		d.Reason = reasonStoreFailure
		return d
	}

	// registered but never subscribed: implicit free tier
	if sub == nil || sub.Plan == nil {
		d.PlanCode = models.PlanFree
		d.Granted = IsFreeFeature(featureCode)
		if !d.Granted {
			d.Reason = reasonNoSubscription
		}
		return d
	}

	plan := sub.Plan
	d.PlanCode = plan.PlanCode
	if plan.Features.Valid() {
		d.Granted = plan.Features.Contains(featureCode)
	} else {
		s.logger.Warn("unexpected plan features format, using static plan table",
			"plan_code", plan.PlanCode, "plan_id", plan.ID, "raw", string(plan.Features.Raw))
		d.Granted = PlanIncludes(plan.PlanCode, featureCode)
	}
	if !d.Granted {
		d.Reason = fmt.Sprintf("feature not included in current plan (%s - %s)", plan.PlanCode, sub.Status)
	}
	return d
}

// recordAccess appends to the audit log without blocking the caller.
func (s *Service) recordAccess(ctx context.Context, userID string, d Decision) {
	var reason *string
	if !d.Granted && d.Reason != "" {
		r := d.Reason
		reason = &r
	}
	entry := database.Record{
		"user_id":      userID,
		"feature_code": d.FeatureCode,
		"granted":      d.Granted,
		"accessed_at":  s.now().UTC(),
		"reason":       reason,
	}

	s.audits.Add(1)
	go func() {
		defer s.audits.Done()
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
		defer cancel()
		if err := s.db.Insert(auditCtx, accessLogTable, entry, nil); err != nil {
			s.logger.Warn("failed to log feature access check", "user_id", userID, "feature", d.FeatureCode, "error", err)
		}
	}()
}
