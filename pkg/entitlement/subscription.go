package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/models"
)

// subscriptionTerm is how far ahead end_date is set on activation; billing
// periods are not modeled.
const subscriptionTerm = 10

// ActivateSubscription subscribes the current user to planID. A plan with
// trial days starts trialing; otherwise the subscription is active at once.
// Any other active or trialing subscription of the user is canceled afterwards.
func (s *Service) ActivateSubscription(ctx context.Context, planID string) (*models.UserSubscription, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if id.Anonymous {
		return nil, ErrAnonymousUser
	}

	if err := s.users.EnsureUser(ctx, id.UserID); err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	var plan models.SubscriptionPlan
	err = s.db.FindOne(ctx, database.Query{
		Table: plansTable,
		Filters: []database.Filter{
			database.Eq("id", planID),
			database.Eq("is_active", true),
		},
	}, &plan)
	if errors.Is(err, database.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	now := s.now().UTC()
	status := models.StatusActive
	var trialEnd *time.Time
	if plan.TrialDays > 0 {
		status = models.StatusTrialing
		t := now.AddDate(0, 0, plan.TrialDays)
		trialEnd = &t
	}

	var sub models.UserSubscription
	err = s.db.Upsert(ctx, subscriptionsTable, database.Record{
		"user_id":           id.UserID,
		"plan_id":           plan.ID,
		"status":            status,
		"start_date":        now,
		"end_date":          now.AddDate(subscriptionTerm, 0, 0),
		"trial_end_date":    trialEnd,
		"auto_renew":        true,
		"cancellation_date": nil,
		"updated_at":        now,
	}, []string{"user_id", "plan_id"}, &sub)
	if err != nil {
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	// Not atomic with the upsert: a failure here can leave two current
	// subscriptions, which resolves to the newest one.
	canceled, err := s.db.UpdateWhere(ctx, subscriptionsTable, []database.Filter{
		database.Eq("user_id", id.UserID),
		database.Neq("id", sub.ID),
		entitledStatus(),
	}, database.Record{
		"status":     models.StatusCanceled,
		"auto_renew": false,
		"updated_at": now,
	})
	if err != nil {
		s.logger.Warn("failed to cancel previous subscriptions",
			"user_id", id.UserID, "subscription_id", sub.ID, "error", err)
	}

	sub.Plan = &plan
	s.logger.Info("subscription activated",
		"user_id", id.UserID, "plan_code", plan.PlanCode, "status", sub.Status, "replaced", canceled)
	return &sub, nil
}

// CancelSubscription turns off auto-renew on the current subscription. Status
// is unchanged so access continues until end_date.
func (s *Service) CancelSubscription(ctx context.Context) (*models.UserSubscription, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.currentSubscription(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	if current == nil {
		return nil, ErrNotFound
	}

	now := s.now().UTC()
	var updated models.UserSubscription
	err = s.db.Update(ctx, subscriptionsTable, current.ID, database.Record{
		"auto_renew":        false,
		"cancellation_date": now,
		"updated_at":        now,
	}, &updated)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	updated.Plan = current.Plan

	s.logger.Info("subscription canceled", "user_id", id.UserID, "subscription_id", current.ID)
	return &updated, nil
}

// ReactivateSubscription re-enables auto-renew on a pending cancellation that
// has not reached its end date.
func (s *Service) ReactivateSubscription(ctx context.Context) (*models.UserSubscription, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var pending models.UserSubscription
	err = s.db.FindOne(ctx, database.Query{
		Table: subscriptionsTable,
		Filters: []database.Filter{
			database.Eq("user_id", id.UserID),
			entitledStatus(),
			database.Eq("auto_renew", false),
			database.Gt("end_date", now),
		},
		Order: []database.Order{{Column: "end_date", Desc: true}},
		Embed: &database.Embed{Table: plansTable, ForeignKey: "plan_id"},
	}, &pending)
	if errors.Is(err, database.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reactivate subscription: %w", err)
	}

	var updated models.UserSubscription
	err = s.db.Update(ctx, subscriptionsTable, pending.ID, database.Record{
		"auto_renew":        true,
		"cancellation_date": nil,
		"updated_at":        now,
	}, &updated)
	if err != nil {
		return nil, fmt.Errorf("reactivate subscription: %w", err)
	}
	updated.Plan = pending.Plan

	s.logger.Info("subscription reactivated", "user_id", id.UserID, "subscription_id", pending.ID)
	return &updated, nil
}

// SweepResult counts rows changed by ExpireSubscriptions.
type SweepResult struct {
	Expired         int
	TrialsConverted int
}

// ExpireSubscriptions marks canceled subscriptions past their end date as
// expired and moves auto-renewing trials past trial_end_date to active.
func (s *Service) ExpireSubscriptions(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now().UTC()

	expired, err := s.db.UpdateWhere(ctx, subscriptionsTable, []database.Filter{
		entitledStatus(),
		database.Eq("auto_renew", false),
		database.Lte("end_date", now),
	}, database.Record{
		"status":     models.StatusExpired,
		"updated_at": now,
	})
	if err != nil {
		return res, fmt.Errorf("expire subscriptions: %w", err)
	}
	res.Expired = expired

	converted, err := s.db.UpdateWhere(ctx, subscriptionsTable, []database.Filter{
		database.Eq("status", models.StatusTrialing),
		database.Eq("auto_renew", true),
		database.Lte("trial_end_date", now),
	}, database.Record{
		"status":     models.StatusActive,
		"updated_at": now,
	})
	if err != nil {
		return res, fmt.Errorf("convert ended trials: %w", err)
	}
	res.TrialsConverted = converted
	return res, nil
}
