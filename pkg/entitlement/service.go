// Package entitlement decides which gated features a user may use and manages
// the subscription records those decisions are based on.
package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/models"
)

const (
	plansTable         = "subscription_plans"
	subscriptionsTable = "user_subscriptions"
	accessLogTable     = "feature_access_log"
	usageTable         = "feature_usage"

	defaultAuditTimeout = 5 * time.Second
)

// Service is the entitlement resolver plus subscription lifecycle operations.
type Service struct {
	db       database.DatabaseInterface
	identity auth.Source
	users    *auth.Users
	logger   *slog.Logger
	now      func() time.Time

	auditTimeout time.Duration
	audits       sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAuditTimeout bounds each detached access-log write.
func WithAuditTimeout(d time.Duration) Option {
	return func(s *Service) { s.auditTimeout = d }
}

// NewService 创建权益服务
func NewService(db database.DatabaseInterface, identity auth.Source, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		db:           db,
		identity:     identity,
		users:        auth.NewUsers(db),
		logger:       logger,
		now:          time.Now,
		auditTimeout: defaultAuditTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flush waits for pending access-log writes.
func (s *Service) Flush() {
	s.audits.Wait()
}

// entitledStatus matches subscriptions whose status still grants plan features.
func entitledStatus() database.Filter {
	values := make([]interface{}, len(models.EntitledStatuses))
	for i, st := range models.EntitledStatuses {
		values[i] = st
	}
	return database.In("status", values...)
}

func (s *Service) currentQuery(userID string) database.Query {
	return database.Query{
		Table: subscriptionsTable,
		Filters: []database.Filter{
			database.Eq("user_id", userID),
			entitledStatus(),
		},
		Order: []database.Order{{Column: "created_at", Desc: true}},
		Embed: &database.Embed{Table: plansTable, ForeignKey: "plan_id"},
	}
}

// currentSubscription returns nil, nil when the user has no active or trialing subscription.
func (s *Service) currentSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := s.db.FindOne(ctx, s.currentQuery(userID), &sub)
	if errors.Is(err, database.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetCurrentSubscription returns the caller's most recently created active or
// trialing subscription with its plan, or nil when there is none.
func (s *Service) GetCurrentSubscription(ctx context.Context) (*models.UserSubscription, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return s.currentSubscription(ctx, id.UserID)
}

// ListPlans returns active plans by monthly price; failures degrade to an empty list.
func (s *Service) ListPlans(ctx context.Context) []models.SubscriptionPlan {
	var plans []models.SubscriptionPlan
	err := s.db.FindMany(ctx, database.Query{
		Table:   plansTable,
		Filters: []database.Filter{database.Eq("is_active", true)},
		Order:   []database.Order{{Column: "price_monthly"}},
	}, &plans)
	if err != nil {
		s.logger.Warn("failed to list subscription plans", "error", err)
		return []models.SubscriptionPlan{}
	}
	if plans == nil {
		plans = []models.SubscriptionPlan{}
	}
	return plans
}
