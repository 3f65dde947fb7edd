// Package content serves the plan-gated reads: guidance articles,
// personalized recommendations, insights and weekly progress summaries.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
)

const (
	guidanceCategoriesTable = "guidance_categories"
	guidanceResourcesTable  = "guidance_resources"
	recommendationsTable    = "guidance_recommendations"
	insightsTable           = "insights"
	progressSummariesTable  = "progress_summaries"

	recommendationLimit = 5
	insightLimit        = 10
	defaultSummaryLimit = 5
	maxSummaryLimit     = 52
)

// ErrNotFound means the requested article does not exist or is unpublished.
var ErrNotFound = errors.New("resource not found")

// FeatureGate decides and records feature use.
type FeatureGate interface {
	HasFeatureAccess(ctx context.Context, featureCode string) bool
	TrackFeatureUsage(ctx context.Context, featureCode string)
}

// Service 内容服务
type Service struct {
	db       database.DatabaseInterface
	identity auth.Source
	gate     FeatureGate
	logger   *slog.Logger
}

// NewService wires the content reads to the record store and feature gate.
func NewService(db database.DatabaseInterface, identity auth.Source, gate FeatureGate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, identity: identity, gate: gate, logger: logger}
}

// require resolves the caller and checks featureCode.
func (s *Service) require(ctx context.Context, featureCode string) (auth.Identity, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return auth.Identity{}, err
	}
	if !s.gate.HasFeatureAccess(ctx, featureCode) {
		return auth.Identity{}, fmt.Errorf("%w: %s", entitlement.ErrFeatureLocked, featureCode)
	}
	return id, nil
}
