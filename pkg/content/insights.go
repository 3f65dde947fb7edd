package content

import (
	"context"

	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
)

// Insights returns up to ten undismissed insights, most relevant first.
// Requires personalized_insights.
func (s *Service) Insights(ctx context.Context) ([]models.Insight, error) {
	id, err := s.require(ctx, entitlement.FeaturePersonalizedInsights)
	if err != nil {
		return nil, err
	}

	var insights []models.Insight
	err = s.db.FindMany(ctx, database.Query{
		Table:   insightsTable,
		Filters: []database.Filter{database.Eq("user_id", id.UserID), database.Eq("dismissed", false)},
		Order:   []database.Order{{Column: "relevance_score", Desc: true}},
		Limit:   insightLimit,
	}, &insights)
	if err != nil {
		return nil, err
	}
	s.gate.TrackFeatureUsage(ctx, entitlement.FeaturePersonalizedInsights)
	return insights, nil
}

// ProgressSummaries returns the caller's latest weekly summaries, newest
// first. limit <= 0 means the default of five.
func (s *Service) ProgressSummaries(ctx context.Context, limit int) ([]models.ProgressSummary, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultSummaryLimit
	case limit > maxSummaryLimit:
		limit = maxSummaryLimit
	}

	var summaries []models.ProgressSummary
	err = s.db.FindMany(ctx, database.Query{
		Table:   progressSummariesTable,
		Filters: []database.Filter{database.Eq("user_id", id.UserID)},
		Order:   []database.Order{{Column: "week_start_date", Desc: true}},
		Limit:   limit,
	}, &summaries)
	return summaries, err
}
