package content

import (
	"context"
	"errors"
	"fmt"

	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
)

// GuidanceCategories 返回启用的指导分类
func (s *Service) GuidanceCategories(ctx context.Context) ([]models.GuidanceCategory, error) {
	var categories []models.GuidanceCategory
	err := s.db.FindMany(ctx, database.Query{
		Table:   guidanceCategoriesTable,
		Filters: []database.Filter{database.Eq("is_active", true)},
		Order:   []database.Order{{Column: "name"}},
	}, &categories)
	return categories, err
}

// GuidanceLibrary lists published articles, optionally for one category
// (categoryID 0 means all). limited_guidance is required; premium articles
// come back locked unless the caller has full_guidance.
func (s *Service) GuidanceLibrary(ctx context.Context, categoryID int) (models.GuidanceLibrary, error) {
	library := models.GuidanceLibrary{Resources: []models.GuidanceResource{}}
	if _, err := s.require(ctx, entitlement.FeatureLimitedGuidance); err != nil {
		return library, err
	}
	library.FullAccess = s.gate.HasFeatureAccess(ctx, entitlement.FeatureFullGuidance)

	filters := []database.Filter{database.Eq("published", true)}
	if categoryID > 0 {
		filters = append(filters, database.Eq("category_id", categoryID))
	}
	var resources []models.GuidanceResource
	err := s.db.FindMany(ctx, database.Query{
		Table:   guidanceResourcesTable,
		Filters: filters,
		Order:   []database.Order{{Column: "title"}},
		Embed:   &database.Embed{Table: guidanceCategoriesTable, ForeignKey: "category_id"},
	}, &resources)
	if err != nil {
		return library, err
	}

	for i := range resources {
		if resources[i].IsPremium && !library.FullAccess {
			resources[i].Lock()
		}
	}
	if resources != nil {
		library.Resources = resources
	}

	s.gate.TrackFeatureUsage(ctx, entitlement.FeatureLimitedGuidance)
	return library, nil
}

// GuidanceResource opens one article and records which tier it was read under.
func (s *Service) GuidanceResource(ctx context.Context, resourceID string) (*models.GuidanceResource, error) {
	id, err := s.require(ctx, entitlement.FeatureLimitedGuidance)
	if err != nil {
		return nil, err
	}

	var resource models.GuidanceResource
	err = s.db.FindOne(ctx, database.Query{
		Table:   guidanceResourcesTable,
		Filters: []database.Filter{database.Eq("id", resourceID), database.Eq("published", true)},
		Embed:   &database.Embed{Table: guidanceCategoriesTable, ForeignKey: "category_id"},
	}, &resource)
	if errors.Is(err, database.ErrNoRows) {
		return nil, fmt.Errorf("guidance %s: %w", resourceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load guidance: %w", err)
	}

	feature := entitlement.FeatureLimitedGuidance
	if resource.IsPremium {
		if !s.gate.HasFeatureAccess(ctx, entitlement.FeatureFullGuidance) {
			s.logger.Debug("premium guidance refused", "user_id", id.UserID, "resource_id", resourceID)
			return nil, fmt.Errorf("%w: %s", entitlement.ErrFeatureLocked, entitlement.FeatureFullGuidance)
		}
		feature = entitlement.FeatureFullGuidance
	}

	s.gate.TrackFeatureUsage(ctx, feature)
	return &resource, nil
}

// Recommendations returns up to five unviewed recommendations, most relevant
// first. Requires personalized_insights.
func (s *Service) Recommendations(ctx context.Context) ([]models.GuidanceRecommendation, error) {
	id, err := s.require(ctx, entitlement.FeaturePersonalizedInsights)
	if err != nil {
		return nil, err
	}

	var recs []models.GuidanceRecommendation
	err = s.db.FindMany(ctx, database.Query{
		Table:   recommendationsTable,
		Filters: []database.Filter{database.Eq("user_id", id.UserID), database.Eq("viewed", false)},
		Order:   []database.Order{{Column: "relevance_score", Desc: true}},
		Limit:   recommendationLimit,
		Embed:   &database.Embed{Table: guidanceResourcesTable, ForeignKey: "resource_id"},
	}, &recs)
	if err != nil {
		return nil, err
	}
	s.gate.TrackFeatureUsage(ctx, entitlement.FeaturePersonalizedInsights)
	return recs, nil
}
