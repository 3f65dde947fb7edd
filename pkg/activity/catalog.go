package activity

import (
	"context"
	"fmt"
	"strings"

	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
)

// SituationCategories 返回启用的情境分类，按名称排序
func (s *Service) SituationCategories(ctx context.Context) ([]models.SituationCategory, error) {
	var categories []models.SituationCategory
	err := s.db.FindMany(ctx, database.Query{
		Table:   situationCategoriesTable,
		Filters: []database.Filter{database.Eq("is_active", true)},
		Order:   []database.Order{{Column: "name"}},
	}, &categories)
	return categories, err
}

// SelfCareCatalog returns the shared catalog plus the caller's custom
// activities. The catalog row that carries custom logs is left out.
func (s *Service) SelfCareCatalog(ctx context.Context) (models.SelfCareCatalog, error) {
	catalog := models.SelfCareCatalog{
		Activities: []models.SelfCareActivity{},
		Custom:     []models.CustomActivity{},
	}

	var activities []models.SelfCareActivity
	err := s.db.FindMany(ctx, database.Query{
		Table: selfCareCatalogTable,
		Order: []database.Order{{Column: "name"}},
	}, &activities)
	if err != nil {
		return catalog, err
	}
	for _, a := range activities {
		if a.ID != customActivityID {
			catalog.Activities = append(catalog.Activities, a)
		}
	}

	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return catalog, nil
	}
	var custom []models.CustomActivity
	err = s.db.FindMany(ctx, database.Query{
		Table:   customActivitiesTable,
		Filters: []database.Filter{database.Eq("user_id", id.UserID)},
		Order:   []database.Order{{Column: "name"}},
	}, &custom)
	if err != nil {
		return catalog, err
	}
	if custom != nil {
		catalog.Custom = custom
	}
	return catalog, nil
}

// CreateSelfCareActivity saves a user-defined activity.
func (s *Service) CreateSelfCareActivity(ctx context.Context, req models.CreateSelfCareActivityRequest) (*models.CustomActivity, error) {
	id, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create self-care activity: %w", err)
	}

	color := req.ColorCode
	if color == "" {
		color = defaultActivityColor
	}

	var activity models.CustomActivity
	err = s.db.Insert(ctx, customActivitiesTable, database.Record{
		"user_id":          id.UserID,
		"name":             strings.TrimSpace(req.Name),
		"description":      req.Description,
		"duration_minutes": req.DurationMinutes,
		"category":         req.Category,
		"color_code":       color,
	}, &activity)
	if err != nil {
		return nil, fmt.Errorf("create self-care activity: %w", err)
	}

	s.features.TrackFeatureUsage(ctx, entitlement.FeatureCreateSelfCareActivity)
	s.logger.Info("custom activity created", "user_id", id.UserID, "activity_id", activity.ID)
	return &activity, nil
}
