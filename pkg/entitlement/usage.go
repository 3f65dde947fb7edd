package entitlement

import (
	"context"

	"mom-support-backend/pkg/database"
)

// TrackFeatureUsage appends a usage row when the current user may use the
// feature. It never fails the caller.
func (s *Service) TrackFeatureUsage(ctx context.Context, featureCode string) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return
	}

	if !IsFreeFeature(featureCode) && !s.HasFeatureAccess(ctx, featureCode) {
		s.logger.Debug("feature usage not tracked, access denied", "user_id", id.UserID, "feature", featureCode)
		return
	}

	err = s.db.Insert(ctx, usageTable, database.Record{
		"user_id":      id.UserID,
		"feature_code": featureCode,
		"used_at":      s.now().UTC(),
		"usage_count":  1,
	}, nil)
	if err != nil {
		s.logger.Warn("failed to track feature usage", "user_id", id.UserID, "feature", featureCode, "error", err)
	}
}
