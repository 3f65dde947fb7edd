package entitlement

import "mom-support-backend/pkg/models"

// Feature codes gated by plan.
const (
	FeatureBasicTracking        = "basic_tracking"
	FeatureLimitedGuidance      = "limited_guidance"
	FeatureUnlimitedTracking    = "unlimited_tracking"
	FeatureFullGuidance         = "full_guidance"
	FeaturePersonalizedInsights = "personalized_insights"
	FeatureMultipleProfiles     = "multiple_profiles"
	FeatureLogCustomActivity    = "log_custom_activity"

	FeatureCreateSelfCareActivity = "create_self_care_activity"
)

var (
	freeFeatures    = []string{FeatureBasicTracking, FeatureLimitedGuidance}
	premiumFeatures = append(append([]string{}, freeFeatures...),
		FeatureUnlimitedTracking, FeatureFullGuidance, FeaturePersonalizedInsights)
	familyFeatures = append(append([]string{}, premiumFeatures...), FeatureMultipleProfiles)

	// planFeatures is the one static plan -> features table. It backs both the
	// malformed-plan fallback and the implicit free tier.
	planFeatures = map[models.PlanCode][]string{
		models.PlanFree:    freeFeatures,
		models.PlanPremium: premiumFeatures,
		models.PlanFamily:  familyFeatures,
	}
)

// FeaturesForPlan returns the static feature set for a plan code; unknown codes get none.
func FeaturesForPlan(code models.PlanCode) []string {
	features := planFeatures[code]
	out := make([]string, len(features))
	copy(out, features)
	return out
}

// PlanIncludes 静态表中该计划是否包含功能
func PlanIncludes(code models.PlanCode, feature string) bool {
	for _, f := range planFeatures[code] {
		if f == feature {
			return true
		}
	}
	return false
}

// IsFreeFeature reports whether every identified user gets the feature.
func IsFreeFeature(feature string) bool {
	return PlanIncludes(models.PlanFree, feature)
}
