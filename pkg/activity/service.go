// Package activity logs the user-facing activities (situations, moods,
// self-care) and feeds usage tracking and streaks after each one.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
)

const (
	situationsTable          = "situations"
	situationCategoriesTable = "situation_categories"
	moodsTable               = "mood_entries"
	selfCareTable            = "self_care_logs"
	selfCareCatalogTable     = "self_care_activities"
	customActivitiesTable    = "custom_activities"

	defaultActivityColor = "#4B6D9B"

	// customActivityID is the catalog row custom self-care logs point at; the
	// real name lives in the notes JSON.
	customActivityID = 1
)

// FeatureTracker records feature usage.
type FeatureTracker interface {
	TrackFeatureUsage(ctx context.Context, featureCode string)
}

// StreakRecorder records streak activity.
type StreakRecorder interface {
	UpdateStreak(ctx context.Context, streakType models.StreakType, activityDate models.Date) *models.StreakRecord
	Today() models.Date
}

// Service 活动记录服务
type Service struct {
	db       database.DatabaseInterface
	identity auth.Source
	users    *auth.Users
	features FeatureTracker
	streaks  StreakRecorder
	logger   *slog.Logger
}

// NewService wires the activity callers to their collaborators.
func NewService(db database.DatabaseInterface, identity auth.Source, features FeatureTracker, streaks StreakRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		identity: identity,
		users:    auth.NewUsers(db),
		features: features,
		streaks:  streaks,
		logger:   logger,
	}
}

// begin resolves the caller and makes sure the users row exists before any
// dependent insert.
func (s *Service) begin(ctx context.Context) (auth.Identity, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return auth.Identity{}, err
	}
	if err := s.users.EnsureUser(ctx, id.UserID); err != nil {
		return auth.Identity{}, fmt.Errorf("failed to verify or create user record: %w", err)
	}
	return id, nil
}

func (s *Service) activityDate(raw string) (models.Date, error) {
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, err
	}
	if d.IsZero() {
		return s.streaks.Today(), nil
	}
	return d, nil
}

// after runs the best-effort follow-ups of a logged activity.
func (s *Service) after(ctx context.Context, feature string, streakType models.StreakType, day models.Date) {
	s.features.TrackFeatureUsage(ctx, feature)
	if s.streaks.UpdateStreak(ctx, streakType, day) == nil {
		s.logger.Warn("activity logged but streak not updated", "streak_type", streakType, "date", day)
	}
}

// LogSituation 记录一个育儿情境
func (s *Service) LogSituation(ctx context.Context, req models.LogSituationRequest) (*models.Situation, error) {
	id, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("log situation: %w", err)
	}
	day, err := s.activityDate(req.SituationDate)
	if err != nil {
		return nil, fmt.Errorf("log situation: %w", err)
	}

	var situation models.Situation
	err = s.db.Insert(ctx, situationsTable, database.Record{
		"user_id":        id.UserID,
		"title":          strings.TrimSpace(req.Title),
		"description":    req.Description,
		"category_id":    req.CategoryID,
		"emotion":        req.Emotion,
		"intensity":      req.Intensity,
		"situation_date": day,
	}, &situation)
	if err != nil {
		return nil, fmt.Errorf("log situation: %w", err)
	}

	s.after(ctx, entitlement.FeatureBasicTracking, models.StreakSituationTracking, day)
	return &situation, nil
}

// LogMood records the mood for a day; a second entry on the same day replaces the first.
func (s *Service) LogMood(ctx context.Context, req models.LogMoodRequest) (*models.MoodEntry, error) {
	id, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("log mood: %w", err)
	}
	day, err := s.activityDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("log mood: %w", err)
	}

	var entry models.MoodEntry
	err = s.db.Upsert(ctx, moodsTable, database.Record{
		"user_id":   id.UserID,
		"mood_date": day,
		"mood_type": req.Type,
		"notes":     req.Notes,
	}, []string{"user_id", "mood_date"}, &entry)
	if err != nil {
		return nil, fmt.Errorf("log mood: %w", err)
	}

	s.logger.Debug("mood logged", "user_id", id.UserID, "mood_date", day, "mood_type", req.Type)
	s.after(ctx, entitlement.FeatureBasicTracking, models.StreakMoodTracking, day)
	return &entry, nil
}

// LogSelfCare logs a catalog or custom self-care activity.
func (s *Service) LogSelfCare(ctx context.Context, req models.LogSelfCareRequest) (*models.SelfCareLog, error) {
	id, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("log self-care: %w", err)
	}
	day, err := s.activityDate(req.LogDate)
	if err != nil {
		return nil, fmt.Errorf("log self-care: %w", err)
	}

	activityID, notes, feature := req.ActivityID, req.Notes, entitlement.FeatureBasicTracking
	if req.IsCustom {
		details, err := json.Marshal(models.CustomActivityDetails{
			IsCustom:      true,
			Name:          strings.TrimSpace(req.Name),
			Category:      req.Category,
			OriginalNotes: req.Notes,
		})
		if err != nil {
			return nil, fmt.Errorf("log self-care: %w", err)
		}
		activityID, notes, feature = customActivityID, string(details), entitlement.FeatureLogCustomActivity
	}

	var entry models.SelfCareLog
	err = s.db.Insert(ctx, selfCareTable, database.Record{
		"user_id":          id.UserID,
		"activity_id":      activityID,
		"log_date":         day,
		"duration_minutes": req.DurationMinutes,
		"notes":            notes,
		"mood_before":      req.MoodBefore,
		"mood_after":       req.MoodAfter,
	}, &entry)
	if err != nil {
		return nil, fmt.Errorf("log self-care: %w", err)
	}
	expandCustom(&entry)

	s.after(ctx, feature, models.StreakSelfCare, day)
	return &entry, nil
}

// expandCustom unpacks custom activity details stored in Notes.
func expandCustom(entry *models.SelfCareLog) {
	if !strings.HasPrefix(strings.TrimSpace(entry.Notes), "{") {
		return
	}
	var details models.CustomActivityDetails
	if err := json.Unmarshal([]byte(entry.Notes), &details); err != nil || !details.IsCustom {
		return
	}
	entry.IsCustomActivity = true
	entry.CustomActivityName = details.Name
	entry.CustomActivityCategory = details.Category
	entry.Notes = details.OriginalNotes
}
