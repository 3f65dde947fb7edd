package activity

import (
	"context"
	"math"

	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/models"
)

func dateRange(column string, start, end models.Date) []database.Filter {
	var filters []database.Filter
	if !start.IsZero() {
		filters = append(filters, database.Gte(column, start))
	}
	if !end.IsZero() {
		filters = append(filters, database.Lte(column, end))
	}
	return filters
}

// Situations returns the caller's situations between start and end, newest
// first, each with its category embedded.
func (s *Service) Situations(ctx context.Context, start, end models.Date) ([]models.Situation, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var situations []models.Situation
	err = s.db.FindMany(ctx, database.Query{
		Table:   situationsTable,
		Filters: append([]database.Filter{database.Eq("user_id", id.UserID)}, dateRange("situation_date", start, end)...),
		Order:   []database.Order{{Column: "situation_date", Desc: true}},
		Embed:   &database.Embed{Table: situationCategoriesTable, ForeignKey: "category_id"},
	}, &situations)
	return situations, err
}

// MoodHistory returns the caller's mood entries between start and end
// (inclusive, either may be zero), oldest first.
func (s *Service) MoodHistory(ctx context.Context, start, end models.Date) ([]models.MoodEntry, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var entries []models.MoodEntry
	err = s.db.FindMany(ctx, database.Query{
		Table:   moodsTable,
		Filters: append([]database.Filter{database.Eq("user_id", id.UserID)}, dateRange("mood_date", start, end)...),
		Order:   []database.Order{{Column: "mood_date"}},
	}, &entries)
	return entries, err
}

// SelfCareLogs returns the caller's self-care logs between start and end,
// newest first, with custom activities expanded.
func (s *Service) SelfCareLogs(ctx context.Context, start, end models.Date) ([]models.SelfCareLog, error) {
	id, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	var logs []models.SelfCareLog
	err = s.db.FindMany(ctx, database.Query{
		Table:   selfCareTable,
		Filters: append([]database.Filter{database.Eq("user_id", id.UserID)}, dateRange("log_date", start, end)...),
		Order:   []database.Order{{Column: "log_date", Desc: true}},
	}, &logs)
	if err != nil {
		return nil, err
	}
	for i := range logs {
		expandCustom(&logs[i])
	}
	return logs, nil
}

// GetWellnessSummary aggregates moods and self-care over the period. Any
// failure yields the zeroed summary.
func (s *Service) GetWellnessSummary(ctx context.Context, start, end models.Date) models.WellnessSummary {
	summary := models.WellnessSummary{
		Period:             models.Period{StartDate: start, EndDate: end},
		DetailedMoodCounts: map[string]int{},
	}

	moods, err := s.MoodHistory(ctx, start, end)
	if err != nil {
		s.logger.Error("failed to load mood history for wellness summary", "error", err)
		return summary
	}
	logs, err := s.SelfCareLogs(ctx, start, end)
	if err != nil {
		s.logger.Error("failed to load self-care logs for wellness summary", "error", err)
		return summary
	}

	days := make(map[string]struct{})
	for _, l := range logs {
		summary.TotalSelfCareMinutes += l.DurationMinutes
		days[l.LogDate.String()] = struct{}{}
	}
	summary.SelfCareDays = len(days)
	summary.TotalSelfCareActivities = len(logs)
	if summary.SelfCareDays > 0 {
		summary.AverageSelfCareMinutesPerDay = int(math.Round(float64(summary.TotalSelfCareMinutes) / float64(summary.SelfCareDays)))
	}

	for _, m := range moods {
		summary.DetailedMoodCounts[string(m.MoodType)]++
		switch m.MoodType {
		case models.MoodGreat, models.MoodGood, models.MoodPositive:
			summary.MoodCounts.Positive++
		case models.MoodNeutral, models.MoodOkay:
			summary.MoodCounts.Neutral++
		case models.MoodNegative, models.MoodBad, models.MoodTerrible:
			summary.MoodCounts.Negative++
		}
	}
	summary.TotalMoodEntries = len(moods)
	if summary.TotalMoodEntries > 0 {
		summary.PositiveMoodPercentage = int(math.Round(float64(summary.MoodCounts.Positive) * 100 / float64(summary.TotalMoodEntries)))
	}
	return summary
}
