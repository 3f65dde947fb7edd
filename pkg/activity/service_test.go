package activity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
	"mom-support-backend/pkg/streak"
)

type harness struct {
	db  database.DatabaseInterface
	ctx context.Context
	svc *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.NewLocalDatabase(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2024, 4, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ent := entitlement.NewService(db, auth.ContextSource{}, logger, entitlement.WithClock(clock))
	t.Cleanup(ent.Flush)
	tracker := streak.NewTracker(db, auth.ContextSource{}, logger, streak.WithClock(clock))

	return &harness{
		db:  db,
		ctx: auth.WithIdentity(context.Background(), auth.Identity{UserID: "user-1"}),
		svc: NewService(db, auth.ContextSource{}, ent, tracker, logger),
	}
}

func (h *harness) streak(t *testing.T, st models.StreakType) models.StreakRecord {
	t.Helper()
	var rec models.StreakRecord
	require.NoError(t, h.db.FindOne(h.ctx, database.Query{
		Table:   "streak_tracking",
		Filters: []database.Filter{database.Eq("user_id", "user-1"), database.Eq("streak_type", st)},
	}, &rec))
	return rec
}

func (h *harness) usage(t *testing.T) []string {
	t.Helper()
	var rows []models.FeatureUsage
	require.NoError(t, h.db.FindMany(h.ctx, database.Query{Table: "feature_usage"}, &rows))
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.FeatureCode)
	}
	return codes
}

func TestLogSituationRecordsStreakAndUsage(t *testing.T) {
	h := newHarness(t)
	intensity := 4

	situation, err := h.svc.LogSituation(h.ctx, models.LogSituationRequest{
		Title:     "  Bedtime meltdown ",
		Emotion:   "frustrated",
		Intensity: &intensity,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bedtime meltdown", situation.Title)
	assert.Equal(t, models.NewDate(2024, 4, 17), situation.SituationDate)
	require.NotNil(t, situation.Intensity)
	assert.Equal(t, 4, *situation.Intensity)

	rec := h.streak(t, models.StreakSituationTracking)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, []string{entitlement.FeatureBasicTracking}, h.usage(t))

	user, err := auth.NewUsers(h.db).GetByID(h.ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, user.IsAnonymous)
}

func TestLogMoodReplacesSameDay(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.LogMood(h.ctx, models.LogMoodRequest{Type: "bad", Date: "2024-04-15"})
	require.NoError(t, err)
	entry, err := h.svc.LogMood(h.ctx, models.LogMoodRequest{Type: "good", Date: "2024-04-15", Notes: "nap helped"})
	require.NoError(t, err)
	assert.Equal(t, models.MoodGood, entry.MoodType)

	moods, err := h.svc.MoodHistory(h.ctx, models.Date{}, models.Date{})
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Equal(t, "nap helped", moods[0].Notes)

	_, err = h.svc.LogMood(h.ctx, models.LogMoodRequest{Type: "okay", Date: "2024-04-16"})
	require.NoError(t, err)
	assert.Equal(t, 2, h.streak(t, models.StreakMoodTracking).CurrentStreak)
}

func TestLogCustomSelfCare(t *testing.T) {
	h := newHarness(t)

	entry, err := h.svc.LogSelfCare(h.ctx, models.LogSelfCareRequest{
		IsCustom:        true,
		Name:            "Garden walk",
		Category:        "outdoors",
		Notes:           "sunny",
		DurationMinutes: 25,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ActivityID)
	assert.True(t, entry.IsCustomActivity)
	assert.Equal(t, "Garden walk", entry.CustomActivityName)
	assert.Equal(t, "outdoors", entry.CustomActivityCategory)
	assert.Equal(t, "sunny", entry.Notes)

	// free tier: custom activity usage is not tracked
	assert.Empty(t, h.usage(t))
	assert.Equal(t, 1, h.streak(t, models.StreakSelfCare).CurrentStreak)

	logs, err := h.svc.SelfCareLogs(h.ctx, models.Date{}, models.Date{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].IsCustomActivity)
}

func TestInvalidDateIsRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.LogMood(h.ctx, models.LogMoodRequest{Type: "good", Date: "15/04/2024"})
	assert.Error(t, err)
}

func TestLoggingRequiresIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.LogSituation(ctx, models.LogSituationRequest{Title: "x"})
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	_, err = h.svc.LogMood(ctx, models.LogMoodRequest{Type: "good"})
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	_, err = h.svc.LogSelfCare(ctx, models.LogSelfCareRequest{ActivityID: 2})
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestWellnessSummary(t *testing.T) {
	h := newHarness(t)

	for _, req := range []models.LogSelfCareRequest{
		{ActivityID: 2, LogDate: "2024-04-10", DurationMinutes: 20},
		{ActivityID: 3, LogDate: "2024-04-10", DurationMinutes: 15},
		{ActivityID: 2, LogDate: "2024-04-11", DurationMinutes: 10},
		{ActivityID: 2, LogDate: "2024-03-01", DurationMinutes: 90},
	} {
		_, err := h.svc.LogSelfCare(h.ctx, req)
		require.NoError(t, err)
	}
	for date, mood := range map[string]string{
		"2024-04-08": "great",
		"2024-04-09": "okay",
		"2024-04-10": "terrible",
		"2024-04-11": "good",
	} {
		_, err := h.svc.LogMood(h.ctx, models.LogMoodRequest{Type: mood, Date: date})
		require.NoError(t, err)
	}

	start, end := models.NewDate(2024, 4, 1), models.NewDate(2024, 4, 30)
	summary := h.svc.GetWellnessSummary(h.ctx, start, end)
	assert.Equal(t, models.Period{StartDate: start, EndDate: end}, summary.Period)
	assert.Equal(t, 45, summary.TotalSelfCareMinutes)
	assert.Equal(t, 2, summary.SelfCareDays)
	assert.Equal(t, 3, summary.TotalSelfCareActivities)
	assert.Equal(t, 23, summary.AverageSelfCareMinutesPerDay)
	assert.Equal(t, models.MoodCounts{Positive: 2, Neutral: 1, Negative: 1}, summary.MoodCounts)
	assert.Equal(t, 1, summary.DetailedMoodCounts["terrible"])
	assert.Equal(t, 4, summary.TotalMoodEntries)
	assert.Equal(t, 50, summary.PositiveMoodPercentage)
}

type unreachableStore struct {
	database.DatabaseInterface
}

func (unreachableStore) FindMany(context.Context, database.Query, interface{}) error {
	return errors.New("timeout")
}

func TestWellnessSummaryDegrades(t *testing.T) {
	h := newHarness(t)
	svc := NewService(unreachableStore{h.db}, auth.ContextSource{}, nil, nil, nil)

	summary := svc.GetWellnessSummary(h.ctx, models.Date{}, models.Date{})
	assert.Zero(t, summary.TotalMoodEntries)
	assert.Zero(t, summary.TotalSelfCareMinutes)
	assert.NotNil(t, summary.DetailedMoodCounts)
}
