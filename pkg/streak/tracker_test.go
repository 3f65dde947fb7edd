package streak

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
	"mom-support-backend/pkg/models"
)

func newTestTracker(t *testing.T, now time.Time) (*Tracker, database.DatabaseInterface) {
	t.Helper()
	db, err := database.NewLocalDatabase(t.TempDir())
	require.NoError(t, err)
	src := auth.SourceFunc(func(context.Context) (auth.Identity, error) {
		return auth.Identity{UserID: "user-1"}, nil
	})
	tr := NewTracker(db, src, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return now }))
	return tr, db
}

func date(y int, m time.Month, d int) models.Date { return models.NewDate(y, m, d) }

func TestFirstActivityStartsStreak(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	rec := tr.UpdateStreak(context.Background(), models.StreakSituationTracking, date(2024, 1, 3))
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.LongestStreak)
	assert.Equal(t, date(2024, 1, 3), rec.LastActivityDate)
	assert.Equal(t, date(2024, 1, 3), rec.StreakStartDate)
	assert.Equal(t, []int{int(time.Wednesday)}, rec.ActivityDays)
}

func TestSameDayDoesNotDoubleCount(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()
	d := date(2024, 1, 2)

	tr.UpdateStreak(ctx, models.StreakSituationTracking, d.AddDays(-1))
	first := tr.UpdateStreak(ctx, models.StreakSituationTracking, d)
	second := tr.UpdateStreak(ctx, models.StreakSituationTracking, d)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, 2, first.CurrentStreak)
	assert.Equal(t, first.CurrentStreak, second.CurrentStreak)
	assert.Contains(t, second.ActivityDays, int(time.Tuesday))
	assert.Len(t, second.ActivityDays, 2)
}

func TestConsecutiveDaysIncrement(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	var rec *models.StreakRecord
	for i := 0; i < 5; i++ {
		rec = tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 2, 5).AddDays(i))
	}
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.CurrentStreak)
	assert.Equal(t, 5, rec.LongestStreak)
	assert.Equal(t, date(2024, 2, 5), rec.StreakStartDate)
}

func TestGapBreaksStreakKeepingLongest(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 1))
	tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 2))
	rec := tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 4))
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, date(2024, 1, 4), rec.StreakStartDate)
	assert.ElementsMatch(t, []int{1, 2, 4}, rec.ActivityDays)
}

func TestOutOfOrderDateResets(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	tr.UpdateStreak(ctx, models.StreakSelfCare, date(2024, 1, 10))
	tr.UpdateStreak(ctx, models.StreakSelfCare, date(2024, 1, 11))
	rec := tr.UpdateStreak(ctx, models.StreakSelfCare, date(2024, 1, 9))
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, date(2024, 1, 9), rec.LastActivityDate)
}

func TestNewWeekResetsActivityDays(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	// Wednesday and Saturday, then the following Monday
	tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 10))
	tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 13))
	rec := tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 15))
	require.NotNil(t, rec)
	assert.Equal(t, []int{int(time.Monday)}, rec.ActivityDays)
}

func TestStreaksAreIndependentPerType(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 1, 1))
	tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 1, 2))
	tr.UpdateStreak(ctx, models.StreakSelfCare, date(2024, 1, 2))

	streaks := tr.GetUserStreaks(ctx)
	require.Len(t, streaks, 2)
	assert.Equal(t, models.StreakMoodTracking, streaks[0].StreakType)
	assert.Equal(t, 2, streaks[0].CurrentStreak)
	assert.Equal(t, models.StreakSelfCare, streaks[1].StreakType)
	assert.Equal(t, 1, streaks[1].CurrentStreak)
}

func TestZeroDateMeansToday(t *testing.T) {
	now := time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC)
	tr, _ := newTestTracker(t, now)
	rec := tr.UpdateStreak(context.Background(), models.StreakSelfCare, models.Date{})
	require.NotNil(t, rec)
	assert.Equal(t, date(2024, 6, 1), rec.LastActivityDate)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	WithLocation(tokyo)(tr)
	assert.Equal(t, date(2024, 6, 2), tr.Today())
}

func TestWeekView(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	empty := tr.GetWeekStreak(ctx, models.StreakSituationTracking)
	assert.Equal(t, 0, empty.CurrentStreak)
	assert.False(t, empty.WeekComplete)
	assert.Nil(t, empty.LastActivityDate)
	require.Len(t, empty.ActiveDays, 7)
	for _, d := range empty.ActiveDays {
		assert.False(t, d.IsActive)
	}

	tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 1))
	tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 2))
	tr.UpdateStreak(ctx, models.StreakSituationTracking, date(2024, 1, 4))

	view := tr.GetWeekStreak(ctx, models.StreakSituationTracking)
	assert.Equal(t, 1, view.CurrentStreak)
	assert.Equal(t, 2, view.LongestStreak)
	require.NotNil(t, view.LastActivityDate)
	assert.Equal(t, date(2024, 1, 4), *view.LastActivityDate)

	labels := ""
	var active []int
	for i, d := range view.ActiveDays {
		assert.Equal(t, i, d.DayNumber)
		labels += d.DayLabel
		if d.IsActive {
			active = append(active, d.DayNumber)
		}
	}
	assert.Equal(t, "SMTWTFS", labels)
	assert.Equal(t, []int{1, 2, 4}, active)
	assert.False(t, view.WeekComplete)
}

func TestFullWeekIsComplete(t *testing.T) {
	rec := &models.StreakRecord{CurrentStreak: 7, LongestStreak: 7, ActivityDays: []int{0, 1, 2, 3, 4, 5, 6}}
	assert.True(t, ProjectWeek(rec).WeekComplete)
}

// brokenStore fails every call.
type brokenStore struct {
	database.DatabaseInterface
}

var errDown = errors.New("store unavailable")

func (brokenStore) FindOne(context.Context, database.Query, interface{}) error { return errDown }
func (brokenStore) Upsert(context.Context, string, database.Record, []string, interface{}) error {
	return errDown
}

func TestFailuresDegrade(t *testing.T) {
	src := auth.SourceFunc(func(context.Context) (auth.Identity, error) {
		return auth.Identity{UserID: "user-1"}, nil
	})
	tr := NewTracker(brokenStore{}, src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	assert.Nil(t, tr.UpdateStreak(ctx, models.StreakSelfCare, date(2024, 1, 1)))
	view := tr.GetWeekStreak(ctx, models.StreakSelfCare)
	assert.Equal(t, EmptyWeek(), view)

	anon := NewTracker(brokenStore{}, auth.ContextSource{}, nil)
	assert.Nil(t, anon.UpdateStreak(ctx, models.StreakSelfCare, date(2024, 1, 1)))
	assert.Empty(t, anon.GetUserStreaks(ctx))
}

func TestDecayStreaks(t *testing.T) {
	tr, db := newTestTracker(t, time.Now())
	ctx := context.Background()

	tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 3, 1))
	tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 3, 2))
	tr.UpdateStreak(ctx, models.StreakSelfCare, date(2024, 3, 4))

	n, err := tr.DecayStreaks(ctx, date(2024, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var recs []models.StreakRecord
	require.NoError(t, db.FindMany(ctx, database.Query{
		Table: streakTable,
		Order: []database.Order{{Column: "streak_type"}},
	}, &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].CurrentStreak)
	assert.Equal(t, 2, recs[0].LongestStreak)
	assert.Equal(t, 1, recs[1].CurrentStreak)

	rec := tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 3, 2))
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.CurrentStreak, "decayed streak restarts")
}

func TestBackfillAfterDecayRestarts(t *testing.T) {
	tr, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 3, 1))
	tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 3, 2))
	_, err := tr.DecayStreaks(ctx, date(2024, 3, 6))
	require.NoError(t, err)

	// backfilled entry for the day after the last recorded activity
	rec := tr.UpdateStreak(ctx, models.StreakMoodTracking, date(2024, 3, 3))
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, date(2024, 3, 3), rec.StreakStartDate)
	assert.Equal(t, date(2024, 3, 3), rec.LastActivityDate)
}

func TestAdvanceDecayedRecord(t *testing.T) {
	prev := &models.StreakRecord{
		CurrentStreak:    0,
		LongestStreak:    3,
		LastActivityDate: date(2024, 1, 10),
		StreakStartDate:  date(2024, 1, 8),
		ActivityDays:     []int{1, 2, 3},
	}

	sameDay := Advance(prev, date(2024, 1, 10))
	assert.Equal(t, 1, sameDay.CurrentStreak)
	assert.Equal(t, date(2024, 1, 10), sameDay.StreakStartDate)

	nextDay := Advance(prev, date(2024, 1, 11))
	assert.Equal(t, 1, nextDay.CurrentStreak)
	assert.Equal(t, 3, nextDay.LongestStreak)
	assert.Equal(t, date(2024, 1, 11), nextDay.StreakStartDate)
	assert.Equal(t, []int{1, 2, 3, 4}, nextDay.ActivityDays)
}
