// Package streak keeps per-user, per-activity consecutive-day counters and
// the weekly activity view built from them.
package streak

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/models"
)

const streakTable = "streak_tracking"

// Tracker records activity dates against streak_tracking rows.
//
// UpdateStreak is a read-modify-write without locking: two concurrent calls
// for the same user and type can lose one update.
type Tracker struct {
	db       database.DatabaseInterface
	identity auth.Source
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithLocation sets the zone used to turn "now" into today's date.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker 创建连续打卡追踪器
func NewTracker(db database.DatabaseInterface, identity auth.Source, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		db:       db,
		identity: identity,
		logger:   logger,
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Today is the current calendar date in the tracker's zone.
func (t *Tracker) Today() models.Date {
	return models.DateOf(t.now().In(t.loc))
}

func (t *Tracker) find(ctx context.Context, userID string, streakType models.StreakType) (*models.StreakRecord, error) {
	var rec models.StreakRecord
	err := t.db.FindOne(ctx, database.Query{
		Table: streakTable,
		Filters: []database.Filter{
			database.Eq("user_id", userID),
			database.Eq("streak_type", streakType),
		},
	}, &rec)
	if errors.Is(err, database.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateStreak records activity of streakType on activityDate (today when
// zero) for the current user. It returns the saved record, or nil on any
// failure; callers treat streak recording as best-effort.
func (t *Tracker) UpdateStreak(ctx context.Context, streakType models.StreakType, activityDate models.Date) *models.StreakRecord {
	id, err := t.identity.CurrentIdentity(ctx)
	if err != nil {
		t.logger.Warn("streak not updated, no user", "streak_type", streakType, "error", err)
		return nil
	}
	if activityDate.IsZero() {
		activityDate = t.Today()
	}

	prev, err := t.find(ctx, id.UserID, streakType)
	if err != nil {
		t.logger.Error("failed to load streak", "user_id", id.UserID, "streak_type", streakType, "error", err)
		return nil
	}

	next := Advance(prev, activityDate)
	if prev == nil {
		t.logger.Debug("starting new streak", "user_id", id.UserID, "streak_type", streakType)
	} else if next.StreakStartDate.Equal(activityDate) && !prev.StreakStartDate.Equal(activityDate) {
		t.logger.Debug("streak broken, resetting", "user_id", id.UserID, "streak_type", streakType,
			"last_activity_date", prev.LastActivityDate, "activity_date", activityDate)
	}

	var saved models.StreakRecord
	err = t.db.Upsert(ctx, streakTable, database.Record{
		"user_id":            id.UserID,
		"streak_type":        streakType,
		"current_streak":     next.CurrentStreak,
		"longest_streak":     next.LongestStreak,
		"last_activity_date": next.LastActivityDate,
		"streak_start_date":  next.StreakStartDate,
		"activity_days":      next.ActivityDays,
		"updated_at":         t.now().UTC(),
	}, []string{"user_id", "streak_type"}, &saved)
	if err != nil {
		t.logger.Error("failed to save streak", "user_id", id.UserID, "streak_type", streakType, "error", err)
		return nil
	}

	t.logger.Info("streak updated", "user_id", id.UserID, "streak_type", streakType, "current_streak", saved.CurrentStreak)
	return &saved
}

// GetWeekStreak returns the week view for streakType; absent records and
// failures give the empty view.
func (t *Tracker) GetWeekStreak(ctx context.Context, streakType models.StreakType) models.WeekStreakView {
	id, err := t.identity.CurrentIdentity(ctx)
	if err != nil {
		return EmptyWeek()
	}
	rec, err := t.find(ctx, id.UserID, streakType)
	if err != nil {
		t.logger.Error("failed to load week streak", "user_id", id.UserID, "streak_type", streakType, "error", err)
		return EmptyWeek()
	}
	return ProjectWeek(rec)
}

// GetUserStreaks lists the current user's records ordered by type.
func (t *Tracker) GetUserStreaks(ctx context.Context) []models.StreakRecord {
	id, err := t.identity.CurrentIdentity(ctx)
	if err != nil {
		return []models.StreakRecord{}
	}
	var recs []models.StreakRecord
	err = t.db.FindMany(ctx, database.Query{
		Table:   streakTable,
		Filters: []database.Filter{database.Eq("user_id", id.UserID)},
		Order:   []database.Order{{Column: "streak_type"}},
	}, &recs)
	if err != nil {
		t.logger.Error("failed to list streaks", "user_id", id.UserID, "error", err)
		return []models.StreakRecord{}
	}
	if recs == nil {
		recs = []models.StreakRecord{}
	}
	return recs
}

// DecayStreaks zeroes current_streak for every record whose last activity is
// older than yesterday relative to today. Longest streaks are kept.
func (t *Tracker) DecayStreaks(ctx context.Context, today models.Date) (int, error) {
	if today.IsZero() {
		today = t.Today()
	}
	return t.db.UpdateWhere(ctx, streakTable, []database.Filter{
		database.Gt("current_streak", 0),
		database.Lt("last_activity_date", today.AddDays(-1)),
	}, database.Record{
		"current_streak": 0,
		"updated_at":     t.now().UTC(),
	})
}
