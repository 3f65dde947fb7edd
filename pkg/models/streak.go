package models

import "time"

// StreakType 活动类型
type StreakType string

const (
	StreakSituationTracking StreakType = "situation_tracking"
	StreakMoodTracking      StreakType = "mood_tracking"
	StreakSelfCare          StreakType = "self_care"
)

// StreakRecord is one row of streak_tracking, unique per (user_id, streak_type).
type StreakRecord struct {
	ID               string     `json:"id,omitempty"`
	UserID           string     `json:"user_id"`
	StreakType       StreakType `json:"streak_type"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate Date       `json:"last_activity_date"`
	StreakStartDate  Date       `json:"streak_start_date"`
	// Weekday indices (Sunday=0) seen during the week of LastActivityDate.
	ActivityDays []int     `json:"activity_days"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasActivityOn 检查某个星期几是否有活动
func (r *StreakRecord) HasActivityOn(day time.Weekday) bool {
	for _, d := range r.ActivityDays {
		if d == int(day) {
			return true
		}
	}
	return false
}

// DayActivity is one cell of the week view.
type DayActivity struct {
	DayNumber int    `json:"day_number"`
	DayLabel  string `json:"day_label"`
	IsActive  bool   `json:"is_active"`
}

// WeekStreakView 本周连续打卡视图（周日为索引0）
type WeekStreakView struct {
	CurrentStreak    int           `json:"current_streak"`
	LongestStreak    int           `json:"longest_streak"`
	ActiveDays       []DayActivity `json:"active_days"`
	WeekComplete     bool          `json:"week_complete"`
	LastActivityDate *Date         `json:"last_activity_date"`
}

// UpdateStreakRequest 记录一次活动
type UpdateStreakRequest struct {
	ActivityDate string `json:"activity_date" validate:"omitempty,calendar_date"`
}
