package models

import "time"

// FeatureAccessLog is an audit row appended for each entitlement evaluation.
type FeatureAccessLog struct {
	UserID      string    `json:"user_id"`
	FeatureCode string    `json:"feature_code"`
	Granted     bool      `json:"granted"`
	AccessedAt  time.Time `json:"accessed_at"`
	Reason      *string   `json:"reason"`
}

// FeatureUsage 功能使用记录
type FeatureUsage struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	FeatureCode string    `json:"feature_code"`
	UsedAt      time.Time `json:"used_at"`
	UsageCount  int       `json:"usage_count"`
}

// Situation is a logged parenting situation.
type Situation struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	CategoryID    *int      `json:"category_id,omitempty"`
	Emotion       string    `json:"emotion,omitempty"`
	Intensity     *int      `json:"intensity,omitempty"`
	SituationDate Date      `json:"situation_date"`
	CreatedAt     time.Time `json:"created_at"`

	Category *SituationCategory `json:"situation_categories,omitempty"`
}

// SituationCategory 情境分类
type SituationCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ColorCode   string `json:"color_code,omitempty"`
	IconName    string `json:"icon_name,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// LogSituationRequest 记录情境
type LogSituationRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=5000"`
	CategoryID    *int   `json:"category_id" validate:"omitempty,min=1"`
	Emotion       string `json:"emotion" validate:"max=50"`
	Intensity     *int   `json:"intensity" validate:"omitempty,min=1,max=5"`
	SituationDate string `json:"situation_date" validate:"omitempty,calendar_date"`
}

// MoodType 心情类型
type MoodType string

const (
	MoodGreat    MoodType = "great"
	MoodGood     MoodType = "good"
	MoodPositive MoodType = "positive"
	MoodOkay     MoodType = "okay"
	MoodNeutral  MoodType = "neutral"
	MoodBad      MoodType = "bad"
	MoodNegative MoodType = "negative"
	MoodTerrible MoodType = "terrible"
)

// MoodEntry is unique per (user_id, mood_date).
type MoodEntry struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	MoodDate  Date      `json:"mood_date"`
	MoodType  MoodType  `json:"mood_type"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// LogMoodRequest 记录心情
type LogMoodRequest struct {
	Type  string `json:"type" validate:"required,oneof=great good positive okay neutral bad negative terrible"`
	Date  string `json:"date" validate:"omitempty,calendar_date"`
	Notes string `json:"notes" validate:"max=2000"`
}

// SelfCareLog 自我关怀记录
type SelfCareLog struct {
	ID              string    `json:"id,omitempty"`
	UserID          string    `json:"user_id"`
	ActivityID      int       `json:"activity_id"`
	LogDate         Date      `json:"log_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
	MoodBefore      string    `json:"mood_before,omitempty"`
	MoodAfter       string    `json:"mood_after,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	// Filled when reading back a custom activity; not stored as columns.
	IsCustomActivity       bool   `json:"is_custom_activity,omitempty"`
	CustomActivityName     string `json:"custom_activity_name,omitempty"`
	CustomActivityCategory string `json:"custom_activity_category,omitempty"`
}

// SelfCareActivity is a row of the shared self-care catalog.
type SelfCareActivity struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Description     string   `json:"description,omitempty"`
	DurationMinutes int      `json:"duration_minutes"`
	Benefits        []string `json:"benefits,omitempty"`
	ColorCode       string   `json:"color_code,omitempty"`
	IsActive        bool     `json:"is_active"`
}

// CustomActivity is a self-care activity a user defined for themselves.
type CustomActivity struct {
	ID              string    `json:"id,omitempty"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	Category        string    `json:"category"`
	ColorCode       string    `json:"color_code"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateSelfCareActivityRequest 创建自定义活动
type CreateSelfCareActivityRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Category        string `json:"category" validate:"required,max=50"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=1440"`
	Description     string `json:"description" validate:"max=500"`
	ColorCode       string `json:"color_code" validate:"omitempty,hexcolor"`
}

// SelfCareCatalog is the catalog together with the caller's own activities.
type SelfCareCatalog struct {
	Activities []SelfCareActivity `json:"activities"`
	Custom     []CustomActivity   `json:"custom_activities"`
}

// CustomActivityDetails is stored JSON-encoded in SelfCareLog.Notes for
// activities the catalog does not know about.
type CustomActivityDetails struct {
	IsCustom      bool   `json:"is_custom"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	OriginalNotes string `json:"original_notes"`
}

// LogSelfCareRequest 记录自我关怀活动
type LogSelfCareRequest struct {
	ActivityID      int    `json:"activity_id" validate:"required_without=IsCustom,min=0"`
	LogDate         string `json:"log_date" validate:"omitempty,calendar_date"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0,max=1440"`
	Notes           string `json:"notes" validate:"max=2000"`
	MoodBefore      string `json:"mood_before" validate:"max=50"`
	MoodAfter       string `json:"mood_after" validate:"max=50"`
	IsCustom        bool   `json:"is_custom"`
	Name            string `json:"name" validate:"required_if=IsCustom true,max=100"`
	Category        string `json:"category" validate:"max=50"`
}

// MoodCounts 心情归类统计
type MoodCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Period is an inclusive date range.
type Period struct {
	StartDate Date `json:"start_date"`
	EndDate   Date `json:"end_date"`
}

// WellnessSummary aggregates mood and self-care data over a period.
type WellnessSummary struct {
	Period                       Period         `json:"period"`
	TotalSelfCareMinutes         int            `json:"total_self_care_minutes"`
	SelfCareDays                 int            `json:"self_care_days"`
	TotalSelfCareActivities      int            `json:"total_self_care_activities"`
	AverageSelfCareMinutesPerDay int            `json:"average_self_care_minutes_per_day"`
	MoodCounts                   MoodCounts     `json:"mood_counts"`
	DetailedMoodCounts           map[string]int `json:"detailed_mood_counts"`
	TotalMoodEntries             int            `json:"total_mood_entries"`
	PositiveMoodPercentage       int            `json:"positive_mood_percentage"`
}
