package models

import "time"

// GuidanceCategory 指导内容分类
type GuidanceCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IconName    string `json:"icon_name,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// GuidanceResource is a published guidance article. Premium articles need
// full_guidance; without it they are returned Locked with the body removed.
type GuidanceResource struct {
	ID          string    `json:"id"`
	CategoryID  *int      `json:"category_id,omitempty"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	ImageEmoji  string    `json:"image_emoji,omitempty"`
	ReadTime    string    `json:"read_time,omitempty"`
	IsPremium   bool      `json:"is_premium"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`

	Category *GuidanceCategory `json:"guidance_categories,omitempty"`
	Locked   bool              `json:"locked,omitempty"`
}

// Lock strips the readable parts of a premium article.
func (r *GuidanceResource) Lock() {
	r.Locked = true
	r.Content = ""
	r.Description = ""
	r.Summary = "Upgrade to Premium to read..."
}

// GuidanceLibrary is the guidance listing as seen by the caller.
type GuidanceLibrary struct {
	Resources  []GuidanceResource `json:"resources"`
	FullAccess bool               `json:"full_access"`
}

// GuidanceRecommendation 个性化推荐
type GuidanceRecommendation struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ResourceID     string    `json:"resource_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	RelevanceScore float64   `json:"relevance_score"`
	Viewed         bool      `json:"viewed"`
	CreatedAt      time.Time `json:"created_at"`

	Resource *GuidanceResource `json:"guidance_resources,omitempty"`
}

// Insight is a generated observation about the user's tracking data.
type Insight struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category,omitempty"`
	RelevanceScore float64   `json:"relevance_score"`
	Dismissed      bool      `json:"dismissed"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProgressSummary 每周进度汇总
type ProgressSummary struct {
	ID                     string    `json:"id"`
	UserID                 string    `json:"user_id"`
	WeekStartDate          Date      `json:"week_start_date"`
	SelfCareMinutes        int       `json:"self_care_minutes"`
	SelfCareDays           int       `json:"self_care_days"`
	MoodEntries            int       `json:"mood_entries"`
	PositiveMoodPercentage int       `json:"positive_mood_percentage"`
	SituationsLogged       int       `json:"situations_logged"`
	CreatedAt              time.Time `json:"created_at"`
}
