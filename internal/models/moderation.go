package models

import "time"

// RiskTier is the classification produced by the risk engine.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Rank maps a tier to its sort weight: high 3, medium 2, low 1.
func (t RiskTier) Rank() int {
	switch t {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	default:
		return 1
	}
}

// FlagRecord marks a post for review.
type FlagRecord struct {
	Timestamp time.Time `json:"timestamp"`
	FlaggedBy string    `json:"flaggedBy"`
	Reason    string    `json:"reason"`
}

// AuthorStats aggregates one author's posts in the current feed.
type AuthorStats struct {
	PostCount      int       `json:"postCount"`
	ShortPostCount int       `json:"shortPostCount"`
	TotalPayout    float64   `json:"totalPayout"`
	LastPost       time.Time `json:"lastPost"`
}

// Settings is the persisted moderation configuration.
type Settings struct {
	AutoFlagSpam         bool    `json:"autoFlagSpam"`
	AutoFlagPlagiarism   bool    `json:"autoFlagPlagiarism"`
	NotifyHighPayout     bool    `json:"notifyHighPayout"`
	PayoutAlertThreshold float64 `json:"payoutAlertThreshold"`
	Theme                string  `json:"theme"`
	PostsPerPage         int     `json:"postsPerPage"`
}

// DefaultSettings returns the settings used when nothing has been saved.
func DefaultSettings() Settings {
	return Settings{
		AutoFlagSpam:         true,
		AutoFlagPlagiarism:   true,
		NotifyHighPayout:     true,
		PayoutAlertThreshold: 100,
		Theme:                "light",
		PostsPerPage:         25,
	}
}

// Validate rejects settings the pipeline cannot honor.
func (s Settings) Validate() error {
	if s.PostsPerPage < 1 || s.PostsPerPage > 200 {
		return NewValidationError("postsPerPage must be between 1 and 200")
	}
	if s.PayoutAlertThreshold < 0 {
		return NewValidationError("payoutAlertThreshold must not be negative")
	}
	switch s.Theme {
	case "light", "dark":
	default:
		return NewValidationError("theme must be light or dark")
	}
	return nil
}

// Session identifies the moderator operating the dashboard.
type Session struct {
	Username string    `json:"username"`
	Since    time.Time `json:"since"`
}

// Notification is a user-facing message queued for display.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)
