package model

import (
	"time"
)

// Alert types, ordered by urgency. AlertRank gives the ordering used by
// the same-day idempotency check.
const (
	AlertCritical     = "critical"
	AlertUrgent       = "urgent"
	AlertDaily        = "daily"
	AlertWeeklyReport = "weekly_report"
	AlertMotivational = "motivational"
)

var alertRank = map[string]int{
	AlertCritical:     3,
	AlertUrgent:       2,
	AlertDaily:        1,
	AlertWeeklyReport: 0,
	AlertMotivational: 0,
}

// AlertRank returns the urgency rank of an alert type; unknown types
// rank lowest.
func AlertRank(alertType string) int {
	return alertRank[alertType]
}

// AlertLog is append-only: one row per dispatched alert, used for
// same-day deduplication and metrics.
type AlertLog struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	AlertType    string    `gorm:"size:20;not null" json:"alert_type"`
	ProductCount int       `json:"product_count"`
	SentAt       time.Time `gorm:"not null;index" json:"sent_at"`
}

func (AlertLog) TableName() string {
	return "alert_logs"
}
