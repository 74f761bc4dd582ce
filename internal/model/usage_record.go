package model

import (
	"time"
)

// UsageRecord keeps the per-user rolling counters. One row per user,
// created lazily on first quota check. Counters only move through the
// quota service.
type UsageRecord struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	UserID           int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	DailyMessages    int       `gorm:"default:0" json:"daily_messages"`
	LastDailyReset   time.Time `json:"last_daily_reset"`
	WeeklyProducts   int       `gorm:"default:0" json:"weekly_products"`
	LastWeeklyReset  time.Time `json:"last_weekly_reset"`
	MonthlyAICalls   int       `gorm:"default:0" json:"monthly_ai_calls"`
	LastMonthlyReset time.Time `json:"last_monthly_reset"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
