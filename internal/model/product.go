package model

import (
	"math"
	"time"
)

type Product struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Category  string    `gorm:"size:50" json:"category"`
	ExpiryAt  time.Time `gorm:"not null;index" json:"expiry_at"`
	Price     float64   `gorm:"type:decimal(10,2)" json:"price"`
	Quantity  int       `gorm:"default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// DaysLeft is derived at read time, never stored: the calendar-day
// difference between the expiry date and now. Expiring later today is
// 0, tomorrow is 1, yesterday is -1, regardless of the time of day on
// either side.
func (p *Product) DaysLeft(now time.Time) int {
	expiry := startOfDay(p.ExpiryAt)
	today := startOfDay(now)
	return int(math.Round(expiry.Sub(today).Hours() / 24))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
