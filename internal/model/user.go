package model

import (
	"time"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)

type User struct {
	ID                 int64      `gorm:"primaryKey" json:"id"`
	Phone              string     `gorm:"size:20;uniqueIndex;not null" json:"phone"`
	Name               string     `gorm:"size:100" json:"name"`
	Email              *string    `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	SubscriptionLevel  string     `gorm:"size:20;default:free" json:"subscription_level"`
	PremiumExpiresAt   *time.Time `json:"premium_expires_at,omitempty"`
	Timezone           string     `gorm:"size:50;default:UTC" json:"timezone"`
	PreferredAlertHour int        `gorm:"default:9" json:"preferred_alert_hour"`
	LastActiveAt       time.Time  `json:"last_active_at"`
	IsActive           bool       `gorm:"default:true" json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsPremium reports whether the user has an unexpired premium subscription.
func (u *User) IsPremium(now time.Time) bool {
	return u.SubscriptionLevel == TierPremium &&
		u.PremiumExpiresAt != nil &&
		u.PremiumExpiresAt.After(now)
}

// Location resolves the user's timezone, falling back to UTC.
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
