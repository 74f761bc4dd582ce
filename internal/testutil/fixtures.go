package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
)

// TestUser creates a free-tier user with a unique phone.
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Phone:              fmt.Sprintf("34600%06d", time.Now().UnixNano()%1000000),
		Name:               "Test User",
		SubscriptionLevel:  model.TierFree,
		Timezone:           "UTC",
		PreferredAlertHour: 9,
		LastActiveAt:       time.Now(),
		IsActive:           true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithPhone sets the phone number.
func WithPhone(phone string) func(*model.User) {
	return func(u *model.User) {
		u.Phone = phone
	}
}

// WithPremium makes the user premium until the given time.
func WithPremium(until time.Time) func(*model.User) {
	return func(u *model.User) {
		u.SubscriptionLevel = model.TierPremium
		u.PremiumExpiresAt = &until
	}
}

// WithTimezone sets the user's timezone.
func WithTimezone(tz string) func(*model.User) {
	return func(u *model.User) {
		u.Timezone = tz
	}
}

// WithLastActive sets when the user last wrote to the bot.
func WithLastActive(at time.Time) func(*model.User) {
	return func(u *model.User) {
		u.LastActiveAt = at
	}
}

// WithAlertHour sets the preferred alert hour.
func WithAlertHour(hour int) func(*model.User) {
	return func(u *model.User) {
		u.PreferredAlertHour = hour
	}
}

// TestUsage creates the user's usage row with the given counters, all
// windows last reset now.
func TestUsage(t *testing.T, db *gorm.DB, userID int64, daily, weekly, monthly int) *model.UsageRecord {
	t.Helper()

	now := time.Now()
	rec := &model.UsageRecord{
		UserID:           userID,
		DailyMessages:    daily,
		LastDailyReset:   now,
		WeeklyProducts:   weekly,
		LastWeeklyReset:  now,
		MonthlyAICalls:   monthly,
		LastMonthlyReset: now,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to create test usage record: %v", err)
	}
	return rec
}

// TestProduct creates a product expiring in the given number of days.
func TestProduct(t *testing.T, db *gorm.DB, userID int64, name string, daysLeft int, opts ...func(*model.Product)) *model.Product {
	t.Helper()

	product := &model.Product{
		UserID:   userID,
		Name:     name,
		ExpiryAt: time.Now().AddDate(0, 0, daysLeft),
		Quantity: 1,
	}

	for _, opt := range opts {
		opt(product)
	}

	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}

	return product
}

// WithPrice sets the product price.
func WithPrice(price float64) func(*model.Product) {
	return func(p *model.Product) {
		p.Price = price
	}
}

// WithExpiry sets an exact expiry time.
func WithExpiry(at time.Time) func(*model.Product) {
	return func(p *model.Product) {
		p.ExpiryAt = at
	}
}

// TestMessage creates one history row.
func TestMessage(t *testing.T, db *gorm.DB, userID int64, direction, body string) *model.ConversationMessage {
	t.Helper()

	msg := &model.ConversationMessage{
		UserID:    userID,
		Direction: direction,
		Body:      body,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("Failed to create test message: %v", err)
	}
	return msg
}
