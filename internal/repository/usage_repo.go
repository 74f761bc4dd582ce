package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// GetOrCreate returns the usage row for a user, creating an implicit
// zero record on first access. Reset timestamps start at "now" so a
// fresh row never looks like an elapsed window.
func (r *UsageRepository) GetOrCreate(userID int64) (*model.UsageRecord, error) {
	var rec model.UsageRecord
	now := time.Now()
	err := r.db.Where(model.UsageRecord{UserID: userID}).
		Attrs(model.UsageRecord{
			LastDailyReset:   now,
			LastWeeklyReset:  now,
			LastMonthlyReset: now,
		}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *UsageRepository) IncrementDailyMessages(userID int64) error {
	return r.db.Model(&model.UsageRecord{}).Where("user_id = ?", userID).
		Update("daily_messages", gorm.Expr("daily_messages + 1")).Error
}

func (r *UsageRepository) IncrementWeeklyProducts(userID int64) error {
	return r.db.Model(&model.UsageRecord{}).Where("user_id = ?", userID).
		Update("weekly_products", gorm.Expr("weekly_products + 1")).Error
}

func (r *UsageRepository) IncrementMonthlyAICalls(userID int64) error {
	return r.db.Model(&model.UsageRecord{}).Where("user_id = ?", userID).
		Update("monthly_ai_calls", gorm.Expr("monthly_ai_calls + 1")).Error
}

func (r *UsageRepository) ResetDaily(userID int64, resetAt time.Time) error {
	return r.db.Model(&model.UsageRecord{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"daily_messages":   0,
			"last_daily_reset": resetAt,
		}).Error
}

func (r *UsageRepository) ResetWeekly(userID int64, resetAt time.Time) error {
	return r.db.Model(&model.UsageRecord{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"weekly_products":   0,
			"last_weekly_reset": resetAt,
		}).Error
}

func (r *UsageRepository) ResetMonthly(userID int64, resetAt time.Time) error {
	return r.db.Model(&model.UsageRecord{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"monthly_ai_calls":   0,
			"last_monthly_reset": resetAt,
		}).Error
}

// ResetAll zeroes every window, used after a premium activation.
func (r *UsageRepository) ResetAll(userID int64, resetAt time.Time) error {
	return r.db.Model(&model.UsageRecord{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"daily_messages":     0,
			"last_daily_reset":   resetAt,
			"weekly_products":    0,
			"last_weekly_reset":  resetAt,
			"monthly_ai_calls":   0,
			"last_monthly_reset": resetAt,
		}).Error
}

// CountMessagesSince counts inbound history rows, used by the weekly
// report to pick sufficiently active users.
func (r *UsageRepository) CountMessagesSince(userID int64, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.ConversationMessage{}).
		Where("user_id = ? AND direction = ? AND created_at >= ?",
			userID, model.DirectionIn, since).
		Count(&count).Error
	return count, err
}
