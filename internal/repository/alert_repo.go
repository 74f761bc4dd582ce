package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(entry *model.AlertLog) error {
	return r.db.Create(entry).Error
}

// ListSentToday returns the alert rows logged for a user since local
// midnight of the given day.
func (r *AlertRepository) ListSentToday(userID int64, now time.Time) ([]model.AlertLog, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var entries []model.AlertLog
	err := r.db.Where("user_id = ? AND sent_at >= ?", userID, dayStart).
		Find(&entries).Error
	return entries, err
}

// SentTodayAtOrAbove reports whether the user already received an alert
// of the same or higher urgency today.
func (r *AlertRepository) SentTodayAtOrAbove(userID int64, alertType string, now time.Time) (bool, error) {
	entries, err := r.ListSentToday(userID, now)
	if err != nil {
		return false, err
	}
	rank := model.AlertRank(alertType)
	for _, e := range entries {
		if model.AlertRank(e.AlertType) >= rank {
			return true, nil
		}
	}
	return false, nil
}

// SentToday reports whether an alert of exactly this type was already
// logged today.
func (r *AlertRepository) SentToday(userID int64, alertType string, now time.Time) (bool, error) {
	entries, err := r.ListSentToday(userID, now)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.AlertType == alertType {
			return true, nil
		}
	}
	return false, nil
}

// DeleteOlderThan prunes historic alert logs; used by the cleanup job.
func (r *AlertRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("sent_at < ?", cutoff).Delete(&model.AlertLog{})
	return res.RowsAffected, res.Error
}
