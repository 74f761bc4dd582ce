package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
)

type HistoryRepository struct {
	db    *gorm.DB
	limit int
}

func NewHistoryRepository(db *gorm.DB, limit int) *HistoryRepository {
	return &HistoryRepository{db: db, limit: limit}
}

// Append stores one history row and prunes the user's history beyond
// the configured limit.
func (r *HistoryRepository) Append(msg *model.ConversationMessage) error {
	if err := r.db.Create(msg).Error; err != nil {
		return err
	}
	return r.prune(msg.UserID)
}

func (r *HistoryRepository) prune(userID int64) error {
	var ids []int64
	err := r.db.Model(&model.ConversationMessage{}).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(r.limit).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) < r.limit {
		return nil
	}

	return r.db.Where("user_id = ? AND id < ?", userID, ids[len(ids)-1]).
		Delete(&model.ConversationMessage{}).Error
}

// Recent returns the newest n rows, oldest first, for prompt context.
func (r *HistoryRepository) Recent(userID int64, n int) ([]model.ConversationMessage, error) {
	var msgs []model.ConversationMessage
	err := r.db.Where("user_id = ?", userID).
		Order("id DESC").
		Limit(n).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *HistoryRepository) CountByUser(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.ConversationMessage{}).
		Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// DeleteOlderThan removes history rows before the cutoff; used by the
// offline cleanup job.
func (r *HistoryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&model.ConversationMessage{})
	return res.RowsAffected, res.Error
}
