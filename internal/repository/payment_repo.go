package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(payment *model.Payment) error {
	return r.db.Create(payment).Error
}

func (r *PaymentRepository) GetByTransactionID(txID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.Where("transaction_id = ?", txID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkCompleted moves a pending row to its terminal success state.
func (r *PaymentRepository) MarkCompleted(id int64) error {
	return r.db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentPending).
		Updates(map[string]interface{}{
			"status":     model.PaymentCompleted,
			"updated_at": time.Now(),
		}).Error
}

// MarkFailed moves a pending row to its terminal failure state with the
// captured error.
func (r *PaymentRepository) MarkFailed(id int64, errMsg string) error {
	return r.db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentPending).
		Updates(map[string]interface{}{
			"status":        model.PaymentFailed,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		}).Error
}

func (r *PaymentRepository) ListByUser(userID int64) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}
