package model

import (
	"time"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Payment records one reconciled payment attempt. Created pending and
// moved exactly once to a terminal status; terminal rows are never
// touched again.
type Payment struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"not null;index" json:"user_id"`
	TransactionID string    `gorm:"size:100;uniqueIndex" json:"transaction_id"`
	Amount        float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Concept       string    `gorm:"size:200" json:"concept"`
	Months        int       `gorm:"not null" json:"months"`
	Status        string    `gorm:"size:20;default:pending;index" json:"status"`
	ErrorMessage  string    `gorm:"size:500" json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
