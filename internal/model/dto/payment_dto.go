package dto

// PaymentNotification is the semantic event extracted from the payment
// platform's webhook body.
type PaymentNotification struct {
	PhoneNumber   string  `json:"phoneNumber" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	Concept       string  `json:"concept" binding:"required"`
	Reference     string  `json:"reference"`
	Timestamp     string  `json:"timestamp"`
	TransactionID string  `json:"transactionId" binding:"required"`
}
