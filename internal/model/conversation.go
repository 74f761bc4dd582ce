package model

import (
	"encoding/json"
	"time"
)

// Pending actions the bot can leave open for the next inbound message.
const (
	PendingClarifyProduct  = "clarify_product"
	PendingConfirmRemoval  = "confirm_removal"
	PendingRecipeFollowUp  = "recipe_followup"
)

// ConversationContext is the short-lived multi-turn state. It lives in
// redis under a TTL, but readers must still treat an expired row as
// absent in case the key has not been purged yet.
type ConversationContext struct {
	UserID        int64           `json:"user_id"`
	Intent        string          `json:"intent"`
	PendingAction string          `json:"pending_action"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Expired reports whether the context must be ignored.
func (c *ConversationContext) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// ConversationMessage is one history entry, pruned to the most recent
// N rows per user by the history repository.
type ConversationMessage struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Direction string    `gorm:"size:3;not null" json:"direction"`
	Body      string    `gorm:"type:text" json:"body"`
	Intent    string    `gorm:"size:30" json:"intent,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}
