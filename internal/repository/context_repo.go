package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nevera/nevera_server/internal/model"
)

// ContextRepository keeps the at-most-one live conversation context per
// user in redis under a TTL. The TTL purges keys eventually; Get still
// checks ExpiresAt so an unexpired key is never trusted past its
// deadline.
type ContextRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewContextRepository(client *redis.Client, ttl time.Duration) *ContextRepository {
	return &ContextRepository{client: client, ttl: ttl}
}

func contextKey(userID int64) string {
	return fmt.Sprintf("ctx:%d", userID)
}

// Set overwrites the user's context and stamps the expiry.
func (r *ContextRepository) Set(ctx context.Context, c *model.ConversationContext) error {
	c.ExpiresAt = time.Now().Add(r.ttl)
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}
	return r.client.Set(ctx, contextKey(c.UserID), data, r.ttl).Err()
}

// Get returns the live context, or nil when none exists or the stored
// one has expired (expired rows are cleared on read).
func (r *ContextRepository) Get(ctx context.Context, userID int64) (*model.ConversationContext, error) {
	data, err := r.client.Get(ctx, contextKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context: %w", err)
	}

	var c model.ConversationContext
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}

	if c.Expired(time.Now()) {
		_ = r.Clear(ctx, userID)
		return nil, nil
	}
	return &c, nil
}

func (r *ContextRepository) Clear(ctx context.Context, userID int64) error {
	return r.client.Del(ctx, contextKey(userID)).Err()
}
