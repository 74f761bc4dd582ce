package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Notification kinds consumed by the worker.
const (
	KindUpsell   = "upsell"
	KindFollowUp = "followup"
)

// Notification is one deferred outbound message.
type Notification struct {
	UserID    int64  `json:"user_id"`
	Phone     string `json:"phone"`
	Kind      string `json:"kind"`
	Action    string `json:"action"`
	Text      string `json:"text"`
	DeliverAt int64  `json:"deliver_at"` // unix seconds
}

// Queue is a redis sorted set scored by delivery time, so a single
// structure serves both the short upsell delay and the 24-hour
// follow-up reminder.
type Queue struct {
	client    *redis.Client
	queueName string
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push schedules a notification after the given delay.
func (q *Queue) Push(ctx context.Context, n *Notification, delay time.Duration) error {
	n.DeliverAt = time.Now().Add(delay).Unix()
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	return q.client.ZAdd(ctx, q.queueName, &redis.Z{
		Score:  float64(n.DeliverAt),
		Member: data,
	}).Err()
}

// PopDue removes and returns the oldest notification whose delivery
// time has passed, or nil when nothing is due.
func (q *Queue) PopDue(ctx context.Context, now time.Time) (*Notification, error) {
	items, err := q.client.ZRangeByScore(ctx, q.queueName, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	// Last-writer-wins is acceptable here: a removed member seen by two
	// workers results in one successful ZRem, the loser retries.
	removed, err := q.client.ZRem(ctx, q.queueName, items[0]).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to remove from queue: %w", err)
	}
	if removed == 0 {
		return nil, nil
	}

	var n Notification
	if err := json.Unmarshal([]byte(items[0]), &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &n, nil
}

// Length returns the number of pending notifications.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueName).Result()
}
