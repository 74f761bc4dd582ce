package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, "test_notify")
}

func TestQueue_PushAndPopDue(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	n := &Notification{UserID: 1, Phone: "34600111222", Kind: KindUpsell, Text: "hola"}
	require.NoError(t, q.Push(ctx, n, 0))

	got, err := q.PopDue(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.UserID)
	assert.Equal(t, KindUpsell, got.Kind)
	assert.Equal(t, "hola", got.Text)
}

func TestQueue_NotDueStaysQueued(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &Notification{UserID: 2, Kind: KindFollowUp}, time.Hour))

	got, err := q.PopDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestQueue_PopOrderedByDeliveryTime(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &Notification{UserID: 10, Kind: KindFollowUp}, 2*time.Minute))
	require.NoError(t, q.Push(ctx, &Notification{UserID: 20, Kind: KindUpsell}, time.Minute))

	later := time.Now().Add(time.Hour)

	first, err := q.PopDue(ctx, later)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(20), first.UserID)

	second, err := q.PopDue(ctx, later)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(10), second.UserID)
}

func TestQueue_PopRemovesEntry(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &Notification{UserID: 3, Kind: KindUpsell}, 0))

	later := time.Now().Add(time.Second)
	first, err := q.PopDue(ctx, later)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := q.PopDue(ctx, later)
	require.NoError(t, err)
	assert.Nil(t, second)
}
