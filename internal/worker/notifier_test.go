package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/pkg/queue"
	"github.com/nevera/nevera_server/internal/repository"
	"github.com/nevera/nevera_server/internal/testutil"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	Phone string
	Text  string
}

func (f *fakeSender) Send(_ context.Context, phone, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return false, errors.New("transport down")
	}
	f.sent = append(f.sent, sentMessage{Phone: phone, Text: text})
	return true, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type notifierFixture struct {
	notifier    *Notifier
	queue       *queue.Queue
	db          *gorm.DB
	userRepo    *repository.UserRepository
	historyRepo *repository.HistoryRepository
	sender      *fakeSender
}

func setupNotifier(t *testing.T) *notifierFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	rdb := testutil.SetupTestRedis(t)

	q := queue.NewQueue(rdb, "notify_queue_test")
	sender := &fakeSender{}
	userRepo := repository.NewUserRepository(db)
	historyRepo := repository.NewHistoryRepository(db, 50)

	n := NewNotifier(q, userRepo, historyRepo, sender, rdb, zerolog.Nop())
	return &notifierFixture{
		notifier:    n,
		queue:       q,
		db:          db,
		userRepo:    userRepo,
		historyRepo: historyRepo,
		sender:      sender,
	}
}

func (f *notifierFixture) push(t *testing.T, user *model.User, kind, text string, delay time.Duration) {
	t.Helper()
	err := f.queue.Push(context.Background(), &queue.Notification{
		UserID: user.ID,
		Phone:  user.Phone,
		Kind:   kind,
		Action: "add_product",
		Text:   text,
	}, delay)
	require.NoError(t, err)
}

func TestNotifier_DrainSendsDueUpsell(t *testing.T) {
	f := setupNotifier(t)
	ctx := context.Background()

	user := testutil.TestUser(t, f.db)
	f.push(t, user, queue.KindUpsell, "Has llegado al límite semanal 😅 Con Premium no hay límites ⭐", 0)

	handled := f.notifier.Drain(ctx, time.Now())
	assert.Equal(t, 1, handled)

	sent := f.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, user.Phone, sent[0].Phone)
	assert.Contains(t, sent[0].Text, "Premium")

	// Delivery lands in the conversation history too.
	messages, err := f.historyRepo.Recent(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.DirectionOut, messages[0].Direction)
}

func TestNotifier_NotDueStaysQueued(t *testing.T) {
	f := setupNotifier(t)
	ctx := context.Background()

	user := testutil.TestUser(t, f.db)
	f.push(t, user, queue.KindUpsell, "recordatorio", time.Hour)

	handled := f.notifier.Drain(ctx, time.Now())
	assert.Zero(t, handled)
	assert.Empty(t, f.sender.messages())

	length, err := f.queue.Length(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestNotifier_FollowUpDroppedForPremium(t *testing.T) {
	f := setupNotifier(t)
	ctx := context.Background()

	// Queued while free, upgraded before delivery.
	until := time.Now().AddDate(0, 1, 0)
	user := testutil.TestUser(t, f.db, testutil.WithPremium(until))
	f.push(t, user, queue.KindFollowUp, "¿Sigues ahí? Premium te espera", 0)

	handled := f.notifier.Drain(ctx, time.Now())
	assert.Equal(t, 1, handled)
	assert.Empty(t, f.sender.messages())
}

func TestNotifier_FollowUpOncePerDay(t *testing.T) {
	f := setupNotifier(t)
	ctx := context.Background()

	user := testutil.TestUser(t, f.db)
	f.push(t, user, queue.KindFollowUp, "primer recordatorio", 0)

	require.Equal(t, 1, f.notifier.Drain(ctx, time.Now()))
	require.Len(t, f.sender.messages(), 1)

	// A second follow-up the same day is swallowed.
	f.push(t, user, queue.KindFollowUp, "segundo recordatorio", 0)
	assert.Equal(t, 1, f.notifier.Drain(ctx, time.Now()))
	assert.Len(t, f.sender.messages(), 1)
}

func TestNotifier_SkipsDeactivatedUser(t *testing.T) {
	f := setupNotifier(t)
	ctx := context.Background()

	user := testutil.TestUser(t, f.db)
	require.NoError(t, f.userRepo.Deactivate(user.ID))
	f.push(t, user, queue.KindUpsell, "oferta", 0)

	handled := f.notifier.Drain(ctx, time.Now())
	assert.Equal(t, 1, handled)
	assert.Empty(t, f.sender.messages())
}

func TestNotifier_SendFailureDoesNotStopDrain(t *testing.T) {
	f := setupNotifier(t)
	ctx := context.Background()

	first := testutil.TestUser(t, f.db)
	second := testutil.TestUser(t, f.db)
	f.push(t, first, queue.KindUpsell, "uno", 0)
	f.push(t, second, queue.KindUpsell, "dos", 0)

	f.sender.fail = true
	handled := f.notifier.Drain(ctx, time.Now())

	// Both popped and attempted, neither counted as handled.
	assert.Zero(t, handled)
	length, err := f.queue.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}
