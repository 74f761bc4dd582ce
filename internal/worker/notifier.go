package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/pkg/queue"
	"github.com/nevera/nevera_server/internal/pkg/whatsapp"
	"github.com/nevera/nevera_server/internal/repository"
)

// Notifier drains the deferred-notification queue: quota upsells and
// their 24-hour follow-ups. It drops follow-ups that no longer apply.
type Notifier struct {
	queue       *queue.Queue
	userRepo    *repository.UserRepository
	historyRepo *repository.HistoryRepository
	sender      whatsapp.Sender
	redisClient *redis.Client
	log         zerolog.Logger
}

func NewNotifier(
	q *queue.Queue,
	userRepo *repository.UserRepository,
	historyRepo *repository.HistoryRepository,
	sender whatsapp.Sender,
	redisClient *redis.Client,
	log zerolog.Logger,
) *Notifier {
	return &Notifier{
		queue:       q,
		userRepo:    userRepo,
		historyRepo: historyRepo,
		sender:      sender,
		redisClient: redisClient,
		log:         log,
	}
}

// Run polls until the context is cancelled, draining everything due on
// each tick.
func (n *Notifier) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n.log.Info().Dur("interval", interval).Msg("notifier started")
	for {
		select {
		case <-ctx.Done():
			n.log.Info().Msg("notifier stopped")
			return
		case <-ticker.C:
			n.Drain(ctx, time.Now())
		}
	}
}

// Drain processes every notification due at the given time and returns
// how many were handled. Individual failures are logged, not fatal.
func (n *Notifier) Drain(ctx context.Context, now time.Time) int {
	handled := 0
	for {
		item, err := n.queue.PopDue(ctx, now)
		if err != nil {
			n.log.Error().Err(err).Msg("queue pop failed")
			return handled
		}
		if item == nil {
			return handled
		}
		if err := n.handle(ctx, item); err != nil {
			n.log.Error().Err(err).Int64("user_id", item.UserID).Str("kind", item.Kind).Msg("notification failed")
			continue
		}
		handled++
	}
}

func (n *Notifier) handle(ctx context.Context, item *queue.Notification) error {
	user, err := n.userRepo.GetByID(item.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	if item.Kind == queue.KindFollowUp {
		ok, err := n.shouldFollowUp(ctx, user)
		if err != nil {
			return err
		}
		if !ok {
			n.log.Debug().Int64("user_id", user.ID).Msg("follow-up dropped")
			return nil
		}
	}

	if _, err := n.sender.Send(ctx, item.Phone, item.Text); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	err = n.historyRepo.Append(&model.ConversationMessage{
		UserID:    user.ID,
		Direction: model.DirectionOut,
		Body:      item.Text,
	})
	if err != nil {
		n.log.Warn().Err(err).Int64("user_id", user.ID).Msg("history write failed")
	}
	return nil
}

// shouldFollowUp suppresses the reminder once the user has upgraded,
// and caps follow-ups to one per user per day across actions.
func (n *Notifier) shouldFollowUp(ctx context.Context, user *model.User) (bool, error) {
	if user.IsPremium(time.Now()) {
		return false, nil
	}
	marker := fmt.Sprintf("followup:%d:%s", user.ID, time.Now().Format("2006-01-02"))
	first, err := n.redisClient.SetNX(ctx, marker, 1, 24*time.Hour).Result()
	if err != nil {
		return false, fmt.Errorf("follow-up marker: %w", err)
	}
	return first, nil
}
