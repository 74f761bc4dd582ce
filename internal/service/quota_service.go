package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/model/dto"
	"github.com/nevera/nevera_server/internal/pkg/queue"
	"github.com/nevera/nevera_server/internal/pkg/window"
	"github.com/nevera/nevera_server/internal/repository"
)

var ErrUnknownAction = errors.New("unknown quota action")

// Action kinds subject to quota enforcement.
const (
	ActionDailyMessage  = "daily_message"
	ActionAddProduct    = "add_product"
	ActionRemoveProduct = "remove_product"
	ActionAIQuery       = "ai_query"
	ActionRecipe        = "recipe_request"
)

// UnlimitedRemaining is the sentinel returned for premium users.
const UnlimitedRemaining = -1

// QuotaResult is the outcome of one CheckAndConsume call.
type QuotaResult struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

type QuotaService struct {
	usageRepo   *repository.UsageRepository
	userRepo    *repository.UserRepository
	redisClient *redis.Client
	notifyQueue *queue.Queue
	cfg         *config.Config
	log         zerolog.Logger
}

func NewQuotaService(
	usageRepo *repository.UsageRepository,
	userRepo *repository.UserRepository,
	redisClient *redis.Client,
	notifyQueue *queue.Queue,
	cfg *config.Config,
	log zerolog.Logger,
) *QuotaService {
	return &QuotaService{
		usageRepo:   usageRepo,
		userRepo:    userRepo,
		redisClient: redisClient,
		notifyQueue: notifyQueue,
		cfg:         cfg,
		log:         log,
	}
}

// CheckAndConsume enforces the tier limit for one action. Free users
// under the limit get the counter incremented; at the limit they are
// denied and an upsell notification is scheduled at most once per day.
// Premium users are always allowed but still recorded for analytics.
func (s *QuotaService) CheckAndConsume(ctx context.Context, user *model.User, action string) (*QuotaResult, error) {
	kind, limit, err := s.actionWindow(action)
	if err != nil {
		return nil, err
	}

	rec, err := s.usageRepo.GetOrCreate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("load usage record: %w", err)
	}

	now := time.Now()
	loc := user.Location()
	if rec, err = s.lazyReset(rec, now, loc); err != nil {
		return nil, err
	}

	if user.IsPremium(now) {
		if err := s.increment(user.ID, kind); err != nil {
			return nil, err
		}
		return &QuotaResult{Allowed: true, Remaining: UnlimitedRemaining, Limit: limit}, nil
	}

	used := s.counter(rec, kind)
	if used < limit {
		if err := s.increment(user.ID, kind); err != nil {
			return nil, err
		}
		return &QuotaResult{
			Allowed:   true,
			Remaining: limit - used - 1,
			Limit:     limit,
			ResetAt:   window.NextReset(now, kind, loc),
		}, nil
	}

	resetAt := window.NextReset(now, kind, loc)
	s.scheduleUpsell(ctx, user, action, resetAt)
	return &QuotaResult{Allowed: false, Remaining: 0, Limit: limit, ResetAt: resetAt}, nil
}

// QuotaInfo returns the read-only snapshot for the web API, applying
// the same lazy resets as an enforcement call.
func (s *QuotaService) QuotaInfo(ctx context.Context, user *model.User) (*dto.QuotaInfo, error) {
	rec, err := s.usageRepo.GetOrCreate(user.ID)
	if err != nil {
		return nil, err
	}
	if rec, err = s.lazyReset(rec, time.Now(), user.Location()); err != nil {
		return nil, err
	}

	info := &dto.QuotaInfo{
		Tier:           user.SubscriptionLevel,
		DailyMessages:  rec.DailyMessages,
		DailyLimit:     s.cfg.Quota.DailyMessages,
		WeeklyProducts: rec.WeeklyProducts,
		WeeklyLimit:    s.cfg.Quota.WeeklyProducts,
		MonthlyAICalls: rec.MonthlyAICalls,
		MonthlyLimit:   s.cfg.Quota.MonthlyAICalls,
	}
	if user.PremiumExpiresAt != nil {
		info.PremiumExpiresAt = user.PremiumExpiresAt.Format("2006-01-02")
	}
	return info, nil
}

// ResetAll zeroes every window for a user; the payment reconciler calls
// this on premium activation.
func (s *QuotaService) ResetAll(userID int64) error {
	if _, err := s.usageRepo.GetOrCreate(userID); err != nil {
		return err
	}
	return s.usageRepo.ResetAll(userID, time.Now())
}

func (s *QuotaService) actionWindow(action string) (window.Kind, int, error) {
	switch action {
	case ActionDailyMessage:
		return window.Daily, s.cfg.Quota.DailyMessages, nil
	case ActionAddProduct, ActionRemoveProduct:
		return window.Weekly, s.cfg.Quota.WeeklyProducts, nil
	case ActionAIQuery, ActionRecipe:
		return window.Monthly, s.cfg.Quota.MonthlyAICalls, nil
	default:
		return "", 0, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
}

func (s *QuotaService) counter(rec *model.UsageRecord, kind window.Kind) int {
	switch kind {
	case window.Weekly:
		return rec.WeeklyProducts
	case window.Monthly:
		return rec.MonthlyAICalls
	default:
		return rec.DailyMessages
	}
}

func (s *QuotaService) increment(userID int64, kind window.Kind) error {
	switch kind {
	case window.Weekly:
		return s.usageRepo.IncrementWeeklyProducts(userID)
	case window.Monthly:
		return s.usageRepo.IncrementMonthlyAICalls(userID)
	default:
		return s.usageRepo.IncrementDailyMessages(userID)
	}
}

// lazyReset zeroes every window whose boundary has passed since its
// last reset. Repeated calls within the same window are no-ops because
// the reset stamp moves to "now".
func (s *QuotaService) lazyReset(rec *model.UsageRecord, now time.Time, loc *time.Location) (*model.UsageRecord, error) {
	changed := false

	if window.Elapsed(rec.LastDailyReset, now, window.Daily, loc) {
		if err := s.usageRepo.ResetDaily(rec.UserID, now); err != nil {
			return nil, err
		}
		rec.DailyMessages = 0
		rec.LastDailyReset = now
		changed = true
	}
	if window.Elapsed(rec.LastWeeklyReset, now, window.Weekly, loc) {
		if err := s.usageRepo.ResetWeekly(rec.UserID, now); err != nil {
			return nil, err
		}
		rec.WeeklyProducts = 0
		rec.LastWeeklyReset = now
		changed = true
	}
	if window.Elapsed(rec.LastMonthlyReset, now, window.Monthly, loc) {
		if err := s.usageRepo.ResetMonthly(rec.UserID, now); err != nil {
			return nil, err
		}
		rec.MonthlyAICalls = 0
		rec.LastMonthlyReset = now
		changed = true
	}

	if changed {
		s.log.Debug().Int64("user_id", rec.UserID).Msg("usage windows reset")
	}
	return rec, nil
}

// scheduleUpsell enqueues the denial notice plus one follow-up, at most
// once per user/action/day. The SetNX marker makes repeated denials in
// the same day silent.
func (s *QuotaService) scheduleUpsell(ctx context.Context, user *model.User, action string, resetAt time.Time) {
	marker := fmt.Sprintf("upsell:%d:%s:%s", user.ID, action, time.Now().Format("2006-01-02"))
	first, err := s.redisClient.SetNX(ctx, marker, 1, 24*time.Hour).Result()
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("upsell marker failed")
		return
	}
	if !first {
		return
	}

	upsellDelay := time.Duration(s.cfg.Quota.UpsellDelaySecs) * time.Second
	err = s.notifyQueue.Push(ctx, &queue.Notification{
		UserID: user.ID,
		Phone:  user.Phone,
		Kind:   queue.KindUpsell,
		Action: action,
		Text:   UpsellMessage(action, resetAt),
	}, upsellDelay)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to enqueue upsell")
		return
	}

	followUpDelay := time.Duration(s.cfg.Quota.FollowUpHours) * time.Hour
	err = s.notifyQueue.Push(ctx, &queue.Notification{
		UserID: user.ID,
		Phone:  user.Phone,
		Kind:   queue.KindFollowUp,
		Action: action,
		Text:   FollowUpMessage(),
	}, followUpDelay)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to enqueue follow-up")
	}
}
