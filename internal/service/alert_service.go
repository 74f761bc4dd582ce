package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/model/dto"
	"github.com/nevera/nevera_server/internal/pkg/ai"
	"github.com/nevera/nevera_server/internal/pkg/whatsapp"
	"github.com/nevera/nevera_server/internal/repository"
)

// AlertService runs the scheduled outbound campaigns. Every run walks
// its candidate users one by one: a failure for one user never aborts
// the sweep, it only counts against the summary.
type AlertService struct {
	userRepo    *repository.UserRepository
	productRepo *repository.ProductRepository
	alertRepo   *repository.AlertRepository
	historyRepo *repository.HistoryRepository
	usageRepo   *repository.UsageRepository
	sender      whatsapp.Sender
	generator   ai.TextGenerator
	cfg         *config.Config
	log         zerolog.Logger

	// sleep is swapped out in tests to avoid real pacing delays.
	sleep func(time.Duration)
}

func NewAlertService(
	userRepo *repository.UserRepository,
	productRepo *repository.ProductRepository,
	alertRepo *repository.AlertRepository,
	historyRepo *repository.HistoryRepository,
	usageRepo *repository.UsageRepository,
	sender whatsapp.Sender,
	generator ai.TextGenerator,
	cfg *config.Config,
	log zerolog.Logger,
) *AlertService {
	return &AlertService{
		userRepo:    userRepo,
		productRepo: productRepo,
		alertRepo:   alertRepo,
		historyRepo: historyRepo,
		usageRepo:   usageRepo,
		sender:      sender,
		generator:   generator,
		cfg:         cfg,
		log:         log,
		sleep:       time.Sleep,
	}
}

// ClassifyUrgency buckets a user's inventory into one alert tier. The
// thresholds are deliberately the single source of truth: every
// campaign calls this rather than re-deriving its own cutoffs.
func ClassifyUrgency(products []model.Product, now time.Time) string {
	if len(products) == 0 {
		return ""
	}

	var dueToday, dueTomorrow, dueInTwo int
	for _, p := range products {
		switch d := p.DaysLeft(now); {
		case d == 0:
			dueToday++
			dueInTwo++
		case d == 1:
			dueTomorrow++
			dueInTwo++
		case d == 2:
			dueInTwo++
		}
	}

	switch {
	case dueToday > 0:
		return model.AlertCritical
	case dueTomorrow > 2 || dueInTwo > 3:
		return model.AlertUrgent
	default:
		return model.AlertDaily
	}
}

// RunDailyDigest dispatches the daily alert to every recently active
// user whose preferred hour matches. Pass hour < 0 to match against
// each user's local clock instead, which is how the hourly scheduler
// invokes it.
func (s *AlertService) RunDailyDigest(ctx context.Context, hour int) dto.RunSummary {
	start := time.Now()
	summary := dto.RunSummary{}

	cutoff := start.AddDate(0, 0, -s.cfg.Alerts.ActiveWindowDays)
	users, err := s.userRepo.ListActiveSince(cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("daily digest: user listing failed")
		summary.DurationMs = time.Since(start).Milliseconds()
		return summary
	}

	for i := range users {
		user := &users[i]
		now := start.In(user.Location())
		if hour >= 0 && user.PreferredAlertHour != hour {
			continue
		}
		if hour < 0 && now.Hour() != user.PreferredAlertHour {
			continue
		}
		summary.Processed++

		sent, err := s.sendTierAlert(ctx, user, now, false)
		if err != nil {
			summary.Failed++
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("daily digest: user failed")
			continue
		}
		if sent {
			summary.Successful++
			s.sleep(time.Duration(s.cfg.Alerts.PacingSeconds) * time.Second)
		}
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	s.logSummary("daily_digest", summary)
	return summary
}

// RunUrgentSweep dispatches only critical and urgent tiers, regardless
// of the user's preferred hour. It runs more often than the digest and
// relies on the same-day rank check to avoid double alerts.
func (s *AlertService) RunUrgentSweep(ctx context.Context) dto.RunSummary {
	start := time.Now()
	summary := dto.RunSummary{}

	cutoff := start.AddDate(0, 0, -s.cfg.Alerts.ActiveWindowDays)
	users, err := s.userRepo.ListActiveSince(cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("urgent sweep: user listing failed")
		summary.DurationMs = time.Since(start).Milliseconds()
		return summary
	}

	for i := range users {
		user := &users[i]
		summary.Processed++

		sent, err := s.sendTierAlert(ctx, user, start.In(user.Location()), true)
		if err != nil {
			summary.Failed++
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("urgent sweep: user failed")
			continue
		}
		if sent {
			summary.Successful++
			s.sleep(time.Duration(s.cfg.Alerts.PacingSeconds) * time.Second)
		}
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	s.logSummary("urgent_sweep", summary)
	return summary
}

// sendTierAlert classifies, dedupes and dispatches one user's alert.
// Returns (false, nil) when nothing needed sending.
func (s *AlertService) sendTierAlert(ctx context.Context, user *model.User, now time.Time, urgentOnly bool) (bool, error) {
	products, err := s.productRepo.ListByUser(user.ID)
	if err != nil {
		return false, fmt.Errorf("list products: %w", err)
	}

	tier := ClassifyUrgency(products, now)
	if tier == "" {
		return false, nil
	}
	if urgentOnly && tier != model.AlertCritical && tier != model.AlertUrgent {
		return false, nil
	}

	already, err := s.alertRepo.SentTodayAtOrAbove(user.ID, tier, now)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if already {
		return false, nil
	}

	relevant := products
	if tier != model.AlertDaily {
		relevant = withinDays(products, 2, now)
	}

	text := s.composeAlert(ctx, tier, relevant, now)
	return true, s.deliver(ctx, user, tier, text, len(relevant), now)
}

// RunWeeklyReport sends the Sunday recap to engaged users: those with
// at least the configured number of inbound messages this week. The
// dedup here is exact-type, so an earlier daily alert never suppresses
// the report.
func (s *AlertService) RunWeeklyReport(ctx context.Context) dto.RunSummary {
	start := time.Now()
	summary := dto.RunSummary{}

	cutoff := start.AddDate(0, 0, -s.cfg.Alerts.ActiveWindowDays)
	users, err := s.userRepo.ListActiveSince(cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("weekly report: user listing failed")
		summary.DurationMs = time.Since(start).Milliseconds()
		return summary
	}

	weekAgo := start.AddDate(0, 0, -7)
	for i := range users {
		user := &users[i]
		now := start.In(user.Location())

		count, err := s.usageRepo.CountMessagesSince(user.ID, weekAgo)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("weekly report: count failed")
			continue
		}
		if count < int64(s.cfg.Alerts.WeeklyMinMessages) {
			continue
		}
		summary.Processed++

		already, err := s.alertRepo.SentToday(user.ID, model.AlertWeeklyReport, now)
		if err != nil || already {
			if err != nil {
				summary.Failed++
				s.log.Error().Err(err).Int64("user_id", user.ID).Msg("weekly report: dedup check failed")
			}
			continue
		}

		products, err := s.productRepo.ListByUser(user.ID)
		if err != nil {
			summary.Failed++
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("weekly report: list failed")
			continue
		}

		text := s.composeWeekly(ctx, user, products, now)
		if err := s.deliver(ctx, user, model.AlertWeeklyReport, text, len(products), now); err != nil {
			summary.Failed++
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("weekly report: delivery failed")
			continue
		}
		summary.Successful++
		s.sleep(time.Duration(s.cfg.Alerts.PacingSeconds) * time.Second)
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	s.logSummary("weekly_report", summary)
	return summary
}

// composeAlert asks the model for a personalized nudge, falling back to
// the static template whenever the reply fails or overruns the cap.
func (s *AlertService) composeAlert(ctx context.Context, tier string, products []model.Product, now time.Time) string {
	fallback := alertFallbackMessage(tier, products, now)
	if s.generator == nil {
		return fallback
	}

	lines := make([]string, 0, len(products))
	for i := range products {
		lines = append(lines, productLine(&products[i], now))
	}

	prompt := fmt.Sprintf(
		"Escribe un aviso de WhatsApp en español (máx %d caracteres, tono cercano, 1-2 emojis) para que el usuario aproveche estos alimentos antes de que caduquen:\n%s",
		s.cfg.Alerts.MaxMessageChars, strings.Join(lines, "\n"))

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil || len([]rune(text)) > s.cfg.Alerts.MaxMessageChars {
		return fallback
	}
	return text
}

func (s *AlertService) composeWeekly(ctx context.Context, user *model.User, products []model.Product, now time.Time) string {
	total := 0.0
	atRisk := 0
	for _, p := range products {
		total += p.Price
		if d := p.DaysLeft(now); d >= 0 && d <= 2 {
			atRisk++
		}
	}

	fallback := fmt.Sprintf(
		"📊 Tu semana en la nevera:\n• %d productos guardados\n• %.2f € en seguimiento\n• %d por caducar pronto\n¡Sigue así y no desperdicies nada! 💪",
		len(products), total, atRisk)
	if s.generator == nil {
		return fallback
	}

	prompt := fmt.Sprintf(
		"Escribe un resumen semanal motivador de WhatsApp en español (máx %d caracteres): el usuario tiene %d productos por valor de %.2f €, %d caducan en 2 días.",
		s.cfg.Alerts.MaxMessageChars, len(products), total, atRisk)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil || len([]rune(text)) > s.cfg.Alerts.MaxMessageChars {
		return fallback
	}
	return text
}

// deliver sends the message and records both the alert log and the
// outbound history row.
func (s *AlertService) deliver(ctx context.Context, user *model.User, tier, text string, productCount int, now time.Time) error {
	if _, err := s.sender.Send(ctx, user.Phone, text); err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}

	err := s.alertRepo.Create(&model.AlertLog{
		UserID:       user.ID,
		AlertType:    tier,
		ProductCount: productCount,
		SentAt:       now,
	})
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("alert log write failed")
	}

	err = s.historyRepo.Append(&model.ConversationMessage{
		UserID:    user.ID,
		Direction: model.DirectionOut,
		Body:      text,
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("alert history write failed")
	}
	return nil
}

func withinDays(products []model.Product, days int, now time.Time) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if d := p.DaysLeft(now); d >= 0 && d <= days {
			out = append(out, p)
		}
	}
	return out
}

func (s *AlertService) logSummary(job string, summary dto.RunSummary) {
	s.log.Info().
		Str("job", job).
		Int("processed", summary.Processed).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int64("duration_ms", summary.DurationMs).
		Msg("campaign finished")
}
