package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/model/dto"
	"github.com/nevera/nevera_server/internal/pkg/usercode"
	"github.com/nevera/nevera_server/internal/pkg/whatsapp"
	"github.com/nevera/nevera_server/internal/repository"
)

var (
	ErrDuplicateTransaction = errors.New("transaction already reconciled")
	ErrBadConcept           = errors.New("concept does not reference a subscription")
	ErrUnknownUserCode      = errors.New("no user matches the concept code")
	ErrUnknownAmount        = errors.New("amount does not match any plan")
)

var conceptRe = regexp.MustCompile(`(?i)\b(PREMIUM|RENOVAR)[-\s]?([A-Z2-7]{6})\b`)

// PaymentService reconciles bank transfer notifications against
// subscription plans. Activation failures are returned to the caller
// so the payment provider's retry machinery stays in the loop.
type PaymentService struct {
	userRepo    *repository.UserRepository
	paymentRepo *repository.PaymentRepository
	quota       *QuotaService
	sender      whatsapp.Sender
	cfg         *config.Config
	log         zerolog.Logger
}

func NewPaymentService(
	userRepo *repository.UserRepository,
	paymentRepo *repository.PaymentRepository,
	quota *QuotaService,
	sender whatsapp.Sender,
	cfg *config.Config,
	log zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		quota:       quota,
		sender:      sender,
		cfg:         cfg,
		log:         log,
	}
}

// Reconcile processes one payment notification end to end: parse the
// concept, resolve the user, validate the amount against the plans,
// then activate premium and confirm over WhatsApp. Each transaction id
// is reconciled at most once.
func (s *PaymentService) Reconcile(ctx context.Context, n *dto.PaymentNotification) error {
	if existing, err := s.paymentRepo.GetByTransactionID(n.TransactionID); err == nil && existing != nil {
		s.log.Info().Str("transaction_id", n.TransactionID).Msg("duplicate payment notification ignored")
		return ErrDuplicateTransaction
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("transaction lookup: %w", err)
	}

	code, isRenewal, ok := parseConcept(n.Concept)
	if !ok {
		s.log.Warn().Str("concept", n.Concept).Msg("unparseable payment concept")
		return ErrBadConcept
	}

	user, err := s.resolveUserCode(code)
	if err != nil {
		// No user row to attach the payment to, so the reply goes back
		// to the notifying phone when we have one.
		s.notify(ctx, n.PhoneNumber,
			"Hemos recibido tu pago pero el código del concepto no coincide con ninguna cuenta 😕 Escríbenos tu código de nuevo y lo revisamos.")
		return err
	}

	plan, ok := s.planForAmount(n.Amount)
	if !ok {
		// No plan matched: no Payment row either. Rows exist only for
		// transactions tied to a plan, so a corrected retransfer with
		// the same transaction id is not rejected as a duplicate.
		s.log.Warn().
			Int64("user_id", user.ID).
			Str("transaction_id", n.TransactionID).
			Float64("amount", n.Amount).
			Msg("payment amount matches no plan")
		s.notify(ctx, user.Phone, fmt.Sprintf(
			"Hemos recibido %.2f € pero no corresponde a ningún plan (4,99 € mensual, 14,99 € trimestral, 49,99 € anual). Contáctanos para resolverlo 🙏", n.Amount))
		return ErrUnknownAmount
	}

	payment := &model.Payment{
		UserID:        user.ID,
		TransactionID: n.TransactionID,
		Amount:        n.Amount,
		Concept:       n.Concept,
		Months:        plan.Months,
		Status:        model.PaymentPending,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return fmt.Errorf("payment create: %w", err)
	}

	expiry, err := s.activate(user, plan.Months)
	if err != nil {
		if ferr := s.paymentRepo.MarkFailed(payment.ID, err.Error()); ferr != nil {
			s.log.Error().Err(ferr).Int64("payment_id", payment.ID).Msg("mark failed errored")
		}
		s.notify(ctx, user.Phone,
			"Tu pago ha llegado pero no hemos podido activar Premium todavía 😓 Estamos en ello, te avisamos en cuanto esté.")
		return fmt.Errorf("activate premium: %w", err)
	}

	if err := s.paymentRepo.MarkCompleted(payment.ID); err != nil {
		s.log.Error().Err(err).Int64("payment_id", payment.ID).Msg("mark completed errored")
	}

	verb := "activado"
	if isRenewal {
		verb = "renovado"
	}
	s.notify(ctx, user.Phone, fmt.Sprintf(
		"¡Premium %s! ⭐ Tienes uso ilimitado hasta el %s. Gracias por apoyarnos 💚",
		verb, expiry.Format("02/01/2006")))

	s.log.Info().
		Int64("user_id", user.ID).
		Str("transaction_id", n.TransactionID).
		Int("months", plan.Months).
		Time("premium_until", expiry).
		Msg("payment reconciled")
	return nil
}

// activate extends premium from whichever is later, now or the current
// expiry, so renewing early never loses paid time. It also clears all
// usage windows.
func (s *PaymentService) activate(user *model.User, months int) (time.Time, error) {
	now := time.Now()
	base := now
	if user.PremiumExpiresAt != nil && user.PremiumExpiresAt.After(now) {
		base = *user.PremiumExpiresAt
	}
	expiry := base.AddDate(0, months, 0)

	err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"subscription_level": model.TierPremium,
		"premium_expires_at": expiry,
	})
	if err != nil {
		return time.Time{}, err
	}

	if err := s.quota.ResetAll(user.ID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("usage reset after activation failed")
	}
	return expiry, nil
}

// resolveUserCode scans active users for the code derived from their
// id. The code space is small enough that a linear pass is fine at the
// current user counts.
func (s *PaymentService) resolveUserCode(code string) (*model.User, error) {
	users, err := s.userRepo.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		if usercode.ForUser(users[i].ID) == code {
			return &users[i], nil
		}
	}
	return nil, ErrUnknownUserCode
}

func (s *PaymentService) planForAmount(amount float64) (config.PlanConfig, bool) {
	for _, plan := range s.cfg.Plans {
		// Bank feeds round to cents; compare at that granularity.
		if int(plan.Amount*100+0.5) == int(amount*100+0.5) {
			return plan, true
		}
	}
	return config.PlanConfig{}, false
}

func parseConcept(concept string) (code string, renewal bool, ok bool) {
	m := conceptRe.FindStringSubmatch(concept)
	if m == nil {
		return "", false, false
	}
	return strings.ToUpper(m[2]), strings.EqualFold(m[1], "RENOVAR"), true
}

func (s *PaymentService) notify(ctx context.Context, phone, text string) {
	if phone == "" || s.sender == nil {
		return
	}
	if _, err := s.sender.Send(ctx, phone, text); err != nil {
		s.log.Warn().Err(err).Str("phone", phone).Msg("payment reply failed")
	}
}
