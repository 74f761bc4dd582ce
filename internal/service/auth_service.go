package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/pkg/jwt"
	"github.com/nevera/nevera_server/internal/pkg/whatsapp"
	"github.com/nevera/nevera_server/internal/repository"
)

var (
	ErrUnknownPhone = errors.New("phone is not registered")
	ErrBadLoginCode = errors.New("login code is wrong or expired")
)

const (
	loginCodeTTL = 10 * time.Minute
)

// AuthService links a WhatsApp account to the web dashboard: a one-time
// code delivered over the bot channel proves phone ownership, then a
// JWT carries the session.
type AuthService struct {
	userRepo    *repository.UserRepository
	redisClient *redis.Client
	sender      whatsapp.Sender
	cfg         *config.Config
	log         zerolog.Logger
}

func NewAuthService(
	userRepo *repository.UserRepository,
	redisClient *redis.Client,
	sender whatsapp.Sender,
	cfg *config.Config,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		redisClient: redisClient,
		sender:      sender,
		cfg:         cfg,
		log:         log,
	}
}

// SendLinkCode generates a one-time code for an existing bot user and
// delivers it over WhatsApp.
func (s *AuthService) SendLinkCode(ctx context.Context, phone string) error {
	user, err := s.userRepo.GetByPhone(phone)
	if err != nil {
		return ErrUnknownPhone
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	key := loginKey(phone)
	if err := s.redisClient.Set(ctx, key, code, loginCodeTTL).Err(); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	text := fmt.Sprintf("Tu código para entrar en el panel web es: %s\nCaduca en 10 minutos. Si no has sido tú, ignora este mensaje.", code)
	if _, err := s.sender.Send(ctx, user.Phone, text); err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	s.log.Info().Int64("user_id", user.ID).Msg("login code sent")
	return nil
}

// Verify exchanges a valid code for a JWT. Codes are single use.
func (s *AuthService) Verify(ctx context.Context, phone, code string) (string, error) {
	user, err := s.userRepo.GetByPhone(phone)
	if err != nil {
		return "", ErrUnknownPhone
	}

	key := loginKey(phone)
	stored, err := s.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrBadLoginCode
	}
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	if stored != code {
		return "", ErrBadLoginCode
	}

	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("phone", phone).Msg("login code delete failed")
	}

	return jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
}

func loginKey(phone string) string {
	return "login:" + phone
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
