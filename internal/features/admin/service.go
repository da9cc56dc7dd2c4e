// Package admin — service.go проверяет пароль администратора и выдаёт токен с админским клеймом.
package admin

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/config"
)

const (
	maxFailedAttempts = 3
	lockoutWindow     = time.Hour
)

// TokenIssuer выпускает JWT.
type TokenIssuer interface {
	Issue(userID string, admin bool, ttl time.Duration) (string, time.Time, error)
}

// Service — вход администратора.
type Service struct {
	repo   AttemptStore
	tokens TokenIssuer
	cfg    *config.Config
	now    func() time.Time
}

// NewService создаёт сервис входа.
func NewService(repo AttemptStore, tokens TokenIssuer, cfg *config.Config) *Service {
	return &Service{repo: repo, tokens: tokens, cfg: cfg, now: time.Now}
}

// Login проверяет пароль администратора с использованием Argon2id.
// 3 неудачные попытки за час — блокировка до истечения часа.
// Попытка резервируется как неудачная до проверки пароля, поэтому
// параллельные входы не превышают лимит.
func (s *Service) Login(ctx context.Context, userID, password string) (*LoginResult, error) {
	if userID == "" {
		return nil, common.ErrUserIDRequired
	}
	if !s.cfg.IsAdmin(userID) {
		return nil, common.ErrNotAdmin
	}

	attemptID, err := s.repo.ReserveAttempt(ctx, userID, s.now().Add(-lockoutWindow), maxFailedAttempts)
	if err != nil {
		return nil, err
	}

	match := s.cfg.AdminPasswordHash != "" && verifyArgon2id(password, s.cfg.AdminPasswordHash)
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return nil, common.ErrWrongPassword
	}

	if err := s.repo.MarkSuccess(ctx, attemptID); err != nil {
		log.WithError(err).Error("Ошибка записи попытки входа")
	}

	token, expiresAt, err := s.tokens.Issue(userID, true, s.cfg.AdminTokenTTL)
	if err != nil {
		return nil, err
	}

	log.WithField("user_id", userID).Info("Администратор вошёл")
	return &LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}
