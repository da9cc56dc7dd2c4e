// Package moderation — ручная проверка добрых дел для животных:
// одобрение с начислением, очередь, бейджи и журнал.
package moderation

import (
	"context"
	"errors"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/features/audit"
	"healcoins.app/ledger/internal/features/ledger"
)

// Размер страницы очереди.
const (
	DefaultQueueLimit = 100
	MaxQueueLimit     = 500
)

// Store — то, что модерации нужно от хранилища помимо транзакций леджера.
type Store interface {
	ledger.ModerationReader
	GetProfile(ctx context.Context, userID string) (*ledger.Profile, error)
	MergeBadges(ctx context.Context, userID string, badges []string) ([]string, error)
}

// Auditor пишет журнал и события активности.
type Auditor interface {
	Record(ctx context.Context, e *audit.Entry)
	Activity(ctx context.Context, eventType, userID string, payload any)
	Trail(ctx context.Context, targetType, targetID string) ([]*audit.Entry, error)
}

// ApprovalNotifier сообщает модераторам об одобрении.
type ApprovalNotifier interface {
	NotifyApproved(ctx context.Context, entry *ledger.ModerationEntry, badges []string)
}

// Approval — итог одобрения.
type Approval struct {
	Entry  *ledger.ModerationEntry
	Wallet *ledger.Wallet
	// Badges — все бейджи пользователя после одобрения. Пусто, если начисления не было.
	Badges []string
	// AlreadyApproved — повторный вызов, ничего не изменено.
	AlreadyApproved bool
}

// Queue — страница очереди модерации. Total — всего заявок с этим статусом.
type Queue struct {
	Items  []*ledger.ModerationEntry `json:"items"`
	Total  int                       `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// HasMore — есть ли заявки за пределами страницы.
func (q *Queue) HasMore() bool {
	return q.Offset+len(q.Items) < q.Total
}

// Service — модерация.
type Service struct {
	ledger   *ledger.Ledger
	store    Store
	auditor  Auditor
	notifier ApprovalNotifier
}

func NewService(l *ledger.Ledger, store Store, auditor Auditor, notifier ApprovalNotifier) *Service {
	return &Service{ledger: l, store: store, auditor: auditor, notifier: notifier}
}

// Approve одобряет заявку. Повторное одобрение — успех без побочных эффектов.
// Бейджи, аудит, события и уведомления выполняются после коммита и не влияют на результат.
func (s *Service) Approve(ctx context.Context, moderationID, approverID string) (*Approval, error) {
	moderationID = strings.TrimSpace(moderationID)
	if moderationID == "" {
		return nil, common.ErrModerationIDMissing
	}

	entry, err := s.store.GetModeration(ctx, moderationID)
	if err != nil {
		return nil, err
	}
	if entry.Status == ledger.StatusApproved {
		return &Approval{Entry: entry, AlreadyApproved: true}, nil
	}

	res, err := s.ledger.Approve(ctx, moderationID, approverID)
	if err != nil {
		return nil, err
	}
	if res.AlreadyApproved {
		// одобрили параллельно, пока мы ждали блокировку
		return &Approval{Entry: res.Entry, Wallet: res.Wallet, AlreadyApproved: true}, nil
	}

	log.WithFields(log.Fields{
		"moderation_id": res.Entry.ID,
		"user_id":       res.Entry.UserID,
		"approver_id":   approverID,
		"coins":         res.Entry.CoinsToAward,
	}).Info("Заявка одобрена")

	out := &Approval{Entry: res.Entry, Wallet: res.Wallet}
	out.Badges = s.afterApproval(ctx, res.Entry, approverID)
	return out, nil
}

func (s *Service) afterApproval(ctx context.Context, entry *ledger.ModerationEntry, approverID string) []string {
	s.auditor.Record(ctx, &audit.Entry{
		ActorID:    approverID,
		Action:     audit.ActionModerationApproved,
		TargetType: audit.TargetModeration,
		TargetID:   entry.ID,
		Metadata: map[string]any{
			"userId":       entry.UserID,
			"logId":        entry.LogID,
			"coinsToAward": entry.CoinsToAward,
		},
	})

	badges := s.awardBadges(ctx, entry.UserID, approverID)
	s.notifier.NotifyApproved(ctx, entry, badges)
	return badges
}

// awardBadges считает одобренные заявки и объединяет бейджи профиля.
// Возвращает текущий набор бейджей или nil при ошибке.
func (s *Service) awardBadges(ctx context.Context, userID, approverID string) []string {
	logger := log.WithField("user_id", userID)

	count, err := s.store.CountApproved(ctx, userID)
	if err != nil {
		logger.WithError(err).Warn("Не удалось посчитать одобренные заявки")
		return nil
	}

	earned := EarnedBadges(count)
	if len(earned) == 0 {
		return []string{}
	}

	before, err := s.store.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrProfileNotFound) {
		logger.WithError(err).Warn("Не удалось прочитать профиль")
	}

	badges, err := s.store.MergeBadges(ctx, userID, earned)
	if err != nil {
		logger.WithError(err).Warn("Не удалось выдать бейджи")
		return nil
	}

	added := newBadges(before, badges)
	if len(added) > 0 {
		logger.WithField("badges", added).Info("Выданы бейджи")
		s.auditor.Record(ctx, &audit.Entry{
			ActorID:    approverID,
			Action:     audit.ActionBadgesAwarded,
			TargetType: audit.TargetProfile,
			TargetID:   userID,
			Metadata: map[string]any{
				"userId":   userID,
				"badges":   added,
				"approved": count,
			},
		})
	}
	return badges
}

func newBadges(before *ledger.Profile, after []string) []string {
	var added []string
	for _, b := range after {
		if before == nil || !slices.Contains(before.Badges, b) {
			added = append(added, b)
		}
	}
	return added
}

// Reject пока не поддерживается: не решено, нужно ли уведомлять автора.
func (s *Service) Reject(ctx context.Context, moderationID, approverID string) error {
	return common.ErrRejectNotSupported
}

// ListQueue возвращает страницу заявок с указанным статусом (пустой — все)
// в порядке поступления. limit 0 — DefaultQueueLimit.
func (s *Service) ListQueue(ctx context.Context, status string, limit, offset int) (*Queue, error) {
	st := ledger.ModerationStatus(strings.ToLower(strings.TrimSpace(status)))
	switch st {
	case "", ledger.StatusPending, ledger.StatusApproved:
	default:
		return nil, common.ErrInvalidQueueStatus
	}
	if limit == 0 {
		limit = DefaultQueueLimit
	}
	if limit < 0 || limit > MaxQueueLimit || offset < 0 {
		return nil, common.ErrInvalidPage
	}

	total, err := s.store.CountModeration(ctx, st)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListModeration(ctx, st, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*ledger.ModerationEntry{}
	}
	return &Queue{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// AuditTrail возвращает журнал по заявке.
func (s *Service) AuditTrail(ctx context.Context, moderationID string) ([]*audit.Entry, error) {
	if _, err := s.store.GetModeration(ctx, moderationID); err != nil {
		return nil, err
	}
	entries, err := s.auditor.Trail(ctx, audit.TargetModeration, moderationID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	return entries, nil
}
