// Package notify отправляет уведомления модераторам.
package notify

import (
	"context"

	"healcoins.app/ledger/internal/features/ledger"
)

// Notifier — канал уведомлений модераторов. Методы не блокируют запрос
// и не возвращают ошибок.
type Notifier interface {
	NotifyPending(ctx context.Context, entry *ledger.ModerationEntry, log *ledger.AnimalLog)
	NotifyApproved(ctx context.Context, entry *ledger.ModerationEntry, badges []string)
	NotifyBacklog(ctx context.Context, pending []*ledger.ModerationEntry, total int)
}

// Noop используется, когда Telegram не настроен.
type Noop struct{}

func (Noop) NotifyPending(context.Context, *ledger.ModerationEntry, *ledger.AnimalLog) {}
func (Noop) NotifyApproved(context.Context, *ledger.ModerationEntry, []string) {}
func (Noop) NotifyBacklog(context.Context, []*ledger.ModerationEntry, int) {}
