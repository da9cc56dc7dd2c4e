package ledger

import (
	"context"
	"time"

	"healcoins.app/ledger/internal/common"
)

// Guard — проверка перед начислением. Выполняется внутри транзакции
// под блокировкой пользователя, поэтому параллельные запросы
// одного пользователя не могут пройти её одновременно.
type Guard func(ctx context.Context, tx Tx, userID string, amount int64, now time.Time) error

// Cooldown отклоняет действие, если запись той же категории была меньше window назад.
func (l *Ledger) Cooldown(cat Category, window time.Duration) Guard {
	return func(ctx context.Context, tx Tx, userID string, _ int64, now time.Time) error {
		if window <= 0 {
			return nil
		}
		last, ok, err := tx.LastActionAt(ctx, userID, cat)
		if err != nil {
			return err
		}
		if ok && now.Sub(last) < window {
			return common.ErrCooldown
		}
		return nil
	}
}

// OncePerDay отклоняет вторую запись категории за календарный день.
func (l *Ledger) OncePerDay(cat Category, conflict error) Guard {
	return func(ctx context.Context, tx Tx, userID string, _ int64, now time.Time) error {
		last, ok, err := tx.LastActionAt(ctx, userID, cat)
		if err != nil {
			return err
		}
		if ok && !last.Before(common.StartOfDay(now, l.opts.Location)) {
			return conflict
		}
		return nil
	}
}

// DailyCap отклоняет начисление, если заработанное за сегодня плюс amount
// превысит лимит кошелька (или лимит по умолчанию, если кошелька нет).
func (l *Ledger) DailyCap() Guard {
	return func(ctx context.Context, tx Tx, userID string, amount int64, now time.Time) error {
		if amount <= 0 {
			return nil
		}
		limit := l.opts.DailyCap
		w, err := tx.WalletForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if w != nil && w.DailyEarnLimit > 0 {
			limit = w.DailyEarnLimit
		}
		if limit <= 0 {
			return nil
		}

		earned, err := tx.EarnedSince(ctx, userID, common.StartOfDay(now, l.opts.Location))
		if err != nil {
			return err
		}
		if earned+amount > limit {
			return common.ErrDailyCapReached
		}
		return nil
	}
}
