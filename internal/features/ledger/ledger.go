package ledger

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Options — настройки кошельков и границ дня.
type Options struct {
	// DailyCap — дневной лимит для новых кошельков и пользователей без кошелька
	DailyCap    int64
	RedeemLimit int64
	Location    *time.Location
	// Now подменяется в тестах
	Now func() time.Time
}

// Ledger записывает действие и изменение кошелька одной транзакцией.
type Ledger struct {
	store Store
	ids   IDGenerator
	opts  Options
}

// New создаёт Ledger.
func New(store Store, ids IDGenerator, opts Options) *Ledger {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{store: store, ids: ids, opts: opts}
}

// Location — часовой пояс, в котором считаются сутки.
func (l *Ledger) Location() *time.Location { return l.opts.Location }

// Now — текущее время по часам леджера.
func (l *Ledger) Now() time.Time { return l.opts.Now() }

// CreditRequest — запрос на запись действия и начисление.
type CreditRequest struct {
	UserID string
	// Amount — сколько зачислить сразу. 0 для действий, ждущих модерации.
	Amount int64
	Kind   EntryKind
	Log    Log
	// Moderation создаётся в той же транзакции, если задана.
	Moderation *ModerationEntry
	// Guards выполняются внутри транзакции после блокировки пользователя.
	Guards []Guard
}

// CreditResult — что записано.
type CreditResult struct {
	Log        Log
	Moderation *ModerationEntry
	// Wallet — состояние после начисления. nil, если начисления не было и кошелька нет.
	Wallet *Wallet
}

// Credit выполняет атомарную операцию:
//  1. блокирует пользователя и проверяет кулдаун/лимит,
//  2. пишет лог (и заявку модерации),
//  3. создаёт или обновляет кошелёк и пишет запись в ledger_entries.
//
// Ошибка на любом шаге откатывает всё.
func (l *Ledger) Credit(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	if req.Log == nil {
		return nil, fmt.Errorf("credit: пустой лог")
	}
	now := l.opts.Now()

	b := req.Log.base()
	b.ID = l.ids.NewID()
	b.Kind = req.Log.Category()
	b.UserID = req.UserID
	b.CreatedAt = now

	if req.Moderation != nil {
		m := req.Moderation
		m.ID = l.ids.NewID()
		m.Type = req.Log.Category()
		m.LogID = b.ID
		m.UserID = req.UserID
		m.Status = StatusPending
		m.CreatedAt = now
		m.UpdatedAt = now
		if a, ok := req.Log.(*AnimalLog); ok {
			a.ModerationID = m.ID
		}
	}

	res := &CreditResult{Log: req.Log, Moderation: req.Moderation}
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockUser(ctx, req.UserID); err != nil {
			return err
		}
		for _, g := range req.Guards {
			if err := g(ctx, tx, req.UserID, req.Amount, now); err != nil {
				return err
			}
		}

		if err := tx.InsertLog(ctx, req.Log); err != nil {
			return err
		}
		if req.Moderation != nil {
			if err := tx.InsertModeration(ctx, req.Moderation); err != nil {
				return err
			}
		}

		if req.Amount <= 0 {
			w, err := tx.WalletForUpdate(ctx, req.UserID)
			res.Wallet = w
			return err
		}
		w, err := l.applyCredit(ctx, tx, req.UserID, req.Amount, req.Kind, b.ID, now)
		res.Wallet = w
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  req.UserID,
		"category": b.Kind,
		"log_id":   b.ID,
		"amount":   req.Amount,
	}).Info("Действие записано")
	return res, nil
}

// ApproveResult — итог одобрения заявки.
type ApproveResult struct {
	Entry  *ModerationEntry
	Wallet *Wallet
	// AlreadyApproved — заявка уже была одобрена, ничего не изменено.
	AlreadyApproved bool
}

// Approve переводит заявку в approved, помечает лог проверенным и начисляет
// CoinsToAward одной транзакцией. Повторное одобрение ничего не меняет.
func (l *Ledger) Approve(ctx context.Context, moderationID, approverID string) (*ApproveResult, error) {
	now := l.opts.Now()
	res := &ApproveResult{}

	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		*res = ApproveResult{}

		m, err := tx.ModerationForUpdate(ctx, moderationID)
		if err != nil {
			return err
		}
		res.Entry = m
		if m.Status == StatusApproved {
			res.AlreadyApproved = true
			return nil
		}

		if err := tx.LockUser(ctx, m.UserID); err != nil {
			return err
		}
		if err := tx.ApproveModeration(ctx, m.ID, approverID, now); err != nil {
			return err
		}
		if err := tx.MarkAnimalVerified(ctx, m.LogID, now); err != nil {
			return err
		}
		m.Status = StatusApproved
		m.ApprovedBy = approverID
		m.ApprovedAt = &now
		m.UpdatedAt = now

		if m.CoinsToAward <= 0 {
			res.Wallet, err = tx.WalletForUpdate(ctx, m.UserID)
			return err
		}
		res.Wallet, err = l.applyCredit(ctx, tx, m.UserID, m.CoinsToAward, EntryModerationApproval, m.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// applyCredit создаёт кошелёк с лимитами по умолчанию или увеличивает баланс
// и записывает начисление в ledger_entries.
func (l *Ledger) applyCredit(ctx context.Context, tx Tx, userID string, amount int64, kind EntryKind, refID string, now time.Time) (*Wallet, error) {
	w, err := tx.WalletForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if w == nil {
		w = &Wallet{
			UserID:         userID,
			HealCoins:      amount,
			DailyEarnLimit: l.opts.DailyCap,
			RedeemLimit:    l.opts.RedeemLimit,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateWallet(ctx, w); err != nil {
			return nil, err
		}
	} else {
		w.HealCoins += amount
		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return nil, err
		}
	}

	entry := &LedgerEntry{
		ID:        l.ids.NewID(),
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		RefID:     refID,
		CreatedAt: now,
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	return w, nil
}
