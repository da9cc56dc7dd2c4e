package ledger

import (
	"context"
	"time"
)

// Tx — операции, доступные внутри транзакции начисления.
// Реализации: pgTx (PostgreSQL) и memTx (память).
type Tx interface {
	// LockUser сериализует транзакции одного пользователя до конца транзакции.
	LockUser(ctx context.Context, userID string) error
	// LastActionAt возвращает время последней записи категории. ok=false, если записей нет.
	LastActionAt(ctx context.Context, userID string, cat Category) (at time.Time, ok bool, err error)
	// EarnedSince — сумма начислений пользователя начиная с since.
	EarnedSince(ctx context.Context, userID string, since time.Time) (int64, error)

	InsertLog(ctx context.Context, l Log) error
	InsertModeration(ctx context.Context, m *ModerationEntry) error
	// ModerationForUpdate читает заявку с блокировкой строки.
	ModerationForUpdate(ctx context.Context, id string) (*ModerationEntry, error)
	ApproveModeration(ctx context.Context, id, approverID string, at time.Time) error
	MarkAnimalVerified(ctx context.Context, logID string, at time.Time) error

	// WalletForUpdate возвращает nil без ошибки, если кошелька ещё нет.
	WalletForUpdate(ctx context.Context, userID string) (*Wallet, error)
	CreateWallet(ctx context.Context, w *Wallet) error
	UpdateWallet(ctx context.Context, w *Wallet) error
	InsertEntry(ctx context.Context, e *LedgerEntry) error
}

// WalletReader читает кошельки вне транзакций.
type WalletReader interface {
	GetWallet(ctx context.Context, userID string) (*Wallet, error)
}

// LogStore — чтение журналов действий и прикрепление пруфов.
type LogStore interface {
	GetAnimalLog(ctx context.Context, id string) (*AnimalLog, error)
	AppendProofPath(ctx context.Context, logID, path string) error
	MoodLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*MoodLog, error)
	CarbonLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*CarbonLog, error)
	ActiveUsersBetween(ctx context.Context, from, to time.Time) ([]string, error)
	SchoolMoodLogs(ctx context.Context, schoolID string, from, to time.Time) ([]SchoolMood, error)
}

// ModerationReader — чтение очереди модерации.
type ModerationReader interface {
	GetModeration(ctx context.Context, id string) (*ModerationEntry, error)
	// ListModeration: пустой status — все заявки. Сортировка по времени создания.
	ListModeration(ctx context.Context, status ModerationStatus, limit, offset int) ([]*ModerationEntry, error)
	// CountModeration — сколько заявок в статусе (пустой — всего).
	CountModeration(ctx context.Context, status ModerationStatus) (int, error)
	CountApproved(ctx context.Context, userID string) (int, error)
}

// ProfileStore — профили и бейджи.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// UpsertProfile обновляет школу/класс/секцию, бейджи не трогает.
	UpsertProfile(ctx context.Context, p *Profile) error
	// MergeBadges объединяет бейджи с уже выданными и возвращает итоговый набор.
	MergeBadges(ctx context.Context, userID string, badges []string) ([]string, error)
}

// InsightStore — недельные сводки.
type InsightStore interface {
	SaveInsight(ctx context.Context, in *WeeklyInsight) error
	GetInsight(ctx context.Context, key string) (*WeeklyInsight, error)
}

// Store — полное хранилище сервиса.
type Store interface {
	// WithinTx выполняет fn в одной транзакции. Ошибка fn откатывает все записи.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	WalletReader
	LogStore
	ModerationReader
	ProfileStore
	InsightStore
}
