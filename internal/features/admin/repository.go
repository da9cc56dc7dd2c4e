// Package admin — repository.go работает с таблицей admin_login_attempts.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"healcoins.app/ledger/internal/common"
)

// AttemptStore хранит попытки входа.
type AttemptStore interface {
	// ReserveAttempt атомарно проверяет лимит неудач с since и записывает
	// попытку как неудачную. При исчерпанном лимите — ErrTooManyAttempts.
	ReserveAttempt(ctx context.Context, userID string, since time.Time, maxFailures int) (int64, error)
	// MarkSuccess помечает зарезервированную попытку успешной.
	MarkSuccess(ctx context.Context, id int64) error
	// RecentFailures — число неудачных попыток начиная с since.
	RecentFailures(ctx context.Context, userID string, since time.Time) (int, error)
}

// Repository работает с админ-таблицами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ReserveAttempt считает неудачи и вставляет попытку в одной транзакции
// под advisory-блокировкой пользователя.
func (r *Repository) ReserveAttempt(ctx context.Context, userID string, since time.Time, maxFailures int) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('admin_login:' || $1, 0))`, userID); err != nil {
		return 0, fmt.Errorf("ошибка блокировки попыток входа: %w", err)
	}

	var failures int
	countQuery := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	if err := tx.QueryRow(ctx, countQuery, userID, since).Scan(&failures); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	if failures >= maxFailures {
		return 0, common.ErrTooManyAttempts
	}

	var id int64
	insertQuery := `INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, FALSE) RETURNING id`
	if err := tx.QueryRow(ctx, insertQuery, userID).Scan(&id); err != nil {
		return 0, fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации попытки входа: %w", err)
	}
	return id, nil
}

// MarkSuccess помечает попытку успешной.
func (r *Repository) MarkSuccess(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE admin_login_attempts SET success = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ошибка обновления попытки входа: %w", err)
	}
	return nil
}

// RecentFailures возвращает количество неудачных попыток за период.
func (r *Repository) RecentFailures(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}

// MemoryRepository — попытки входа в памяти.
type MemoryRepository struct {
	mu       sync.Mutex
	attempts []LoginAttempt
	now      func() time.Time
}

func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{now: now}
}

func (r *MemoryRepository) ReserveAttempt(ctx context.Context, userID string, since time.Time, maxFailures int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failuresLocked(userID, since) >= maxFailures {
		return 0, common.ErrTooManyAttempts
	}
	id := int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, LoginAttempt{
		ID:          id,
		UserID:      userID,
		AttemptTime: r.now(),
	})
	return id, nil
}

func (r *MemoryRepository) MarkSuccess(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 1 || id > int64(len(r.attempts)) {
		return fmt.Errorf("попытка входа %d не найдена", id)
	}
	r.attempts[id-1].Success = true
	return nil
}

func (r *MemoryRepository) RecentFailures(ctx context.Context, userID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failuresLocked(userID, since), nil
}

func (r *MemoryRepository) failuresLocked(userID string, since time.Time) int {
	n := 0
	for _, a := range r.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n
}
