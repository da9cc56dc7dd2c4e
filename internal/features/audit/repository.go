package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository хранит записи аудита.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]*Entry, error)
}

// PostgresRepository работает с таблицей audit_logs.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, e *Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, target_type, target_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ActorID, e.Action, e.TargetType, e.TargetID, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи аудита: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]*Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor_id, action, target_type, target_id, metadata, created_at
		FROM audit_logs
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at
	`, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения аудита: %w", err)
	}
	defer rows.Close()

	out := make([]*Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования аудита: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MemoryRepository — журнал в памяти для STORAGE_DRIVER=memory и тестов.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Entry, 0)
	for _, e := range r.entries {
		if e.TargetType == targetType && e.TargetID == targetID {
			c := e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
