package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/common"
)

// maxTxAttempts — сколько раз повторяем транзакцию при serialization failure / deadlock.
const maxTxAttempts = 3

// Таблицы журналов по категориям.
var logTables = map[Category]string{
	CategoryCarbon: "carbon_logs",
	CategoryMood:   "mood_logs",
	CategoryAnimal: "animal_logs",
}

// PostgresStore — хранилище на PostgreSQL.
// Все денежные операции выполняются в транзакциях БД для целостности данных.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище поверх пула.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithinTx выполняет fn в транзакции и повторяет её при конфликте сериализации.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isRetryable(err) {
			return err
		}
		log.WithError(err).WithField("attempt", attempt).Warn("Конфликт транзакции, повторяем")
	}
	return err
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// --- транзакция ---

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockUser(ctx context.Context, userID string) error {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
		return fmt.Errorf("ошибка блокировки пользователя: %w", err)
	}
	return nil
}

func (t *pgTx) LastActionAt(ctx context.Context, userID string, cat Category) (time.Time, bool, error) {
	table, ok := logTables[cat]
	if !ok {
		return time.Time{}, false, fmt.Errorf("неизвестная категория %q", cat)
	}
	var last *time.Time
	query := fmt.Sprintf(`SELECT MAX(created_at) FROM %s WHERE user_id = $1`, table)
	if err := t.tx.QueryRow(ctx, query, userID).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("ошибка чтения последнего действия: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

func (t *pgTx) EarnedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT FROM ledger_entries
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта начислений за день: %w", err)
	}
	return sum, nil
}

func (t *pgTx) InsertLog(ctx context.Context, l Log) error {
	var err error
	switch v := l.(type) {
	case *CarbonLog:
		_, err = t.tx.Exec(ctx, `
			INSERT INTO carbon_logs (id, user_id, action_type, value, location, region, factor,
			                         co2_saved, coins, source, is_auditable, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, v.ID, v.UserID, v.ActionType, v.Value, v.Location, v.Region, v.Factor,
			v.CO2Saved, v.Coins, v.Source, v.IsAuditable, v.CreatedAt)
	case *MoodLog:
		_, err = t.tx.Exec(ctx, `
			INSERT INTO mood_logs (id, user_id, mood, activities, eco_mind_score, coins,
			                       source, is_auditable, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, v.ID, v.UserID, v.Mood, nonNil(v.Activities), v.EcoMindScore, v.Coins,
			v.Source, v.IsAuditable, v.CreatedAt)
	case *AnimalLog:
		_, err = t.tx.Exec(ctx, `
			INSERT INTO animal_logs (id, user_id, actions, kindness_score, coins, moderation_id,
			                         source, is_auditable, verified, moderated, proof_paths, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, FALSE, $9, $10)
		`, v.ID, v.UserID, v.Actions, v.KindnessScore, v.Coins, v.ModerationID,
			v.Source, v.IsAuditable, nonNil(v.ProofPaths), v.CreatedAt)
	default:
		return fmt.Errorf("неизвестный тип лога %T", l)
	}
	if err != nil {
		return fmt.Errorf("ошибка записи лога %s: %w", l.Category(), err)
	}
	return nil
}

func (t *pgTx) InsertModeration(ctx context.Context, m *ModerationEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO moderation_queue (id, type, log_id, user_id, status, coins_to_award, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.Type, m.LogID, m.UserID, m.Status, m.CoinsToAward, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи заявки модерации: %w", err)
	}
	return nil
}

func (t *pgTx) ModerationForUpdate(ctx context.Context, id string) (*ModerationEntry, error) {
	row := t.tx.QueryRow(ctx, moderationSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanModeration(row)
}

func (t *pgTx) ApproveModeration(ctx context.Context, id, approverID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE moderation_queue
		SET status = 'approved', approved_by = $2, approved_at = $3, updated_at = $3
		WHERE id = $1
	`, id, approverID, at)
	if err != nil {
		return fmt.Errorf("ошибка одобрения заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrModerationNotFound
	}
	return nil
}

func (t *pgTx) MarkAnimalVerified(ctx context.Context, logID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE animal_logs SET verified = TRUE, moderated = TRUE, verified_at = $2
		WHERE id = $1
	`, logID, at)
	if err != nil {
		return fmt.Errorf("ошибка отметки лога: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrLogNotFound
	}
	return nil
}

func (t *pgTx) WalletForUpdate(ctx context.Context, userID string) (*Wallet, error) {
	row := t.tx.QueryRow(ctx, walletSelect+` WHERE user_id = $1 FOR UPDATE`, userID)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кошелька: %w", err)
	}
	return w, nil
}

func (t *pgTx) CreateWallet(ctx context.Context, w *Wallet) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (user_id, heal_coins, inr_balance, daily_earn_limit, redeem_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.UserID, w.HealCoins, w.INRBalance, w.DailyEarnLimit, w.RedeemLimit, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания кошелька: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateWallet(ctx context.Context, w *Wallet) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE wallets SET heal_coins = $2, updated_at = $3 WHERE user_id = $1
	`, w.UserID, w.HealCoins, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка начисления: %w", err)
	}
	return nil
}

func (t *pgTx) InsertEntry(ctx context.Context, e *LedgerEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, kind, ref_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.UserID, e.Amount, e.Kind, e.RefID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи начисления: %w", err)
	}
	return nil
}

// --- чтение ---

const walletSelect = `
	SELECT user_id, heal_coins, inr_balance::FLOAT8, daily_earn_limit, redeem_limit, created_at, updated_at
	FROM wallets`

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.UserID, &w.HealCoins, &w.INRBalance, &w.DailyEarnLimit, &w.RedeemLimit, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PostgresStore) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	w, err := scanWallet(s.db.QueryRow(ctx, walletSelect+` WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кошелька (user_id=%s): %w", userID, err)
	}
	return w, nil
}

func (s *PostgresStore) GetAnimalLog(ctx context.Context, id string) (*AnimalLog, error) {
	var l AnimalLog
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, actions, kindness_score, coins, COALESCE(moderation_id, ''), source,
		       is_auditable, verified, moderated, verified_at, proof_paths, created_at
		FROM animal_logs WHERE id = $1
	`, id).Scan(&l.ID, &l.UserID, &l.Actions, &l.KindnessScore, &l.Coins, &l.ModerationID, &l.Source,
		&l.IsAuditable, &l.Verified, &l.Moderated, &l.VerifiedAt, &l.ProofPaths, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения лога %s: %w", id, err)
	}
	l.Kind = CategoryAnimal
	return &l, nil
}

func (s *PostgresStore) AppendProofPath(ctx context.Context, logID, path string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE animal_logs SET proof_paths = array_append(proof_paths, $2) WHERE id = $1
	`, logID, path)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пути пруфа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrLogNotFound
	}
	return nil
}

func (s *PostgresStore) MoodLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*MoodLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, mood, activities, eco_mind_score, coins, source, is_auditable, created_at
		FROM mood_logs
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения чекинов: %w", err)
	}
	defer rows.Close()

	var out []*MoodLog
	for rows.Next() {
		var l MoodLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Mood, &l.Activities, &l.EcoMindScore,
			&l.Coins, &l.Source, &l.IsAuditable, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования чекина: %w", err)
		}
		l.Kind = CategoryMood
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CarbonLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*CarbonLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, action_type, value, location, region, factor, co2_saved,
		       coins, source, is_auditable, created_at
		FROM carbon_logs
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения эко-действий: %w", err)
	}
	defer rows.Close()

	var out []*CarbonLog
	for rows.Next() {
		var l CarbonLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ActionType, &l.Value, &l.Location, &l.Region,
			&l.Factor, &l.CO2Saved, &l.Coins, &l.Source, &l.IsAuditable, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования эко-действия: %w", err)
		}
		l.Kind = CategoryCarbon
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ActiveUsersBetween(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id FROM mood_logs WHERE created_at >= $1 AND created_at < $2
		UNION
		SELECT user_id FROM carbon_logs WHERE created_at >= $1 AND created_at < $2
		ORDER BY user_id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных пользователей: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SchoolMoodLogs(ctx context.Context, schoolID string, from, to time.Time) ([]SchoolMood, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.user_id, p.class_id, p.section, m.mood, m.eco_mind_score, m.created_at
		FROM mood_logs m
		JOIN profiles p ON p.user_id = m.user_id
		WHERE p.school_id = $1 AND m.created_at >= $2 AND m.created_at < $3
		ORDER BY m.created_at
	`, schoolID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения чекинов школы: %w", err)
	}
	defer rows.Close()

	var out []SchoolMood
	for rows.Next() {
		var r SchoolMood
		if err := rows.Scan(&r.UserID, &r.ClassID, &r.Section, &r.Mood, &r.EcoMindScore, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования чекина школы: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const moderationSelect = `
	SELECT id, type, log_id, user_id, status, coins_to_award, COALESCE(approved_by, ''),
	       approved_at, created_at, updated_at
	FROM moderation_queue`

func scanModeration(row pgx.Row) (*ModerationEntry, error) {
	var m ModerationEntry
	err := row.Scan(&m.ID, &m.Type, &m.LogID, &m.UserID, &m.Status, &m.CoinsToAward,
		&m.ApprovedBy, &m.ApprovedAt, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrModerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заявки модерации: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) GetModeration(ctx context.Context, id string) (*ModerationEntry, error) {
	return scanModeration(s.db.QueryRow(ctx, moderationSelect+` WHERE id = $1`, id))
}

func (s *PostgresStore) ListModeration(ctx context.Context, status ModerationStatus, limit, offset int) ([]*ModerationEntry, error) {
	rows, err := s.db.Query(ctx, moderationSelect+`
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения очереди модерации: %w", err)
	}
	defer rows.Close()

	out := make([]*ModerationEntry, 0)
	for rows.Next() {
		m, err := scanModeration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountModeration(ctx context.Context, status ModerationStatus) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM moderation_queue WHERE ($1 = '' OR status = $1)
	`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта заявок: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountApproved(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM moderation_queue WHERE user_id = $1 AND status = 'approved'
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта одобренных заявок: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRow(ctx, `
		SELECT user_id, school_id, class_id, section, badges, updated_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.SchoolID, &p.ClassID, &p.Section, &p.Badges, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения профиля (user_id=%s): %w", userID, err)
	}
	return &p, nil
}

// UpsertProfile на конфликте обновляет только школу/класс/секцию (бейджи не трогаем).
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *Profile) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO profiles (user_id, school_id, class_id, section, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET school_id = EXCLUDED.school_id,
		    class_id = EXCLUDED.class_id,
		    section = EXCLUDED.section,
		    updated_at = EXCLUDED.updated_at
	`, p.UserID, p.SchoolID, p.ClassID, p.Section, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения профиля: %w", err)
	}
	return nil
}

// MergeBadges объединяет множества на стороне БД, повторный вызов дублей не создаёт.
func (s *PostgresStore) MergeBadges(ctx context.Context, userID string, badges []string) ([]string, error) {
	var out []string
	err := s.db.QueryRow(ctx, `
		INSERT INTO profiles (user_id, badges, updated_at)
		VALUES ($1, ARRAY(SELECT DISTINCT b FROM unnest($2::TEXT[]) AS b ORDER BY b), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET badges = ARRAY(
		        SELECT DISTINCT b FROM unnest(profiles.badges || EXCLUDED.badges) AS b ORDER BY b
		    ),
		    updated_at = NOW()
		RETURNING badges
	`, userID, nonNil(badges)).Scan(&out)
	if err != nil {
		return nil, fmt.Errorf("ошибка выдачи бейджей: %w", err)
	}
	return out, nil
}

// SaveInsight перезаписывает сводку по ключу userId_weekStart.
func (s *PostgresStore) SaveInsight(ctx context.Context, in *WeeklyInsight) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO weekly_insights (key, user_id, week_start, week_end, avg_mood, avg_eco_mind,
		                             mood_checkins, eco_actions, total_co2_saved, tone, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (key) DO UPDATE
		SET avg_mood = EXCLUDED.avg_mood,
		    avg_eco_mind = EXCLUDED.avg_eco_mind,
		    mood_checkins = EXCLUDED.mood_checkins,
		    eco_actions = EXCLUDED.eco_actions,
		    total_co2_saved = EXCLUDED.total_co2_saved,
		    tone = EXCLUDED.tone,
		    message = EXCLUDED.message,
		    created_at = EXCLUDED.created_at
	`, in.Key, in.UserID, in.WeekStart, in.WeekEnd, in.AvgMood, in.AvgEcoMind,
		in.MoodCheckins, in.EcoActions, in.TotalCO2Saved, in.Tone, in.Message, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения недельной сводки: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInsight(ctx context.Context, key string) (*WeeklyInsight, error) {
	var in WeeklyInsight
	err := s.db.QueryRow(ctx, `
		SELECT key, user_id, week_start, week_end, avg_mood, avg_eco_mind, mood_checkins,
		       eco_actions, total_co2_saved, tone, message, created_at
		FROM weekly_insights WHERE key = $1
	`, key).Scan(&in.Key, &in.UserID, &in.WeekStart, &in.WeekEnd, &in.AvgMood, &in.AvgEcoMind,
		&in.MoodCheckins, &in.EcoActions, &in.TotalCO2Saved, &in.Tone, &in.Message, &in.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrInsightNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения недельной сводки: %w", err)
	}
	return &in, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
