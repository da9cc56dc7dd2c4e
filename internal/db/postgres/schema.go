// Package postgres — schema.go содержит схему базы в виде миграций.
package postgres

// Schema применяется по порядку при старте с STORAGE_DRIVER=postgres
// и в интеграционных тестах хранилища.
// SQL встроен в код, отдельные файлы при деплое не нужны.
var Schema = []Migration{
	{Version: 1, Name: "action_logs", SQL: migration001ActionLogs},
	{Version: 2, Name: "wallets", SQL: migration002Wallets},
	{Version: 3, Name: "moderation", SQL: migration003Moderation},
	{Version: 4, Name: "profiles_insights", SQL: migration004ProfilesInsights},
	{Version: 5, Name: "audit", SQL: migration005Audit},
	{Version: 6, Name: "admin", SQL: migration006Admin},
}

var migration001ActionLogs = `
CREATE TABLE IF NOT EXISTS carbon_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    action_type VARCHAR(32) NOT NULL,
    value DOUBLE PRECISION NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    region VARCHAR(8) NOT NULL DEFAULT '',
    factor DOUBLE PRECISION NOT NULL,
    co2_saved DOUBLE PRECISION NOT NULL,
    coins BIGINT NOT NULL DEFAULT 0,
    source VARCHAR(16) NOT NULL,
    is_auditable BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_carbon_logs_user_created ON carbon_logs(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_carbon_logs_created ON carbon_logs(created_at);

CREATE TABLE IF NOT EXISTS mood_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    mood INTEGER NOT NULL CHECK (mood BETWEEN 1 AND 10),
    activities TEXT[] NOT NULL DEFAULT '{}',
    eco_mind_score DOUBLE PRECISION NOT NULL,
    coins BIGINT NOT NULL DEFAULT 0,
    source VARCHAR(16) NOT NULL,
    is_auditable BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_mood_logs_user_created ON mood_logs(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_mood_logs_created ON mood_logs(created_at);

CREATE TABLE IF NOT EXISTS animal_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    actions TEXT[] NOT NULL,
    kindness_score DOUBLE PRECISION NOT NULL,
    coins BIGINT NOT NULL DEFAULT 0,
    moderation_id TEXT,
    source VARCHAR(16) NOT NULL,
    is_auditable BOOLEAN NOT NULL DEFAULT FALSE,
    verified BOOLEAN NOT NULL DEFAULT FALSE,
    moderated BOOLEAN NOT NULL DEFAULT FALSE,
    verified_at TIMESTAMPTZ,
    proof_paths TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_animal_logs_user_created ON animal_logs(user_id, created_at);
`

var migration002Wallets = `
CREATE TABLE IF NOT EXISTS wallets (
    user_id TEXT PRIMARY KEY,
    heal_coins BIGINT NOT NULL DEFAULT 0 CHECK (heal_coins >= 0),
    inr_balance NUMERIC(12,2) NOT NULL DEFAULT 0,
    daily_earn_limit BIGINT NOT NULL,
    redeem_limit BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    kind VARCHAR(32) NOT NULL,
    ref_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_created ON ledger_entries(user_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_ref ON ledger_entries(kind, ref_id);
`

var migration003Moderation = `
CREATE TABLE IF NOT EXISTS moderation_queue (
    id TEXT PRIMARY KEY,
    type VARCHAR(32) NOT NULL,
    log_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    coins_to_award BIGINT NOT NULL DEFAULT 0,
    approved_by TEXT,
    approved_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_moderation_queue_status_created ON moderation_queue(status, created_at);
CREATE INDEX IF NOT EXISTS idx_moderation_queue_user_status ON moderation_queue(user_id, status);
`

var migration004ProfilesInsights = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    school_id TEXT NOT NULL DEFAULT '',
    class_id TEXT NOT NULL DEFAULT '',
    section TEXT NOT NULL DEFAULT '',
    badges TEXT[] NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_profiles_school ON profiles(school_id);

CREATE TABLE IF NOT EXISTS weekly_insights (
    key TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    week_start TIMESTAMPTZ NOT NULL,
    week_end TIMESTAMPTZ NOT NULL,
    avg_mood DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_eco_mind DOUBLE PRECISION NOT NULL DEFAULT 0,
    mood_checkins INTEGER NOT NULL DEFAULT 0,
    eco_actions INTEGER NOT NULL DEFAULT 0,
    total_co2_saved DOUBLE PRECISION NOT NULL DEFAULT 0,
    tone VARCHAR(16) NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_weekly_insights_user ON weekly_insights(user_id, week_start DESC);
`

var migration005Audit = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT PRIMARY KEY,
    actor_id TEXT NOT NULL,
    action VARCHAR(64) NOT NULL,
    target_type VARCHAR(32) NOT NULL,
    target_id TEXT NOT NULL,
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_target ON audit_logs(target_type, target_id, created_at);
`

var migration006Admin = `
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    attempt_time TIMESTAMPTZ DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user_time ON admin_login_attempts(user_id, attempt_time DESC);
`
