// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Драйверы событий активности
const (
	EventsLog      = "log"
	EventsKafka    = "kafka"
	EventsRabbitMQ = "rabbitmq"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Application ---
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"`
	// Границы дня (дневной лимит, чекин настроения) и недели считаются в этом поясе
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Kolkata"`

	// --- HTTP ---
	HTTPPort            int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPRequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"10s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`

	// --- Database ---
	// memory — только для локальной разработки, данные живут до рестарта
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"healcoins"`
	DBPassword    string `envconfig:"DB_PASSWORD"`
	DBName        string `envconfig:"DB_NAME" default:"healcoins"`
	DBSSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Auth ---
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer         string        `envconfig:"JWT_ISSUER" default:"healcoins"`
	AdminIDsRaw       string        `envconfig:"ADMIN_IDS"`
	AdminIDs          []string      `envconfig:"-"` // заполним вручную
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminTokenTTL     time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"12h"`

	// --- Rewards ---
	DailyCoinCap          int64   `envconfig:"REWARD_DAILY_COIN_CAP" default:"100"`
	RedeemLimit           int64   `envconfig:"REWARD_REDEEM_LIMIT" default:"500"`
	CoinsPerKgCO2         float64 `envconfig:"REWARD_COINS_PER_KG_CO2" default:"2"`
	CoinsPerEcoMindPoint  float64 `envconfig:"REWARD_COINS_PER_ECO_MIND_POINT" default:"1"`
	CoinsPerKindnessPoint float64 `envconfig:"REWARD_COINS_PER_KINDNESS_POINT" default:"1"`

	// --- Cooldowns ---
	CarbonCooldown time.Duration `envconfig:"COOLDOWN_CARBON" default:"5m"`
	AnimalCooldown time.Duration `envconfig:"COOLDOWN_ANIMAL" default:"30m"`

	// --- Emission factors ---
	EmissionAPIURL     string        `envconfig:"EMISSION_API_URL"`
	EmissionAPIKey     string        `envconfig:"EMISSION_API_KEY"`
	EmissionAPITimeout time.Duration `envconfig:"EMISSION_API_TIMEOUT" default:"3s"`
	EmissionTablePath  string        `envconfig:"EMISSION_TABLE_PATH"`
	EmissionCacheTTL   time.Duration `envconfig:"EMISSION_CACHE_TTL" default:"6h"`

	// --- Redis (кэш факторов) ---
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Proof uploads (S3-совместимое хранилище) ---
	S3Endpoint        string        `envconfig:"S3_ENDPOINT"`
	S3Region          string        `envconfig:"S3_REGION" default:"auto"`
	S3Bucket          string        `envconfig:"S3_BUCKET"`
	S3AccessKeyID     string        `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `envconfig:"S3_SECRET_ACCESS_KEY"`
	ProofURLTTL       time.Duration `envconfig:"PROOF_URL_TTL" default:"15m"`

	// --- Activity events ---
	EventsDriver     string   `envconfig:"EVENTS_DRIVER" default:"log"`
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic       string   `envconfig:"KAFKA_TOPIC" default:"healcoins.activity"`
	RabbitMQURL      string   `envconfig:"RABBITMQ_URL"`
	RabbitMQExchange string   `envconfig:"RABBITMQ_EXCHANGE" default:"healcoins.activity"`

	// --- Telegram (уведомления модераторам) ---
	TelegramBotToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `envconfig:"TELEGRAM_ADMIN_CHAT_ID"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Jobs ---
	JobsEnabled  bool  `envconfig:"JOBS_ENABLED" default:"true"`
	InsightsSeed int64 `envconfig:"INSIGHTS_SEED" default:"0"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// UploadsEnabled — настроено ли хранилище пруфов.
func (c *Config) UploadsEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORAGE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("неизвестный STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.EventsDriver {
	case EventsLog:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS обязателен для EVENTS_DRIVER=kafka")
		}
	case EventsRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL обязателен для EVENTS_DRIVER=rabbitmq")
		}
	default:
		return fmt.Errorf("неизвестный EVENTS_DRIVER %q", c.EventsDriver)
	}

	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET должен быть не короче 16 символов")
	}
	if c.DailyCoinCap <= 0 {
		return fmt.Errorf("REWARD_DAILY_COIN_CAP должен быть > 0")
	}
	if c.CoinsPerKgCO2 <= 0 || c.CoinsPerEcoMindPoint <= 0 || c.CoinsPerKindnessPoint <= 0 {
		return fmt.Errorf("веса начислений REWARD_COINS_PER_* должны быть > 0")
	}
	if c.CarbonCooldown < 0 || c.AnimalCooldown < 0 {
		return fmt.Errorf("COOLDOWN_* не может быть отрицательным")
	}
	if c.HTTPRequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.AdminIDs = parseCSV(cfg.AdminIDsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
