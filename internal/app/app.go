// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт хранилище, кэш и брокер событий, сервисы,
// HTTP-роутер и планировщик и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/auth"
	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/config"
	"healcoins.app/ledger/internal/db/postgres"
	"healcoins.app/ledger/internal/events"
	"healcoins.app/ledger/internal/features/actions"
	"healcoins.app/ledger/internal/features/admin"
	"healcoins.app/ledger/internal/features/audit"
	"healcoins.app/ledger/internal/features/emission"
	"healcoins.app/ledger/internal/features/insights"
	"healcoins.app/ledger/internal/features/ledger"
	"healcoins.app/ledger/internal/features/moderation"
	"healcoins.app/ledger/internal/features/proofs"
	"healcoins.app/ledger/internal/jobs"
	"healcoins.app/ledger/internal/notify"
	"healcoins.app/ledger/internal/server"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *server.Server
	Scheduler *jobs.Scheduler // nil, если JOBS_ENABLED=false
	DB        *pgxpool.Pool   // nil для STORAGE_DRIVER=memory

	redis     *redis.Client
	publisher events.Publisher
	limiter   *server.RateLimiter
}

// storage — хранилища, выбранные по STORAGE_DRIVER.
type storage struct {
	pool     *pgxpool.Pool
	ledger   ledger.Store
	audit    audit.Repository
	attempts admin.AttemptStore
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc := common.LoadLocation(cfg.AppTimezone)
	a := &App{}

	// === 1. Хранилище ===
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DB = st.pool

	// === 2. Факторы выбросов ===
	tables := emission.DefaultTables()
	if cfg.EmissionTablePath != "" {
		tables, err = emission.LoadTables(cfg.EmissionTablePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ошибка загрузки таблиц факторов: %w", err)
		}
	}
	var remote emission.RemoteSource
	if cfg.EmissionAPIURL != "" {
		remote = emission.NewHTTPSource(cfg.EmissionAPIURL, cfg.EmissionAPIKey, cfg.EmissionAPITimeout)
	}
	var cache emission.Cache
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			// без кэша сервис работает, просто чаще ходит в API
			log.WithError(err).Warn("Redis недоступен, кэш факторов отключён")
		} else {
			cache = emission.NewRedisCache(a.redis)
		}
	}
	resolver := emission.NewResolver(tables, remote, cache, cfg.EmissionCacheTTL)

	// === 3. События и уведомления ===
	a.publisher, err = newPublisher(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
		if err != nil {
			a.Close()
			return nil, err
		}
		tg.Start(ctx)
		notifier = tg
	}

	// === 4. Сервисы ===
	ids := ledger.UUIDGenerator{}
	l := ledger.New(st.ledger, ids, ledger.Options{
		DailyCap:    cfg.DailyCoinCap,
		RedeemLimit: cfg.RedeemLimit,
		Location:    loc,
	})
	recorder := audit.NewRecorder(st.audit, a.publisher, ids)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)

	var rng *rand.Rand
	if cfg.InsightsSeed != 0 {
		rng = rand.New(rand.NewSource(cfg.InsightsSeed))
	}

	var presigner proofs.Presigner
	if cfg.UploadsEnabled() {
		presigner = proofs.NewS3Presigner(cfg)
	} else {
		log.Warn("S3 не настроен, загрузка пруфов отключена")
	}

	actionService := actions.NewService(l, resolver, recorder, notifier, cfg)
	moderationService := moderation.NewService(l, st.ledger, recorder, notifier)
	insightService := insights.NewService(st.ledger, recorder, loc, nil, rng)
	proofService := proofs.NewService(st.ledger, presigner, ids, cfg.ProofURLTTL)
	adminService := admin.NewService(st.attempts, tokens, cfg)

	// === 5. HTTP ===
	a.limiter = server.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	h := &server.Handler{
		Actions:    actionService,
		Moderation: moderationService,
		Insights:   insightService,
		Proofs:     proofService,
		Admin:      adminService,
		Wallets:    st.ledger,
		Profiles:   st.ledger,
	}
	router := server.NewRouter(h, tokens, a.limiter, cfg.HTTPRequestTimeout)
	a.Server = server.NewServer(cfg.HTTPPort, router)

	// === 6. Планировщик задач ===
	if cfg.JobsEnabled {
		a.Scheduler = jobs.NewScheduler(loc, insightService, moderationService, notifier)
	}

	log.WithFields(log.Fields{
		"storage":  cfg.StorageDriver,
		"events":   cfg.EventsDriver,
		"timezone": loc.String(),
	}).Info("Приложение собрано")
	return a, nil
}

// openStorage подключает хранилище по STORAGE_DRIVER.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("STORAGE_DRIVER=memory: данные не сохраняются между перезапусками")
		return &storage{
			ledger:   ledger.NewMemoryStore(),
			audit:    audit.NewMemoryRepository(),
			attempts: admin.NewMemoryRepository(nil),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := postgres.Migrate(ctx, pool, postgres.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	return &storage{
		pool:     pool,
		ledger:   ledger.NewPostgresStore(pool),
		audit:    audit.NewPostgresRepository(pool),
		attempts: admin.NewRepository(pool),
	}, nil
}

// newPublisher создаёт отправителя событий по EVENTS_DRIVER.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.EventsRabbitMQ:
		p, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return events.LogPublisher{}, nil
	}
}

// Close освобождает соединения. Вызывается после остановки HTTP-сервера.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия publisher")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Shutdown останавливает приём запросов и фоновые задачи.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	return a.Server.Shutdown(ctx)
}
