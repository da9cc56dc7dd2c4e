package emission

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/features/ledger"
)

// Factor — итог разрешения коэффициента.
type Factor struct {
	Value  float64
	Source string // ledger.SourceAPI или ledger.SourceMock
	Region string
}

// Auditable — пригодна ли запись для внешнего аудита.
func (f Factor) Auditable() bool { return f.Source == ledger.SourceAPI }

// RemoteSource — внешний справочник коэффициентов.
type RemoteSource interface {
	Lookup(ctx context.Context, actionType, region string) (float64, error)
}

// Cache — кэш удачных ответов внешнего справочника.
type Cache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, value float64, ttl time.Duration) error
}

// Resolver выбирает коэффициент: сначала внешний справочник (через кэш),
// при любой ошибке — локальные таблицы.
type Resolver struct {
	tables   Tables
	remote   RemoteSource
	cache    Cache
	cacheTTL time.Duration
}

// NewResolver создаёт резолвер. remote и cache могут быть nil.
func NewResolver(tables Tables, remote RemoteSource, cache Cache, cacheTTL time.Duration) *Resolver {
	return &Resolver{tables: tables, remote: remote, cache: cache, cacheTTL: cacheTTL}
}

// Resolve никогда не возвращает ошибку: отказ внешнего источника означает fallback.
func (r *Resolver) Resolve(ctx context.Context, actionType, location string) Factor {
	region := r.tables.RegionFor(location)

	if r.remote != nil {
		key := fmt.Sprintf("emission:%s:%s", actionType, region)
		if v, ok := r.cached(ctx, key); ok {
			return Factor{Value: v, Source: ledger.SourceAPI, Region: region}
		}

		v, err := r.remote.Lookup(ctx, actionType, region)
		if err == nil {
			if r.cache != nil {
				if err := r.cache.Set(ctx, key, v, r.cacheTTL); err != nil {
					log.WithError(err).Warn("Не удалось закэшировать коэффициент")
				}
			}
			return Factor{Value: v, Source: ledger.SourceAPI, Region: region}
		}
		log.WithError(err).WithFields(log.Fields{
			"action_type": actionType,
			"region":      region,
		}).Warn("Внешний справочник недоступен, используем локальную таблицу")
	}

	return Factor{
		Value:  r.tables.Fallback(actionType, region),
		Source: ledger.SourceMock,
		Region: region,
	}
}

func (r *Resolver) cached(ctx context.Context, key string) (float64, bool) {
	if r.cache == nil {
		return 0, false
	}
	v, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Debug("Кэш коэффициентов недоступен")
		return 0, false
	}
	return v, ok
}
