// cache.go — LRU-кэш предметных областей с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Предметные области читаются почти при каждой выдаче каталога и
// меняются редко, поэтому кэшируются per-instance in-memory.
package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш предметных областей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша предметных областей.",
	})
)

// SubjectAreaCache — read-through LRU-кэш предметных областей с TTL.
type SubjectAreaCache struct {
	areas repository.SubjectAreaRepository
	cache *expirable.LRU[int64, *model.SubjectArea]
}

// NewSubjectAreaCache создаёт кэш с указанным максимальным размером и TTL.
func NewSubjectAreaCache(areas repository.SubjectAreaRepository, maxSize int, ttl time.Duration) *SubjectAreaCache {
	cache := expirable.NewLRU[int64, *model.SubjectArea](maxSize, nil, ttl)
	return &SubjectAreaCache{areas: areas, cache: cache}
}

// Get возвращает предметную область по ID, читая из репозитория
// при промахе. Обновляет Prometheus-метрики hit/miss.
func (c *SubjectAreaCache) Get(ctx context.Context, id int64) (*model.SubjectArea, error) {
	if val, ok := c.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return val, nil
	}
	cacheMissesTotal.Inc()

	area, err := c.areas.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, area)
	return area, nil
}

// Invalidate удаляет запись из кэша (например после удаления области).
func (c *SubjectAreaCache) Invalidate(id int64) {
	c.cache.Remove(id)
}
