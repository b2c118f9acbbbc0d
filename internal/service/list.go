// list.go — чтение каталога контента.
package service

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
)

// contentTotal — текущее количество записей каталога (gauge).
// Обновляется при каждом подсчёте записей.
var contentTotal = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "hub_content_total",
	Help: "Текущее количество записей каталога контента",
})

// List возвращает страницу каталога и общее количество записей
// по тем же фильтрам.
func (cs *ContentService) List(ctx context.Context, filters repository.ContentListFilters, limit, offset int) ([]*model.ContentRecord, int, error) {
	records, err := cs.contents.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: чтение списка: %w", ErrCatalog, err)
	}

	total, err := cs.contents.Count(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: подсчёт записей: %w", ErrCatalog, err)
	}
	cs.refreshContentTotal(ctx)

	return records, total, nil
}

// refreshContentTotal обновляет gauge общего числа записей каталога.
// Сбой подсчёта метрику не меняет.
func (cs *ContentService) refreshContentTotal(ctx context.Context) {
	if total, err := cs.contents.Count(ctx, repository.ContentListFilters{}); err == nil {
		contentTotal.Set(float64(total))
	}
}
