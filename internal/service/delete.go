// delete.go — удаление контента и обновление метаданных каталога.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/h5phub/internal/domain/model"
)

// deleteTotal — количество операций удаления по результату.
var deleteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hub_delete_total",
	Help: "Общее количество операций удаления контента",
}, []string{"result"})

// Delete удаляет контент: исходный архив, директорию публикации
// и запись каталога.
//
// Порядок важен: сначала файловая система, затем каталог. При сбое
// файловой операции запись остаётся и удаление можно повторить.
// Отсутствие файлов на диске не считается ошибкой.
func (cs *ContentService) Delete(ctx context.Context, id int64) error {
	record, err := cs.contents.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Исходный архив: отсутствие — не ошибка
	if err := cs.uploads.Delete(record.Slug + ".h5p"); err != nil {
		deleteTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: удаление архива: %w", ErrStorage, err)
	}

	// Директория публикации: RemoveAll отсутствующей директории — no-op
	destDir := filepath.Join(cs.contentDir, record.Slug)
	if err := os.RemoveAll(destDir); err != nil {
		deleteTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: удаление директории контента: %w", ErrStorage, err)
	}

	// Запись каталога — последней
	if err := cs.contents.Delete(ctx, id); err != nil {
		deleteTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: удаление записи: %w", ErrCatalog, err)
	}

	deleteTotal.WithLabelValues("ok").Inc()
	cs.refreshContentTotal(ctx)
	cs.logger.Info("Контент удалён",
		slog.Int64("id", id),
		slog.String("slug", record.Slug),
	)
	return nil
}

// UpdateRequest — изменяемые поля записи каталога.
// nil-поле означает «не менять».
type UpdateRequest struct {
	Title         *string
	Description   *string
	Password      *string
	SubjectAreaID *int64
	// Сбросить привязку к предметной области
	ClearSubjectArea bool
}

// Update обновляет метаданные записи каталога. Slug, file_path и
// распакованные данные неизменны: переименование контента не
// перемещает его на диске.
func (cs *ContentService) Update(ctx context.Context, id int64, req UpdateRequest) (*model.ContentRecord, error) {
	record, err := cs.contents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		record.Title = *req.Title
	}
	if req.Description != nil {
		record.Description = *req.Description
	}
	if req.Password != nil {
		record.Password = *req.Password
	}
	if req.ClearSubjectArea {
		record.SubjectAreaID = nil
	} else if req.SubjectAreaID != nil {
		record.SubjectAreaID = req.SubjectAreaID
	}

	if err := cs.contents.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: обновление метаданных: %w", ErrCatalog, err)
	}

	cs.logger.Info("Метаданные контента обновлены",
		slog.Int64("id", id),
		slog.String("slug", record.Slug),
	)
	return record, nil
}

// Get возвращает запись каталога по ID.
func (cs *ContentService) Get(ctx context.Context, id int64) (*model.ContentRecord, error) {
	return cs.contents.GetByID(ctx, id)
}

// GetBySlug возвращает запись каталога по slug.
func (cs *ContentService) GetBySlug(ctx context.Context, slug string) (*model.ContentRecord, error) {
	return cs.contents.GetBySlug(ctx, slug)
}
