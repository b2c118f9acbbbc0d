// ingest.go — оркестрация приёма H5P-пакета.
//
// Последовательность приёма:
//  1. Генерация slug из заголовка
//  2. Сохранение исходного архива в uploads ({slug}.h5p)
//  3. Структурная проверка архива
//  4. Распаковка в директорию публикации ({contentDir}/{slug})
//  5. Чтение манифеста h5p.json (необязательное)
//  6. Создание записи каталога
//
// При сбое любого шага все следы предыдущих шагов убираются
// компенсирующими удалениями: либо контент опубликован целиком,
// либо не опубликован вовсе.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/h5phub/internal/archive"
	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
	"github.com/bigkaa/h5phub/internal/slug"
	"github.com/bigkaa/h5phub/internal/storage/uploadstore"
)

// Prometheus метрики приёма контента
var (
	// ingestTotal — количество операций приёма по результату.
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_ingest_total",
		Help: "Общее количество операций приёма H5P-пакетов",
	}, []string{"result"})

	// ingestDurationSeconds — длительность приёма.
	ingestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hub_ingest_duration_seconds",
		Help:    "Длительность приёма H5P-пакета в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Сентинельные ошибки жизненного цикла контента. Handlers используют
// их для выбора HTTP-кода ответа.
var (
	// ErrInvalidArchive — архив не прошёл структурную проверку.
	ErrInvalidArchive = errors.New("архив не является валидным H5P-пакетом")
	// ErrExtraction — сбой распаковки архива.
	ErrExtraction = errors.New("ошибка распаковки архива")
	// ErrCatalog — сбой операции с каталогом.
	ErrCatalog = errors.New("ошибка операции с каталогом")
	// ErrStorage — сбой файлового хранилища.
	ErrStorage = errors.New("ошибка файлового хранилища")
)

// IngestRequest — метаданные принимаемого пакета.
type IngestRequest struct {
	Title         string
	Description   string
	Password      string
	SubjectAreaID *int64
	CreatedBy     string
}

// ContentService — оркестратор жизненного цикла контента:
// приём, обновление и удаление.
type ContentService struct {
	contents   repository.ContentRepository
	uploads    *uploadstore.Store
	extractor  *archive.Extractor
	contentDir string
	// Сохранять исходный архив после успешной распаковки
	keepUploads bool
	logger      *slog.Logger
}

// NewContentService создаёт сервис жизненного цикла контента.
func NewContentService(
	contents repository.ContentRepository,
	uploads *uploadstore.Store,
	extractor *archive.Extractor,
	contentDir string,
	keepUploads bool,
	logger *slog.Logger,
) *ContentService {
	return &ContentService{
		contents:    contents,
		uploads:     uploads,
		extractor:   extractor,
		contentDir:  contentDir,
		keepUploads: keepUploads,
		logger:      logger.With(slog.String("component", "content")),
	}
}

// Ingest принимает H5P-пакет: сохраняет архив, проверяет структуру,
// распаковывает и регистрирует в каталоге.
//
// Конфликт slug (гонка генерации суффиксов) разрешается одной
// повторной попыткой со свежим суффиксом.
func (cs *ContentService) Ingest(ctx context.Context, reader io.Reader, req IngestRequest) (*model.ContentRecord, error) {
	start := time.Now()

	record, err := cs.ingest(ctx, reader, req)

	ingestDurationSeconds.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		ingestTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrInvalidArchive):
		ingestTotal.WithLabelValues("invalid_archive").Inc()
	default:
		ingestTotal.WithLabelValues("error").Inc()
	}
	return record, err
}

func (cs *ContentService) ingest(ctx context.Context, reader io.Reader, req IngestRequest) (*model.ContentRecord, error) {
	contentSlug := slug.Generate(req.Title)

	// Шаг 1: исходный архив в uploads
	saved, err := cs.uploads.Save(reader, contentSlug)
	if err != nil {
		return nil, fmt.Errorf("%w: сохранение архива: %w", ErrStorage, err)
	}

	// Шаг 2: структурная проверка без распаковки
	validation, err := archive.Validate(saved.FullPath)
	if err != nil {
		cs.removeUpload(saved.Name)
		return nil, fmt.Errorf("ошибка проверки архива: %w", err)
	}
	if !validation.Valid {
		cs.removeUpload(saved.Name)
		return nil, fmt.Errorf("%w: %s", ErrInvalidArchive, validation.Reason)
	}

	// Шаг 3: распаковка в директорию публикации
	destDir := filepath.Join(cs.contentDir, contentSlug)
	if err := cs.extractor.Extract(saved.FullPath, destDir); err != nil {
		cs.removeContentDir(destDir)
		cs.removeUpload(saved.Name)
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	// Шаг 4: тип контента из манифеста, fallback на Unknown
	manifest := archive.ReadManifest(destDir)

	record := &model.ContentRecord{
		Title:         req.Title,
		Slug:          contentSlug,
		FilePath:      "/h5p/" + contentSlug,
		ContentType:   manifest.ContentType(),
		Description:   req.Description,
		Password:      req.Password,
		SubjectAreaID: req.SubjectAreaID,
		CreatedBy:     req.CreatedBy,
	}

	// Шаг 5: запись каталога. Конфликт slug — одна повторная попытка
	// со свежим суффиксом и переносом уже распакованных данных.
	if err := cs.contents.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			retried, retryErr := cs.retryWithFreshSlug(ctx, record, saved.Name, destDir, req.Title)
			if retryErr != nil {
				return nil, retryErr
			}
			record = retried
		} else {
			cs.removeContentDir(destDir)
			cs.removeUpload(saved.Name)
			return nil, fmt.Errorf("%w: регистрация: %w", ErrCatalog, err)
		}
	}

	if !cs.keepUploads {
		cs.removeUpload(record.Slug + ".h5p")
	}

	cs.refreshContentTotal(ctx)
	cs.logger.Info("Контент принят",
		slog.String("slug", record.Slug),
		slog.String("content_type", record.ContentType),
		slog.Int64("archive_size", saved.Size),
		slog.String("checksum", saved.Checksum),
	)
	return record, nil
}

// retryWithFreshSlug переносит распакованные данные и архив под новый
// slug и повторяет регистрацию в каталоге один раз.
func (cs *ContentService) retryWithFreshSlug(ctx context.Context, record *model.ContentRecord, uploadName, destDir, title string) (*model.ContentRecord, error) {
	freshSlug := slug.Generate(title)
	freshDest := filepath.Join(cs.contentDir, freshSlug)
	freshUpload := freshSlug + ".h5p"

	oldUploadPath, err := cs.uploads.FullPath(uploadName)
	if err != nil {
		cs.removeContentDir(destDir)
		cs.removeUpload(uploadName)
		return nil, fmt.Errorf("ошибка повторной регистрации: %w", err)
	}
	newUploadPath, _ := cs.uploads.FullPath(freshUpload)

	if err := os.Rename(destDir, freshDest); err != nil {
		cs.removeContentDir(destDir)
		cs.removeUpload(uploadName)
		return nil, fmt.Errorf("%w: перенос контента под новый slug: %w", ErrStorage, err)
	}
	if err := os.Rename(oldUploadPath, newUploadPath); err != nil {
		cs.removeContentDir(freshDest)
		cs.removeUpload(uploadName)
		return nil, fmt.Errorf("%w: перенос архива под новый slug: %w", ErrStorage, err)
	}

	record.Slug = freshSlug
	record.FilePath = "/h5p/" + freshSlug
	if err := cs.contents.Create(ctx, record); err != nil {
		cs.removeContentDir(freshDest)
		cs.removeUpload(freshUpload)
		return nil, fmt.Errorf("%w: регистрация после повтора: %w", ErrCatalog, err)
	}

	cs.logger.Warn("Конфликт slug, контент перенесён под новый slug",
		slog.String("slug", freshSlug),
	)
	return record, nil
}

// removeContentDir — компенсирующее удаление директории контента.
// Ошибка логируется, но не прерывает обработку: остатки подберёт сверка.
func (cs *ContentService) removeContentDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		cs.logger.Error("Ошибка компенсирующего удаления директории",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
}

// removeUpload — компенсирующее удаление исходного архива.
func (cs *ContentService) removeUpload(name string) {
	if err := cs.uploads.Delete(name); err != nil {
		cs.logger.Error("Ошибка компенсирующего удаления архива",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}
