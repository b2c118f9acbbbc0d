// Точка входа h5p-hub — сервиса публикации H5P-контента.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/h5phub/internal/api/handlers"
	"github.com/bigkaa/h5phub/internal/api/middleware"
	"github.com/bigkaa/h5phub/internal/archive"
	"github.com/bigkaa/h5phub/internal/config"
	"github.com/bigkaa/h5phub/internal/database"
	"github.com/bigkaa/h5phub/internal/repository"
	"github.com/bigkaa/h5phub/internal/server"
	"github.com/bigkaa/h5phub/internal/service"
	"github.com/bigkaa/h5phub/internal/storage/uploadstore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("h5p-hub запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("content_dir", cfg.ContentDir),
		slog.String("uploads_dir", cfg.UploadsDir),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. PostgreSQL: миграции и пул подключений
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 2. Репозитории и кэш предметных областей
	contentRepo := repository.NewContentRepository(pool)
	areaRepo := repository.NewSubjectAreaRepository(pool)
	areaCache := service.NewSubjectAreaCache(areaRepo, cfg.CacheSize, cfg.CacheTTL)

	// 3. Файловые хранилища
	if err := os.MkdirAll(cfg.ContentDir, 0o755); err != nil {
		logger.Error("Ошибка создания директории контента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	uploads, err := uploadstore.New(cfg.UploadsDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища архивов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Сервисы
	extractor := archive.NewExtractor(cfg.MaxArchiveEntries, cfg.MaxExtractedSize)
	contentSvc := service.NewContentService(contentRepo, uploads, extractor, cfg.ContentDir, cfg.KeepUploads, logger)

	// 5. Фоновая сверка файловой системы с каталогом
	reconcileSvc := service.NewReconcileService(contentRepo, uploads, cfg.ContentDir,
		cfg.ReconcileInterval, cfg.ReconcileGrace, logger)
	reconcileSvc.Start(ctx)

	// 6. JWT middleware + мониторинг провайдера аутентификации.
	// Пустой HUB_JWKS_URL — запуск без аутентификации (для разработки).
	var jwtAuth *middleware.JWTAuth
	var dephealthSvc *service.DephealthService
	if cfg.JWKSUrl != "" {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:    cfg.JWKSUrl,
			CACertPath: cfg.JWKSCACert,
		}, logger)
		if err != nil {
			logger.Error("Ошибка настройки JWT аутентификации",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSUrl))

		dephealthSvc, err = service.NewDephealthService(
			cfg.DephealthName,
			cfg.DephealthGroup,
			cfg.JWKSUrl,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
			dephealthSvc = nil
		}
	} else {
		logger.Warn("HUB_JWKS_URL не задан, запуск без аутентификации")
	}

	// 7. Handlers
	h := handlers.New(
		handlers.NewContentHandler(contentSvc, areaCache, cfg.MaxArchiveSize, logger),
		handlers.NewSubjectAreasHandler(areaRepo, areaCache, logger),
		handlers.NewUploadsHandler(uploads, logger),
		handlers.NewMaintenanceHandler(reconcileSvc, logger),
		handlers.NewServeHandler(cfg.ContentDir, logger),
		handlers.NewHealthHandler(database.NewReadinessChecker(pool), cfg.ContentDir, cfg.UploadsDir, logger),
		jwtAuth,
	)

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	reconcileSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("h5p-hub остановлен")
}
