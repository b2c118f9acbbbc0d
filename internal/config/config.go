// Пакет config — загрузка и валидация конфигурации h5p-hub
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации h5p-hub.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория опубликованного контента (по одной поддиректории на slug)
	ContentDir string
	// Директория исходных загруженных архивов (holding area)
	UploadsDir string
	// Сохранять ли исходный архив после успешной распаковки
	KeepUploads bool

	// Максимальный размер загружаемого архива в байтах
	MaxArchiveSize int64
	// Максимальное количество записей в архиве
	MaxArchiveEntries int
	// Максимальный суммарный размер распакованных данных в байтах
	MaxExtractedSize int64

	// Интервал фоновой сверки каталога и файловой системы.
	// 0 = фоновая сверка отключена, только по запросу оператора.
	ReconcileInterval time.Duration
	// Возраст директории, младше которого сверка её не трогает
	// (защита от гонки с идущей распаковкой)
	ReconcileGrace time.Duration

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// URL JWKS endpoint для проверки JWT (пусто = аутентификация отключена)
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Путь к TLS сертификату/ключу HTTP-сервера (опционально)
	TLSCert string
	TLSKey  string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Размер и TTL кэша предметных областей
	CacheSize int
	CacheTTL  time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя вершины графа текущего приложения
	DephealthName string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// HUB_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("HUB_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("HUB_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("HUB_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// HUB_CONTENT_DIR — обязательный, корень публикации
	cfg.ContentDir, err = getEnvRequired("HUB_CONTENT_DIR")
	if err != nil {
		return nil, err
	}

	// HUB_UPLOADS_DIR — обязательный, holding area исходных архивов
	cfg.UploadsDir, err = getEnvRequired("HUB_UPLOADS_DIR")
	if err != nil {
		return nil, err
	}

	// HUB_KEEP_UPLOADS — сохранять исходный архив (по умолчанию true)
	cfg.KeepUploads, err = getEnvBool("HUB_KEEP_UPLOADS", true)
	if err != nil {
		return nil, fmt.Errorf("HUB_KEEP_UPLOADS: %w", err)
	}

	// HUB_MAX_ARCHIVE_SIZE — максимальный размер архива (по умолчанию 1 GB)
	cfg.MaxArchiveSize, err = getEnvInt64("HUB_MAX_ARCHIVE_SIZE", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("HUB_MAX_ARCHIVE_SIZE: %w", err)
	}
	if cfg.MaxArchiveSize <= 0 {
		return nil, fmt.Errorf("HUB_MAX_ARCHIVE_SIZE: значение должно быть положительным")
	}

	// HUB_MAX_ARCHIVE_ENTRIES — лимит записей в архиве (по умолчанию 10000)
	cfg.MaxArchiveEntries, err = getEnvInt("HUB_MAX_ARCHIVE_ENTRIES", 10000)
	if err != nil {
		return nil, fmt.Errorf("HUB_MAX_ARCHIVE_ENTRIES: %w", err)
	}
	if cfg.MaxArchiveEntries <= 0 {
		return nil, fmt.Errorf("HUB_MAX_ARCHIVE_ENTRIES: значение должно быть положительным")
	}

	// HUB_MAX_EXTRACTED_SIZE — лимит распакованных данных (по умолчанию 4 GB)
	cfg.MaxExtractedSize, err = getEnvInt64("HUB_MAX_EXTRACTED_SIZE", 4*1073741824)
	if err != nil {
		return nil, fmt.Errorf("HUB_MAX_EXTRACTED_SIZE: %w", err)
	}
	if cfg.MaxExtractedSize < cfg.MaxArchiveSize {
		return nil, fmt.Errorf("HUB_MAX_EXTRACTED_SIZE: значение %d должно быть >= HUB_MAX_ARCHIVE_SIZE (%d)",
			cfg.MaxExtractedSize, cfg.MaxArchiveSize)
	}

	// HUB_RECONCILE_INTERVAL — интервал фоновой сверки (по умолчанию 0 = отключена)
	cfg.ReconcileInterval, err = getEnvDuration("HUB_RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("HUB_RECONCILE_INTERVAL: %w", err)
	}

	// HUB_RECONCILE_GRACE — защитный интервал для свежих директорий (по умолчанию 5m)
	cfg.ReconcileGrace, err = getEnvDuration("HUB_RECONCILE_GRACE", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("HUB_RECONCILE_GRACE: %w", err)
	}
	if cfg.ReconcileGrace < 0 {
		return nil, fmt.Errorf("HUB_RECONCILE_GRACE: значение не может быть отрицательным")
	}

	// HUB_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("HUB_DB_HOST")
	if err != nil {
		return nil, err
	}

	// HUB_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("HUB_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("HUB_DB_PORT: %w", err)
	}

	// HUB_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("HUB_DB_NAME")
	if err != nil {
		return nil, err
	}

	// HUB_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("HUB_DB_USER")
	if err != nil {
		return nil, err
	}

	// HUB_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("HUB_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// HUB_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("HUB_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("HUB_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// HUB_JWKS_URL — опциональный: пусто = запуск без аутентификации
	cfg.JWKSUrl = getEnvDefault("HUB_JWKS_URL", "")

	// HUB_JWKS_CA_CERT — CA-сертификат для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("HUB_JWKS_CA_CERT", "")

	// HUB_TLS_CERT / HUB_TLS_KEY — опциональные, должны задаваться парой
	cfg.TLSCert = getEnvDefault("HUB_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("HUB_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("HUB_TLS_CERT и HUB_TLS_KEY должны задаваться вместе")
	}

	// HUB_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("HUB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("HUB_LOG_LEVEL: %w", err)
	}

	// HUB_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("HUB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("HUB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// HUB_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("HUB_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("HUB_SHUTDOWN_TIMEOUT: %w", err)
	}

	// HUB_CACHE_SIZE — размер LRU-кэша предметных областей (по умолчанию 256)
	cfg.CacheSize, err = getEnvInt("HUB_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("HUB_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("HUB_CACHE_SIZE: значение должно быть положительным")
	}

	// HUB_CACHE_TTL — TTL записей кэша (по умолчанию 10m)
	cfg.CacheTTL, err = getEnvDuration("HUB_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("HUB_CACHE_TTL: %w", err)
	}

	// HUB_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("HUB_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("HUB_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// HUB_DEPHEALTH_GROUP — имя группы в метриках topologymetrics
	cfg.DephealthGroup = getEnvDefault("HUB_DEPHEALTH_GROUP", "h5p-hub")

	// DEPHEALTH_NAME — имя вершины графа текущего приложения
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "h5p-hub")

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 5m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
