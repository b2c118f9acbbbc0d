package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv задаёт минимальный набор обязательных переменных окружения.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HUB_CONTENT_DIR", "/var/lib/h5p-hub/content")
	t.Setenv("HUB_UPLOADS_DIR", "/var/lib/h5p-hub/uploads")
	t.Setenv("HUB_DB_HOST", "localhost")
	t.Setenv("HUB_DB_NAME", "h5phub")
	t.Setenv("HUB_DB_USER", "h5phub")
	t.Setenv("HUB_DB_PASSWORD", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port по умолчанию = %d, ожидалось 8080", cfg.Port)
	}
	if !cfg.KeepUploads {
		t.Error("KeepUploads по умолчанию должен быть true")
	}
	if cfg.MaxArchiveSize != 1073741824 {
		t.Errorf("MaxArchiveSize по умолчанию = %d, ожидалось 1073741824", cfg.MaxArchiveSize)
	}
	if cfg.MaxArchiveEntries != 10000 {
		t.Errorf("MaxArchiveEntries по умолчанию = %d, ожидалось 10000", cfg.MaxArchiveEntries)
	}
	if cfg.ReconcileInterval != 0 {
		t.Errorf("ReconcileInterval по умолчанию = %v, ожидалось 0", cfg.ReconcileInterval)
	}
	if cfg.ReconcileGrace != 5*time.Minute {
		t.Errorf("ReconcileGrace по умолчанию = %v, ожидалось 5m", cfg.ReconcileGrace)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort по умолчанию = %d, ожидалось 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode по умолчанию = %q, ожидалось disable", cfg.DBSSLMode)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel по умолчанию = %v, ожидалось info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat по умолчанию = %q, ожидалось json", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout по умолчанию = %v, ожидалось 10s", cfg.ShutdownTimeout)
	}
	if cfg.CacheSize != 256 {
		t.Errorf("CacheSize по умолчанию = %d, ожидалось 256", cfg.CacheSize)
	}
	if cfg.JWKSUrl != "" {
		t.Errorf("JWKSUrl по умолчанию = %q, ожидалась пустая строка", cfg.JWKSUrl)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	cases := []string{
		"HUB_CONTENT_DIR",
		"HUB_UPLOADS_DIR",
		"HUB_DB_HOST",
		"HUB_DB_NAME",
		"HUB_DB_USER",
		"HUB_DB_PASSWORD",
	}

	for _, missing := range cases {
		t.Run(missing, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(missing, "")

			_, err := Load()
			if err == nil {
				t.Fatalf("Load без %s должен вернуть ошибку", missing)
			}
			if !strings.Contains(err.Error(), missing) {
				t.Errorf("ошибка %q не упоминает переменную %s", err, missing)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HUB_PORT", "9090")
	t.Setenv("HUB_KEEP_UPLOADS", "false")
	t.Setenv("HUB_MAX_ARCHIVE_SIZE", "52428800")
	t.Setenv("HUB_MAX_EXTRACTED_SIZE", "104857600")
	t.Setenv("HUB_RECONCILE_INTERVAL", "30m")
	t.Setenv("HUB_RECONCILE_GRACE", "90s")
	t.Setenv("HUB_LOG_LEVEL", "debug")
	t.Setenv("HUB_LOG_FORMAT", "text")
	t.Setenv("HUB_JWKS_URL", "https://sso.example.com/jwks.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидалось 9090", cfg.Port)
	}
	if cfg.KeepUploads {
		t.Error("KeepUploads должен быть false")
	}
	if cfg.MaxArchiveSize != 52428800 {
		t.Errorf("MaxArchiveSize = %d, ожидалось 52428800", cfg.MaxArchiveSize)
	}
	if cfg.ReconcileInterval != 30*time.Minute {
		t.Errorf("ReconcileInterval = %v, ожидалось 30m", cfg.ReconcileInterval)
	}
	if cfg.ReconcileGrace != 90*time.Second {
		t.Errorf("ReconcileGrace = %v, ожидалось 90s", cfg.ReconcileGrace)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидалось debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидалось text", cfg.LogFormat)
	}
	if cfg.JWKSUrl != "https://sso.example.com/jwks.json" {
		t.Errorf("JWKSUrl = %q", cfg.JWKSUrl)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"порт не число", "HUB_PORT", "abc"},
		{"порт вне диапазона", "HUB_PORT", "70000"},
		{"отрицательный размер архива", "HUB_MAX_ARCHIVE_SIZE", "-1"},
		{"некорректная длительность", "HUB_RECONCILE_INTERVAL", "tomorrow"},
		{"отрицательный grace", "HUB_RECONCILE_GRACE", "-1m"},
		{"некорректный ssl mode", "HUB_DB_SSL_MODE", "maybe"},
		{"некорректный уровень логов", "HUB_LOG_LEVEL", "verbose"},
		{"некорректный формат логов", "HUB_LOG_FORMAT", "xml"},
		{"некорректное булево", "HUB_KEEP_UPLOADS", "да"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load с %s=%q должен вернуть ошибку", tc.key, tc.value)
			}
		})
	}
}

func TestLoadExtractedSizeBelowArchiveSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HUB_MAX_ARCHIVE_SIZE", "1000")
	t.Setenv("HUB_MAX_EXTRACTED_SIZE", "500")

	if _, err := Load(); err == nil {
		t.Error("Load должен отклонить MAX_EXTRACTED_SIZE < MAX_ARCHIVE_SIZE")
	}
}

func TestLoadTLSPairValidation(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HUB_TLS_CERT", "/etc/h5p-hub/tls.crt")

	if _, err := Load(); err == nil {
		t.Error("Load должен отклонить HUB_TLS_CERT без HUB_TLS_KEY")
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5433,
		DBName:     "h5phub",
		DBUser:     "hub",
		DBPassword: "pass",
		DBSSLMode:  "require",
	}

	dsn := cfg.DatabaseDSN()
	want := "host=db.example.com port=5433 dbname=h5phub user=hub password=pass sslmode=require"
	if dsn != want {
		t.Errorf("DatabaseDSN = %q, ожидалось %q", dsn, want)
	}
}
