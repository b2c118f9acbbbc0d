// metrics.go — Prometheus HTTP метрики h5p-hub.
// Регистрирует метрики: hub_http_requests_total, hub_http_request_duration_seconds.
// Бизнес-метрики (hub_ingest_total, hub_reconcile_* и др.) регистрируются
// в соответствующих пакетах и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_http_requests_total",
			Help: "Общее количество HTTP-запросов к h5p-hub",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hub_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к h5p-hub в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (сворачиваем переменные сегменты для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath сворачивает переменные сегменты пути для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/content/42 → /api/v1/content/{id}
// /h5p/grammar-quiz-a1b2c3d4/content/images/pic.png → /h5p/{slug}
func normalizePath(path string) string {
	switch {
	case path == "/health/live", path == "/health/ready", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/h5p/"):
		return "/h5p/{slug}"
	case strings.HasPrefix(path, "/api/v1/content/"):
		rest := strings.TrimPrefix(path, "/api/v1/content/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 1 {
			return "/api/v1/content/{id}"
		}
		return "/api/v1/content/{id}/" + parts[1]
	case strings.HasPrefix(path, "/api/v1/uploads/"):
		return "/api/v1/uploads/{name}"
	case strings.HasPrefix(path, "/api/v1/subject-areas/"):
		return "/api/v1/subject-areas/{id}"
	}
	return path
}
