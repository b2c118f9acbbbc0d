// handler.go — агрегация доменных handler'ов и регистрация маршрутов.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/h5phub/internal/api/middleware"
)

// Handlers собирает все доменные handlers в один объект.
type Handlers struct {
	content     *ContentHandler
	areas       *SubjectAreasHandler
	uploads     *UploadsHandler
	maintenance *MaintenanceHandler
	serve       *ServeHandler
	health      *HealthHandler
	// auth — JWT middleware, nil = аутентификация отключена
	auth *middleware.JWTAuth
}

// New создаёт агрегатор handlers.
// auth может быть nil: все маршруты тогда работают без аутентификации.
func New(
	content *ContentHandler,
	areas *SubjectAreasHandler,
	uploads *UploadsHandler,
	maintenance *MaintenanceHandler,
	serve *ServeHandler,
	health *HealthHandler,
	auth *middleware.JWTAuth,
) *Handlers {
	return &Handlers{
		content:     content,
		areas:       areas,
		uploads:     uploads,
		maintenance: maintenance,
		serve:       serve,
		health:      health,
		auth:        auth,
	}
}

// Routes регистрирует все маршруты приложения на роутере.
//
// Публичные: health, выдача контента, чтение каталога, проверка пароля.
// Роль admin: приём, изменение и удаление контента, таксономия,
// обслуживание, управление загрузками.
func (h *Handlers) Routes(r chi.Router) {
	// Health endpoints (публичные, для Kubernetes probes)
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)

	// Выдача распакованного контента (публичная)
	r.Get("/h5p/{slug}/*", h.serve.ServeContent)

	r.Route("/api/v1", func(r chi.Router) {
		// Чтение каталога — публичное (витрина и проигрыватель)
		r.Get("/content", h.content.List)
		r.Get("/content/{id}", h.content.Get)
		r.Get("/content/{id}/protection", h.content.CheckProtection)
		r.Post("/content/{id}/verify-password", h.content.VerifyPassword)
		r.Get("/subject-areas", h.areas.List)

		// Изменяющие операции и обслуживание — роль admin
		r.Group(func(r chi.Router) {
			r.Use(h.admin()...)
			r.Post("/content", h.content.Upload)
			r.Patch("/content/{id}", h.content.Update)
			r.Delete("/content/{id}", h.content.Delete)
			r.Post("/subject-areas", h.areas.Create)
			r.Delete("/subject-areas/{id}", h.areas.Delete)
			r.Get("/uploads", h.uploads.List)
			r.Delete("/uploads/{name}", h.uploads.Delete)
			r.Get("/maintenance/orphans", h.maintenance.ScanContent)
			r.Post("/maintenance/orphans/cleanup", h.maintenance.CleanupContent)
			r.Get("/maintenance/uploads/orphans", h.maintenance.ScanUploads)
			r.Post("/maintenance/uploads/orphans/cleanup", h.maintenance.CleanupUploads)
		})
	})
}

// admin возвращает цепочку JWT + проверка роли admin.
func (h *Handlers) admin() []func(http.Handler) http.Handler {
	if h.auth == nil {
		return []func(http.Handler) http.Handler{passthrough}
	}
	return []func(http.Handler) http.Handler{
		h.auth.Middleware(),
		middleware.RequireRole(middleware.RoleAdmin),
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}
