// subject_areas.go — HTTP handlers таксономии предметных областей.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/h5phub/internal/api/errors"
	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
	"github.com/bigkaa/h5phub/internal/service"
	"github.com/bigkaa/h5phub/internal/slug"
)

// SubjectAreasHandler обрабатывает запросы таксономии предметных областей.
type SubjectAreasHandler struct {
	areas  repository.SubjectAreaRepository
	cache  *service.SubjectAreaCache
	logger *slog.Logger
}

// NewSubjectAreasHandler создаёт handler предметных областей.
func NewSubjectAreasHandler(areas repository.SubjectAreaRepository, cache *service.SubjectAreaCache, logger *slog.Logger) *SubjectAreasHandler {
	return &SubjectAreasHandler{
		areas:  areas,
		cache:  cache,
		logger: logger.With(slog.String("component", "subject-areas-handler")),
	}
}

// List — GET /api/v1/subject-areas. Все области, отсортированы по имени.
func (h *SubjectAreasHandler) List(w http.ResponseWriter, r *http.Request) {
	areas, err := h.areas.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения предметных областей", slog.String("error", err.Error()))
		apierrors.CatalogFailed(w, "ошибка чтения предметных областей")
		return
	}
	if areas == nil {
		areas = []*model.SubjectArea{}
	}
	writeJSON(w, http.StatusOK, areas)
}

// createAreaRequest — тело запроса создания предметной области.
type createAreaRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Create — POST /api/v1/subject-areas. Slug выводится из имени.
func (h *SubjectAreasHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}
	if body.Name == "" {
		apierrors.ValidationError(w, "поле name обязательно")
		return
	}

	areaSlug := slug.Normalize(body.Name)
	if areaSlug == "" {
		apierrors.ValidationError(w, "из name не получается непустой slug")
		return
	}

	area := &model.SubjectArea{
		Name:  body.Name,
		Slug:  areaSlug,
		Color: body.Color,
	}
	if err := h.areas.Create(r.Context(), area); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			apierrors.Conflict(w, "предметная область с таким slug уже существует")
			return
		}
		h.logger.Error("Ошибка создания предметной области",
			slog.String("name", body.Name),
			slog.String("error", err.Error()),
		)
		apierrors.CatalogFailed(w, "ошибка создания предметной области")
		return
	}

	writeJSON(w, http.StatusCreated, area)
}

// Delete — DELETE /api/v1/subject-areas/{id}. Привязанный контент
// остаётся в каталоге, внешний ключ сбрасывается базой (ON DELETE SET NULL).
func (h *SubjectAreasHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.areas.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "предметная область не найдена")
			return
		}
		h.logger.Error("Ошибка удаления предметной области",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.CatalogFailed(w, "ошибка удаления предметной области")
		return
	}

	if h.cache != nil {
		h.cache.Invalidate(id)
	}
	w.WriteHeader(http.StatusNoContent)
}
