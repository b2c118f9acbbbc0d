// uploads.go — HTTP handlers управления сохранёнными архивами.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/h5phub/internal/api/errors"
	"github.com/bigkaa/h5phub/internal/storage/uploadstore"
)

// UploadsHandler обрабатывает запросы к хранилищу исходных архивов.
type UploadsHandler struct {
	store  *uploadstore.Store
	logger *slog.Logger
}

// NewUploadsHandler создаёт handler хранилища архивов.
func NewUploadsHandler(store *uploadstore.Store, logger *slog.Logger) *UploadsHandler {
	return &UploadsHandler{
		store:  store,
		logger: logger.With(slog.String("component", "uploads-handler")),
	}
}

// List — GET /api/v1/uploads. Все сохранённые архивы, отсортированы по имени.
func (h *UploadsHandler) List(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.store.List()
	if err != nil {
		h.logger.Error("Ошибка чтения списка архивов", slog.String("error", err.Error()))
		apierrors.FilesystemError(w, "ошибка чтения списка архивов")
		return
	}
	if uploads == nil {
		uploads = []uploadstore.UploadInfo{}
	}
	writeJSON(w, http.StatusOK, uploads)
}

// Delete — DELETE /api/v1/uploads/{name}. Удаляет один архив.
// Небезопасные имена (обход каталога) отклоняются хранилищем.
func (h *UploadsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		apierrors.ValidationError(w, "имя архива обязательно")
		return
	}

	if !h.store.Exists(name) {
		apierrors.NotFound(w, "архив не найден")
		return
	}

	if err := h.store.Delete(name); err != nil {
		h.logger.Error("Ошибка удаления архива",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		apierrors.FilesystemError(w, "ошибка удаления архива")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
