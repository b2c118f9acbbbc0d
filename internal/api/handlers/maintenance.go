// maintenance.go — HTTP handlers сверки файловой системы с каталогом.
//
// Все операции исключают друг друга: при уже идущей сверке
// возвращается 409 RECONCILE_IN_PROGRESS.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/h5phub/internal/api/errors"
	"github.com/bigkaa/h5phub/internal/service"
)

// Reconciler — операции сверки, нужные handler'у.
// Реализуется service.ReconcileService.
type Reconciler interface {
	ScanContent(ctx context.Context) (*service.ContentScanReport, error)
	CleanupContent(ctx context.Context) (*service.CleanupReport, error)
	ScanUploads(ctx context.Context) (*service.UploadScanReport, error)
	CleanupUploads(ctx context.Context) (*service.CleanupReport, error)
}

// MaintenanceHandler обрабатывает запросы сверки и очистки сирот.
type MaintenanceHandler struct {
	reconciler Reconciler
	logger     *slog.Logger
}

// NewMaintenanceHandler создаёт handler обслуживания.
func NewMaintenanceHandler(reconciler Reconciler, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		reconciler: reconciler,
		logger:     logger.With(slog.String("component", "maintenance-handler")),
	}
}

// ScanContent — GET /api/v1/maintenance/orphans.
// Ищет директории контента без записи в каталоге, ничего не удаляет.
func (h *MaintenanceHandler) ScanContent(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.ScanContent(r.Context())
	if err != nil {
		h.writeReconcileError(w, "сканирование контента", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CleanupContent — POST /api/v1/maintenance/orphans/cleanup.
// Удаляет осиротевшие директории контента.
func (h *MaintenanceHandler) CleanupContent(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.CleanupContent(r.Context())
	if err != nil {
		h.writeReconcileError(w, "очистка контента", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ScanUploads — GET /api/v1/maintenance/uploads/orphans.
// Ищет архивы в uploads без записи в каталоге.
func (h *MaintenanceHandler) ScanUploads(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.ScanUploads(r.Context())
	if err != nil {
		h.writeReconcileError(w, "сканирование загрузок", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CleanupUploads — POST /api/v1/maintenance/uploads/orphans/cleanup.
// Удаляет осиротевшие архивы из uploads.
func (h *MaintenanceHandler) CleanupUploads(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.CleanupUploads(r.Context())
	if err != nil {
		h.writeReconcileError(w, "очистка загрузок", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *MaintenanceHandler) writeReconcileError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrReconcileInProgress) {
		apierrors.ReconcileInProgress(w, "сверка уже выполняется, повторите позже")
		return
	}
	h.logger.Error("Ошибка сверки",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, op+": "+err.Error())
}
