package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/bigkaa/h5phub/internal/config"
)

const (
	statusOK   = "ok"
	statusFail = "fail"
)

// ReadyChecker проверяет готовность одной зависимости.
type ReadyChecker interface {
	CheckReady() (status string, message string)
}

// HealthHandler отвечает на liveness/readiness probes.
type HealthHandler struct {
	db         ReadyChecker
	contentDir string
	uploadsDir string
	logger     *slog.Logger
}

// NewHealthHandler создаёт health handler.
func NewHealthHandler(db ReadyChecker, contentDir, uploadsDir string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:         db,
		contentDir: contentDir,
		uploadsDir: uploadsDir,
		logger:     logger.With("component", "health"),
	}
}

// HealthLive — liveness probe. Процесс жив — отдаём 200.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  statusOK,
		"service": "h5p-hub",
		"version": config.Version,
	})
}

// HealthReady — readiness probe: каталоги доступны, БД отвечает.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	for name, dir := range map[string]string{
		"content_dir": h.contentDir,
		"uploads_dir": h.uploadsDir,
	} {
		if err := checkDir(dir); err != nil {
			checks[name] = statusFail + ": " + err.Error()
			ready = false
		} else {
			checks[name] = statusOK
		}
	}

	if h.db != nil {
		status, message := h.db.CheckReady()
		if status != statusOK {
			checks["database"] = statusFail + ": " + message
			ready = false
		} else {
			checks["database"] = statusOK
		}
	}

	code := http.StatusOK
	status := statusOK
	if !ready {
		code = http.StatusServiceUnavailable
		status = statusFail
		h.logger.Warn("Readiness probe провалена", "checks", checks)
	}

	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "stat", Path: dir, Err: os.ErrInvalid}
	}
	return nil
}

// writeJSON сериализует body и пишет ответ с кодом code.
func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
