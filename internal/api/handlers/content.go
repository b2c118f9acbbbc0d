// content.go — HTTP handlers каталога контента: приём пакетов,
// чтение, обновление метаданных, удаление, проверка пароля.
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/h5phub/internal/api/errors"
	"github.com/bigkaa/h5phub/internal/api/middleware"
	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
	"github.com/bigkaa/h5phub/internal/service"
)

// multipartMemoryLimit — размер формы, удерживаемый в памяти,
// остальное уходит во временные файлы.
const multipartMemoryLimit = 32 << 20

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ContentHandler обрабатывает запросы каталога контента.
type ContentHandler struct {
	svc            *service.ContentService
	areas          *service.SubjectAreaCache
	maxArchiveSize int64
	logger         *slog.Logger
}

// NewContentHandler создаёт handler каталога контента.
func NewContentHandler(svc *service.ContentService, areas *service.SubjectAreaCache, maxArchiveSize int64, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		svc:            svc,
		areas:          areas,
		maxArchiveSize: maxArchiveSize,
		logger:         logger.With(slog.String("component", "content-handler")),
	}
}

// contentResponse — запись каталога в API-ответе.
// Пароль наружу не отдаётся, вместо него флаг protected.
type contentResponse struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Slug        string             `json:"slug"`
	FilePath    string             `json:"filePath"`
	ContentType string             `json:"contentType"`
	Description string             `json:"description,omitempty"`
	Protected   bool               `json:"protected"`
	SubjectArea *model.SubjectArea `json:"subjectArea,omitempty"`
	CreatedBy   string             `json:"createdBy,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// toResponse собирает API-представление записи. Предметная область
// подтягивается из кэша; сбой lookup не валит ответ.
func (h *ContentHandler) toResponse(r *http.Request, record *model.ContentRecord) contentResponse {
	resp := contentResponse{
		ID:          record.ID,
		Title:       record.Title,
		Slug:        record.Slug,
		FilePath:    record.FilePath,
		ContentType: record.ContentType,
		Description: record.Description,
		Protected:   record.IsProtected(),
		CreatedBy:   record.CreatedBy,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	if record.SubjectAreaID != nil && h.areas != nil {
		if area, err := h.areas.Get(r.Context(), *record.SubjectAreaID); err == nil {
			resp.SubjectArea = area
		}
	}
	return resp
}

// Upload — POST /api/v1/content. Принимает multipart-форму с полем
// file (архив .h5p) и метаданными title, description, password,
// subjectAreaId.
func (h *ContentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxArchiveSize)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		if isBodyTooLarge(err) {
			apierrors.FileTooLarge(w, "размер архива превышает допустимый лимит")
			return
		}
		apierrors.ValidationError(w, "некорректная multipart-форма: "+err.Error())
		return
	}

	title := r.FormValue("title")
	if title == "" {
		apierrors.ValidationError(w, "поле title обязательно")
		return
	}

	req := service.IngestRequest{
		Title:       title,
		Description: r.FormValue("description"),
		Password:    r.FormValue("password"),
		CreatedBy:   middleware.SubjectFromContext(r.Context()),
	}
	if raw := r.FormValue("subjectAreaId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			apierrors.ValidationError(w, "subjectAreaId должен быть числом")
			return
		}
		req.SubjectAreaID = &id
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "поле file с архивом обязательно")
		return
	}
	defer file.Close()

	record, err := h.svc.Ingest(r.Context(), file, req)
	if err != nil {
		h.logger.Error("Ошибка приёма контента",
			slog.String("title", title),
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		h.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(r, record))
}

// writeIngestError отображает ошибку приёма на HTTP-код.
func (h *ContentHandler) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case isBodyTooLarge(err):
		apierrors.FileTooLarge(w, "размер архива превышает допустимый лимит")
	case errors.Is(err, service.ErrInvalidArchive):
		apierrors.InvalidArchive(w, err.Error())
	case errors.Is(err, service.ErrExtraction):
		apierrors.ExtractionFailed(w, err.Error())
	case errors.Is(err, service.ErrCatalog):
		apierrors.CatalogFailed(w, err.Error())
	case errors.Is(err, service.ErrStorage):
		apierrors.FilesystemError(w, err.Error())
	default:
		apierrors.InternalError(w, err.Error())
	}
}

// List — GET /api/v1/content с фильтрами contentType, subjectAreaId,
// createdBy, search и пагинацией limit/offset.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := repository.ContentListFilters{}
	if v := q.Get("contentType"); v != "" {
		filters.ContentType = &v
	}
	if v := q.Get("createdBy"); v != "" {
		filters.CreatedBy = &v
	}
	if v := q.Get("search"); v != "" {
		filters.Search = &v
	}
	if raw := q.Get("subjectAreaId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			apierrors.ValidationError(w, "subjectAreaId должен быть числом")
			return
		}
		filters.SubjectAreaID = &id
	}

	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			apierrors.ValidationError(w, "limit должен быть положительным числом")
			return
		}
		limit = min(v, maxListLimit)
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			apierrors.ValidationError(w, "offset должен быть неотрицательным числом")
			return
		}
		offset = v
	}

	records, total, err := h.svc.List(r.Context(), filters, limit, offset)
	if err != nil {
		h.logger.Error("Ошибка чтения каталога", slog.String("error", err.Error()))
		apierrors.CatalogFailed(w, "ошибка чтения каталога")
		return
	}

	items := make([]contentResponse, 0, len(records))
	for _, record := range records {
		items = append(items, h.toResponse(r, record))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Get — GET /api/v1/content/{id}.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, ok := h.fetch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(r, record))
}

// updateRequest — тело PATCH-запроса. Отсутствующее поле не меняется.
type updateRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Password         *string `json:"password"`
	SubjectAreaID    *int64  `json:"subjectAreaId"`
	ClearSubjectArea bool    `json:"clearSubjectArea"`
}

// Update — PATCH /api/v1/content/{id}. Slug и file_path неизменны.
func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}
	if body.Title != nil && *body.Title == "" {
		apierrors.ValidationError(w, "title не может быть пустым")
		return
	}

	record, err := h.svc.Update(r.Context(), id, service.UpdateRequest{
		Title:            body.Title,
		Description:      body.Description,
		Password:         body.Password,
		SubjectAreaID:    body.SubjectAreaID,
		ClearSubjectArea: body.ClearSubjectArea,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "контент не найден")
			return
		}
		h.logger.Error("Ошибка обновления контента",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.CatalogFailed(w, "ошибка обновления каталога")
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(r, record))
}

// Delete — DELETE /api/v1/content/{id}. Удаляет файлы и запись каталога.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			apierrors.NotFound(w, "контент не найден")
		case errors.Is(err, service.ErrStorage):
			h.logger.Error("Ошибка удаления файлов контента",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
			apierrors.FilesystemError(w, "ошибка удаления файлов, запись каталога сохранена")
		default:
			h.logger.Error("Ошибка удаления контента",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
			apierrors.CatalogFailed(w, "ошибка удаления записи каталога")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckProtection — GET /api/v1/content/{id}/protection.
// Сообщает, закрыт ли контент паролем, не раскрывая сам пароль.
func (h *ContentHandler) CheckProtection(w http.ResponseWriter, r *http.Request) {
	record, ok := h.fetch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"protected": record.IsProtected()})
}

// verifyPasswordRequest — тело запроса проверки пароля.
type verifyPasswordRequest struct {
	Password string `json:"password"`
}

// VerifyPassword — POST /api/v1/content/{id}/verify-password.
// Сравнение в константное время, чтобы не подсказывать длину совпадения.
func (h *ContentHandler) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	record, ok := h.fetch(w, r)
	if !ok {
		return
	}

	var body verifyPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return
	}

	valid := record.IsProtected() &&
		subtle.ConstantTimeCompare([]byte(record.Password), []byte(body.Password)) == 1

	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// fetch достаёт запись по {id} из URL, отвечая 400/404/500 сам.
func (h *ContentHandler) fetch(w http.ResponseWriter, r *http.Request) (*model.ContentRecord, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}

	record, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "контент не найден")
			return nil, false
		}
		h.logger.Error("Ошибка получения контента",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.CatalogFailed(w, "ошибка получения контента")
		return nil, false
	}
	return record, true
}

// parseID читает числовой {id} из URL, отвечая 400 при ошибке.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "id должен быть числом")
		return 0, false
	}
	return id, true
}

// isBodyTooLarge распознаёт превышение лимита MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
