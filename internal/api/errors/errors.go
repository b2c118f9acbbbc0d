// Пакет errors — конструкторы стандартных ошибок h5p-hub.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // TODO: переименовать пакет errors, конфликт со stdlib

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidArchive      = "INVALID_ARCHIVE"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeCatalogFailed       = "CATALOG_FAILED"
	CodeFilesystemError     = "FILESYSTEM_ERROR"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeConflict            = "CONFLICT"
	CodeReconcileInProgress = "RECONCILE_IN_PROGRESS"
	CodeInternalError       = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате h5p-hub.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// InvalidArchive — 422 архив не прошёл структурную проверку.
func InvalidArchive(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeInvalidArchive, message)
}

// ExtractionFailed — 500 ошибка распаковки архива.
func ExtractionFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeExtractionFailed, message)
}

// CatalogFailed — 500 ошибка операции с каталогом.
func CatalogFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeCatalogFailed, message)
}

// FilesystemError — 500 ошибка файловой системы.
func FilesystemError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeFilesystemError, message)
}

// FileTooLarge — 413 размер архива превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// Conflict — 409 конфликт состояния ресурса.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// ReconcileInProgress — 409 сверка уже выполняется.
func ReconcileInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeReconcileInProgress, message)
}

// InternalError — 500 внутренняя ошибка сервера.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
