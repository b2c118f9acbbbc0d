// Пакет archive — структурная проверка и безопасная распаковка
// H5P-архивов (zip-контейнеров с манифестом h5p.json).
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// Имена обязательных записей H5P-архива.
const (
	manifestName    = "h5p.json"
	contentJSONName = "content/content.json"
	contentJSONFlat = "content.json"
)

// ValidationResult — результат структурной проверки архива.
type ValidationResult struct {
	// Архив синтаксически корректен и содержит обязательные записи
	Valid bool
	// Причина отказа (пусто для валидного архива)
	Reason string
	// Количество записей в архиве
	Entries int
	// Суммарный заявленный размер распакованных данных
	UncompressedSize int64
}

// Validate проверяет структуру H5P-архива по пути на диске,
// не распаковывая его. Архив валиден, если это читаемый zip,
// содержащий h5p.json и content/content.json (или content.json в корне).
// Повреждённый или иной формат — невалиден, без ошибки.
func Validate(archivePath string) (*ValidationResult, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if err == zip.ErrFormat || strings.Contains(err.Error(), "zip") {
			return &ValidationResult{Valid: false, Reason: "файл не является zip-архивом"}, nil
		}
		return nil, fmt.Errorf("ошибка открытия архива: %w", err)
	}
	defer r.Close()

	return validateEntries(r.File), nil
}

// validateEntries проверяет список записей архива на наличие
// обязательных файлов H5P.
func validateEntries(files []*zip.File) *ValidationResult {
	res := &ValidationResult{Entries: len(files)}

	var hasManifest, hasContent bool
	for _, f := range files {
		res.UncompressedSize += int64(f.UncompressedSize64) //nolint:gosec // размер записи zip

		name := path.Clean(f.Name)
		switch name {
		case manifestName:
			hasManifest = true
		case contentJSONName, contentJSONFlat:
			hasContent = true
		}
	}

	switch {
	case !hasManifest:
		res.Reason = "в архиве отсутствует h5p.json"
	case !hasContent:
		res.Reason = "в архиве отсутствует content/content.json"
	default:
		res.Valid = true
	}
	return res
}
