package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/h5phub/internal/domain/model"
)

// Extractor распаковывает H5P-архивы в директорию публикации
// с защитой от zip-slip и архивных бомб.
type Extractor struct {
	// Максимальное количество записей в архиве
	MaxEntries int
	// Максимальный суммарный размер распакованных данных
	MaxExtractedBytes int64
}

// NewExtractor создаёт Extractor с заданными лимитами.
func NewExtractor(maxEntries int, maxExtractedBytes int64) *Extractor {
	return &Extractor{
		MaxEntries:        maxEntries,
		MaxExtractedBytes: maxExtractedBytes,
	}
}

// Extract распаковывает архив archivePath в директорию destDir.
// Директория создаётся при необходимости; существующие файлы
// перезаписываются. Записи с небезопасными путями приводят к ошибке.
func (e *Extractor) Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("ошибка открытия архива: %w", err)
	}
	defer r.Close()

	if e.MaxEntries > 0 && len(r.File) > e.MaxEntries {
		return fmt.Errorf("архив содержит %d записей, лимит %d", len(r.File), e.MaxEntries)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("ошибка создания директории %s: %w", destDir, err)
	}

	var written int64
	for _, f := range r.File {
		n, err := e.extractEntry(f, destDir, written)
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// extractEntry распаковывает одну запись архива. Возвращает число
// записанных байт.
func (e *Extractor) extractEntry(f *zip.File, destDir string, writtenSoFar int64) (int64, error) {
	if !isSafeEntryPath(f.Name) {
		return 0, fmt.Errorf("небезопасный путь записи архива: %q", f.Name)
	}

	target := filepath.Join(destDir, filepath.FromSlash(f.Name))

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return 0, fmt.Errorf("ошибка создания директории %s: %w", target, err)
		}
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("ошибка создания директории %s: %w", filepath.Dir(target), err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения записи %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания файла %s: %w", target, err)
	}
	defer out.Close()

	// Лимитируем по оставшемуся бюджету, а не по заявленному размеру:
	// заявленный размер в заголовке zip может лгать. Нулевой
	// MaxExtractedBytes означает отсутствие лимита.
	if e.MaxExtractedBytes <= 0 {
		n, err := io.Copy(out, rc)
		if err != nil {
			return n, fmt.Errorf("ошибка записи %s: %w", target, err)
		}
		return n, nil
	}

	limit := e.MaxExtractedBytes - writtenSoFar
	if limit <= 0 {
		return 0, fmt.Errorf("превышен лимит распакованных данных (%d байт)", e.MaxExtractedBytes)
	}

	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if err != nil {
		return n, fmt.Errorf("ошибка записи %s: %w", target, err)
	}
	if n > limit {
		return n, fmt.Errorf("превышен лимит распакованных данных (%d байт)", e.MaxExtractedBytes)
	}
	return n, nil
}

// isSafeEntryPath возвращает true, если путь записи не содержит
// последовательностей обхода директорий (защита от zip-slip).
func isSafeEntryPath(p string) bool {
	if p == "" || strings.Contains(p, "..") {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return false
	}
	// Абсолютные пути Windows вида C:\...
	if len(p) > 1 && p[1] == ':' {
		return false
	}
	cleaned := filepath.ToSlash(filepath.Clean("/" + p))
	return strings.HasPrefix(cleaned, "/") && !strings.HasPrefix(cleaned, "/..")
}

// ReadManifest читает и разбирает h5p.json из распакованной
// директории. Отсутствие файла или ошибка разбора не фатальны:
// возвращается nil-манифест без ошибки, тип контента тогда "Unknown".
func ReadManifest(contentDir string) *model.Manifest {
	data, err := os.ReadFile(filepath.Join(contentDir, manifestName))
	if err != nil {
		return nil
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return &m
}
