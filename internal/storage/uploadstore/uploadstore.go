// Пакет uploadstore — holding area исходных загруженных архивов.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету,
// перечисление, удаление и проверку существования архивов.
package uploadstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store — управление исходными архивами на диске.
// Архив хранится под именем {slug}.h5p, что связывает его
// с директорией распакованного контента.
type Store struct {
	// dataDir — корневая директория хранения архивов (HUB_UPLOADS_DIR)
	dataDir string
}

// SaveResult — результат сохранения архива на диск.
type SaveResult struct {
	// Name — имя файла в dataDir ({slug}.h5p)
	Name string
	// FullPath — абсолютный путь архива на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого архива
	Checksum string
}

// UploadInfo — информация о хранимом архиве.
type UploadInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// New создаёт новый Store. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", dataDir, err)
	}

	return &Store{dataDir: dataDir}, nil
}

// Save записывает архив из reader на диск под именем {slug}.h5p
// с подсчётом SHA-256 на лету.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Save(reader io.Reader, slug string) (*SaveResult, error) {
	name := slug + ".h5p"
	fullPath := filepath.Join(s.dataDir, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Name:     name,
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// FullPath возвращает абсолютный путь архива на диске.
// Возвращает ошибку для имён с обходом директорий.
func (s *Store) FullPath(name string) (string, error) {
	if !isSafeName(name) {
		return "", fmt.Errorf("недопустимое имя файла: %q", name)
	}
	return filepath.Join(s.dataDir, name), nil
}

// Delete удаляет архив с диска.
// Возвращает nil если архив уже не существует.
func (s *Store) Delete(name string) error {
	fullPath, err := s.FullPath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления архива %s: %w", name, err)
	}
	return nil
}

// Exists проверяет существование архива на диске.
func (s *Store) Exists(name string) bool {
	fullPath, err := s.FullPath(name)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(fullPath)
	return statErr == nil
}

// List возвращает информацию обо всех архивах в dataDir,
// отсортированную по имени. Поддиректории и temp-файлы пропускаются.
func (s *Store) List() ([]UploadInfo, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории загрузок: %w", err)
	}

	var result []UploadInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		result = append(result, UploadInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// DataDir возвращает путь к директории загрузок.
func (s *Store) DataDir() string {
	return s.dataDir
}

// isSafeName проверяет, что имя файла не содержит разделителей
// путей и последовательностей обхода директорий.
func isSafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	return !strings.Contains(name, "..")
}
