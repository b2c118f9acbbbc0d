package uploadstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание директории загрузок.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	s, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	if s.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, s.DataDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestSave проверяет сохранение архива с подсчётом SHA-256.
func TestSave(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	content := []byte("PK\x03\x04 содержимое тестового архива")
	result, err := s.Save(bytes.NewReader(content), "grammar-quiz-a1b2c3d4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Name != "grammar-quiz-a1b2c3d4.h5p" {
		t.Errorf("имя архива: ожидалось grammar-quiz-a1b2c3d4.h5p, получено %s", result.Name)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	expectedHash := sha256.Sum256(content)
	expectedChecksum := hex.EncodeToString(expectedHash[:])
	if result.Checksum != expectedChecksum {
		t.Errorf("checksum: ожидалось %s, получено %s", expectedChecksum, result.Checksum)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("архив не найден на диске: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое архива не совпадает")
	}

	// Temp-файл не должен оставаться
	if _, err := os.Stat(result.FullPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не удалён после сохранения")
	}
}

// TestSave_Overwrite проверяет перезапись существующего архива.
func TestSave_Overwrite(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	if _, err := s.Save(bytes.NewReader([]byte("первая версия")), "quiz-00000000"); err != nil {
		t.Fatalf("ошибка первого сохранения: %v", err)
	}
	result, err := s.Save(bytes.NewReader([]byte("вторая версия")), "quiz-00000000")
	if err != nil {
		t.Fatalf("ошибка повторного сохранения: %v", err)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "вторая версия" {
		t.Errorf("архив не перезаписан: %q", data)
	}
}

// TestDelete проверяет удаление архива, включая идемпотентность.
func TestDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	result, err := s.Save(bytes.NewReader([]byte("данные")), "quiz-11111111")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := s.Delete(result.Name); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if s.Exists(result.Name) {
		t.Error("архив существует после удаления")
	}

	// Повторное удаление — не ошибка
	if err := s.Delete(result.Name); err != nil {
		t.Errorf("повторное удаление вернуло ошибку: %v", err)
	}
}

// TestDelete_RejectsUnsafeNames проверяет защиту от обхода директорий.
func TestDelete_RejectsUnsafeNames(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	unsafe := []string{"../etc/passwd", "a/b.h5p", "..", ""}
	for _, name := range unsafe {
		if err := s.Delete(name); err == nil {
			t.Errorf("Delete(%q) должен вернуть ошибку", name)
		}
		if _, err := s.FullPath(name); err == nil {
			t.Errorf("FullPath(%q) должен вернуть ошибку", name)
		}
	}
}

// TestList проверяет перечисление архивов.
func TestList(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	for _, slug := range []string{"b-quiz-22222222", "a-quiz-33333333"} {
		if _, err := s.Save(bytes.NewReader([]byte("данные")), slug); err != nil {
			t.Fatalf("ошибка сохранения %s: %v", slug, err)
		}
	}

	// Поддиректории и temp-файлы не должны попадать в список
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "partial.h5p.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("ошибка перечисления: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() вернул %d записей, ожидали 2", len(list))
	}
	if list[0].Name != "a-quiz-33333333.h5p" || list[1].Name != "b-quiz-22222222.h5p" {
		t.Errorf("список не отсортирован по имени: %v", list)
	}
	if list[0].Size == 0 || list[0].ModTime.IsZero() {
		t.Error("List() не заполнил размер или время модификации")
	}
}
