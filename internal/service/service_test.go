package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/bigkaa/h5phub/internal/archive"
	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
	"github.com/bigkaa/h5phub/internal/storage/uploadstore"
)

// fakeContentRepo — in-memory реализация ContentRepository для тестов.
type fakeContentRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*model.ContentRecord
	// Принудительная ошибка Create (для проверки компенсаций)
	createErr error
	// Количество Create, возвращающих ErrConflict, до успеха
	conflictsLeft int
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{records: map[int64]*model.ContentRecord{}}
}

func (f *fakeContentRepo) Create(_ context.Context, c *model.ContentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return repository.ErrConflict
	}
	for _, r := range f.records {
		if r.Slug == c.Slug {
			return repository.ErrConflict
		}
	}
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.records[c.ID] = &cp
	return nil
}

func (f *fakeContentRepo) GetByID(_ context.Context, id int64) (*model.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeContentRepo) GetBySlug(_ context.Context, slug string) (*model.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Slug == slug {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeContentRepo) List(_ context.Context, _ repository.ContentListFilters, _, _ int) ([]*model.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.ContentRecord
	for _, r := range f.records {
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeContentRepo) Count(_ context.Context, _ repository.ContentListFilters) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeContentRepo) ListSlugs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var slugs []string
	for _, r := range f.records {
		slugs = append(slugs, r.Slug)
	}
	return slugs, nil
}

func (f *fakeContentRepo) Update(_ context.Context, c *model.ContentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[c.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *c
	f.records[c.ID] = &cp
	return nil
}

func (f *fakeContentRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

// fakeSubjectAreaRepo — in-memory реализация SubjectAreaRepository.
type fakeSubjectAreaRepo struct {
	mu    sync.Mutex
	areas map[int64]*model.SubjectArea
	// Количество обращений GetByID (для проверки кэширования)
	getCalls int
}

func newFakeSubjectAreaRepo() *fakeSubjectAreaRepo {
	return &fakeSubjectAreaRepo{areas: map[int64]*model.SubjectArea{}}
}

func (f *fakeSubjectAreaRepo) Create(_ context.Context, a *model.SubjectArea) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = int64(len(f.areas) + 1)
	f.areas[a.ID] = a
	return nil
}

func (f *fakeSubjectAreaRepo) GetByID(_ context.Context, id int64) (*model.SubjectArea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	a, ok := f.areas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeSubjectAreaRepo) List(_ context.Context) ([]*model.SubjectArea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.SubjectArea
	for _, a := range f.areas {
		result = append(result, a)
	}
	return result, nil
}

func (f *fakeSubjectAreaRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.areas, id)
	return nil
}

// testLogger возвращает slog-логгер, пишущий в лог теста.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// h5pArchive собирает минимальный валидный H5P-архив в памяти.
func h5pArchive(t *testing.T, mainLibrary string) io.Reader {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := fmt.Sprintf(`{"title":"Test","mainLibrary":%q}`, mainLibrary)
	if mainLibrary == "" {
		manifest = `{}`
	}
	entries := map[string]string{
		"h5p.json":             manifest,
		"content/content.json": `{}`,
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

// newTestContentService собирает ContentService поверх временных директорий.
func newTestContentService(t *testing.T, repo repository.ContentRepository, keepUploads bool) (*ContentService, string, *uploadstore.Store) {
	t.Helper()

	contentDir := t.TempDir()
	uploads, err := uploadstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания uploadstore: %v", err)
	}

	extractor := archive.NewExtractor(1000, 100*1024*1024)
	cs := NewContentService(repo, uploads, extractor, contentDir, keepUploads, testLogger())
	return cs, contentDir, uploads
}
