package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/h5phub/internal/archive"
	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
	"github.com/bigkaa/h5phub/internal/service"
	"github.com/bigkaa/h5phub/internal/storage/uploadstore"
)

// fakeContentRepo — in-memory реализация ContentRepository.
type fakeContentRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*model.ContentRecord
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{records: map[int64]*model.ContentRecord{}}
}

func (f *fakeContentRepo) Create(_ context.Context, c *model.ContentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Slug == c.Slug {
			return repository.ErrConflict
		}
	}
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
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

func (f *fakeContentRepo) List(_ context.Context, filters repository.ContentListFilters, limit, offset int) ([]*model.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*model.ContentRecord
	for _, r := range f.records {
		if filters.ContentType != nil && r.ContentType != *filters.ContentType {
			continue
		}
		cp := *r
		all = append(all, &cp)
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeContentRepo) Count(_ context.Context, filters repository.ContentListFilters) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.records {
		if filters.ContentType != nil && r.ContentType != *filters.ContentType {
			continue
		}
		count++
	}
	return count, nil
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

// fakeAreaRepo — in-memory реализация SubjectAreaRepository.
type fakeAreaRepo struct {
	mu     sync.Mutex
	nextID int64
	areas  map[int64]*model.SubjectArea
}

func newFakeAreaRepo() *fakeAreaRepo {
	return &fakeAreaRepo{areas: map[int64]*model.SubjectArea{}}
}

func (f *fakeAreaRepo) Create(_ context.Context, a *model.SubjectArea) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.areas {
		if existing.Slug == a.Slug {
			return repository.ErrConflict
		}
	}
	f.nextID++
	a.ID = f.nextID
	f.areas[a.ID] = a
	return nil
}

func (f *fakeAreaRepo) GetByID(_ context.Context, id int64) (*model.SubjectArea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.areas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeAreaRepo) List(_ context.Context) ([]*model.SubjectArea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.SubjectArea
	for _, a := range f.areas {
		result = append(result, a)
	}
	return result, nil
}

func (f *fakeAreaRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.areas[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.areas, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv — собранное приложение поверх временных директорий и in-memory
// репозиториев.
type testEnv struct {
	router     chi.Router
	contents   *fakeContentRepo
	areas      *fakeAreaRepo
	contentDir string
	uploads    *uploadstore.Store
	svc        *service.ContentService
}

// newTestEnv собирает все handlers без аутентификации.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	contents := newFakeContentRepo()
	areas := newFakeAreaRepo()
	contentDir := t.TempDir()

	uploads, err := uploadstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания uploadstore: %v", err)
	}

	logger := testLogger()
	extractor := archive.NewExtractor(1000, 100*1024*1024)
	svc := service.NewContentService(contents, uploads, extractor, contentDir, true, logger)
	cache := service.NewSubjectAreaCache(areas, 16, time.Minute)
	reconciler := service.NewReconcileService(contents, uploads, contentDir, 0, 0, logger)

	h := New(
		NewContentHandler(svc, cache, 10*1024*1024, logger),
		NewSubjectAreasHandler(areas, cache, logger),
		NewUploadsHandler(uploads, logger),
		NewMaintenanceHandler(reconciler, logger),
		NewServeHandler(contentDir, logger),
		NewHealthHandler(nil, contentDir, uploads.DataDir(), logger),
		nil,
	)

	router := chi.NewRouter()
	h.Routes(router)

	return &testEnv{
		router:     router,
		contents:   contents,
		areas:      areas,
		contentDir: contentDir,
		uploads:    uploads,
		svc:        svc,
	}
}

// do выполняет запрос против собранного роутера.
func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decodeJSON разбирает тело ответа в out.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("ошибка разбора JSON-ответа: %v, тело: %s", err, rec.Body.String())
	}
}

// h5pArchiveBytes собирает минимальный валидный H5P-архив в памяти.
func h5pArchiveBytes(t *testing.T, mainLibrary string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := fmt.Sprintf(`{"title":"Test","mainLibrary":%q}`, mainLibrary)
	if mainLibrary == "" {
		manifest = `{}`
	}
	for name, content := range map[string]string{
		"h5p.json":             manifest,
		"content/content.json": `{}`,
	} {
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
	return buf.Bytes()
}

// multipartUpload собирает multipart-форму загрузки контента.
func multipartUpload(t *testing.T, fields map[string]string, archiveData []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if archiveData != nil {
		fw, err := mw.CreateFormFile("file", "package.h5p")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(archiveData); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// uploadContent загружает валидный пакет и возвращает ответ API.
func (e *testEnv) uploadContent(t *testing.T, title, mainLibrary string) contentResponse {
	t.Helper()

	body, contentType := multipartUpload(t, map[string]string{"title": title}, h5pArchiveBytes(t, mainLibrary))
	rec := e.do(t, http.MethodPost, "/api/v1/content", body, http.Header{"Content-Type": []string{contentType}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидался 201 при загрузке, получен %d: %s", rec.Code, rec.Body.String())
	}

	var resp contentResponse
	decodeJSON(t, rec, &resp)
	return resp
}
