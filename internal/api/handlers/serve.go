// serve.go — выдача распакованного H5P-контента.
//
// Файлы отдаются напрямую с диска из {contentDir}/{slug}/...
// Пароль здесь не проверяется: защита паролем — забота фронтенда
// проигрывателя, который ходит в verify-password.
package handlers

import (
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/h5phub/internal/api/errors"
)

// Cache-Control: контент неизменяем после публикации, json с
// параметрами пакета может меняться при обновлении.
const (
	cacheControlAssets = "public, max-age=31536000, immutable"
	cacheControlJSON   = "public, max-age=60"
)

// contentTypes — расширения, которые mime.TypeByExtension может не знать.
var contentTypes = map[string]string{
	".h5p":   "application/zip",
	".vtt":   "text/vtt",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
}

// ServeHandler отдаёт статические файлы распакованного контента.
type ServeHandler struct {
	contentDir string
	logger     *slog.Logger
}

// NewServeHandler создаёт handler выдачи контента.
func NewServeHandler(contentDir string, logger *slog.Logger) *ServeHandler {
	return &ServeHandler{
		contentDir: contentDir,
		logger:     logger.With(slog.String("component", "serve-handler")),
	}
}

// ServeContent — GET /h5p/{slug}/*.
func (h *ServeHandler) ServeContent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	rest := chi.URLParam(r, "*")

	fullPath, ok := h.resolve(slug, rest)
	if !ok {
		apierrors.ValidationError(w, "недопустимый путь")
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		apierrors.NotFound(w, "файл не найден")
		return
	}

	ext := strings.ToLower(filepath.Ext(fullPath))
	if ct, found := contentTypes[ext]; found {
		w.Header().Set("Content-Type", ct)
	} else if ct := mime.TypeByExtension(ext); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	if ext == ".json" {
		w.Header().Set("Cache-Control", cacheControlJSON)
	} else {
		w.Header().Set("Cache-Control", cacheControlAssets)
	}

	http.ServeFile(w, r, fullPath)
}

// resolve собирает абсолютный путь файла и отклоняет любой выход
// за пределы директории контента.
func (h *ServeHandler) resolve(slug, rest string) (string, bool) {
	if slug == "" || rest == "" {
		return "", false
	}
	if strings.ContainsAny(slug, "/\\") || slug == "." || slug == ".." {
		return "", false
	}

	cleaned := path.Clean("/" + rest)
	fullPath := filepath.Join(h.contentDir, slug, filepath.FromSlash(cleaned))

	// Страховка от обхода: итоговый путь обязан остаться под contentDir
	root := filepath.Clean(h.contentDir) + string(filepath.Separator)
	if !strings.HasPrefix(fullPath, root) {
		return "", false
	}
	return fullPath, true
}
