package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/h5phub/internal/domain/model"
	"github.com/bigkaa/h5phub/internal/repository"
)

func TestSubjectAreaCache(t *testing.T) {
	repo := newFakeSubjectAreaRepo()
	ctx := context.Background()

	area := &model.SubjectArea{Name: "Deutsch", Slug: "deutsch", Color: "#ff0000"}
	if err := repo.Create(ctx, area); err != nil {
		t.Fatal(err)
	}

	cache := NewSubjectAreaCache(repo, 16, time.Minute)

	// Первый запрос — промах, чтение из репозитория
	got, err := cache.Get(ctx, area.ID)
	if err != nil {
		t.Fatalf("Get вернул ошибку: %v", err)
	}
	if got.Name != "Deutsch" {
		t.Errorf("Name = %q", got.Name)
	}
	if repo.getCalls != 1 {
		t.Errorf("getCalls = %d, ожидали 1", repo.getCalls)
	}

	// Повторный запрос — попадание, без обращения к репозиторию
	if _, err := cache.Get(ctx, area.ID); err != nil {
		t.Fatalf("повторный Get вернул ошибку: %v", err)
	}
	if repo.getCalls != 1 {
		t.Errorf("getCalls после попадания = %d, ожидали 1", repo.getCalls)
	}

	// Инвалидация: следующий запрос снова идёт в репозиторий
	cache.Invalidate(area.ID)
	if _, err := cache.Get(ctx, area.ID); err != nil {
		t.Fatalf("Get после инвалидации вернул ошибку: %v", err)
	}
	if repo.getCalls != 2 {
		t.Errorf("getCalls после инвалидации = %d, ожидали 2", repo.getCalls)
	}
}

func TestSubjectAreaCacheNotFound(t *testing.T) {
	repo := newFakeSubjectAreaRepo()
	cache := NewSubjectAreaCache(repo, 16, time.Minute)

	if _, err := cache.Get(context.Background(), 404); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Get несуществующей области вернул %v, ожидали ErrNotFound", err)
	}
}
