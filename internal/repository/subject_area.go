package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/h5phub/internal/domain/model"
)

// SubjectAreaRepository — интерфейс доступа к таблице subject_areas.
type SubjectAreaRepository interface {
	// Create создаёт новую предметную область.
	Create(ctx context.Context, a *model.SubjectArea) error
	// GetByID возвращает предметную область по ID.
	GetByID(ctx context.Context, id int64) (*model.SubjectArea, error)
	// List возвращает все предметные области.
	List(ctx context.Context) ([]*model.SubjectArea, error)
	// Delete удаляет предметную область.
	Delete(ctx context.Context, id int64) error
}

// subjectAreaRepo — реализация SubjectAreaRepository.
type subjectAreaRepo struct {
	db DBTX
}

// NewSubjectAreaRepository создаёт репозиторий предметных областей.
func NewSubjectAreaRepository(db DBTX) SubjectAreaRepository {
	return &subjectAreaRepo{db: db}
}

func (r *subjectAreaRepo) Create(ctx context.Context, a *model.SubjectArea) error {
	query := `
		INSERT INTO subject_areas (name, slug, color)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.db.QueryRow(ctx, query, a.Name, a.Slug, a.Color).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: предметная область со slug %q уже существует", ErrConflict, a.Slug)
		}
		return fmt.Errorf("ошибка создания предметной области: %w", err)
	}
	return nil
}

func (r *subjectAreaRepo) GetByID(ctx context.Context, id int64) (*model.SubjectArea, error) {
	query := `SELECT id, name, slug, color FROM subject_areas WHERE id = $1`

	a := &model.SubjectArea{}
	err := r.db.QueryRow(ctx, query, id).Scan(&a.ID, &a.Name, &a.Slug, &a.Color)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения предметной области: %w", err)
	}
	return a, nil
}

func (r *subjectAreaRepo) List(ctx context.Context) ([]*model.SubjectArea, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, color FROM subject_areas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка предметных областей: %w", err)
	}
	defer rows.Close()

	var result []*model.SubjectArea
	for rows.Next() {
		a := &model.SubjectArea{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Slug, &a.Color); err != nil {
			return nil, fmt.Errorf("ошибка чтения предметной области: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *subjectAreaRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM subject_areas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления предметной области: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
