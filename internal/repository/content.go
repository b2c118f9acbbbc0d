package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/h5phub/internal/domain/model"
)

// ContentRepository — интерфейс CRUD для таблицы h5p_content.
type ContentRepository interface {
	// Create создаёт новую запись контента в каталоге.
	Create(ctx context.Context, c *model.ContentRecord) error
	// GetByID возвращает запись по числовому ID.
	GetByID(ctx context.Context, id int64) (*model.ContentRecord, error)
	// GetBySlug возвращает запись по slug.
	GetBySlug(ctx context.Context, slug string) (*model.ContentRecord, error)
	// List возвращает список записей с фильтрацией.
	List(ctx context.Context, filters ContentListFilters, limit, offset int) ([]*model.ContentRecord, error)
	// Count возвращает количество записей с фильтрацией.
	Count(ctx context.Context, filters ContentListFilters) (int, error)
	// ListSlugs возвращает все slug каталога (для сверки с файловой системой).
	ListSlugs(ctx context.Context) ([]string, error)
	// Update обновляет метаданные записи.
	Update(ctx context.Context, c *model.ContentRecord) error
	// Delete удаляет запись каталога.
	Delete(ctx context.Context, id int64) error
}

// ContentListFilters — фильтры для списка контента.
type ContentListFilters struct {
	ContentType   *string
	SubjectAreaID *int64
	CreatedBy     *string
	// Подстрочный поиск по title (ILIKE)
	Search *string
}

// contentRepo — реализация ContentRepository.
type contentRepo struct {
	db DBTX
}

// NewContentRepository создаёт репозиторий каталога контента.
func NewContentRepository(db DBTX) ContentRepository {
	return &contentRepo{db: db}
}

func (r *contentRepo) Create(ctx context.Context, c *model.ContentRecord) error {
	query := `
		INSERT INTO h5p_content (title, slug, file_path, content_type, description,
			password, subject_area_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.Title, c.Slug, c.FilePath, c.ContentType, c.Description,
		c.Password, c.SubjectAreaID, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: контент со slug %q уже существует", ErrConflict, c.Slug)
		}
		return fmt.Errorf("ошибка создания записи контента: %w", err)
	}
	return nil
}

func (r *contentRepo) GetByID(ctx context.Context, id int64) (*model.ContentRecord, error) {
	query := selectContent + ` WHERE id = $1`

	c := &model.ContentRecord{}
	if err := scanContent(r.db.QueryRow(ctx, query, id), c); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения контента: %w", err)
	}
	return c, nil
}

func (r *contentRepo) GetBySlug(ctx context.Context, slug string) (*model.ContentRecord, error) {
	query := selectContent + ` WHERE slug = $1`

	c := &model.ContentRecord{}
	if err := scanContent(r.db.QueryRow(ctx, query, slug), c); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения контента по slug: %w", err)
	}
	return c, nil
}

func (r *contentRepo) List(ctx context.Context, filters ContentListFilters, limit, offset int) ([]*model.ContentRecord, error) {
	where, args := buildContentWhere(filters, 1)
	argNum := len(args) + 1

	query := selectContent + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка контента: %w", err)
	}
	defer rows.Close()

	var result []*model.ContentRecord
	for rows.Next() {
		c := &model.ContentRecord{}
		if err := scanContent(rows, c); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки контента: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *contentRepo) Count(ctx context.Context, filters ContentListFilters) (int, error) {
	where, args := buildContentWhere(filters, 1)

	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM h5p_content`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта контента: %w", err)
	}
	return count, nil
}

func (r *contentRepo) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT slug FROM h5p_content ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка slug: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("ошибка чтения slug: %w", err)
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

func (r *contentRepo) Update(ctx context.Context, c *model.ContentRecord) error {
	query := `
		UPDATE h5p_content
		SET title = $1, description = $2, password = $3, subject_area_id = $4,
			updated_at = now()
		WHERE id = $5
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		c.Title, c.Description, c.Password, c.SubjectAreaID, c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления контента: %w", err)
	}
	return nil
}

func (r *contentRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM h5p_content WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления контента: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// selectContent — общий SELECT для всех методов чтения.
const selectContent = `
	SELECT id, title, slug, file_path, content_type, description,
		password, subject_area_id, created_by, created_at, updated_at
	FROM h5p_content`

// scanContent читает строку в ContentRecord. Порядок колонок — как в selectContent.
func scanContent(row pgx.Row, c *model.ContentRecord) error {
	return row.Scan(
		&c.ID, &c.Title, &c.Slug, &c.FilePath, &c.ContentType, &c.Description,
		&c.Password, &c.SubjectAreaID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
}

// buildContentWhere строит WHERE-условие и аргументы для фильтрации контента.
func buildContentWhere(filters ContentListFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filters.ContentType != nil {
		conditions = append(conditions, fmt.Sprintf("content_type = $%d", argNum))
		args = append(args, *filters.ContentType)
		argNum++
	}
	if filters.SubjectAreaID != nil {
		conditions = append(conditions, fmt.Sprintf("subject_area_id = $%d", argNum))
		args = append(args, *filters.SubjectAreaID)
		argNum++
	}
	if filters.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argNum))
		args = append(args, *filters.CreatedBy)
		argNum++
	}
	if filters.Search != nil {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", argNum))
		args = append(args, "%"+*filters.Search+"%")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
