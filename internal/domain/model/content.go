// Пакет model — доменные модели h5p-hub.
// ContentRecord — запись каталога опубликованного H5P-пакета,
// соответствует строке таблицы h5p_content в PostgreSQL.
package model

import (
	"strings"
	"time"
)

// ContentTypeUnknown — значение content_type, когда h5p.json отсутствует
// или не содержит mainLibrary.
const ContentTypeUnknown = "Unknown"

// ContentRecord — запись каталога H5P-контента.
type ContentRecord struct {
	// ID — первичный ключ, назначается базой при вставке
	ID int64 `json:"id"`

	// Title — отображаемое название, задаётся при загрузке
	Title string `json:"title"`

	// Slug — уникальный URL-безопасный идентификатор.
	// Одновременно имя директории распакованного пакета под content root.
	Slug string `json:"slug"`

	// FilePath — путь к распакованной директории относительно
	// корня публикации. Инвариант: всегда равен "/h5p/{slug}".
	FilePath string `json:"filePath"`

	// ContentType — тип контента из mainLibrary в h5p.json,
	// либо ContentTypeUnknown.
	ContentType string `json:"contentType"`

	// Description — описание контента (опционально)
	Description string `json:"description,omitempty"`

	// Password — строка-пароль для доступа к контенту.
	// Пустая строка = контент без защиты. Не возвращается в API-ответах.
	Password string `json:"-"`

	// SubjectAreaID — внешний ключ на таксономию предметных областей.
	// nil = без привязки.
	SubjectAreaID *int64 `json:"subjectAreaId,omitempty"`

	// CreatedBy — идентификатор загрузившего (sub из JWT)
	CreatedBy string `json:"createdBy,omitempty"`

	// CreatedAt/UpdatedAt — временные метки, назначаются базой
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsProtected возвращает true, если контент закрыт паролем.
func (c *ContentRecord) IsProtected() bool {
	return strings.TrimSpace(c.Password) != ""
}

// SubjectArea — предметная область (таксономия контента).
type SubjectArea struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color,omitempty"`
}
