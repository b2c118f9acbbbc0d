// manifest.go — типизированное представление манифеста H5P-пакета (h5p.json).
// Заменяет динамический разбор произвольного JSON: все поля опциональны,
// отсутствующие значения имеют документированный fallback.
package model

// Manifest — корневой дескриптор H5P-пакета.
// Разбирается из h5p.json после распаковки. Любое из полей может
// отсутствовать — пакет при этом остаётся валидным, деградирует
// только подсказка типа контента.
type Manifest struct {
	// Title — название контента по версии автора пакета
	Title string `json:"title"`

	// MainLibrary — основная библиотека контента (например "H5P.InteractiveVideo").
	// Используется как content_type записи каталога.
	MainLibrary string `json:"mainLibrary"`

	// Language — код языка контента
	Language string `json:"language"`

	// License — лицензия контента
	License string `json:"license"`

	// EmbedTypes — допустимые способы встраивания ("div", "iframe")
	EmbedTypes []string `json:"embedTypes"`

	// PreloadedDependencies — библиотеки, требуемые для воспроизведения
	PreloadedDependencies []ManifestDependency `json:"preloadedDependencies"`
}

// ManifestDependency — зависимость пакета на библиотеку H5P.
type ManifestDependency struct {
	MachineName  string `json:"machineName"`
	MajorVersion int    `json:"majorVersion"`
	MinorVersion int    `json:"minorVersion"`
}

// ContentType возвращает тип контента из манифеста
// либо ContentTypeUnknown, если mainLibrary не объявлена.
func (m *Manifest) ContentType() string {
	if m == nil || m.MainLibrary == "" {
		return ContentTypeUnknown
	}
	return m.MainLibrary
}
