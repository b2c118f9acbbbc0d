// Пакет slug — генерация URL-безопасных идентификаторов контента
// из человекочитаемых заголовков.
package slug

import (
	"strings"

	"github.com/google/uuid"
)

// transliterations — замены символов, не выразимых в ASCII напрямую.
var transliterations = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
)

// suffixLen — длина случайного hex-суффикса slug.
const suffixLen = 8

// Generate создаёт slug из заголовка: нижний регистр, транслитерация
// умляутов, замена прочих не-буквенно-цифровых символов на дефисы
// и случайный hex-суффикс для уникальности.
// Заголовок из одних спецсимволов даёт slug из одного суффикса.
func Generate(title string) string {
	base := Normalize(title)
	suffix := uuid.New().String()[:suffixLen]

	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// Normalize приводит заголовок к базовой части slug без суффикса.
func Normalize(title string) string {
	s := strings.ToLower(title)
	s = transliterations.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	prevHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			// Последовательность спецсимволов сворачивается в один дефис
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
