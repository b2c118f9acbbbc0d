package slug

import (
	"regexp"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Grammar Quiz", "grammar-quiz"},
		{"Übung für Anfänger", "uebung-fuer-anfaenger"},
		{"Straße & Verkehr", "strasse-verkehr"},
		{"  Hello,   World!  ", "hello-world"},
		{"123 Test", "123-test"},
		{"ALLCAPS", "allcaps"},
		{"!!!", ""},
		{"", ""},
		{"Öl", "oel"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.title); got != tc.want {
			t.Errorf("Normalize(%q) = %q, ожидали %q", tc.title, got, tc.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	re := regexp.MustCompile(`^grammar-quiz-[0-9a-f]{8}$`)

	s := Generate("Grammar Quiz")
	if !re.MatchString(s) {
		t.Errorf("Generate(%q) = %q, не соответствует %s", "Grammar Quiz", s, re)
	}
}

func TestGenerateEmptyBase(t *testing.T) {
	// Заголовок из одних спецсимволов: slug состоит только из суффикса
	re := regexp.MustCompile(`^[0-9a-f]{8}$`)

	s := Generate("!!!")
	if !re.MatchString(s) {
		t.Errorf("Generate(%q) = %q, не соответствует %s", "!!!", s, re)
	}
}

func TestGenerateUnique(t *testing.T) {
	// Одинаковые заголовки дают разные slug благодаря суффиксу
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := Generate("Grammar Quiz")
		if seen[s] {
			t.Fatalf("повторный slug %q", s)
		}
		seen[s] = true
	}
}
