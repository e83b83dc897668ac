package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 0,5 → 0.5
var decComma = regexp.MustCompile(`(\d),(\d)`)

// СКЛЕЙКА: "330 ml" → "330ml" не делаем: regex размера сам допускает пробел.
var punct = regexp.MustCompile(`[^\p{L}\p{N}\s.\-%]+`) // разрешаем . - %

// normalizeName — нижний регистр, без диакритики, десятичная точка, схлопнутые пробелы.
// Дефис сохраняем: "coca-cola" должна оставаться одним словом.
func normalizeName(s string) string {
	if s == "" {
		return ""
	}
	out := strings.ToLower(strings.TrimSpace(s))
	out = foldAccents(out)
	out = decComma.ReplaceAllString(out, "$1.$2")
	out = punct.ReplaceAllString(out, " ")
	return collapseSpaces(out)
}

// foldAccents: "limón" → "limon", "piña" → "pina".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Схлопывание пробелов
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// containsWord ищет term в s по границам слов; граница: любой не буквенно-цифровой символ.
// "cola" находится в "coca-cola", "can" не находится в "canela".
func containsWord(s, term string) bool {
	if term == "" {
		return false
	}
	from := 0
	for {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if isBoundary(s, start-1) && isBoundary(s, end) {
			return true
		}
		from = start + 1
		if from >= len(s) {
			return false
		}
	}
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	if r >= 0x80 {
		// после foldAccents многобайтные символы редки; считаем их частью слова
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
