package service

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"stock-recon/internal/reconcile/model"
)

// "330ml", "1.5 l", "2 litros", "6x1.5l", "24 x 330ml" (кратность упаковки отбрасывается).
// Перед числом не должно быть буквы, цифры или точки.
var reSize = regexp.MustCompile(`(?:^|[^\p{L}\d.])(?:\d+\s*x\s*)?(\d+(?:\.\d+)?)\s*(ml|cl|lts|lt|litros|litro|liters|liter|l)\b`)

// Extractor разбирает наименование в FeatureSet по словарю.
type Extractor struct {
	vocab Vocabulary
}

func NewExtractor(v Vocabulary) *Extractor {
	return &Extractor{vocab: v.normalized()}
}

func (e *Extractor) Vocabulary() Vocabulary { return e.vocab }

// Extract — признаки из наименования. Категории независимы; при нескольких
// совпадениях побеждает то, что раньше в словаре, а не в строке.
func (e *Extractor) Extract(name string) model.FeatureSet {
	n := normalizeName(name)
	fs := model.FeatureSet{
		Brand:       firstKeyword(n, e.vocab.Brands),
		ProductType: firstKeyword(n, e.vocab.ProductTypes),
		Flavor:      firstKeyword(n, e.vocab.Flavors),
		PackageType: firstKeyword(n, e.vocab.Packages),
	}
	if m := reSize.FindStringSubmatch(n); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			fs.Size = v
			fs.Unit = m[2]
		}
	}
	fs.Words, fs.Tokens = tokenize(n)
	return fs
}

func firstKeyword(name string, list []Keyword) string {
	for _, k := range list {
		for _, t := range k.terms() {
			if containsWord(name, t) {
				return k.Value
			}
		}
	}
	return ""
}

// tokenize: слова длиннее 1 символа и значимые токены (длиннее 2, без повторов).
func tokenize(name string) (words, tokens []string) {
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(name) {
		l := utf8.RuneCountInString(w)
		if l > 1 {
			words = append(words, w)
		}
		if l > 2 {
			if _, ok := seen[w]; !ok {
				seen[w] = struct{}{}
				tokens = append(tokens, w)
			}
		}
	}
	return words, tokens
}
