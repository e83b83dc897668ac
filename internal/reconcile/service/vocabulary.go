package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keyword: каноническое значение и его написания (синонимы).
// Порядок ключевых слов в списке задаёт приоритет.
type Keyword struct {
	Value   string   `yaml:"value"`
	Aliases []string `yaml:"aliases,omitempty"`
}

func (k Keyword) terms() []string {
	out := make([]string, 0, 1+len(k.Aliases))
	out = append(out, k.Value)
	return append(out, k.Aliases...)
}

// Vocabulary: таблицы ключевых слов для извлечения признаков.
type Vocabulary struct {
	Brands       []Keyword `yaml:"brands"`
	ProductTypes []Keyword `yaml:"productTypes"`
	Flavors      []Keyword `yaml:"flavors"`
	Packages     []Keyword `yaml:"packages"`
	// StopTokens не участвуют в пересечении токенов.
	StopTokens []string `yaml:"stopTokens"`
}

// DefaultVocabulary: встроенный словарь (напитки, основной ассортимент магазина).
// Многословные и более специфичные марки идут раньше общих.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Brands: []Keyword{
			{Value: "coca-cola", Aliases: []string{"coca cola", "cocacola", "coke"}},
			{Value: "font vella", Aliases: []string{"fontvella"}},
			{Value: "nestea"},
			{Value: "aquarius"},
			{Value: "fanta"},
			{Value: "sprite"},
			{Value: "pepsi"},
			{Value: "7up", Aliases: []string{"seven up"}},
			{Value: "schweppes"},
			{Value: "kas"},
			{Value: "bezoya"},
			{Value: "lanjaron"},
			{Value: "solan de cabras", Aliases: []string{"solan"}},
			{Value: "don simon", Aliases: []string{"donsimon"}},
			{Value: "zumosol"},
			{Value: "red bull", Aliases: []string{"redbull"}},
			{Value: "monster"},
			{Value: "mahou"},
			{Value: "estrella damm", Aliases: []string{"damm"}},
			{Value: "cruzcampo"},
			{Value: "heineken"},
			{Value: "hacendado"},
		},
		ProductTypes: []Keyword{
			{Value: "cola"},
			{Value: "tonica", Aliases: []string{"tonic"}},
			{Value: "agua", Aliases: []string{"water"}},
			{Value: "zumo", Aliases: []string{"jugo", "juice", "nectar"}},
			{Value: "te", Aliases: []string{"tea"}},
			{Value: "isotonica", Aliases: []string{"isotonic"}},
			{Value: "energetica", Aliases: []string{"energy"}},
			{Value: "cerveza", Aliases: []string{"beer"}},
			{Value: "refresco", Aliases: []string{"soda"}},
			{Value: "bebida", Aliases: []string{"beverage"}},
		},
		Flavors: []Keyword{
			{Value: "naranja", Aliases: []string{"orange"}},
			{Value: "limon", Aliases: []string{"lemon"}},
			{Value: "lima", Aliases: []string{"lime"}},
			{Value: "manzana", Aliases: []string{"apple"}},
			{Value: "pina", Aliases: []string{"pineapple"}},
			{Value: "melocoton", Aliases: []string{"peach", "durazno"}},
			{Value: "fresa", Aliases: []string{"strawberry"}},
			{Value: "uva", Aliases: []string{"grape"}},
			{Value: "mango"},
			{Value: "zero", Aliases: []string{"sin azucar", "sugar free"}},
			{Value: "light", Aliases: []string{"diet"}},
			{Value: "sin cafeina", Aliases: []string{"caffeine free"}},
			{Value: "sin alcohol", Aliases: []string{"0.0"}},
			{Value: "con gas", Aliases: []string{"sparkling", "gaseosa"}},
			{Value: "original", Aliases: []string{"clasica", "classic"}},
		},
		Packages: []Keyword{
			{Value: "lata", Aliases: []string{"can", "latas"}},
			{Value: "botella", Aliases: []string{"bottle", "btl"}},
			{Value: "vidrio", Aliases: []string{"glass", "cristal"}},
			{Value: "plastico", Aliases: []string{"plastic", "pet"}},
			{Value: "brik", Aliases: []string{"brick", "tetra"}},
			{Value: "pack", Aliases: []string{"caja", "paquete"}},
		},
		StopTokens: []string{"bebida", "beverage", "refresco", "soda", "lata", "can", "botella", "bottle", "pack"},
	}
}

// LoadVocabulary читает словарь из YAML. Пустой путь: встроенный словарь.
func LoadVocabulary(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: %w", err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(b, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	if len(v.Brands) == 0 && len(v.Flavors) == 0 && len(v.ProductTypes) == 0 && len(v.Packages) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary %s: no keywords", path)
	}
	return v, nil
}

// normalized приводит все написания к тому же виду, что и наименования.
func (v Vocabulary) normalized() Vocabulary {
	norm := func(list []Keyword) []Keyword {
		out := make([]Keyword, 0, len(list))
		for _, k := range list {
			nk := Keyword{Value: normalizeName(k.Value)}
			for _, a := range k.Aliases {
				nk.Aliases = append(nk.Aliases, normalizeName(a))
			}
			out = append(out, nk)
		}
		return out
	}
	stop := make([]string, 0, len(v.StopTokens))
	for _, s := range v.StopTokens {
		stop = append(stop, normalizeName(s))
	}
	return Vocabulary{
		Brands:       norm(v.Brands),
		ProductTypes: norm(v.ProductTypes),
		Flavors:      norm(v.Flavors),
		Packages:     norm(v.Packages),
		StopTokens:   stop,
	}
}
