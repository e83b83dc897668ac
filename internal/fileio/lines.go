package fileio

import (
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/utils"
)

var rxHeaderJunk = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// ReadLineItems читает накладную поставщика и раскладывает строки по колонкам mapping.
// Строки без наименования, повторы шапки и итоговые строки пропускаются;
// строки с пустым или дробным количеством и без цены остаются с нулём,
// движок отметит их как неполные.
func ReadLineItems(r io.Reader, filename string, m model.Mapping) ([]model.LineItem, error) {
	recs, err := ReadAnyMaps(r, filename, m.HeaderRow)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []model.LineItem{}, nil
	}

	// заголовки одинаковы для всех записей
	first := recs[0]
	codeKey := resolveKey(first, m.CodeKey)
	nameKey := resolveKey(first, m.NameKey)
	qtyKey := resolveKey(first, m.QtyKey)
	costKey := resolveKey(first, m.CostKey)
	totalKey := resolveKey(first, m.TotalKey)
	if totalKey == costKey {
		totalKey = ""
	}

	items := make([]model.LineItem, 0, len(recs))
	for _, rec := range recs {
		if looksLikeHeaderMap(rec) {
			continue
		}
		name := strings.TrimSpace(rec[nameKey])
		if nameKey == "" || name == "" || isTotalRow(name) {
			continue
		}
		it := model.LineItem{Name: name}
		if codeKey != "" {
			it.Code = strings.TrimSpace(rec[codeKey])
		}
		if q, ok := utils.ParseAmount(rec[qtyKey]); ok {
			if q == math.Trunc(q) {
				it.Quantity = int(q)
			} else {
				// дробное количество не округляем: строка уйдёт в неполные
				log.Warn().Str("file", filename).Str("name", name).Float64("quantity", q).Msg("fractional quantity")
			}
		}
		if c, ok := utils.ParseAmount(rec[costKey]); ok && costKey != "" {
			it.UnitCost = c
		}
		if it.UnitCost <= 0 && totalKey != "" && it.Quantity > 0 {
			if t, ok := utils.ParseAmount(rec[totalKey]); ok && t > 0 {
				it.UnitCost = math.Round(t/float64(it.Quantity)*10000) / 10000
			}
		}
		items = append(items, it)
	}
	return items, nil
}

// normHeaderKey — нижний регистр, без диакритики и служебных символов.
func normHeaderKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s); err == nil {
		s = folded
	}
	s = rxHeaderJunk.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// resolveKey ищет реальный ключ записи по желаемому имени.
// Варианты через "|" (например: "cantidad|qty"), порядок вариантов: приоритет.
func resolveKey(rec map[string]string, want string) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var alts []string
	for _, a := range strings.Split(want, "|") {
		if a = normHeaderKey(a); a != "" {
			alts = append(alts, a)
		}
	}

	// 1) точное по нормализованному, в порядке вариантов
	for _, a := range alts {
		for _, k := range keys {
			if normHeaderKey(k) == a {
				return k
			}
		}
	}

	// 2) частичное: составные заголовки вроде "cantidad servida"
	bestKey, bestScore := "", 0
	for _, k := range keys {
		nk := normHeaderKey(k)
		if len(nk) < 3 {
			continue
		}
		score := 0
		for _, a := range alts {
			if strings.Contains(nk, a) || strings.Contains(a, nk) {
				score = max(score, min(len(a), len(nk)))
			}
		}
		if score > bestScore {
			bestScore, bestKey = score, k
		}
	}
	return bestKey
}

// looksLikeHeaderMap — повтор шапки на следующих страницах выгрузки.
func looksLikeHeaderMap(m map[string]string) bool {
	cnt := 0
	for _, v := range m {
		s := normHeaderKey(v)
		switch {
		case strings.HasPrefix(s, "descrip"), strings.HasPrefix(s, "cantidad"),
			strings.HasPrefix(s, "codigo"), strings.HasPrefix(s, "precio"):
			cnt++
		}
	}
	return cnt >= 2
}

func isTotalRow(name string) bool {
	switch normHeaderKey(name) {
	case "total", "subtotal", "base imponible", "iva", "total factura":
		return true
	}
	return false
}
