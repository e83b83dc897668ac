package service

import (
	"sort"
	"strings"

	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
)

// Matcher ищет товар каталога для строки накладной:
// (1) код → (2) точное имя → (3) лучший fuzzy-балл не ниже порога.
type Matcher struct {
	extractor *Extractor
	scorer    *Scorer
	threshold int
}

func NewMatcher(v Vocabulary, threshold int) *Matcher {
	return &Matcher{
		extractor: NewExtractor(v),
		scorer:    NewScorer(v),
		threshold: threshold,
	}
}

func (m *Matcher) Threshold() int { return m.threshold }

// Features — признаки наименования (для предпросмотра и отладки).
func (m *Matcher) Features(name string) model.FeatureSet { return m.extractor.Extract(name) }

// Compare — балл сходства двух наименований.
func (m *Matcher) Compare(a, b string) model.Breakdown {
	return m.scorer.Score(m.extractor.Extract(a), m.extractor.Extract(b))
}

// Match возвращает первый успешный способ; удалённые товары не кандидаты.
func (m *Matcher) Match(line model.LineItem, catalog []model.Product) (*model.Match, bool) {
	// (1) Совпадение по коду (основной и старый код)
	if code := store.NormalizeCode(line.Code); code != "" {
		for _, p := range catalog {
			if p.Deleted {
				continue
			}
			if store.NormalizeCode(p.Code) == code || store.NormalizeCode(p.AliasCode) == code {
				return &model.Match{Product: p, Method: model.MethodCode, Score: 100}, true
			}
		}
	}

	// (2) Точное совпадение имени
	name := strings.TrimSpace(line.Name)
	if name == "" {
		return nil, false
	}
	for _, p := range catalog {
		if p.Deleted {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return &model.Match{Product: p, Method: model.MethodName, Score: 100}, true
		}
	}

	// (3) Fuzzy: при равенстве баллов остаётся первый встреченный
	lf := m.extractor.Extract(name)
	best := -1
	var (
		bestProduct   model.Product
		bestBreakdown model.Breakdown
	)
	for _, p := range catalog {
		if p.Deleted {
			continue
		}
		br := m.scorer.Score(lf, m.extractor.Extract(p.Name))
		if br.Total > best {
			best = br.Total
			bestProduct = p
			bestBreakdown = br
		}
	}
	if best >= m.threshold {
		return &model.Match{Product: bestProduct, Method: model.MethodFuzzy, Score: best, Breakdown: &bestBreakdown}, true
	}
	return nil, false
}

// Suggest — топ-n кандидатов для ручного выбора: по баллу, затем по сходству строк, затем по порядку каталога.
func (m *Matcher) Suggest(line model.LineItem, catalog []model.Product, n int) []model.Candidate {
	name := strings.TrimSpace(line.Name)
	if name == "" || n <= 0 {
		return []model.Candidate{}
	}
	lf := m.extractor.Extract(name)
	ln := normalizeName(name)

	out := make([]model.Candidate, 0, len(catalog))
	for _, p := range catalog {
		if p.Deleted {
			continue
		}
		br := m.scorer.Score(lf, m.extractor.Extract(p.Name))
		if br.Total == 0 {
			continue
		}
		out = append(out, model.Candidate{
			Product:    p,
			Score:      br.Total,
			Similarity: nameSimilarity(ln, normalizeName(p.Name)),
			Breakdown:  br,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
