package service

import (
	"math"

	"stock-recon/internal/reconcile/model"
)

// Веса критериев (сумма 100) и частичные баллы.
const (
	weightBrand   = 35
	weightFlavor  = 30
	weightSize    = 20
	weightPackage = 10
	weightTokens  = 5

	bothEmptyBrand   = 10
	bothEmptyFlavor  = 8
	bothEmptySize    = 5
	bothEmptyPackage = 3

	flavorGateScore = 15
	sizeToleranceL  = 0.05
)

const (
	GateBrand  = "brand"
	GateFlavor = "flavor"
)

// Scorer — чистая симметричная функция сходства 0..100.
type Scorer struct {
	stop map[string]struct{}
}

func NewScorer(v Vocabulary) *Scorer {
	stop := make(map[string]struct{}, len(v.StopTokens))
	for _, t := range v.normalized().StopTokens {
		stop[t] = struct{}{}
	}
	return &Scorer{stop: stop}
}

// Score сравнивает два набора признаков.
// Разные марки → 0; та же (или неизвестная) марка, но разный вкус → 15.
func (s *Scorer) Score(a, b model.FeatureSet) model.Breakdown {
	if a.Brand != "" && b.Brand != "" && a.Brand != b.Brand {
		return model.Breakdown{Gate: GateBrand, Total: 0}
	}
	if a.Flavor != "" && b.Flavor != "" && a.Flavor != b.Flavor {
		return model.Breakdown{Gate: GateFlavor, Total: flavorGateScore}
	}

	var br model.Breakdown
	br.Brand = attrPoints(a.Brand, b.Brand, weightBrand, bothEmptyBrand)
	br.Flavor = attrPoints(a.Flavor, b.Flavor, weightFlavor, bothEmptyFlavor)
	br.Package = attrPoints(a.PackageType, b.PackageType, weightPackage, bothEmptyPackage)

	switch {
	case a.HasSize() && b.HasSize():
		if math.Abs(toLiters(a.Size, a.Unit)-toLiters(b.Size, b.Unit)) <= sizeToleranceL+1e-9 {
			br.Size = weightSize
		}
	case !a.HasSize() && !b.HasSize():
		br.Size = bothEmptySize
	}

	br.Tokens = s.tokenOverlap(a.Tokens, b.Tokens) * weightTokens

	sum := br.Brand + br.Flavor + br.Size + br.Package + br.Tokens
	br.Total = clampScore(int(math.Round(sum)))
	return br
}

// attrPoints: полный вес при совпадении, частичный: если пусто с обеих сторон.
func attrPoints(a, b string, full, bothEmpty float64) float64 {
	switch {
	case a != "" && b != "" && a == b:
		return full
	case a == "" && b == "":
		return bothEmpty
	default:
		return 0
	}
}

// tokenOverlap — доля общих значимых токенов (0..1) без стоп-слов.
func (s *Scorer) tokenOverlap(a, b []string) float64 {
	fa := s.filter(a)
	fb := s.filter(b)
	denom := len(fa)
	if len(fb) > denom {
		denom = len(fb)
	}
	if denom == 0 {
		return 0
	}
	shared := 0
	for t := range fa {
		if _, ok := fb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(denom)
}

func (s *Scorer) filter(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, stop := s.stop[t]; stop {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

// toLiters: ml → /1000, cl → /100, l/litro(s)/liter(s) → как есть; неизвестное: как ml.
func toLiters(size float64, unit string) float64 {
	switch unit {
	case "ml":
		return size / 1000
	case "cl":
		return size / 100
	case "l", "lt", "lts", "litro", "litros", "liter", "liters":
		return size
	default:
		return size / 1000
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
