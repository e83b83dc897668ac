package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scoreNames(a, b string) (int, string) {
	m := NewMatcher(DefaultVocabulary(), 85)
	br := m.Compare(a, b)
	return br.Total, br.Gate
}

func TestScore_Table(t *testing.T) {
	cases := []struct {
		a, b string
		want int
		gate string
	}{
		{"Fanta Naranja Lata 330ml", "Fanta Naranja Lata 330ml", 100, ""},
		{"Coca-Cola Original 330ml", "Pepsi Cola 330ml", 0, GateBrand},
		{"Fanta Limon Lata 330ml", "Fanta Naranja Lata 330ml", 15, GateFlavor},
		// 0.33 L == 330 ml; токены 2 из 3
		{"Fanta Naranja Lata 33cl", "Fanta Naranja Lata 330ml", 98, ""},
		{"Fanta Naranja Lata 2L", "Fanta Naranja Lata 330ml", 78, ""},
		// марка неизвестна с одной стороны: без отсечения, но и без баллов
		{"Naranja Lata 330ml", "Fanta Naranja Lata 330ml", 63, ""},
		// частичные баллы за пустые признаки с обеих сторон
		{"Agua", "Agua", 31, ""},
		// стоп-токены не участвуют в пересечении
		{"Bebida Lata", "Bebida Lata", 33, ""},
	}
	for _, tc := range cases {
		t.Run(tc.a+" vs "+tc.b, func(t *testing.T) {
			got, gate := scoreNames(tc.a, tc.b)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.gate, gate)
		})
	}
}

func TestScore_UnitConversion(t *testing.T) {
	m := NewMatcher(DefaultVocabulary(), 85)
	br := m.Compare("Agua Font Vella 1.5L", "Agua Font Vella 1500ml")
	assert.Equal(t, float64(weightSize), br.Size)

	br = m.Compare("Agua Font Vella 150cl", "Agua Font Vella 1,5 litros")
	assert.Equal(t, float64(weightSize), br.Size)

	// 0.05 L допуск: 500ml и 0.55L совпадают, 0.6L уже нет
	assert.Equal(t, float64(weightSize), m.Compare("Agua 500ml", "Agua 0.55L").Size)
	assert.Zero(t, m.Compare("Agua 500ml", "Agua 0.6L").Size)
}

func TestScore_Symmetric(t *testing.T) {
	names := []string{
		"Fanta Naranja Lata 330ml",
		"Fanta Limon 33cl",
		"Coca-Cola Zero 2L",
		"Coca Cola Original botella 2 litros",
		"Pepsi Cola 330ml",
		"Agua Mineral",
		"Refresco de naranja",
		"",
	}
	m := NewMatcher(DefaultVocabulary(), 85)
	for _, a := range names {
		for _, b := range names {
			assert.Equal(t, m.Compare(a, b), m.Compare(b, a), "%q vs %q", a, b)
		}
	}
}

func TestScore_Bounds(t *testing.T) {
	m := NewMatcher(DefaultVocabulary(), 85)
	for _, pair := range [][2]string{
		{"", ""},
		{"x", "y"},
		{"Fanta Naranja Lata 330ml", ""},
		{"Coca-Cola Zero Lata 330ml", "Coca-Cola Zero Lata 330ml"},
	} {
		got := m.Compare(pair[0], pair[1]).Total
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
	}
}

func TestToLiters(t *testing.T) {
	assert.InDelta(t, 0.33, toLiters(330, "ml"), 1e-9)
	assert.InDelta(t, 0.33, toLiters(33, "cl"), 1e-9)
	assert.InDelta(t, 2.0, toLiters(2, "litros"), 1e-9)
	assert.InDelta(t, 0.5, toLiters(500, "oz?"), 1e-9)
}
