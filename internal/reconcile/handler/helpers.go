package handler

import (
	"net/http"
	"strconv"
	"strings"

	"stock-recon/internal/reconcile/model"
)

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return i
}

func toBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "si", "sí", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// mappingFromForm: колонки из формы поверх значений по умолчанию.
func mappingFromForm(r *http.Request) model.Mapping {
	m := model.DefaultMapping()
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(r.FormValue(key)); v != "" {
			*dst = v
		}
	}
	override(&m.CodeKey, "col_codigo")
	override(&m.NameKey, "col_nombre")
	override(&m.QtyKey, "col_cantidad")
	override(&m.CostKey, "col_precio")
	override(&m.TotalKey, "col_total")
	m.HeaderRow = atoi(r.FormValue("header_row"), m.HeaderRow)
	if m.HeaderRow < 1 {
		m.HeaderRow = 1
	}
	return m
}
