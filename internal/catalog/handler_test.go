package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-recon/internal/middleware"
	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store/memory"
)

func newTestRouter() *chi.Mux {
	h := NewHandler(NewService(memory.NewSeeded(shop), zerolog.Nop()), zerolog.Nop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithTenant(r.Context(), shop)))
		})
	})
	h.Routes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateAndList(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodPost, "/productos", `{"codigo":"777","nombre":"Nestea Limon 1,5L","precioVenta":1.5,"stock":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created idResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	rec = do(r, http.MethodGet, "/productos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 7)
	assert.Equal(t, created.ID, list[6].ID)
}

func TestHandler_CreateValidation(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodPost, "/productos", `{"codigo":"1","stock":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nombre")

	rec = do(r, http.MethodPost, "/productos", `{"nombre":"Zumo Pina 1L","precioCosto":1.0,"precioVenta":0.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "precioVenta")

	rec = do(r, http.MethodPost, "/productos", `{"nombre":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_FindByCode(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodGet, "/productos/buscar/5449000011527", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Fanta Naranja Lata 330ml", p.Name)

	rec = do(r, http.MethodGet, "/productos/buscar/000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"mensaje":"Producto no encontrado"}`, rec.Body.String())
}

func TestHandler_Sale(t *testing.T) {
	r := newTestRouter()

	rec := do(r, http.MethodPost, "/ventas", `{"items":[{"codigo":"8410128000017","cantidad":2}],"metodoPago":"tarjeta"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(r, http.MethodGet, "/productos/buscar/8410128000017", "")
	var p model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 4, p.Stock)

	rec = do(r, http.MethodPost, "/ventas", `{"items":[{"codigo":"8410128000017","cantidad":50}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(r, http.MethodPost, "/ventas", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
