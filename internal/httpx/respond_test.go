package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-recon/internal/fileio"
	"stock-recon/internal/reconcile/service"
	"stock-recon/internal/store"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("item 0: %w", store.ErrNotFound), http.StatusNotFound},
		{store.ErrInvalid, http.StatusBadRequest},
		{fmt.Errorf("%w: .pdf", fileio.ErrUnsupported), http.StatusBadRequest},
		{store.ErrNoTenant, http.StatusUnauthorized},
		{store.ErrDuplicate, http.StatusConflict},
		{service.ErrAlreadyProcessed, http.StatusConflict},
		{service.ErrPostingInProgress, http.StatusConflict},
		{store.ErrInsufficientStock, http.StatusUnprocessableEntity},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusOf(c.err), c.err.Error())
	}
}

type item struct {
	Name string `json:"nombre" validate:"required"`
	Qty  int    `json:"cantidad" validate:"gt=0"`
}

func TestRespondError_Validation(t *testing.T) {
	err := NewValidator().Struct(item{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	RespondError(rec, zerolog.Nop(), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"item.nombre: required"`)
	assert.Contains(t, rec.Body.String(), `"item.cantidad: gt"`)
}

func TestRespondError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, zerolog.Nop(), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestDecodeJSON(t *testing.T) {
	var v item
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nombre":"x","cantidad":1}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, item{Name: "x", Qty: 1}, v)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nombre":"x"} {"nombre":"y"}`))
	assert.ErrorIs(t, DecodeJSON(req, &v), ErrBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[`))
	assert.ErrorIs(t, DecodeJSON(req, &v), ErrBadRequest)
}
