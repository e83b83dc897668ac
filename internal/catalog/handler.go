package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"stock-recon/internal/httpx"
	"stock-recon/internal/middleware"
	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, validate: httpx.NewValidator(), log: logger}
}

// Routes монтируется под /api (после middleware.Tenant).
func (h *Handler) Routes(r chi.Router) {
	r.Post("/productos", h.createProduct)
	r.Get("/productos", h.listProducts)
	r.Get("/productos/buscar/{codigoBarra}", h.findByCode)
	r.Post("/ventas", h.createSale)
}

type idResponse struct {
	ID string `json:"id"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	if err := h.validate.Struct(p); err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	saved, err := h.svc.CreateProduct(r.Context(), middleware.TenantFrom(r.Context()), p)
	if err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, idResponse{ID: saved.ID})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListProducts(r.Context(), middleware.TenantFrom(r.Context()))
	if err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) findByCode(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.FindByCode(r.Context(), middleware.TenantFrom(r.Context()), chi.URLParam(r, "codigoBarra"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.JSON(w, http.StatusNotFound, map[string]string{"mensaje": "Producto no encontrado"})
		return
	}
	if err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var sale model.Sale
	if err := httpx.DecodeJSON(r, &sale); err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	if err := h.validate.Struct(sale); err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	saved, err := h.svc.Checkout(r.Context(), middleware.TenantFrom(r.Context()), sale)
	if err != nil {
		httpx.RespondError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, idResponse{ID: saved.ID})
}
