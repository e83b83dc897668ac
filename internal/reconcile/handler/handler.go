package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"stock-recon/internal/fileio"
	"stock-recon/internal/httpx"
	"stock-recon/internal/middleware"
	"stock-recon/internal/reconcile/model"
	recSvc "stock-recon/internal/reconcile/service"
)

type Handler struct {
	svc       *recSvc.Invoices
	validate  *validator.Validate
	log       zerolog.Logger
	maxUpload int64
}

func New(svc *recSvc.Invoices, maxUploadMB int, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		validate:  httpx.NewValidator(),
		log:       logger,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

// Routes монтируется под /api/facturas (после middleware.Tenant).
func (h *Handler) Routes(r chi.Router) {
	r.Post("/preview", h.preview)
	r.Post("/import", h.importFile)
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/procesar", h.post)
}

type linesRequest struct {
	Items []model.LineItem `json:"items"`
}

type importResponse struct {
	File    string              `json:"file"`
	Items   []model.LineItem    `json:"items"`
	Preview []model.PreviewLine `json:"preview"`
}

// logger с req_id и tenant для записи из обработчика.
func (h *Handler) logger(r *http.Request) zerolog.Logger {
	return h.log.With().
		Str("rid", middleware.GetRequestID(r)).
		Str("tenant", middleware.TenantFrom(r.Context())).
		Logger()
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	var req linesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	out, err := h.svc.Preview(r.Context(), middleware.TenantFrom(r.Context()), req.Items)
	if err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.logger(r)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "bad multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing file: "+err.Error())
		return
	}
	defer file.Close()

	items, err := fileio.ReadLineItems(file, header.Filename, mappingFromForm(r))
	if err != nil {
		if !errors.Is(err, fileio.ErrUnsupported) {
			err = errors.Join(httpx.ErrBadRequest, err)
		}
		httpx.RespondError(w, log, err)
		return
	}

	resp := importResponse{File: header.Filename, Items: items, Preview: []model.PreviewLine{}}
	if toBool(r.FormValue("preview"), true) {
		resp.Preview, err = h.svc.Preview(r.Context(), middleware.TenantFrom(r.Context()), items)
		if err != nil {
			httpx.RespondError(w, log, err)
			return
		}
	}
	log.Info().Str("file", header.Filename).Int("lines", len(items)).Dur("elapsed", time.Since(start)).Msg("invoice imported")
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	var inv model.Invoice
	if err := httpx.DecodeJSON(r, &inv); err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	if err := h.validate.Struct(inv); err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	saved, err := h.svc.CreateDraft(r.Context(), middleware.TenantFrom(r.Context()), inv)
	if err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saved)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), middleware.TenantFrom(r.Context()))
	if err != nil {
		httpx.RespondError(w, h.logger(r), err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), middleware.TenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger(r), err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	var inv model.Invoice
	if err := httpx.DecodeJSON(r, &inv); err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	if err := h.validate.Struct(inv); err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	saved, err := h.svc.Update(r.Context(), middleware.TenantFrom(r.Context()), chi.URLParam(r, "id"), inv)
	if err != nil {
		httpx.RespondError(w, log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.TenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, h.logger(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// post проводит накладную. Пустое тело: строки черновика.
// Частичный сбой: 200 со сводкой и warning: накладная уже проведена.
func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	var req linesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondError(w, log, err)
		return
	}
	sum, err := h.svc.Post(r.Context(), middleware.TenantFrom(r.Context()), chi.URLParam(r, "id"), req.Items)
	if err != nil && !errors.Is(err, recSvc.ErrPartialFailure) {
		httpx.RespondError(w, log, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("invoice", sum.Invoice.ID).Msg("invoice posted with failed lines")
	}
	httpx.JSON(w, http.StatusOK, sum)
}
