// Package httpx: JSON-ответы, problem details (RFC7807) и маппинг доменных ошибок в статусы.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"stock-recon/internal/fileio"
	"stock-recon/internal/reconcile/service"
	"stock-recon/internal/store"
)

type ProblemDetail struct {
	Type   string   `json:"type,omitempty"`
	Title  string   `json:"title"`
	Status int      `json:"status"`
	Detail string   `json:"detail,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// ErrBadRequest: тело запроса не разобрать.
var ErrBadRequest = errors.New("malformed request body")

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{Title: title, Status: status, Detail: detail})
}

// NewValidator: validator с именами полей из json-тегов.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON: один JSON-объект; хвост после него отклоняется.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadRequest)
	}
	return nil
}

// StatusOf: HTTP-статус для доменной ошибки.
func StatusOf(err error) int {
	var verr validator.ValidationErrors
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, store.ErrInvalid),
		errors.Is(err, service.ErrIncompleteLine),
		errors.Is(err, fileio.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNoTenant):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrPostingInProgress):
		return http.StatusConflict
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError пишет problem details; 5xx логируется, детали наружу не отдаются.
func RespondError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		Problem(w, status, http.StatusText(status), "")
		return
	}
	p := ProblemDetail{Title: http.StatusText(status), Status: status, Detail: err.Error()}
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		p.Detail = "validation failed"
		for _, fe := range verr {
			p.Fields = append(p.Fields, fe.Namespace()+": "+fe.Tag())
		}
	}
	JSON(w, status, p)
}
