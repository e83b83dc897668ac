package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"stock-recon/internal/httpx"
)

// Recover: паника обработчика превращается в 500 problem+json.
func Recover(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// обрыв ответа сервером: пусть net/http обработает сам
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().
						Str("rid", GetRequestID(r)).
						Str("tenant", TenantFrom(r.Context())).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Msg("panic")
					httpx.Problem(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), "")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
