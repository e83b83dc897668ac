package middleware

import (
	"fmt"
	"net/http"

	"stock-recon/internal/httpx"
)

// LimitBytes ограничивает размер тела запроса (загрузка накладных).
func LimitBytes(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > n {
				httpx.Problem(w, http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge),
					fmt.Sprintf("request body exceeds %d bytes", n))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
