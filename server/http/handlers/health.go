package handlers

import (
	"context"
	"net/http"
	"time"

	"stock-recon/internal/httpx"
)

// Pinger: зависимость, которую проверяет /health (postgres, redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health: 200, если все зависимости отвечают, иначе 503 с подробностями.
func Health(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, p := range deps {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(deps))
			}
			if err := p.Ping(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httpx.JSON(w, status, resp)
	}
}
