package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stock-recon/internal/httpx"
)

const (
	tenantKey    ctxKey = 2
	tenantHeader        = "X-Tenant-ID"
)

// TenantClaims: bearer-токен кассы; tenant: идентификатор магазина.
type TenantClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

// Tenant проверяет bearer JWT (HS256) и кладёт tenant в контекст.
func Tenant(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, err := parseTenant(r.Header.Get("Authorization"), secret)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="stock-recon"`)
				httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "valid bearer token with tenant required")
				return
			}
			w.Header().Set(tenantHeader, tenant)
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
		})
	}
}

func parseTenant(header string, secret []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errors.New("missing bearer token")
	}
	var claims TenantClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Tenant) == "" {
		return "", errors.New("token without tenant")
	}
	return claims.Tenant, nil
}

// SignTenantToken выпускает токен для tenant (тесты, служебные скрипты).
func SignTenantToken(secret []byte, tenant string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TenantClaims{
		Tenant: tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// TenantFrom: "" если запрос не прошёл через Tenant.
func TenantFrom(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey).(string)
	return v
}
