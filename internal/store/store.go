// Package store: доступ к данным в рамках одного арендатора (tenant).
// Каждый метод принимает tenant явно и отказывает, если он пуст.
package store

import (
	"context"
	"errors"
	"strings"

	"stock-recon/internal/reconcile/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate code")
	ErrNoTenant          = errors.New("tenant identity required")
	ErrInvalid           = errors.New("invalid data")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	// ListProducts возвращает товары в порядке создания (он же порядок перебора при fuzzy-поиске).
	ListProducts(ctx context.Context, tenant string) ([]model.Product, error)
	GetProduct(ctx context.Context, tenant, id string) (*model.Product, error)
	FindProductByCode(ctx context.Context, tenant, code string) (*model.Product, error)
	CreateProduct(ctx context.Context, tenant string, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, tenant string, p model.Product) (*model.Product, error)

	CreateInvoice(ctx context.Context, tenant string, inv model.Invoice) (*model.Invoice, error)
	GetInvoice(ctx context.Context, tenant, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, tenant string) ([]model.Invoice, error)
	UpdateInvoice(ctx context.Context, tenant string, inv model.Invoice) (*model.Invoice, error)

	CreateSale(ctx context.Context, tenant string, sale model.Sale) (*model.Sale, error)
}

// CheckTenant: общий guard для реализаций.
func CheckTenant(tenant string) error {
	if strings.TrimSpace(tenant) == "" {
		return ErrNoTenant
	}
	return nil
}

// NormalizeCode: коды сравниваются без регистра и пробелов по краям.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
