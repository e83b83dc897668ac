// Package catalog: товары и продажи кассы (legacy REST поверх store).
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
)

const defaultCategory = "General"

type Service struct {
	repo store.Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo store.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  logger,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateProduct: цена продажи обязана быть выше себестоимости.
func (s *Service) CreateProduct(ctx context.Context, tenant string, p model.Product) (*model.Product, error) {
	p.ID = ""
	p.Deleted = false
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	if strings.TrimSpace(p.Category) == "" {
		p.Category = defaultCategory
	}
	p.Active = true
	if p.SellPrice <= p.CostPrice {
		return nil, fmt.Errorf("%w: precioVenta %.2f must exceed precioCosto %.2f", store.ErrInvalid, p.SellPrice, p.CostPrice)
	}
	return s.repo.CreateProduct(ctx, tenant, p)
}

// ListProducts: без удалённых.
func (s *Service) ListProducts(ctx context.Context, tenant string) ([]model.Product, error) {
	all, err := s.repo.ListProducts(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]model.Product, 0, len(all))
	for _, p := range all {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) FindByCode(ctx context.Context, tenant, code string) (*model.Product, error) {
	return s.repo.FindProductByCode(ctx, tenant, code)
}

// Checkout проводит продажу: дата ставится сервером, остатки уменьшаются.
// Сначала проверяются все позиции, потом списывается; при нехватке ничего не меняется.
func (s *Service) Checkout(ctx context.Context, tenant string, sale model.Sale) (*model.Sale, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale without items", store.ErrInvalid)
	}

	products := make(map[string]*model.Product)
	need := make(map[string]int)
	var order []string
	total := decimal.Zero
	for i := range sale.Items {
		it := &sale.Items[i]
		p, err := s.resolve(ctx, tenant, *it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if _, seen := products[p.ID]; !seen {
			products[p.ID] = p
			order = append(order, p.ID)
		}
		need[p.ID] += it.Quantity
		it.ProductID, it.Code = p.ID, p.Code
		if it.Name == "" {
			it.Name = p.Name
		}
		if it.Price <= 0 {
			it.Price = p.SellPrice
		}
		total = total.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	for _, id := range order {
		if p := products[id]; p.Stock < need[id] {
			return nil, fmt.Errorf("%w: %s (stock %d, requested %d)", store.ErrInsufficientStock, p.Name, p.Stock, need[id])
		}
	}

	for _, id := range order {
		p := products[id]
		p.Stock -= need[id]
		if _, err := s.repo.UpdateProduct(ctx, tenant, *p); err != nil {
			// часть остатков уже списана
			s.log.Error().Err(err).Str("tenant", tenant).Str("product", id).Msg("checkout stock update")
			return nil, fmt.Errorf("update stock %s: %w", id, err)
		}
	}

	sale.ID = ""
	sale.Date = s.now()
	if sale.Total <= 0 {
		sale.Total = total.Round(2).InexactFloat64()
	}
	saved, err := s.repo.CreateSale(ctx, tenant, sale)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tenant", tenant).Str("sale", saved.ID).Int("items", len(saved.Items)).
		Float64("total", saved.Total).Msg("sale recorded")
	return saved, nil
}

func (s *Service) resolve(ctx context.Context, tenant string, it model.SaleItem) (*model.Product, error) {
	if it.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalid)
	}
	var (
		p   *model.Product
		err error
	)
	if id := strings.TrimSpace(it.ProductID); id != "" {
		p, err = s.repo.GetProduct(ctx, tenant, id)
	} else {
		p, err = s.repo.FindProductByCode(ctx, tenant, it.Code)
	}
	if err != nil {
		return nil, err
	}
	if p.Deleted {
		return nil, store.ErrNotFound
	}
	return p, nil
}
