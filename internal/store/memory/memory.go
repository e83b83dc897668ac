package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
)

type tenantData struct {
	products     map[string]model.Product
	productOrder []string
	invoices     map[string]model.Invoice
	invoiceOrder []string
	sales        map[string]model.Sale
}

func newTenantData() *tenantData {
	return &tenantData{
		products: make(map[string]model.Product),
		invoices: make(map[string]model.Invoice),
		sales:    make(map[string]model.Sale),
	}
}

// Store: in-memory реализация store.Repository (dev и тесты).
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*tenantData
	now     func() time.Time
}

func New() *Store {
	return &Store{
		tenants: make(map[string]*tenantData),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded: каталог-пример для локального запуска.
func NewSeeded(tenant string) *Store {
	s := New()
	seed := []model.Product{
		{Code: "5449000000996", Name: "Coca-Cola Original 330ml", CostPrice: 0.45, SellPrice: 0.90, VATRate: 10, Stock: 48, Category: "Bebidas", Active: true},
		{Code: "5449000131805", Name: "Coca-Cola Zero Lata 330ml", CostPrice: 0.45, SellPrice: 0.90, VATRate: 10, Stock: 24, Category: "Bebidas", Active: true},
		{Code: "5449000011527", Name: "Fanta Naranja Lata 330ml", CostPrice: 0.40, SellPrice: 0.85, VATRate: 10, Stock: 24, Category: "Bebidas", Active: true},
		{Code: "5449000011534", Name: "Fanta Limon Lata 330ml", CostPrice: 0.40, SellPrice: 0.85, VATRate: 10, Stock: 12, Category: "Bebidas", Active: true},
		{Code: "8410128000017", Name: "Pepsi Cola Botella 2L", CostPrice: 0.95, SellPrice: 1.80, VATRate: 10, Stock: 6, Category: "Bebidas", Active: true},
		{Code: "8480000123456", Name: "Agua Mineral Font Vella 1.5L", CostPrice: 0.30, SellPrice: 0.60, VATRate: 10, Stock: 30, Category: "Bebidas", Active: true},
	}
	for _, p := range seed {
		_, _ = s.CreateProduct(context.Background(), tenant, p)
	}
	return s
}

func (s *Store) tenant(tenant string, create bool) (*tenantData, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	td, ok := s.tenants[tenant]
	if !ok {
		if !create {
			return nil, nil
		}
		td = newTenantData()
		s.tenants[tenant] = td
	}
	return td, nil
}

func (s *Store) ListProducts(_ context.Context, tenant string) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, err := s.tenant(tenant, false)
	if err != nil || td == nil {
		return []model.Product{}, err
	}
	out := make([]model.Product, 0, len(td.productOrder))
	for _, id := range td.productOrder {
		out = append(out, cloneProduct(td.products[id]))
	}
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, tenant, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, err := s.tenant(tenant, false)
	if err != nil {
		return nil, err
	}
	if td == nil {
		return nil, store.ErrNotFound
	}
	p, ok := td.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(p)
	return &out, nil
}

func (s *Store) FindProductByCode(_ context.Context, tenant, code string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, err := s.tenant(tenant, false)
	if err != nil {
		return nil, err
	}
	code = store.NormalizeCode(code)
	if td == nil || code == "" {
		return nil, store.ErrNotFound
	}
	for _, id := range td.productOrder {
		p := td.products[id]
		if p.Deleted {
			continue
		}
		if store.NormalizeCode(p.Code) == code || store.NormalizeCode(p.AliasCode) == code {
			out := cloneProduct(p)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, tenant string, p model.Product) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	td, err := s.tenant(tenant, true)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	if p.Name == "" || p.Stock < 0 {
		return nil, store.ErrInvalid
	}
	if td.codeTaken(p.Code, "") {
		return nil, store.ErrDuplicate
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := td.products[p.ID]; exists {
		return nil, store.ErrDuplicate
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	td.products[p.ID] = cloneProduct(p)
	td.productOrder = append(td.productOrder, p.ID)
	out := cloneProduct(p)
	return &out, nil
}

func (s *Store) UpdateProduct(_ context.Context, tenant string, p model.Product) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	td, err := s.tenant(tenant, false)
	if err != nil {
		return nil, err
	}
	if td == nil {
		return nil, store.ErrNotFound
	}
	prev, ok := td.products[p.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(p.Name) == "" || p.Stock < 0 {
		return nil, store.ErrInvalid
	}
	if td.codeTaken(p.Code, p.ID) {
		return nil, store.ErrDuplicate
	}
	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = s.now()
	td.products[p.ID] = cloneProduct(p)
	out := cloneProduct(p)
	return &out, nil
}

// codeTaken: пустой код уникальность не нарушает.
func (td *tenantData) codeTaken(code, exceptID string) bool {
	code = store.NormalizeCode(code)
	if code == "" {
		return false
	}
	for id, p := range td.products {
		if id == exceptID || p.Deleted {
			continue
		}
		if store.NormalizeCode(p.Code) == code {
			return true
		}
	}
	return false
}

func (s *Store) CreateInvoice(_ context.Context, tenant string, inv model.Invoice) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	td, err := s.tenant(tenant, true)
	if err != nil {
		return nil, err
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if _, exists := td.invoices[inv.ID]; exists {
		return nil, store.ErrDuplicate
	}
	now := s.now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	td.invoices[inv.ID] = cloneInvoice(inv)
	td.invoiceOrder = append(td.invoiceOrder, inv.ID)
	out := cloneInvoice(inv)
	return &out, nil
}

func (s *Store) GetInvoice(_ context.Context, tenant, id string) (*model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, err := s.tenant(tenant, false)
	if err != nil {
		return nil, err
	}
	if td == nil {
		return nil, store.ErrNotFound
	}
	inv, ok := td.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneInvoice(inv)
	return &out, nil
}

func (s *Store) ListInvoices(_ context.Context, tenant string) ([]model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, err := s.tenant(tenant, false)
	if err != nil || td == nil {
		return []model.Invoice{}, err
	}
	out := make([]model.Invoice, 0, len(td.invoiceOrder))
	for _, id := range td.invoiceOrder {
		inv := td.invoices[id]
		if inv.Deleted {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	return out, nil
}

func (s *Store) UpdateInvoice(_ context.Context, tenant string, inv model.Invoice) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	td, err := s.tenant(tenant, false)
	if err != nil {
		return nil, err
	}
	if td == nil {
		return nil, store.ErrNotFound
	}
	prev, ok := td.invoices[inv.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	inv.CreatedAt = prev.CreatedAt
	inv.UpdatedAt = s.now()
	td.invoices[inv.ID] = cloneInvoice(inv)
	out := cloneInvoice(inv)
	return &out, nil
}

func (s *Store) CreateSale(_ context.Context, tenant string, sale model.Sale) (*model.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	td, err := s.tenant(tenant, true)
	if err != nil {
		return nil, err
	}
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	sale.Items = append([]model.SaleItem(nil), sale.Items...)
	td.sales[sale.ID] = sale
	out := sale
	out.Items = append([]model.SaleItem(nil), sale.Items...)
	return &out, nil
}

func cloneProduct(p model.Product) model.Product {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	if p.OriginalPrice != nil {
		v := *p.OriginalPrice
		p.OriginalPrice = &v
	}
	if p.LastPurchase != nil {
		lp := *p.LastPurchase
		p.LastPurchase = &lp
	}
	return p
}

func cloneInvoice(inv model.Invoice) model.Invoice {
	items := make([]model.LineItem, len(inv.Items))
	for i, it := range inv.Items {
		if it.ConfirmedMatch != nil {
			v := *it.ConfirmedMatch
			it.ConfirmedMatch = &v
		}
		items[i] = it
	}
	inv.Items = items
	return inv
}
