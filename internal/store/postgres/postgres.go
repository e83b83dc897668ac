package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

// New открывает пул и проверяет соединение.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate создаёт таблицы, если их нет.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const productColumns = `id, code, alias_code, name, description, cost_price, sell_price, original_price,
	vat_rate, stock, category, supplier, image, tags, active, deleted, last_purchase, created_at, updated_at`

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p  model.Product
		lp []byte
	)
	err := row.Scan(&p.ID, &p.Code, &p.AliasCode, &p.Name, &p.Description, &p.CostPrice, &p.SellPrice,
		&p.OriginalPrice, &p.VATRate, &p.Stock, &p.Category, &p.Supplier, &p.Image, &p.Tags,
		&p.Active, &p.Deleted, &lp, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Product{}, err
	}
	if len(lp) > 0 {
		var purchase model.LastPurchase
		if err := json.Unmarshal(lp, &purchase); err != nil {
			return model.Product{}, fmt.Errorf("postgres: last_purchase: %w", err)
		}
		p.LastPurchase = &purchase
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, tenant string) ([]model.Product, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE tenant_id = $1 ORDER BY seq`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]model.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, tenant, id string) (*model.Product, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = $2`, tenant, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) FindProductByCode(ctx context.Context, tenant, code string) (*model.Product, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	code = store.NormalizeCode(code)
	if code == "" {
		return nil, store.ErrNotFound
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE tenant_id = $1 AND NOT deleted AND (lower(trim(code)) = $2 OR lower(trim(alias_code)) = $2)
		ORDER BY seq LIMIT 1`, tenant, code))
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, tenant string, p model.Product) (*model.Product, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	if p.Name == "" || p.Stock < 0 {
		return nil, store.ErrInvalid
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	lp, err := marshalPurchase(p.LastPurchase)
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO products (tenant_id, id, code, alias_code, name, description, cost_price, sell_price,
			original_price, vat_rate, stock, category, supplier, image, tags, active, deleted, last_purchase)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING created_at, updated_at`,
		tenant, p.ID, p.Code, p.AliasCode, p.Name, p.Description, p.CostPrice, p.SellPrice,
		p.OriginalPrice, p.VATRate, p.Stock, p.Category, p.Supplier, p.Image, p.Tags, p.Active, p.Deleted, lp,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, tenant string, p model.Product) (*model.Product, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Name) == "" || p.Stock < 0 {
		return nil, store.ErrInvalid
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	lp, err := marshalPurchase(p.LastPurchase)
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx, `
		UPDATE products SET code = $3, alias_code = $4, name = $5, description = $6, cost_price = $7,
			sell_price = $8, original_price = $9, vat_rate = $10, stock = $11, category = $12, supplier = $13,
			image = $14, tags = $15, active = $16, deleted = $17, last_purchase = $18, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		tenant, p.ID, p.Code, p.AliasCode, p.Name, p.Description, p.CostPrice, p.SellPrice,
		p.OriginalPrice, p.VATRate, p.Stock, p.Category, p.Supplier, p.Image, p.Tags, p.Active, p.Deleted, lp,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

const invoiceColumns = `id, number, supplier, date, total, items, processed, deleted, created_at, updated_at`

func scanInvoice(row pgx.Row) (model.Invoice, error) {
	var (
		inv   model.Invoice
		items []byte
	)
	if err := row.Scan(&inv.ID, &inv.Number, &inv.Supplier, &inv.Date, &inv.Total, &items,
		&inv.Processed, &inv.Deleted, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return model.Invoice{}, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return model.Invoice{}, fmt.Errorf("postgres: invoice items: %w", err)
	}
	return inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, tenant string, inv model.Invoice) (*model.Invoice, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	items, err := json.Marshal(nonNilItems(inv.Items))
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO invoices (tenant_id, id, number, supplier, date, total, items, processed, deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		tenant, inv.ID, inv.Number, inv.Supplier, inv.Date, inv.Total, items, inv.Processed, inv.Deleted,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, tenant, id string) (*model.Invoice, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 AND id = $2`, tenant, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, tenant string) ([]model.Invoice, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 AND NOT deleted ORDER BY seq`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Invoice, 0, 32)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) UpdateInvoice(ctx context.Context, tenant string, inv model.Invoice) (*model.Invoice, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	items, err := json.Marshal(nonNilItems(inv.Items))
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx, `
		UPDATE invoices SET number = $3, supplier = $4, date = $5, total = $6, items = $7,
			processed = $8, deleted = $9, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		tenant, inv.ID, inv.Number, inv.Supplier, inv.Date, inv.Total, items, inv.Processed, inv.Deleted,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (s *Store) CreateSale(ctx context.Context, tenant string, sale model.Sale) (*model.Sale, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sales (tenant_id, id, items, total, payment_method, date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		tenant, sale.ID, items, sale.Total, sale.PaymentMethod, sale.Date)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sale, nil
}

func marshalPurchase(lp *model.LastPurchase) ([]byte, error) {
	if lp == nil {
		return nil, nil
	}
	return json.Marshal(lp)
}

func nonNilItems(items []model.LineItem) []model.LineItem {
	if items == nil {
		return []model.LineItem{}
	}
	return items
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return err
}
