package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
)

var (
	ErrIncompleteLine    = errors.New("incomplete data")
	ErrPartialFailure    = errors.New("some invoice lines were not applied")
	ErrConfirmedNotFound = errors.New("confirmed product not found")
)

// PartialFailureError — сводная ошибка пакета: накладная проведена, но часть строк нет.
type PartialFailureError struct {
	Failed []model.LineOutcome
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%q: %s", f.Name, f.Reason))
	}
	return fmt.Sprintf("%d line(s) need manual attention: %s", len(e.Failed), strings.Join(parts, "; "))
}

func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }

// Metrics — счётчики исходов строк (prometheus в проде, nil в тестах).
type Metrics interface {
	ObserveLine(status, action, method string)
	ObserveBatch(d time.Duration, lines, failed int)
}

// Header — данные накладной, нужные для «последней закупки».
type Header struct {
	Supplier string
	Date     time.Time
}

// Reconciler применяет строки накладной к каталогу арендатора.
type Reconciler struct {
	repo    store.Repository
	matcher *Matcher
	policy  model.Policy
	log     zerolog.Logger
	metrics Metrics
}

func NewReconciler(repo store.Repository, matcher *Matcher, policy model.Policy, logger zerolog.Logger) *Reconciler {
	return &Reconciler{repo: repo, matcher: matcher, policy: policy, log: logger}
}

func (r *Reconciler) WithMetrics(m Metrics) *Reconciler {
	r.metrics = m
	return r
}

func (r *Reconciler) Matcher() *Matcher { return r.matcher }

// Reconcile — основная сверка. Строки обрабатываются последовательно, ошибка
// одной строки не останавливает пакет; в конце возвращается *PartialFailureError.
// Кандидаты для сопоставления: снимок каталога на начало пакета; остаток перед
// обновлением перечитывается из хранилища.
func (r *Reconciler) Reconcile(ctx context.Context, tenant string, h Header, lines []model.LineItem) (model.Result, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return model.Result{}, err
	}
	// начатый пакет доводится до конца
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	if h.Date.IsZero() {
		h.Date = time.Now().UTC()
	}

	catalog, err := r.repo.ListProducts(ctx, tenant)
	if err != nil {
		return model.Result{}, fmt.Errorf("load catalog: %w", err)
	}
	byID := make(map[string]model.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	res := model.Result{
		Lines:  make([]model.LineOutcome, 0, len(lines)),
		Failed: []model.LineOutcome{},
	}
	for i, line := range lines {
		out := r.applyLine(ctx, tenant, h, i, line, catalog, byID)
		switch {
		case out.Status == model.StatusFailed:
			res.Failed = append(res.Failed, out)
		case out.Action == model.ActionUpdated:
			res.Updated++
		case out.Action == model.ActionCreated:
			res.Created++
		}
		res.Lines = append(res.Lines, out)
		if r.metrics != nil {
			r.metrics.ObserveLine(out.Status, out.Action, out.Method)
		}
	}

	if r.metrics != nil {
		r.metrics.ObserveBatch(time.Since(start), len(lines), len(res.Failed))
	}
	r.log.Info().
		Str("tenant", tenant).
		Int("lines", len(lines)).
		Int("updated", res.Updated).
		Int("created", res.Created).
		Int("failed", len(res.Failed)).
		Dur("elapsed", time.Since(start)).
		Msg("reconcile done")

	if len(res.Failed) > 0 {
		return res, &PartialFailureError{Failed: res.Failed}
	}
	return res, nil
}

func (r *Reconciler) applyLine(ctx context.Context, tenant string, h Header, idx int, line model.LineItem,
	catalog []model.Product, byID map[string]model.Product) model.LineOutcome {

	out := model.LineOutcome{Index: idx, Name: strings.TrimSpace(line.Name)}
	fail := func(reason string) model.LineOutcome {
		out.Status = model.StatusFailed
		out.Reason = reason
		r.log.Debug().Str("tenant", tenant).Int("line", idx).Str("name", out.Name).Str("reason", reason).Msg("line failed")
		return out
	}

	if out.Name == "" || line.Quantity <= 0 || line.UnitCost <= 0 {
		return fail(ErrIncompleteLine.Error())
	}

	var match *model.Match
	if line.ConfirmedMatch != nil && strings.TrimSpace(*line.ConfirmedMatch) != "" {
		p, ok := byID[strings.TrimSpace(*line.ConfirmedMatch)]
		if !ok || p.Deleted {
			return fail(ErrConfirmedNotFound.Error())
		}
		match = &model.Match{Product: p, Method: model.MethodConfirmed, Score: 100}
	} else if m, ok := r.matcher.Match(line, catalog); ok {
		match = m
	}

	purchase := &model.LastPurchase{
		Date:     h.Date,
		Quantity: line.Quantity,
		Cost:     line.UnitCost,
		Supplier: h.Supplier,
	}

	if match != nil {
		out.Method, out.Score = match.Method, match.Score
		current, err := r.repo.GetProduct(ctx, tenant, match.Product.ID)
		if err != nil {
			return fail(err.Error())
		}
		current.Stock += line.Quantity
		current.CostPrice = line.UnitCost // последняя цена закупки, без усреднения
		current.LastPurchase = purchase
		saved, err := r.repo.UpdateProduct(ctx, tenant, *current)
		if err != nil {
			return fail(err.Error())
		}
		out.Status, out.Action = model.StatusApplied, model.ActionUpdated
		out.ProductID, out.NewStock = saved.ID, saved.Stock
		r.log.Debug().Str("tenant", tenant).Int("line", idx).Str("product", saved.ID).
			Str("method", match.Method).Int("score", match.Score).Int("stock", saved.Stock).Msg("stock updated")
		return out
	}

	created, err := r.repo.CreateProduct(ctx, tenant, r.newProduct(line, h, purchase))
	if err != nil {
		return fail(err.Error())
	}
	out.Status, out.Action = model.StatusApplied, model.ActionCreated
	out.ProductID, out.NewStock = created.ID, created.Stock
	r.log.Debug().Str("tenant", tenant).Int("line", idx).Str("product", created.ID).Msg("product created")
	return out
}

func (r *Reconciler) newProduct(line model.LineItem, h Header, purchase *model.LastPurchase) model.Product {
	code := strings.TrimSpace(line.Code)
	if code == "" && r.policy.GenerateCodes {
		code = GenerateCode()
	}
	return model.Product{
		Code:         code,
		Name:         strings.TrimSpace(line.Name),
		CostPrice:    line.UnitCost,
		SellPrice:    SellPrice(line.UnitCost, r.policy.Markup),
		VATRate:      r.policy.DefaultVATRate,
		Stock:        line.Quantity,
		Category:     r.policy.DefaultCategory,
		Supplier:     h.Supplier,
		Active:       true,
		LastPurchase: purchase,
	}
}

// SellPrice = round(cost × markup, 2).
func SellPrice(cost, markup float64) float64 {
	return decimal.NewFromFloat(cost).Mul(decimal.NewFromFloat(markup)).Round(2).InexactFloat64()
}

// GenerateCode — внутренний код для товара без штрихкода.
func GenerateCode() string {
	return "GEN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
