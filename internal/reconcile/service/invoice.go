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

	"stock-recon/internal/events"
	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
)

var (
	ErrAlreadyProcessed  = errors.New("invoice already processed")
	ErrPostingInProgress = errors.New("invoice posting already in progress")
)

const (
	postLockTTL     = 2 * time.Minute
	suggestionCount = 5
)

// Locker: блокировка проведения одной накладной (redis или in-process).
// Unlock снимает блокировку только по токену, выданному TryLock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Publisher: публикация событий о проведении (kafka или noop).
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Invoices: жизненный цикл накладной: черновик → проведение → правка/удаление.
type Invoices struct {
	repo store.Repository
	rec  *Reconciler
	lock Locker
	pub  Publisher
	log  zerolog.Logger
	now  func() time.Time
}

func NewInvoices(repo store.Repository, rec *Reconciler, lock Locker, pub Publisher, logger zerolog.Logger) *Invoices {
	return &Invoices{
		repo: repo,
		rec:  rec,
		lock: lock,
		pub:  pub,
		log:  logger,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Invoices) CreateDraft(ctx context.Context, tenant string, inv model.Invoice) (*model.Invoice, error) {
	inv.ID = ""
	inv.Processed = false
	inv.Deleted = false
	s.prepare(&inv)
	return s.repo.CreateInvoice(ctx, tenant, inv)
}

// Update переоткрывает ту же запись. Для проведённой накладной остатки не пересчитываются.
func (s *Invoices) Update(ctx context.Context, tenant, id string, patch model.Invoice) (*model.Invoice, error) {
	cur, err := s.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	patch.ID = cur.ID
	patch.Processed = cur.Processed
	patch.Deleted = false
	s.prepare(&patch)
	return s.repo.UpdateInvoice(ctx, tenant, patch)
}

func (s *Invoices) Get(ctx context.Context, tenant, id string) (*model.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if inv.Deleted {
		return nil, store.ErrNotFound
	}
	return inv, nil
}

func (s *Invoices) List(ctx context.Context, tenant string) ([]model.Invoice, error) {
	return s.repo.ListInvoices(ctx, tenant)
}

// Delete: мягкое удаление.
func (s *Invoices) Delete(ctx context.Context, tenant, id string) error {
	inv, err := s.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	inv.Deleted = true
	_, err = s.repo.UpdateInvoice(ctx, tenant, *inv)
	return err
}

// Preview: автоматический матч и подсказки по каждой строке, без записи.
func (s *Invoices) Preview(ctx context.Context, tenant string, lines []model.LineItem) ([]model.PreviewLine, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return nil, err
	}
	catalog, err := s.repo.ListProducts(ctx, tenant)
	if err != nil {
		return nil, err
	}
	m := s.rec.Matcher()
	out := make([]model.PreviewLine, 0, len(lines))
	for i, line := range lines {
		pl := model.PreviewLine{
			Index:       i,
			Line:        line,
			Features:    m.Features(line.Name),
			Suggestions: m.Suggest(line, catalog, suggestionCount),
		}
		if match, ok := m.Match(line, catalog); ok {
			pl.Match = match
		}
		out = append(out, pl)
	}
	return out, nil
}

// Post проводит накладную. lines: строки после подтверждения оператором;
// nil: взять строки черновика. Накладная помечается проведённой даже при
// ошибках отдельных строк; тогда вместе со сводкой возвращается *PartialFailureError.
func (s *Invoices) Post(ctx context.Context, tenant, id string, lines []model.LineItem) (model.Summary, error) {
	if err := store.CheckTenant(tenant); err != nil {
		return model.Summary{}, err
	}
	key := "invoice-post:" + tenant + ":" + id
	token, ok, err := s.lock.TryLock(ctx, key, postLockTTL)
	if err != nil {
		return model.Summary{}, fmt.Errorf("posting lock: %w", err)
	}
	if !ok {
		return model.Summary{}, ErrPostingInProgress
	}
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if err := s.lock.Unlock(ctx, key, token); err != nil {
			s.log.Warn().Err(err).Str("invoice", id).Dur("ttl", postLockTTL).Msg("posting unlock")
		}
	}()

	inv, err := s.Get(ctx, tenant, id)
	if err != nil {
		return model.Summary{}, err
	}
	if inv.Processed {
		return model.Summary{}, ErrAlreadyProcessed
	}
	if lines != nil {
		inv.Items = lines
	}
	s.prepare(inv)

	res, recErr := s.rec.Reconcile(ctx, tenant, Header{Supplier: inv.Supplier, Date: inv.Date}, inv.Items)
	if recErr != nil && !errors.Is(recErr, ErrPartialFailure) {
		return model.Summary{}, recErr
	}
	for _, lo := range res.Lines {
		if lo.Index < len(inv.Items) && lo.ProductID != "" {
			inv.Items[lo.Index].ProductID = lo.ProductID
		}
	}
	inv.Processed = true
	saved, err := s.repo.UpdateInvoice(ctx, tenant, *inv)
	if err != nil {
		// повторное проведение применило бы остатки второй раз
		s.log.Warn().Err(err).Str("tenant", tenant).Str("invoice", id).Msg("mark processed failed, retrying")
		saved, err = s.repo.UpdateInvoice(ctx, tenant, *inv)
	}
	if err != nil {
		// остатки уже применены: это нужно увидеть в логах
		s.log.Error().Err(err).Str("tenant", tenant).Str("invoice", id).Msg("invoice not marked processed after reconcile")
		return model.Summary{Invoice: *inv, Result: res}, fmt.Errorf("save invoice: %w", err)
	}

	s.publish(ctx, tenant, *saved, res)

	sum := model.Summary{
		Invoice: *saved,
		Result:  res,
		Message: fmt.Sprintf("Factura procesada: %d productos actualizados, %d productos nuevos", res.Updated, res.Created),
	}
	if len(res.Failed) > 0 {
		names := make([]string, 0, len(res.Failed))
		for _, f := range res.Failed {
			names = append(names, fmt.Sprintf("%s (%s)", f.Name, f.Reason))
		}
		sum.Warning = "Revisar manualmente: " + strings.Join(names, ", ")
	}
	return sum, recErr
}

func (s *Invoices) publish(ctx context.Context, tenant string, inv model.Invoice, res model.Result) {
	ev := events.InvoicePosted{
		BaseEvent: events.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: events.TypeInvoicePosted,
			Timestamp: s.now(),
		},
		Tenant:    tenant,
		InvoiceID: inv.ID,
		Number:    inv.Number,
		Supplier:  inv.Supplier,
		Updated:   res.Updated,
		Created:   res.Created,
		Failed:    len(res.Failed),
	}
	for _, lo := range res.Lines {
		if lo.Status == model.StatusApplied {
			ev.Stock = append(ev.Stock, events.StockChange{ProductID: lo.ProductID, Action: lo.Action, Stock: lo.NewStock})
		}
	}
	if err := s.pub.Publish(ctx, tenant+":"+inv.ID, ev); err != nil {
		s.log.Warn().Err(err).Str("invoice", inv.ID).Msg("publish invoice posted")
	}
}

// prepare: подытоги строк, итог накладной, дата по умолчанию.
func (s *Invoices) prepare(inv *model.Invoice) {
	if inv.Date.IsZero() {
		inv.Date = s.now()
	}
	inv.Supplier = strings.TrimSpace(inv.Supplier)
	inv.Number = strings.TrimSpace(inv.Number)
	total := decimal.Zero
	for i := range inv.Items {
		it := &inv.Items[i]
		it.Name = strings.TrimSpace(it.Name)
		it.Code = strings.TrimSpace(it.Code)
		sub := decimal.NewFromInt(int64(it.Quantity)).Mul(decimal.NewFromFloat(it.UnitCost)).Round(2)
		it.Subtotal = sub.InexactFloat64()
		total = total.Add(sub)
	}
	if inv.Total <= 0 {
		inv.Total = total.Round(2).InexactFloat64()
	}
}
