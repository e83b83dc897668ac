package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-recon/internal/events"
	"stock-recon/internal/reconcile/model"
	"stock-recon/internal/store"
	"stock-recon/internal/store/memory"
)

type heldLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *heldLock) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return "", false, nil
	}
	l.held[key] = true
	return "t-" + key, true, nil
}

func (l *heldLock) Unlock(_ context.Context, key, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []any
}

func (p *capturePublisher) Publish(_ context.Context, key string, ev any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, ev)
	return nil
}

type invoiceFixture struct {
	repo *memory.Store
	lock *heldLock
	pub  *capturePublisher
	svc  *Invoices
}

func newInvoiceFixture(t *testing.T) invoiceFixture {
	t.Helper()
	repo := memory.New()
	lock := &heldLock{held: map[string]bool{}}
	pub := &capturePublisher{}
	svc := NewInvoices(repo, newReconciler(repo), lock, pub, zerolog.Nop())
	return invoiceFixture{repo: repo, lock: lock, pub: pub, svc: svc}
}

func draftInvoice() model.Invoice {
	return model.Invoice{
		Number:   " F-2024-001 ",
		Supplier: "Distribuciones Sur",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []model.LineItem{
			{Name: "Fanta Naranja Lata 330ml", Quantity: 24, UnitCost: 0.42},
			{Name: "Agua Mineral", Quantity: 10, UnitCost: 0.30},
		},
	}
}

func TestInvoices_CreateDraftComputesTotals(t *testing.T) {
	f := newInvoiceFixture(t)
	inv, err := f.svc.CreateDraft(context.Background(), testTenant, draftInvoice())
	require.NoError(t, err)

	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "F-2024-001", inv.Number)
	assert.False(t, inv.Processed)
	assert.Equal(t, 10.08, inv.Items[0].Subtotal)
	assert.Equal(t, 3.0, inv.Items[1].Subtotal)
	assert.Equal(t, 13.08, inv.Total)
}

func TestInvoices_PostAppliesAndMarksProcessed(t *testing.T) {
	f := newInvoiceFixture(t)
	fanta := seedProduct(t, f.repo, model.Product{Name: "Fanta Naranja Lata 330ml", Stock: 24, CostPrice: 0.40})
	inv, err := f.svc.CreateDraft(context.Background(), testTenant, draftInvoice())
	require.NoError(t, err)

	sum, err := f.svc.Post(context.Background(), testTenant, inv.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Result.Updated)
	assert.Equal(t, 1, sum.Result.Created)
	assert.Equal(t, "Factura procesada: 1 productos actualizados, 1 productos nuevos", sum.Message)
	assert.Empty(t, sum.Warning)
	assert.True(t, sum.Invoice.Processed)
	assert.Equal(t, fanta.ID, sum.Invoice.Items[0].ProductID)
	assert.NotEmpty(t, sum.Invoice.Items[1].ProductID)

	stored, err := f.svc.Get(context.Background(), testTenant, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)

	got, err := f.repo.GetProduct(context.Background(), testTenant, fanta.ID)
	require.NoError(t, err)
	assert.Equal(t, 48, got.Stock)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, testTenant+":"+inv.ID, f.pub.keys[0])
	ev, ok := f.pub.events[0].(events.InvoicePosted)
	require.True(t, ok)
	assert.Equal(t, events.TypeInvoicePosted, ev.EventType)
	assert.Equal(t, 1, ev.Updated)
	assert.Equal(t, 1, ev.Created)
	assert.Len(t, ev.Stock, 2)

	// блокировка снята
	assert.Empty(t, f.lock.held)
}

func TestInvoices_PostTwiceRejected(t *testing.T) {
	f := newInvoiceFixture(t)
	inv, err := f.svc.CreateDraft(context.Background(), testTenant, draftInvoice())
	require.NoError(t, err)

	_, err = f.svc.Post(context.Background(), testTenant, inv.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Post(context.Background(), testTenant, inv.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	list, err := f.repo.ListProducts(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInvoices_PostWhileLocked(t *testing.T) {
	f := newInvoiceFixture(t)
	inv, err := f.svc.CreateDraft(context.Background(), testTenant, draftInvoice())
	require.NoError(t, err)

	_, ok, err := f.lock.TryLock(context.Background(), "invoice-post:"+testTenant+":"+inv.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Post(context.Background(), testTenant, inv.ID, nil)
	assert.ErrorIs(t, err, ErrPostingInProgress)

	stored, err := f.svc.Get(context.Background(), testTenant, inv.ID)
	require.NoError(t, err)
	assert.False(t, stored.Processed)
}

func TestInvoices_PostRetriesMarkProcessed(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Store: memory.New(), failMarkProcessed: 1}
	svc := NewInvoices(repo, newReconciler(repo), &heldLock{held: map[string]bool{}}, &capturePublisher{}, zerolog.Nop())
	inv, err := svc.CreateDraft(ctx, testTenant, draftInvoice())
	require.NoError(t, err)

	sum, err := svc.Post(ctx, testTenant, inv.ID, nil)
	require.NoError(t, err)
	assert.True(t, sum.Invoice.Processed)

	stored, err := svc.Get(ctx, testTenant, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)

	// второе проведение не повторяет приход
	_, err = svc.Post(ctx, testTenant, inv.ID, nil)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	list, err := repo.ListProducts(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 24, list[0].Stock)
}

func TestInvoices_PostMarkProcessedFailsTwice(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Store: memory.New(), failMarkProcessed: 2}
	pub := &capturePublisher{}
	svc := NewInvoices(repo, newReconciler(repo), &heldLock{held: map[string]bool{}}, pub, zerolog.Nop())
	inv, err := svc.CreateDraft(ctx, testTenant, draftInvoice())
	require.NoError(t, err)

	sum, err := svc.Post(ctx, testTenant, inv.ID, nil)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, sum.Result.Created)
	assert.Empty(t, pub.events)
}

func TestInvoices_PostWithConfirmedLinesAndPartialFailure(t *testing.T) {
	f := newInvoiceFixture(t)
	pepsi := seedProduct(t, f.repo, model.Product{Name: "Pepsi Cola Botella 2L", Stock: 6})
	inv, err := f.svc.CreateDraft(context.Background(), testTenant, draftInvoice())
	require.NoError(t, err)

	lines := []model.LineItem{
		{Name: "Pepsi 2 litros", Quantity: 6, UnitCost: 0.95, ConfirmedMatch: &pepsi.ID, Validated: true},
		{Name: "Zumo sin precio", Quantity: 3},
	}
	sum, err := f.svc.Post(context.Background(), testTenant, inv.ID, lines)
	require.ErrorIs(t, err, ErrPartialFailure)
	assert.True(t, sum.Invoice.Processed)
	assert.Equal(t, 1, sum.Result.Updated)
	require.Len(t, sum.Result.Failed, 1)
	assert.Equal(t, "Revisar manualmente: Zumo sin precio (incomplete data)", sum.Warning)
	assert.Len(t, sum.Invoice.Items, 2)
	assert.Equal(t, pepsi.ID, sum.Invoice.Items[0].ProductID)
	assert.Empty(t, sum.Invoice.Items[1].ProductID)

	ev := f.pub.events[0].(events.InvoicePosted)
	assert.Equal(t, 1, ev.Failed)
}

func TestInvoices_UpdateKeepsProcessedFlag(t *testing.T) {
	f := newInvoiceFixture(t)
	inv, err := f.svc.CreateDraft(context.Background(), testTenant, draftInvoice())
	require.NoError(t, err)
	_, err = f.svc.Post(context.Background(), testTenant, inv.ID, nil)
	require.NoError(t, err)

	patch := draftInvoice()
	patch.Supplier = "Otro proveedor"
	patch.Processed = false
	updated, err := f.svc.Update(context.Background(), testTenant, inv.ID, patch)
	require.NoError(t, err)
	assert.True(t, updated.Processed)
	assert.Equal(t, "Otro proveedor", updated.Supplier)
	assert.Equal(t, inv.ID, updated.ID)
}

func TestInvoices_DeleteIsSoft(t *testing.T) {
	f := newInvoiceFixture(t)
	inv, err := f.svc.CreateDraft(context.Background(), testTenant, draftInvoice())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), testTenant, inv.ID))
	_, err = f.svc.Get(context.Background(), testTenant, inv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := f.svc.List(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Empty(t, list)

	raw, err := f.repo.GetInvoice(context.Background(), testTenant, inv.ID)
	require.NoError(t, err)
	assert.True(t, raw.Deleted)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), testTenant, inv.ID), store.ErrNotFound)
}

func TestInvoices_Preview(t *testing.T) {
	f := newInvoiceFixture(t)
	seedProduct(t, f.repo, model.Product{Name: "Fanta Naranja Lata 330ml", Stock: 24})
	seedProduct(t, f.repo, model.Product{Name: "Fanta Limon Lata 330ml", Stock: 12})

	out, err := f.svc.Preview(context.Background(), testTenant, []model.LineItem{
		{Name: "Fanta Naranja 33cl Lata", Quantity: 1, UnitCost: 1},
		{Name: "Agua Mineral", Quantity: 1, UnitCost: 1},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.NotNil(t, out[0].Match)
	assert.Equal(t, model.MethodFuzzy, out[0].Match.Method)
	assert.Equal(t, "fanta", out[0].Features.Brand)
	require.Len(t, out[0].Suggestions, 2)
	assert.Equal(t, "Fanta Naranja Lata 330ml", out[0].Suggestions[0].Product.Name)

	assert.Nil(t, out[1].Match)

	// предпросмотр ничего не пишет
	list, err := f.repo.ListProducts(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 24, list[0].Stock)

	_, err = f.svc.Preview(context.Background(), "", nil)
	assert.ErrorIs(t, err, store.ErrNoTenant)
}
