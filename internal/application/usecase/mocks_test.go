package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bnpl/internal/domain/event"
	"github.com/bibbank/bnpl/internal/domain/model"
	"github.com/bibbank/bnpl/internal/domain/port"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return start.AddDate(0, 0, n) }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// --- Mock implementations ---

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// mockLedgerStore keeps committed state in memory. Writes made through a
// LedgerTx only land when the Atomic function returns nil.
type mockLedgerStore struct {
	loadFunc    func(ctx context.Context, tenantID, planID string) (model.Plan, error)
	saveFunc    func(ctx context.Context, plan model.Plan) error
	enqueueFunc func(ctx context.Context, events ...event.DomainEvent) error

	plans     map[string]model.Plan
	planTypes map[string]model.PlanType
	snapshots []model.SettlementSnapshot
	receipts  map[string]model.PaymentReceipt
	events    []event.DomainEvent
	saved     []model.Plan
	commits   int
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{
		plans:     map[string]model.Plan{},
		planTypes: map[string]model.PlanType{},
		receipts:  map[string]model.PaymentReceipt{},
	}
}

func (m *mockLedgerStore) put(plan model.Plan) { m.plans[plan.ID()] = plan.ClearEvents() }

func (m *mockLedgerStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	tx := &mockLedgerTx{store: m, plans: map[string]model.Plan{}, receipts: map[string]model.PaymentReceipt{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, p := range tx.plans {
		m.plans[id] = p.ClearEvents()
	}
	for k, r := range tx.receipts {
		m.receipts[k] = r
	}
	m.snapshots = append(m.snapshots, tx.snapshots...)
	m.events = append(m.events, tx.events...)
	m.saved = append(m.saved, tx.saved...)
	m.commits++
	return nil
}

type mockLedgerTx struct {
	store     *mockLedgerStore
	plans     map[string]model.Plan
	receipts  map[string]model.PaymentReceipt
	snapshots []model.SettlementSnapshot
	events    []event.DomainEvent
	saved     []model.Plan
}

func (t *mockLedgerTx) LoadPlanForUpdate(ctx context.Context, tenantID, planID string) (model.Plan, error) {
	if t.store.loadFunc != nil {
		return t.store.loadFunc(ctx, tenantID, planID)
	}
	p, ok := t.store.plans[planID]
	if !ok || p.TenantID() != tenantID {
		return model.Plan{}, model.ErrPlanNotFound
	}
	return p, nil
}

func (t *mockLedgerTx) InsertPlan(_ context.Context, plan model.Plan) error {
	t.plans[plan.ID()] = plan
	t.saved = append(t.saved, plan)
	return nil
}

func (t *mockLedgerTx) SavePlan(ctx context.Context, plan model.Plan) error {
	if t.store.saveFunc != nil {
		if err := t.store.saveFunc(ctx, plan); err != nil {
			return err
		}
	}
	t.plans[plan.ID()] = plan
	t.saved = append(t.saved, plan)
	return nil
}

func (t *mockLedgerTx) FindPlanType(_ context.Context, id string) (model.PlanType, error) {
	pt, ok := t.store.planTypes[id]
	if !ok {
		return model.PlanType{}, model.ErrPlanTypeNotFound
	}
	return pt, nil
}

func (t *mockLedgerTx) LatestSnapshot(_ context.Context, planID string) (model.SettlementSnapshot, error) {
	all := append(append([]model.SettlementSnapshot{}, t.store.snapshots...), t.snapshots...)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].PlanID() == planID {
			return all[i], nil
		}
	}
	return model.SettlementSnapshot{}, nil
}

func (t *mockLedgerTx) AppendSnapshot(_ context.Context, s model.SettlementSnapshot) error {
	t.snapshots = append(t.snapshots, s)
	return nil
}

func (t *mockLedgerTx) RecordPayment(_ context.Context, r model.PaymentReceipt) error {
	key := r.PlanID + "/" + r.IdempotencyToken
	if _, ok := t.store.receipts[key]; ok {
		return model.ErrDuplicatePayment
	}
	t.receipts[key] = r
	return nil
}

func (t *mockLedgerTx) EnqueueEvents(ctx context.Context, evts ...event.DomainEvent) error {
	if t.store.enqueueFunc != nil {
		return t.store.enqueueFunc(ctx, evts...)
	}
	t.events = append(t.events, evts...)
	return nil
}

// mockPlanReader reads from a mockLedgerStore's committed state.
type mockPlanReader struct {
	store    *mockLedgerStore
	listFunc func(ctx context.Context, asOf time.Time, after string, limit int) ([]port.PlanRef, error)
}

func (m *mockPlanReader) FindByID(_ context.Context, tenantID, planID string) (model.Plan, error) {
	p, ok := m.store.plans[planID]
	if !ok || p.TenantID() != tenantID {
		return model.Plan{}, model.ErrPlanNotFound
	}
	return p, nil
}

func (m *mockPlanReader) FindByOrderID(_ context.Context, tenantID, orderID string) (model.Plan, error) {
	for _, p := range m.store.plans {
		if p.TenantID() == tenantID && p.OrderID() == orderID {
			return p, nil
		}
	}
	return model.Plan{}, model.ErrPlanNotFound
}

func (m *mockPlanReader) ListOverduePlanIDs(ctx context.Context, asOf time.Time, after string, limit int) ([]port.PlanRef, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, asOf, after, limit)
	}
	var refs []port.PlanRef
	for _, p := range m.store.plans {
		if !p.Status().AcceptsPayments() || p.ID() <= after {
			continue
		}
		for _, inst := range p.Installments() {
			if !inst.Status().IsSettled() && inst.DueDate().Before(asOf) {
				refs = append(refs, port.PlanRef{TenantID: p.TenantID(), PlanID: p.ID()})
				break
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].PlanID < refs[j].PlanID })
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

type mockSnapshotReader struct {
	store *mockLedgerStore
}

func (m *mockSnapshotReader) ListByPlan(_ context.Context, planID string) ([]model.SettlementSnapshot, error) {
	var out []model.SettlementSnapshot
	for _, s := range m.store.snapshots {
		if s.PlanID() == planID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSnapshotReader) Latest(_ context.Context, planID string) (model.SettlementSnapshot, error) {
	snaps, _ := m.ListByPlan(context.Background(), planID)
	if len(snaps) == 0 {
		return model.SettlementSnapshot{}, nil
	}
	return snaps[len(snaps)-1], nil
}

type mockPlanTypeRepository struct {
	saveFunc func(ctx context.Context, pt model.PlanType) error
	types    map[string]model.PlanType
	saved    []model.PlanType
}

func (m *mockPlanTypeRepository) Save(ctx context.Context, pt model.PlanType) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, pt)
	}
	if m.types == nil {
		m.types = map[string]model.PlanType{}
	}
	m.types[pt.ID()] = pt
	m.saved = append(m.saved, pt)
	return nil
}

func (m *mockPlanTypeRepository) FindByID(_ context.Context, id string) (model.PlanType, error) {
	pt, ok := m.types[id]
	if !ok {
		return model.PlanType{}, fmt.Errorf("plan type %s: %w", id, model.ErrPlanTypeNotFound)
	}
	return pt, nil
}

func (m *mockPlanTypeRepository) List(_ context.Context) ([]model.PlanType, error) {
	out := make([]model.PlanType, 0, len(m.types))
	for _, pt := range m.types {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// --- Fixtures ---

// fourPayments is 10% interest, 5% late interest over 30-day periods.
func fourPayments(t *testing.T) model.PlanType {
	t.Helper()
	pt, err := model.NewPlanType("Four payments", 30, dec("10"), dec("5"), "pay in four", start)
	require.NoError(t, err)
	return pt
}

// activePlan is 1000.00 at 10% over four installments of 275.00, the first
// due 2024-01-31.
func activePlan(t *testing.T, tenantID, orderID string) model.Plan {
	t.Helper()
	plan, err := model.NewPlan(tenantID, orderID, fourPayments(t), dec("1000"), decimal.Zero, 4, start, start)
	require.NoError(t, err)
	plan, err = plan.Activate(start)
	require.NoError(t, err)
	return plan.ClearEvents()
}
