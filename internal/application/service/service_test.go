package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/testdb"
)

// nopLogger discards log output
type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events []*event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

var testNow = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

// harness wires every service over a freshly seeded database
type harness struct {
	t      *testing.T
	ctx    context.Context
	f      *testdb.Fixture
	stores Stores
	events *recordingPublisher

	expenses    ExpenseService
	sheets      SheetService
	approvals   ApprovalService
	accounting  AccountingService
	settlements SettlementService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testdb.New(t)
	f := testdb.Seed(t, db)
	logger := zap.NewNop()

	stores := Stores{
		Expenses:   repository.NewExpenseRepository(db.DB, logger),
		Sheets:     repository.NewSheetRepository(db.DB, logger),
		Moves:      repository.NewMoveRepository(db.DB, logger),
		Payments:   repository.NewPaymentRepository(db.DB, logger),
		Catalog:    repository.NewCatalogRepository(db.DB, logger),
		Messages:   repository.NewMessageRepository(db.DB, logger),
		Activities: repository.NewActivityRepository(db.DB, logger),
		Reports:    repository.NewLiquidationReportRepository(db.DB, logger),
		Tx:         db,
	}
	events := &recordingPublisher{}

	return &harness{
		t:           t,
		ctx:         context.Background(),
		f:           f,
		stores:      stores,
		events:      events,
		expenses:    NewExpenseService(stores, newMemoryStorage(), &fakeInspector{}, nil, events, fixedClock, nopLogger{}),
		sheets:      NewSheetService(stores, fixedClock, nopLogger{}),
		approvals:   NewApprovalService(stores, events, fixedClock, nopLogger{}),
		accounting:  NewAccountingService(stores, events, fixedClock, nopLogger{}),
		settlements: NewSettlementService(stores, events, fixedClock, nopLogger{}),
	}
}

// expense records an employee-paid expense for the fixture employee
func (h *harness) expense(name, amount string, opts ...func(*ExpenseInput)) *entity.Expense {
	h.t.Helper()
	in := ExpenseInput{
		Name:        ptr(name),
		Date:        day(2024, 5, 10),
		CategoryID:  &h.f.Category.ID,
		TotalAmount: ptr(money(amount)),
	}
	for _, opt := range opts {
		opt(&in)
	}
	e, err := h.expenses.Create(h.ctx, h.f.EmployeeUser, in)
	require.NoError(h.t, err)
	return e
}

// sheet reports expenses into a single draft sheet
func (h *harness) sheet(name string, lines ...*entity.Expense) *entity.ExpenseSheet {
	h.t.Helper()
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	sheet, err := h.sheets.Create(h.ctx, h.f.EmployeeUser, SheetInput{Name: ptr(name), ExpenseIDs: ids})
	require.NoError(h.t, err)
	return sheet
}

// approved submits and approves a sheet
func (h *harness) approved(sheet *entity.ExpenseSheet) *entity.ExpenseSheet {
	h.t.Helper()
	_, err := h.approvals.Submit(h.ctx, h.f.EmployeeUser, []int64{sheet.ID})
	require.NoError(h.t, err)
	sheets, err := h.approvals.Approve(h.ctx, h.f.AccountantUser, []int64{sheet.ID}, false)
	require.NoError(h.t, err)
	return sheets[0]
}

// reload fetches a sheet with its lines and moves
func (h *harness) reload(id int64) *entity.ExpenseSheet {
	h.t.Helper()
	sheet, err := h.sheets.Get(h.ctx, h.f.AccountantUser, id)
	require.NoError(h.t, err)
	return sheet
}

func withTaxes(ids ...int64) func(*ExpenseInput) {
	return func(in *ExpenseInput) { in.TaxIDs = ids }
}

func paidByCompany(in *ExpenseInput) {
	in.PaymentMode = ptr(entity.PaymentModeCompanyAccount)
}

// memoryStorage keeps files in a map
type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (s *memoryStorage) Save(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return nil
}

func (s *memoryStorage) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("file %s not found", path)
	}
	return content, nil
}

func (s *memoryStorage) Exists(ctx context.Context, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *memoryStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *memoryStorage) GetFullPath(relativePath string) string {
	return "/mem/" + relativePath
}
