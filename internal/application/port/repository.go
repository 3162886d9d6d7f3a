package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/travel-expense/internal/domain/entity"
)

// ErrConflict is returned by repositories when a unique constraint rejects a write
var ErrConflict = errors.New("conflict")

// ExpenseRepository defines persistence operations for expense lines
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64) (*entity.Expense, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Expense, error)
	List(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	ListBySheet(ctx context.Context, sheetID int64) ([]*entity.Expense, error)
	ListByEmployeeAndStates(ctx context.Context, employeeID int64, states []string) ([]*entity.Expense, error)
	Update(ctx context.Context, expense *entity.Expense) error
	SetSheet(ctx context.Context, ids []int64, sheetID *int64) error
	UpdateStateBySheet(ctx context.Context, sheetID int64, state string) error
	Delete(ctx context.Context, id int64) error
}

// SheetRepository defines persistence operations for expense sheets
type SheetRepository interface {
	Create(ctx context.Context, sheet *entity.ExpenseSheet) error
	GetByID(ctx context.Context, id int64) (*entity.ExpenseSheet, error)
	GetByOriginalSheetID(ctx context.Context, originalID int64) (*entity.ExpenseSheet, error)
	List(ctx context.Context, filter entity.SheetFilter) ([]*entity.ExpenseSheet, error)
	Update(ctx context.Context, sheet *entity.ExpenseSheet) error
	Delete(ctx context.Context, id int64) error
}

// MoveRepository defines persistence operations for moves and their lines
type MoveRepository interface {
	Create(ctx context.Context, move *entity.Move) error
	GetByID(ctx context.Context, id int64) (*entity.Move, error)
	ListBySheet(ctx context.Context, sheetID int64) ([]*entity.Move, error)
	Update(ctx context.Context, move *entity.Move) error
	Delete(ctx context.Context, id int64) error
	NextSequence(ctx context.Context, journalID int64, year int) (int, error)
}

// PaymentRepository defines persistence operations for payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id int64) (*entity.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*entity.Payment, error)
	UpdateState(ctx context.Context, id int64, state string) error
}

// CompanySettings are the expense-related settings of a company
type CompanySettings struct {
	ReimbursementJournalID *int64
	ExpenseJournalID       *int64
	UseSameJournal         bool
	FiscalLockDate         *time.Time
	PayableAccountID       *int64
	ReceivableAccountID    *int64
	OutstandingAccountID   *int64
}

// CatalogRepository defines persistence operations for master data
type CatalogRepository interface {
	CreateCompany(ctx context.Context, company *entity.Company) error
	GetCompany(ctx context.Context, id int64) (*entity.Company, error)
	ListCompanies(ctx context.Context) ([]*entity.Company, error)
	UpdateCompanySettings(ctx context.Context, id int64, settings CompanySettings) error

	CreateJournal(ctx context.Context, journal *entity.Journal) error
	GetJournal(ctx context.Context, id int64) (*entity.Journal, error)
	ListJournals(ctx context.Context, companyID int64) ([]*entity.Journal, error)

	CreateAccount(ctx context.Context, account *entity.Account) error
	GetAccount(ctx context.Context, id int64) (*entity.Account, error)
	ListAccounts(ctx context.Context, companyID int64) ([]*entity.Account, error)

	CreateTax(ctx context.Context, tax *entity.Tax) error
	GetTaxes(ctx context.Context, ids []int64) ([]*entity.Tax, error)
	ListTaxes(ctx context.Context, companyID int64) ([]*entity.Tax, error)

	CreateCategory(ctx context.Context, category *entity.Category) error
	GetCategory(ctx context.Context, id int64) (*entity.Category, error)
	ListCategories(ctx context.Context, companyID int64) ([]*entity.Category, error)

	CreatePartner(ctx context.Context, partner *entity.Partner) error
	GetPartner(ctx context.Context, id int64) (*entity.Partner, error)
	ListPartners(ctx context.Context) ([]*entity.Partner, error)

	CreateEmployee(ctx context.Context, employee *entity.Employee) error
	GetEmployee(ctx context.Context, id int64) (*entity.Employee, error)
	GetEmployeeByUser(ctx context.Context, userID int64) (*entity.Employee, error)
	ListEmployees(ctx context.Context, companyID int64) ([]*entity.Employee, error)

	CreateUser(ctx context.Context, user *entity.User) error
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
}

// MessageRepository defines persistence operations for chatter messages
type MessageRepository interface {
	Create(ctx context.Context, msg *entity.Message) error
	ListByRecord(ctx context.Context, resModel string, resID int64) ([]*entity.Message, error)
}

// ActivityRepository defines persistence operations for sheet activities
type ActivityRepository interface {
	Create(ctx context.Context, activity *entity.Activity) error
	ListBySheet(ctx context.Context, sheetID int64) ([]*entity.Activity, error)
	MarkDone(ctx context.Context, sheetID int64, activityType string, at time.Time) error
	DeleteOpen(ctx context.Context, sheetID int64, activityType string) error
}

// LiquidationReportRepository defines persistence operations for liquidation reports
type LiquidationReportRepository interface {
	Create(ctx context.Context, report *entity.LiquidationReport) error
	GetBySheetID(ctx context.Context, sheetID int64) (*entity.LiquidationReport, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit runs fn once the transaction carried by ctx commits, or
	// right away when ctx carries none
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}
