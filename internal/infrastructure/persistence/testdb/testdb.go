// Package testdb opens migrated in-memory databases and seeds master data for tests
package testdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/migrations"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-expense/pkg/database"
)

// New opens a private in-memory database with every migration applied.
// It is closed when the test ends.
func New(t testing.TB) *sqlite.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return sqlite.NewDB(db.DB, logger)
}

// Fixture is a company with the master data the expense workflow needs
type Fixture struct {
	Company *entity.Company

	ExpenseAccount     *entity.Account
	TaxAccount         *entity.Account
	PayableAccount     *entity.Account
	ReceivableAccount  *entity.Account
	OutstandingAccount *entity.Account
	BankAccount        *entity.Account

	PurchaseJournal *entity.Journal
	SaleJournal     *entity.Journal
	BankJournal     *entity.Journal

	VAT      *entity.Tax
	Category *entity.Category

	EmployeeContact *entity.Partner
	Provider        *entity.Partner

	EmployeeUser   *entity.User
	ManagerUser    *entity.User
	AccountantUser *entity.User
	TreasuryUser   *entity.User

	Employee *entity.Employee
}

// Seed creates a complete fixture. The sale journal is set as the company
// reimbursement journal and the purchase journal as its expense journal.
func Seed(t testing.TB, db *sqlite.DB) *Fixture {
	t.Helper()

	ctx := context.Background()
	catalog := repository.NewCatalogRepository(db.DB, zap.NewNop())
	f := &Fixture{}

	f.Company = &entity.Company{Name: "Andes Travel", Currency: "PEN"}
	require.NoError(t, catalog.CreateCompany(ctx, f.Company))
	companyID := f.Company.ID

	account := func(code, name, kind string) *entity.Account {
		a := &entity.Account{CompanyID: companyID, Code: code, Name: name, Type: kind}
		require.NoError(t, catalog.CreateAccount(ctx, a))
		return a
	}
	f.ExpenseAccount = account("6311", "Travel Expenses", entity.AccountExpense)
	f.TaxAccount = account("4011", "IGV", entity.AccountTax)
	f.PayableAccount = account("4211", "Accounts Payable", entity.AccountPayable)
	f.ReceivableAccount = account("1212", "Accounts Receivable", entity.AccountReceivable)
	f.OutstandingAccount = account("1041", "Outstanding Payments", entity.AccountOutstanding)
	f.BankAccount = account("1011", "Bank", entity.AccountBank)

	journal := func(code, name, kind string, defaultAccount *entity.Account, manual bool) *entity.Journal {
		j := &entity.Journal{
			CompanyID:           companyID,
			Code:                code,
			Name:                name,
			Type:                kind,
			DefaultAccountID:    &defaultAccount.ID,
			ManualPaymentMethod: manual,
		}
		require.NoError(t, catalog.CreateJournal(ctx, j))
		return j
	}
	f.PurchaseJournal = journal("BILL", "Vendor Bills", entity.JournalPurchase, f.ExpenseAccount, false)
	f.SaleJournal = journal("INV", "Customer Invoices", entity.JournalSale, f.ReceivableAccount, false)
	f.BankJournal = journal("BNK1", "Bank", entity.JournalBank, f.BankAccount, true)

	f.Company.ExpenseJournalID = &f.PurchaseJournal.ID
	f.Company.ReimbursementJournalID = &f.SaleJournal.ID
	f.Company.PayableAccountID = &f.PayableAccount.ID
	f.Company.ReceivableAccountID = &f.ReceivableAccount.ID
	f.Company.OutstandingAccountID = &f.OutstandingAccount.ID
	require.NoError(t, catalog.UpdateCompanySettings(ctx, companyID, port.CompanySettings{
		ExpenseJournalID:       f.Company.ExpenseJournalID,
		ReimbursementJournalID: f.Company.ReimbursementJournalID,
		PayableAccountID:       f.Company.PayableAccountID,
		ReceivableAccountID:    f.Company.ReceivableAccountID,
		OutstandingAccountID:   f.Company.OutstandingAccountID,
	}))

	f.VAT = &entity.Tax{CompanyID: companyID, Name: "IGV 18%", Rate: decimal.NewFromInt(18), AccountID: f.TaxAccount.ID}
	require.NoError(t, catalog.CreateTax(ctx, f.VAT))

	f.Category = &entity.Category{CompanyID: companyID, Name: "Travel", ExpenseAccountID: f.ExpenseAccount.ID}
	require.NoError(t, catalog.CreateCategory(ctx, f.Category))

	f.EmployeeContact = &entity.Partner{Name: "Rosa Quispe", Email: "rosa@example.com"}
	require.NoError(t, catalog.CreatePartner(ctx, f.EmployeeContact))
	f.Provider = &entity.Partner{Name: "Hotel Cusco"}
	require.NoError(t, catalog.CreatePartner(ctx, f.Provider))

	user := func(login string, groups ...string) *entity.User {
		u := &entity.User{Login: login, Name: login, Groups: groups, LarkOpenID: "ou_" + login}
		require.NoError(t, catalog.CreateUser(ctx, u))
		return u
	}
	f.EmployeeUser = user("rosa")
	f.ManagerUser = user("miguel", entity.GroupAccountUser)
	f.AccountantUser = user("lucia", entity.GroupAccountant, entity.GroupAccountUser)
	f.TreasuryUser = user("jorge", entity.GroupTreasury)

	f.Employee = &entity.Employee{
		CompanyID:     companyID,
		Name:          "Rosa Quispe",
		Department:    "Sales",
		WorkContactID: &f.EmployeeContact.ID,
		UserID:        &f.EmployeeUser.ID,
		ManagerUserID: &f.ManagerUser.ID,
	}
	require.NoError(t, catalog.CreateEmployee(ctx, f.Employee))

	return f
}
