package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

const catalogAccessMessage = "Only users with rol Accountant, can manage the accounting configuration"

// CatalogService manages the master data expenses are booked against
type CatalogService interface {
	CreateCompany(ctx context.Context, actor *entity.User, company *entity.Company) error
	ListCompanies(ctx context.Context) ([]*entity.Company, error)
	UpdateCompanySettings(ctx context.Context, actor *entity.User, id int64, settings port.CompanySettings) (*entity.Company, error)

	CreateJournal(ctx context.Context, actor *entity.User, journal *entity.Journal) error
	ListJournals(ctx context.Context, companyID int64) ([]*entity.Journal, error)
	CreateAccount(ctx context.Context, actor *entity.User, account *entity.Account) error
	ListAccounts(ctx context.Context, companyID int64) ([]*entity.Account, error)
	CreateTax(ctx context.Context, actor *entity.User, tax *entity.Tax) error
	ListTaxes(ctx context.Context, companyID int64) ([]*entity.Tax, error)
	CreateCategory(ctx context.Context, actor *entity.User, category *entity.Category) error
	ListCategories(ctx context.Context, companyID int64) ([]*entity.Category, error)

	CreatePartner(ctx context.Context, actor *entity.User, partner *entity.Partner) error
	ListPartners(ctx context.Context) ([]*entity.Partner, error)
	CreateEmployee(ctx context.Context, actor *entity.User, employee *entity.Employee) error
	ListEmployees(ctx context.Context, companyID int64) ([]*entity.Employee, error)
	CreateUser(ctx context.Context, actor *entity.User, user *entity.User) error
	ListUsers(ctx context.Context) ([]*entity.User, error)
	GetUser(ctx context.Context, id int64) (*entity.User, error)
}

type catalogServiceImpl struct {
	catalog port.CatalogRepository
	logger  Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(catalog port.CatalogRepository, logger Logger) CatalogService {
	return &catalogServiceImpl{
		catalog: catalog,
		logger:  logger,
	}
}

// create checks the caller may write master data and maps unique violations to user errors
func (s *catalogServiceImpl) create(actor *entity.User, what string, fn func() error) error {
	if err := requireGroup(actor, entity.GroupAccountant, catalogAccessMessage); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if errors.Is(err, port.ErrConflict) {
			return expense.Userf("A %s with the same code already exists.", what)
		}
		s.logger.Error("Failed to create "+what, "error", err)
		return err
	}
	s.logger.Info("Catalog record created", "kind", what, "user_id", actor.ID)
	return nil
}

func (s *catalogServiceImpl) checkCompany(ctx context.Context, id int64) error {
	company, err := s.catalog.GetCompany(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return expense.NotFoundf("Company %d not found.", id)
	}
	return nil
}

// CreateCompany creates a company
func (s *catalogServiceImpl) CreateCompany(ctx context.Context, actor *entity.User, company *entity.Company) error {
	if company.Name == "" || company.Currency == "" {
		return expense.Validationf("A company needs a name and a currency.")
	}
	return s.create(actor, "company", func() error { return s.catalog.CreateCompany(ctx, company) })
}

// ListCompanies lists all companies
func (s *catalogServiceImpl) ListCompanies(ctx context.Context) ([]*entity.Company, error) {
	return s.catalog.ListCompanies(ctx)
}

// UpdateCompanySettings changes the expense journals, accounts and lock date of a company
func (s *catalogServiceImpl) UpdateCompanySettings(ctx context.Context, actor *entity.User, id int64, settings port.CompanySettings) (*entity.Company, error) {
	if err := requireGroup(actor, entity.GroupAccountant, catalogAccessMessage); err != nil {
		return nil, err
	}
	if err := s.checkCompany(ctx, id); err != nil {
		return nil, err
	}

	for _, journalID := range []*int64{settings.ExpenseJournalID, settings.ReimbursementJournalID} {
		if journalID == nil {
			continue
		}
		journal, err := s.catalog.GetJournal(ctx, *journalID)
		if err != nil {
			return nil, fmt.Errorf("failed to load journal: %w", err)
		}
		if journal == nil || journal.CompanyID != id {
			return nil, expense.Validationf("Journal %d does not belong to the company.", *journalID)
		}
	}
	for _, accountID := range []*int64{settings.PayableAccountID, settings.ReceivableAccountID, settings.OutstandingAccountID} {
		if accountID == nil {
			continue
		}
		account, err := s.catalog.GetAccount(ctx, *accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load account: %w", err)
		}
		if account == nil || account.CompanyID != id {
			return nil, expense.Validationf("Account %d does not belong to the company.", *accountID)
		}
	}

	if err := s.catalog.UpdateCompanySettings(ctx, id, settings); err != nil {
		s.logger.Error("Failed to update company settings", "error", err, "id", id)
		return nil, err
	}
	s.logger.Info("Company settings updated", "id", id, "user_id", actor.ID)
	return s.catalog.GetCompany(ctx, id)
}

// CreateJournal creates a journal
func (s *catalogServiceImpl) CreateJournal(ctx context.Context, actor *entity.User, journal *entity.Journal) error {
	switch journal.Type {
	case entity.JournalPurchase, entity.JournalSale, entity.JournalBank, entity.JournalCash, entity.JournalGeneral:
	default:
		return expense.Validationf("Unknown journal type %q.", journal.Type)
	}
	if journal.Code == "" {
		return expense.Validationf("A journal needs a code.")
	}
	if err := s.checkCompany(ctx, journal.CompanyID); err != nil {
		return err
	}
	return s.create(actor, "journal", func() error { return s.catalog.CreateJournal(ctx, journal) })
}

// ListJournals lists the journals of a company
func (s *catalogServiceImpl) ListJournals(ctx context.Context, companyID int64) ([]*entity.Journal, error) {
	return s.catalog.ListJournals(ctx, companyID)
}

// CreateAccount creates a ledger account
func (s *catalogServiceImpl) CreateAccount(ctx context.Context, actor *entity.User, account *entity.Account) error {
	if account.Code == "" {
		return expense.Validationf("An account needs a code.")
	}
	if err := s.checkCompany(ctx, account.CompanyID); err != nil {
		return err
	}
	return s.create(actor, "account", func() error { return s.catalog.CreateAccount(ctx, account) })
}

// ListAccounts lists the accounts of a company
func (s *catalogServiceImpl) ListAccounts(ctx context.Context, companyID int64) ([]*entity.Account, error) {
	return s.catalog.ListAccounts(ctx, companyID)
}

// CreateTax creates a tax
func (s *catalogServiceImpl) CreateTax(ctx context.Context, actor *entity.User, tax *entity.Tax) error {
	if tax.Rate.IsNegative() {
		return expense.Validationf("A tax rate cannot be negative.")
	}
	if err := s.checkCompany(ctx, tax.CompanyID); err != nil {
		return err
	}
	return s.create(actor, "tax", func() error { return s.catalog.CreateTax(ctx, tax) })
}

// ListTaxes lists the taxes of a company
func (s *catalogServiceImpl) ListTaxes(ctx context.Context, companyID int64) ([]*entity.Tax, error) {
	return s.catalog.ListTaxes(ctx, companyID)
}

// CreateCategory creates an expense category
func (s *catalogServiceImpl) CreateCategory(ctx context.Context, actor *entity.User, category *entity.Category) error {
	if category.Name == "" {
		return expense.Validationf("A category needs a name.")
	}
	if err := s.checkCompany(ctx, category.CompanyID); err != nil {
		return err
	}
	return s.create(actor, "category", func() error { return s.catalog.CreateCategory(ctx, category) })
}

// ListCategories lists the expense categories of a company
func (s *catalogServiceImpl) ListCategories(ctx context.Context, companyID int64) ([]*entity.Category, error) {
	return s.catalog.ListCategories(ctx, companyID)
}

// CreatePartner creates a partner
func (s *catalogServiceImpl) CreatePartner(ctx context.Context, actor *entity.User, partner *entity.Partner) error {
	if partner.Name == "" {
		return expense.Validationf("A partner needs a name.")
	}
	return s.create(actor, "partner", func() error { return s.catalog.CreatePartner(ctx, partner) })
}

// ListPartners lists all partners
func (s *catalogServiceImpl) ListPartners(ctx context.Context) ([]*entity.Partner, error) {
	return s.catalog.ListPartners(ctx)
}

// CreateEmployee creates an employee
func (s *catalogServiceImpl) CreateEmployee(ctx context.Context, actor *entity.User, employee *entity.Employee) error {
	if employee.Name == "" {
		return expense.Validationf("An employee needs a name.")
	}
	if err := s.checkCompany(ctx, employee.CompanyID); err != nil {
		return err
	}
	return s.create(actor, "employee", func() error { return s.catalog.CreateEmployee(ctx, employee) })
}

// ListEmployees lists the employees of a company
func (s *catalogServiceImpl) ListEmployees(ctx context.Context, companyID int64) ([]*entity.Employee, error) {
	return s.catalog.ListEmployees(ctx, companyID)
}

// CreateUser creates a user
func (s *catalogServiceImpl) CreateUser(ctx context.Context, actor *entity.User, user *entity.User) error {
	if user.Login == "" {
		return expense.Validationf("A user needs a login.")
	}
	for _, g := range user.Groups {
		switch g {
		case entity.GroupAccountant, entity.GroupTreasury, entity.GroupAccountUser:
		default:
			return expense.Validationf("Unknown group %q.", g)
		}
	}
	return s.create(actor, "user", func() error { return s.catalog.CreateUser(ctx, user) })
}

// ListUsers lists all users
func (s *catalogServiceImpl) ListUsers(ctx context.Context) ([]*entity.User, error) {
	return s.catalog.ListUsers(ctx)
}

// GetUser returns a user by ID, nil when missing
func (s *catalogServiceImpl) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	return s.catalog.GetUser(ctx, id)
}
