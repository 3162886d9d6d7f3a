package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
)

// companySettingsRequest replaces the expense settings of a company
type companySettingsRequest struct {
	ReimbursementJournalID *int64 `json:"reimbursement_journal_id"`
	ExpenseJournalID       *int64 `json:"expense_journal_id"`
	UseSameJournal         bool   `json:"use_same_journal"`
	FiscalLockDate         *Date  `json:"fiscal_lock_date"`
	PayableAccountID       *int64 `json:"payable_account_id"`
	ReceivableAccountID    *int64 `json:"receivable_account_id"`
	OutstandingAccountID   *int64 `json:"outstanding_account_id"`
}

// createRecord binds a catalog record from the body and hands it to fn
func createRecord[T any](h *Handlers, c *gin.Context, fn func(ctx context.Context, actor *entity.User, record *T) error) {
	record := new(T)
	if !bindJSON(c, record) {
		return
	}
	if err := fn(c.Request.Context(), actor(c), record); err != nil {
		h.respondError(c, err)
		return
	}
	created(c, record)
}

// listByCompany lists the catalog records of the company named in the query
func listByCompany[T any](h *Handlers, c *gin.Context, fn func(ctx context.Context, companyID int64) ([]*T, error)) {
	id, valid := companyID(c)
	if !valid {
		return
	}
	records, err := fn(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, records)
}

func listAll[T any](h *Handlers, c *gin.Context, fn func(ctx context.Context) ([]*T, error)) {
	records, err := fn(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, records)
}

// CreateCompany handles POST /api/catalog/companies
func (h *Handlers) CreateCompany(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreateCompany)
}

// ListCompanies handles GET /api/catalog/companies
func (h *Handlers) ListCompanies(c *gin.Context) {
	listAll(h, c, h.services.Catalog.ListCompanies)
}

// UpdateCompanySettings handles PUT /api/catalog/companies/:id/settings
func (h *Handlers) UpdateCompanySettings(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req companySettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	company, err := h.services.Catalog.UpdateCompanySettings(c.Request.Context(), actor(c), id, port.CompanySettings{
		ReimbursementJournalID: req.ReimbursementJournalID,
		ExpenseJournalID:       req.ExpenseJournalID,
		UseSameJournal:         req.UseSameJournal,
		FiscalLockDate:         req.FiscalLockDate.timePtr(),
		PayableAccountID:       req.PayableAccountID,
		ReceivableAccountID:    req.ReceivableAccountID,
		OutstandingAccountID:   req.OutstandingAccountID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, company)
}

// CreateJournal handles POST /api/catalog/journals
func (h *Handlers) CreateJournal(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreateJournal)
}

// ListJournals handles GET /api/catalog/journals?company_id=
func (h *Handlers) ListJournals(c *gin.Context) {
	listByCompany(h, c, h.services.Catalog.ListJournals)
}

// CreateAccount handles POST /api/catalog/accounts
func (h *Handlers) CreateAccount(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreateAccount)
}

// ListAccounts handles GET /api/catalog/accounts?company_id=
func (h *Handlers) ListAccounts(c *gin.Context) {
	listByCompany(h, c, h.services.Catalog.ListAccounts)
}

// CreateTax handles POST /api/catalog/taxes
func (h *Handlers) CreateTax(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreateTax)
}

// ListTaxes handles GET /api/catalog/taxes?company_id=
func (h *Handlers) ListTaxes(c *gin.Context) {
	listByCompany(h, c, h.services.Catalog.ListTaxes)
}

// CreateCategory handles POST /api/catalog/categories
func (h *Handlers) CreateCategory(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreateCategory)
}

// ListCategories handles GET /api/catalog/categories?company_id=
func (h *Handlers) ListCategories(c *gin.Context) {
	listByCompany(h, c, h.services.Catalog.ListCategories)
}

// CreatePartner handles POST /api/catalog/partners
func (h *Handlers) CreatePartner(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreatePartner)
}

// ListPartners handles GET /api/catalog/partners
func (h *Handlers) ListPartners(c *gin.Context) {
	listAll(h, c, h.services.Catalog.ListPartners)
}

// CreateEmployee handles POST /api/catalog/employees
func (h *Handlers) CreateEmployee(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreateEmployee)
}

// ListEmployees handles GET /api/catalog/employees?company_id=
func (h *Handlers) ListEmployees(c *gin.Context) {
	listByCompany(h, c, h.services.Catalog.ListEmployees)
}

// CreateUser handles POST /api/catalog/users
func (h *Handlers) CreateUser(c *gin.Context) {
	createRecord(h, c, h.services.Catalog.CreateUser)
}

// ListUsers handles GET /api/catalog/users
func (h *Handlers) ListUsers(c *gin.Context) {
	listAll(h, c, h.services.Catalog.ListUsers)
}
