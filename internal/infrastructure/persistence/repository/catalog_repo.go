package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/infrastructure/persistence/sqlite"
)

const companyColumns = `
	id, name, currency, fiscal_lock_date, expense_journal_id, reimbursement_journal_id,
	use_same_journal, payable_account_id, receivable_account_id, outstanding_account_id, created_at`

// CatalogRepository implements port.CatalogRepository
type CatalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new master data repository
func NewCatalogRepository(db *sql.DB, logger *zap.Logger) port.CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// insert runs an INSERT and returns the new row ID
func (r *CatalogRepository) insert(ctx context.Context, what, query string, args ...interface{}) (int64, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to create "+what, zap.Error(err))
		return 0, conflictOr(err, "failed to create "+what)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// CreateCompany inserts a company
func (r *CatalogRepository) CreateCompany(ctx context.Context, c *entity.Company) error {
	query := `
		INSERT INTO companies (
			name, currency, fiscal_lock_date, expense_journal_id, reimbursement_journal_id,
			use_same_journal, payable_account_id, receivable_account_id, outstanding_account_id, created_at
		) VALUES (` + placeholders(10) + `)
	`

	now := time.Now().UTC()
	id, err := r.insert(ctx, "company", query,
		c.Name, c.Currency, c.FiscalLockDate, c.ExpenseJournalID, c.ReimbursementJournalID,
		c.UseSameJournal, c.PayableAccountID, c.ReceivableAccountID, c.OutstandingAccountID, now,
	)
	if err != nil {
		return err
	}

	c.ID = id
	c.CreatedAt = now
	return nil
}

// GetCompany retrieves a company by ID
func (r *CatalogRepository) GetCompany(ctx context.Context, id int64) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = ?`

	company, err := scanCompany(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// ListCompanies retrieves all companies
func (r *CatalogRepository) ListCompanies(ctx context.Context) ([]*entity.Company, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list companies", zap.Error(err))
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	companies := []*entity.Company{}
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// UpdateCompanySettings saves the expense settings of a company
func (r *CatalogRepository) UpdateCompanySettings(ctx context.Context, id int64, settings port.CompanySettings) error {
	query := `
		UPDATE companies SET
			reimbursement_journal_id = ?, expense_journal_id = ?, use_same_journal = ?, fiscal_lock_date = ?,
			payable_account_id = ?, receivable_account_id = ?, outstanding_account_id = ?
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		settings.ReimbursementJournalID,
		settings.ExpenseJournalID,
		settings.UseSameJournal,
		settings.FiscalLockDate,
		settings.PayableAccountID,
		settings.ReceivableAccountID,
		settings.OutstandingAccountID,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to update company settings", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update company settings: %w", err)
	}
	return nil
}

func scanCompany(row rowScanner) (*entity.Company, error) {
	var c entity.Company
	var lockDate sql.NullTime
	var expenseJournal, reimbursementJournal, payable, receivable, outstanding sql.NullInt64

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Currency,
		&lockDate,
		&expenseJournal,
		&reimbursementJournal,
		&c.UseSameJournal,
		&payable,
		&receivable,
		&outstanding,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.FiscalLockDate = timePtr(lockDate)
	c.ExpenseJournalID = int64Ptr(expenseJournal)
	c.ReimbursementJournalID = int64Ptr(reimbursementJournal)
	c.PayableAccountID = int64Ptr(payable)
	c.ReceivableAccountID = int64Ptr(receivable)
	c.OutstandingAccountID = int64Ptr(outstanding)
	return &c, nil
}

// CreateJournal inserts a journal
func (r *CatalogRepository) CreateJournal(ctx context.Context, j *entity.Journal) error {
	query := `
		INSERT INTO journals (company_id, code, name, type, default_account_id, manual_payment_method)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	id, err := r.insert(ctx, "journal", query,
		j.CompanyID, j.Code, j.Name, j.Type, j.DefaultAccountID, j.ManualPaymentMethod)
	if err != nil {
		return err
	}
	j.ID = id
	return nil
}

// GetJournal retrieves a journal by ID
func (r *CatalogRepository) GetJournal(ctx context.Context, id int64) (*entity.Journal, error) {
	query := `
		SELECT id, company_id, code, name, type, default_account_id, manual_payment_method
		FROM journals WHERE id = ?
	`

	journal, err := scanJournal(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get journal", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}
	return journal, nil
}

// ListJournals retrieves the journals of a company
func (r *CatalogRepository) ListJournals(ctx context.Context, companyID int64) ([]*entity.Journal, error) {
	query := `
		SELECT id, company_id, code, name, type, default_account_id, manual_payment_method
		FROM journals WHERE company_id = ? ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list journals", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	journals := []*entity.Journal{}
	for rows.Next() {
		journal, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal: %w", err)
		}
		journals = append(journals, journal)
	}
	return journals, rows.Err()
}

func scanJournal(row rowScanner) (*entity.Journal, error) {
	var j entity.Journal
	var defaultAccount sql.NullInt64

	if err := row.Scan(&j.ID, &j.CompanyID, &j.Code, &j.Name, &j.Type, &defaultAccount, &j.ManualPaymentMethod); err != nil {
		return nil, err
	}
	j.DefaultAccountID = int64Ptr(defaultAccount)
	return &j, nil
}

// CreateAccount inserts a ledger account
func (r *CatalogRepository) CreateAccount(ctx context.Context, a *entity.Account) error {
	query := `INSERT INTO accounts (company_id, code, name, type) VALUES (?, ?, ?, ?)`

	id, err := r.insert(ctx, "account", query, a.CompanyID, a.Code, a.Name, a.Type)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// GetAccount retrieves an account by ID
func (r *CatalogRepository) GetAccount(ctx context.Context, id int64) (*entity.Account, error) {
	query := `SELECT id, company_id, code, name, type FROM accounts WHERE id = ?`

	var a entity.Account
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get account", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// ListAccounts retrieves the accounts of a company
func (r *CatalogRepository) ListAccounts(ctx context.Context, companyID int64) ([]*entity.Account, error) {
	query := `SELECT id, company_id, code, name, type FROM accounts WHERE company_id = ? ORDER BY code`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list accounts", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*entity.Account{}
	for rows.Next() {
		var a entity.Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// CreateTax inserts a tax
func (r *CatalogRepository) CreateTax(ctx context.Context, t *entity.Tax) error {
	query := `INSERT INTO taxes (company_id, name, rate, account_id) VALUES (?, ?, ?, ?)`

	id, err := r.insert(ctx, "tax", query, t.CompanyID, t.Name, t.Rate, t.AccountID)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// GetTaxes retrieves the taxes with the given IDs, ordered by ID
func (r *CatalogRepository) GetTaxes(ctx context.Context, ids []int64) ([]*entity.Tax, error) {
	if len(ids) == 0 {
		return []*entity.Tax{}, nil
	}

	query := `SELECT id, company_id, name, rate, account_id FROM taxes WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	return r.queryTaxes(ctx, query, int64Args(ids)...)
}

// ListTaxes retrieves the taxes of a company
func (r *CatalogRepository) ListTaxes(ctx context.Context, companyID int64) ([]*entity.Tax, error) {
	query := `SELECT id, company_id, name, rate, account_id FROM taxes WHERE company_id = ? ORDER BY id`
	return r.queryTaxes(ctx, query, companyID)
}

func (r *CatalogRepository) queryTaxes(ctx context.Context, query string, args ...interface{}) ([]*entity.Tax, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list taxes", zap.Error(err))
		return nil, fmt.Errorf("failed to list taxes: %w", err)
	}
	defer rows.Close()

	taxes := []*entity.Tax{}
	for rows.Next() {
		var t entity.Tax
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Rate, &t.AccountID); err != nil {
			return nil, fmt.Errorf("failed to scan tax: %w", err)
		}
		taxes = append(taxes, &t)
	}
	return taxes, rows.Err()
}

// CreateCategory inserts an expense category
func (r *CatalogRepository) CreateCategory(ctx context.Context, c *entity.Category) error {
	taxIDs, err := encodeIDs(c.TaxIDs)
	if err != nil {
		return err
	}

	query := `INSERT INTO categories (company_id, name, expense_account_id, tax_ids) VALUES (?, ?, ?, ?)`
	id, err := r.insert(ctx, "category", query, c.CompanyID, c.Name, c.ExpenseAccountID, taxIDs)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// GetCategory retrieves a category by ID
func (r *CatalogRepository) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	query := `SELECT id, company_id, name, expense_account_id, tax_ids FROM categories WHERE id = ?`

	category, err := scanCategory(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get category", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// ListCategories retrieves the categories of a company
func (r *CatalogRepository) ListCategories(ctx context.Context, companyID int64) ([]*entity.Category, error) {
	query := `SELECT id, company_id, name, expense_account_id, tax_ids FROM categories WHERE company_id = ? ORDER BY name`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*entity.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func scanCategory(row rowScanner) (*entity.Category, error) {
	var c entity.Category
	var taxIDs string

	if err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.ExpenseAccountID, &taxIDs); err != nil {
		return nil, err
	}

	ids, err := decodeIDs(taxIDs)
	if err != nil {
		return nil, err
	}
	c.TaxIDs = ids
	return &c, nil
}

// CreatePartner inserts a partner
func (r *CatalogRepository) CreatePartner(ctx context.Context, p *entity.Partner) error {
	id, err := r.insert(ctx, "partner", `INSERT INTO partners (name, email) VALUES (?, ?)`, p.Name, nullString(p.Email))
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// GetPartner retrieves a partner by ID
func (r *CatalogRepository) GetPartner(ctx context.Context, id int64) (*entity.Partner, error) {
	var p entity.Partner
	var email sql.NullString

	err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT id, name, email FROM partners WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get partner", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	p.Email = email.String
	return &p, nil
}

// ListPartners retrieves all partners
func (r *CatalogRepository) ListPartners(ctx context.Context) ([]*entity.Partner, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT id, name, email FROM partners ORDER BY name`)
	if err != nil {
		r.logger.Error("Failed to list partners", zap.Error(err))
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	partners := []*entity.Partner{}
	for rows.Next() {
		var p entity.Partner
		var email sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &email); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		p.Email = email.String
		partners = append(partners, &p)
	}
	return partners, rows.Err()
}

const employeeColumns = `id, company_id, name, department, work_contact_id, user_id, manager_user_id`

// CreateEmployee inserts an employee
func (r *CatalogRepository) CreateEmployee(ctx context.Context, e *entity.Employee) error {
	query := `
		INSERT INTO employees (company_id, name, department, work_contact_id, user_id, manager_user_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	id, err := r.insert(ctx, "employee", query,
		e.CompanyID, e.Name, nullString(e.Department), e.WorkContactID, e.UserID, e.ManagerUserID)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// GetEmployee retrieves an employee by ID
func (r *CatalogRepository) GetEmployee(ctx context.Context, id int64) (*entity.Employee, error) {
	return r.getEmployee(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
}

// GetEmployeeByUser retrieves the employee linked to a user
func (r *CatalogRepository) GetEmployeeByUser(ctx context.Context, userID int64) (*entity.Employee, error) {
	return r.getEmployee(ctx, `SELECT `+employeeColumns+` FROM employees WHERE user_id = ? ORDER BY id LIMIT 1`, userID)
}

func (r *CatalogRepository) getEmployee(ctx context.Context, query string, arg int64) (*entity.Employee, error) {
	employee, err := scanEmployee(r.getExecutor(ctx).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get employee", zap.Int64("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return employee, nil
}

// ListEmployees retrieves the employees of a company
func (r *CatalogRepository) ListEmployees(ctx context.Context, companyID int64) ([]*entity.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE company_id = ? ORDER BY name`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list employees", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []*entity.Employee{}
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (*entity.Employee, error) {
	var e entity.Employee
	var department sql.NullString
	var workContact, user, manager sql.NullInt64

	if err := row.Scan(&e.ID, &e.CompanyID, &e.Name, &department, &workContact, &user, &manager); err != nil {
		return nil, err
	}

	e.Department = department.String
	e.WorkContactID = int64Ptr(workContact)
	e.UserID = int64Ptr(user)
	e.ManagerUserID = int64Ptr(manager)
	return &e, nil
}

const userColumns = `id, login, name, group_names, partner_id, lark_open_id`

// CreateUser inserts a user
func (r *CatalogRepository) CreateUser(ctx context.Context, u *entity.User) error {
	groups, err := encodeStrings(u.Groups)
	if err != nil {
		return err
	}

	query := `INSERT INTO users (login, name, group_names, partner_id, lark_open_id) VALUES (?, ?, ?, ?, ?)`
	id, err := r.insert(ctx, "user", query, u.Login, u.Name, groups, u.PartnerID, nullString(u.LarkOpenID))
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// GetUser retrieves a user by ID
func (r *CatalogRepository) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	user, err := scanUser(r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves all users
func (r *CatalogRepository) ListUsers(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY login`)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*entity.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var groups string
	var partner sql.NullInt64
	var larkOpenID sql.NullString

	if err := row.Scan(&u.ID, &u.Login, &u.Name, &groups, &partner, &larkOpenID); err != nil {
		return nil, err
	}

	g, err := decodeStrings(groups)
	if err != nil {
		return nil, err
	}
	u.Groups = g
	u.PartnerID = int64Ptr(partner)
	u.LarkOpenID = larkOpenID.String
	return &u, nil
}

func (r *CatalogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.CatalogRepository = (*CatalogRepository)(nil)
