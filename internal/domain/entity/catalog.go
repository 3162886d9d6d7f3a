package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company holds the accounting settings used when generating documents
type Company struct {
	ID                     int64      `json:"id"`
	Name                   string     `json:"name"`
	Currency               string     `json:"currency"`
	FiscalLockDate         *time.Time `json:"fiscal_lock_date,omitempty"`
	ExpenseJournalID       *int64     `json:"expense_journal_id,omitempty"`
	ReimbursementJournalID *int64     `json:"reimbursement_journal_id,omitempty"`
	UseSameJournal         bool       `json:"use_same_journal"`
	PayableAccountID       *int64     `json:"payable_account_id,omitempty"`
	ReceivableAccountID    *int64     `json:"receivable_account_id,omitempty"`
	OutstandingAccountID   *int64     `json:"outstanding_account_id,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Journal groups moves and carries their numbering
type Journal struct {
	ID                  int64  `json:"id"`
	CompanyID           int64  `json:"company_id"`
	Code                string `json:"code"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	DefaultAccountID    *int64 `json:"default_account_id,omitempty"`
	ManualPaymentMethod bool   `json:"manual_payment_method"`
}

// Account is a ledger account
type Account struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// Tax is a percentage tax included in expense totals
type Tax struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"company_id"`
	Name      string          `json:"name"`
	Rate      decimal.Decimal `json:"rate"`
	AccountID int64           `json:"account_id"`
}

// Category classifies expenses and provides their expense account
type Category struct {
	ID               int64   `json:"id"`
	CompanyID        int64   `json:"company_id"`
	Name             string  `json:"name"`
	ExpenseAccountID int64   `json:"expense_account_id"`
	TaxIDs           []int64 `json:"tax_ids,omitempty"`
}

// Partner is an employee contact, vendor or customer
type Partner struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Employee reports expenses
type Employee struct {
	ID            int64  `json:"id"`
	CompanyID     int64  `json:"company_id"`
	Name          string `json:"name"`
	Department    string `json:"department,omitempty"`
	WorkContactID *int64 `json:"work_contact_id,omitempty"`
	UserID        *int64 `json:"user_id,omitempty"`
	ManagerUserID *int64 `json:"manager_user_id,omitempty"`
}

// User is an authenticated caller
type User struct {
	ID         int64    `json:"id"`
	Login      string   `json:"login"`
	Name       string   `json:"name"`
	Groups     []string `json:"groups"`
	PartnerID  *int64   `json:"partner_id,omitempty"`
	LarkOpenID string   `json:"lark_open_id,omitempty"`
}

// HasGroup returns true if the user belongs to the given security group
func (u *User) HasGroup(group string) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}
