package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single reported cost item with its travel context
type Expense struct {
	ID          int64      `json:"id"`
	CompanyID   int64      `json:"company_id"`
	EmployeeID  int64      `json:"employee_id"`
	SheetID     *int64     `json:"sheet_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	AccountID   *int64     `json:"account_id,omitempty"`
	TaxIDs      []int64    `json:"tax_ids"`

	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`

	PaymentMode          string                     `json:"payment_mode"`
	PaymentAccountMode   string                     `json:"payment_account_mode"`
	AreaManagerID        *int64                     `json:"area_manager_id,omitempty"`
	VendorID             *int64                     `json:"vendor_id,omitempty"`
	AnalyticDistribution map[string]decimal.Decimal `json:"analytic_distribution,omitempty"`

	// Travel
	TravelDestination string          `json:"travel_destination,omitempty"`
	TripJustification string          `json:"trip_justification,omitempty"`
	ExpenseAmount     decimal.Decimal `json:"expense_amount"`
	TicketAmount      decimal.Decimal `json:"ticket_amount"`
	TransportType     string          `json:"transport_type,omitempty"`
	TravelDate        *time.Time      `json:"travel_date,omitempty"`
	DurationDays      int             `json:"duration_days"`

	// Settlement verification
	RealExpense   decimal.Decimal `json:"real_expense"`
	Checked       bool            `json:"checked"`
	VerifiedTotal decimal.Decimal `json:"verified_total"`
	ProofPath     string          `json:"-"`
	ProofFilename string          `json:"proof_filename,omitempty"`
	ProofMime     string          `json:"proof_mime,omitempty"`

	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReported returns true if the expense already belongs to a sheet
func (e *Expense) IsReported() bool {
	return e.SheetID != nil
}

// HasProof returns true if a supporting document was uploaded
func (e *Expense) HasProof() bool {
	return e.ProofPath != ""
}

// Duplicate returns a copy suitable for a new sheet: identity, parent link,
// state and verification data are stripped.
func (e *Expense) Duplicate() *Expense {
	cp := *e
	cp.ID = 0
	cp.SheetID = nil
	cp.State = ExpenseStateDraft
	cp.RealExpense = decimal.Zero
	cp.Checked = false
	cp.VerifiedTotal = decimal.Zero
	cp.ProofPath = ""
	cp.ProofFilename = ""
	cp.ProofMime = ""
	cp.CreatedAt = time.Time{}
	cp.UpdatedAt = time.Time{}
	cp.TaxIDs = append([]int64(nil), e.TaxIDs...)
	if e.AnalyticDistribution != nil {
		cp.AnalyticDistribution = make(map[string]decimal.Decimal, len(e.AnalyticDistribution))
		for k, v := range e.AnalyticDistribution {
			cp.AnalyticDistribution[k] = v
		}
	}
	return &cp
}

// ExpenseFilter narrows expense listings
type ExpenseFilter struct {
	EmployeeID *int64
	SheetID    *int64
	State      string
	Limit      int
	Offset     int
}
