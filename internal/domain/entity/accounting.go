package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Move is a journal entry or invoice generated from an expense sheet
type Move struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	CompanyID       int64           `json:"company_id"`
	JournalID       int64           `json:"journal_id"`
	SheetID         *int64          `json:"sheet_id,omitempty"`
	MoveType        string          `json:"move_type"`
	State           string          `json:"state"`
	PaymentState    string          `json:"payment_state"`
	PartnerID       *int64          `json:"partner_id,omitempty"`
	Date            time.Time       `json:"date"`
	InvoiceDate     *time.Time      `json:"invoice_date,omitempty"`
	Ref             string          `json:"ref,omitempty"`
	Currency        string          `json:"currency"`
	AmountTotal     decimal.Decimal `json:"amount_total"`
	AmountResidual  decimal.Decimal `json:"amount_residual"`
	ReversedEntryID *int64          `json:"reversed_entry_id,omitempty"`
	PaymentID       *int64          `json:"payment_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Lines []*MoveLine `json:"lines,omitempty"`
}

// IsInvoice returns true for vendor bills and customer invoices
func (m *Move) IsInvoice() bool {
	return m.MoveType == MoveTypeInInvoice || m.MoveType == MoveTypeOutInvoice
}

// IsDraft returns true if the move is not posted yet
func (m *Move) IsDraft() bool {
	return m.State == MoveStateDraft
}

// IsReversed returns true if a reversal entry cancelled the move
func (m *Move) IsReversed() bool {
	return m.PaymentState == PaymentStateReversed
}

// Balanced returns true when debits equal credits
func (m *Move) Balanced() bool {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range m.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit.Equal(credit)
}

// MoveLine is a single debit or credit of a move
type MoveLine struct {
	ID                   int64                      `json:"id"`
	MoveID               int64                      `json:"move_id"`
	Name                 string                     `json:"name"`
	AccountID            int64                      `json:"account_id"`
	PartnerID            *int64                     `json:"partner_id,omitempty"`
	ExpenseID            *int64                     `json:"expense_id,omitempty"`
	TaxIDs               []int64                    `json:"tax_ids,omitempty"`
	TaxLineID            *int64                     `json:"tax_line_id,omitempty"`
	Debit                decimal.Decimal            `json:"debit"`
	Credit               decimal.Decimal            `json:"credit"`
	AnalyticDistribution map[string]decimal.Decimal `json:"analytic_distribution,omitempty"`
	DisplayType          string                     `json:"display_type"`
}

// Balance returns debit minus credit
func (l *MoveLine) Balance() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// Payment records money going to or coming from a partner
type Payment struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	JournalID   int64           `json:"journal_id"`
	MoveID      *int64          `json:"move_id,omitempty"`
	InvoiceID   *int64          `json:"invoice_id,omitempty"`
	PartnerID   *int64          `json:"partner_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PaymentType string          `json:"payment_type"`
	PartnerType string          `json:"partner_type"`
	State       string          `json:"state"`
	Date        time.Time       `json:"date"`
	Memo        string          `json:"memo,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
