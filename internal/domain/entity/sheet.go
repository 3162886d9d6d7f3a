package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseSheet aggregates expense lines into a report going through approval
type ExpenseSheet struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CompanyID     int64  `json:"company_id"`
	EmployeeID    int64  `json:"employee_id"`
	Department    string `json:"department,omitempty"`
	AreaManagerID *int64 `json:"area_manager_id,omitempty"`
	ProviderID    *int64 `json:"provider_id,omitempty"`
	ApprovedByID  *int64 `json:"approved_by_id,omitempty"`
	JournalID     *int64 `json:"journal_id,omitempty"`
	CreatedByID   *int64 `json:"created_by_id,omitempty"`

	PaymentMode    string          `json:"payment_mode"`
	ApprovalState  string          `json:"approval_state"`
	State          string          `json:"state"`
	PaymentState   string          `json:"payment_state"`
	AccountingDate *time.Time      `json:"accounting_date,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountResidual decimal.Decimal `json:"amount_residual"`

	// Travel request
	Destination   string     `json:"destination,omitempty"`
	Justification string     `json:"justification,omitempty"`
	Overnight     bool       `json:"overnight"`
	DateSince     *time.Time `json:"date_since,omitempty"`
	DateUp        *time.Time `json:"date_up,omitempty"`
	NumberDays    int        `json:"number_days"`
	TicketType    string     `json:"ticket_type,omitempty"`
	FlightDate    *time.Time `json:"flight_date,omitempty"`
	Airline       string     `json:"airline,omitempty"`
	Route         string     `json:"route,omitempty"`
	Flight        string     `json:"flight,omitempty"`

	// Liquidation
	IsLiquidation     bool            `json:"is_liquidation"`
	OriginalSheetID   *int64          `json:"original_sheet_id,omitempty"`
	SettlementSheetID *int64          `json:"settlement_sheet_id,omitempty"`
	LiquidationStatus string          `json:"liquidation_status"`
	TotalVerified     decimal.Decimal `json:"total_verified"`
	Refund            decimal.Decimal `json:"refund"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Loaded on demand
	Lines []*Expense `json:"lines,omitempty"`
	Moves []*Move    `json:"moves,omitempty"`
}

// IsEditable returns true while the sheet content may be freely changed
func (s *ExpenseSheet) IsEditable() bool {
	return s.State == SheetStateDraft
}

// ClearFlightDetails drops the air-only fields when the ticket is not a flight
func (s *ExpenseSheet) ClearFlightDetails() {
	if s.TicketType == TicketAir {
		return
	}
	s.FlightDate = nil
	s.Airline = ""
	s.Route = ""
	s.Flight = ""
}

// SheetFilter narrows sheet listings
type SheetFilter struct {
	EmployeeID    *int64
	State         string
	IsLiquidation *bool
	Limit         int
	Offset        int
}
