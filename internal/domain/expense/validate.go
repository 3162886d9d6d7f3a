package expense

import (
	"github.com/garyjia/travel-expense/internal/domain/entity"
)

var transportTypes = map[string]bool{
	entity.TransportPlane: true,
	entity.TransportTrain: true,
	entity.TransportCar:   true,
	entity.TransportBus:   true,
	entity.TransportOther: true,
}

var ticketTypes = map[string]bool{
	entity.TicketAir:             true,
	entity.TicketTerrestrialBus:  true,
	entity.TicketTerrestrialAuto: true,
}

// ValidateExpense checks the invariants of a single line.
// isLiquidation tells whether the parent sheet is a settlement.
func ValidateExpense(e *entity.Expense, isLiquidation bool) error {
	if e.Name == "" {
		return Validationf("The expense description is required.")
	}
	if e.ExpenseAmount.IsNegative() || e.TicketAmount.IsNegative() {
		return Validationf("Lodging and fare amounts must be positive.")
	}
	if e.TransportType != "" && !transportTypes[e.TransportType] {
		return Validationf("Unknown transport type %q.", e.TransportType)
	}
	if e.DurationDays < 0 {
		return Validationf("The trip duration cannot be negative.")
	}
	switch e.PaymentMode {
	case entity.PaymentModeOwnAccount, entity.PaymentModeCompanyAccount:
	default:
		return Validationf("Unknown payment mode %q.", e.PaymentMode)
	}
	switch e.PaymentAccountMode {
	case entity.PaymentAccountManagerArea, entity.PaymentAccountCompany:
	default:
		return Validationf("Unknown payment account mode %q.", e.PaymentAccountMode)
	}
	if isLiquidation && e.RealExpense.IsNegative() {
		return Validationf(`"Actual Spending" cannot be negative`)
	}
	return nil
}

// ValidateSheetTravel checks the travel request fields of a sheet
func ValidateSheetTravel(s *entity.ExpenseSheet) error {
	if s.Name == "" {
		return Validationf("The expense report name is required.")
	}
	if s.TicketType != "" && !ticketTypes[s.TicketType] {
		return Validationf("Unknown ticket type %q.", s.TicketType)
	}
	return CheckDateRange(s.DateSince, s.DateUp)
}

// CheckPaymentAccountModes fails when lines mix area-paid and company-paid expenses
func CheckPaymentAccountModes(lines []*entity.Expense) error {
	if len(lines) == 0 {
		return nil
	}
	area, company := false, false
	for _, l := range lines {
		if l.PaymentAccountMode == entity.PaymentAccountManagerArea {
			area = true
		} else {
			company = true
		}
	}
	if area == company {
		return Userf("You cannot select expense lines with combined `Payment Method`.")
	}
	return nil
}

// CheckPaymentModes fails when lines disagree on who bore the cost
func CheckPaymentModes(lines []*entity.Expense) error {
	for _, l := range lines[min(1, len(lines)):] {
		if l.PaymentMode != lines[0].PaymentMode {
			return Userf("Expenses must have the same To Reimburse status.")
		}
	}
	return nil
}

// CheckSameCompany fails when lines belong to several companies
func CheckSameCompany(companyID int64, lines []*entity.Expense) error {
	for _, l := range lines {
		if l.CompanyID != companyID {
			return Userf("You cannot report expenses for different companies in the same report.")
		}
	}
	return nil
}

// CheckLinesForMoves verifies a sheet's lines before accounting documents are generated
func CheckLinesForMoves(companyID int64, lines []*entity.Expense) error {
	if len(lines) == 0 {
		return Userf("You cannot create accounting entries for an expense report without expenses.")
	}
	if err := CheckSameCompany(companyID, lines); err != nil {
		return err
	}
	for _, l := range lines {
		if l.CategoryID == nil || l.AccountID == nil {
			return Userf("The expense %q has no category or account.", l.Name)
		}
	}
	return nil
}
