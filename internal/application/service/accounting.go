package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// debitCredit books a signed amount on the debit side when positive, the credit side otherwise
func debitCredit(amount decimal.Decimal) (debit, credit decimal.Decimal) {
	if amount.IsNegative() {
		return decimal.Zero, amount.Neg()
	}
	return amount, decimal.Zero
}

func newLine(name string, accountID int64, partnerID *int64, amount decimal.Decimal, displayType string) *entity.MoveLine {
	debit, credit := debitCredit(expense.Round(amount))
	return &entity.MoveLine{
		Name:        name,
		AccountID:   accountID,
		PartnerID:   partnerID,
		Debit:       debit,
		Credit:      credit,
		DisplayType: displayType,
	}
}

// moveContext is what document generation needs to know about a sheet
type moveContext struct {
	sheet    *entity.ExpenseSheet
	company  *entity.Company
	employee *entity.Employee
}

func (r *records) loadMoveContext(ctx context.Context, sheet *entity.ExpenseSheet) (*moveContext, error) {
	company, err := r.company(ctx, sheet.CompanyID)
	if err != nil {
		return nil, err
	}
	employee, err := r.employee(ctx, sheet.EmployeeID)
	if err != nil {
		return nil, err
	}
	return &moveContext{sheet: sheet, company: company, employee: employee}, nil
}

// expenseJournal resolves the purchase journal of employee-paid documents
func (r *records) expenseJournal(ctx context.Context, mc *moveContext) (*entity.Journal, error) {
	var id *int64
	switch {
	case mc.company.UseSameJournal && mc.company.ExpenseJournalID != nil:
		id = mc.company.ExpenseJournalID
	case mc.sheet.JournalID != nil:
		id = mc.sheet.JournalID
	default:
		id = mc.company.ExpenseJournalID
	}
	if id == nil {
		return nil, expense.Userf("No journal could be found for the expense report %q. Please set an expense journal on the company.", mc.sheet.Name)
	}
	return r.journal(ctx, *id)
}

func (r *records) payableAccount(mc *moveContext) (int64, error) {
	if mc.company.PayableAccountID == nil {
		return 0, expense.Userf("Please define a payable account on the company %s.", mc.company.Name)
	}
	return *mc.company.PayableAccountID, nil
}

func (r *records) receivableAccount(mc *moveContext) (int64, error) {
	if mc.company.ReceivableAccountID == nil {
		return 0, expense.Userf("Please define a receivable account on the company %s.", mc.company.Name)
	}
	return *mc.company.ReceivableAccountID, nil
}

func (r *records) accountingDate(mc *moveContext) time.Time {
	if mc.sheet.AccountingDate != nil {
		return expense.DateOnly(*mc.sheet.AccountingDate)
	}
	dates := make([]time.Time, 0, len(mc.sheet.Lines))
	for _, l := range mc.sheet.Lines {
		if l.Date != nil {
			dates = append(dates, *l.Date)
		}
	}
	return expense.DefaultAccountingDate(r.today(), dates, mc.company.FiscalLockDate)
}

func (r *records) newMove(mc *moveContext, journal *entity.Journal, moveType string, partnerID *int64, date time.Time) *entity.Move {
	sheetID := mc.sheet.ID
	move := &entity.Move{
		Name:         "/",
		CompanyID:    mc.company.ID,
		JournalID:    journal.ID,
		SheetID:      &sheetID,
		MoveType:     moveType,
		State:        entity.MoveStateDraft,
		PaymentState: entity.PaymentStateNotPaid,
		PartnerID:    partnerID,
		Date:         date,
		Ref:          mc.sheet.Name,
		Currency:     mc.company.Currency,
	}
	if move.IsInvoice() {
		invoiceDate := date
		move.InvoiceDate = &invoiceDate
	}
	return move
}

func (r *records) saveMove(ctx context.Context, move *entity.Move) error {
	if !move.Balanced() {
		return fmt.Errorf("failed to create move %q: debits and credits do not balance", move.Ref)
	}
	if err := r.Moves.Create(ctx, move); err != nil {
		return fmt.Errorf("failed to create move: %w", err)
	}
	return nil
}

// createMoves generates the draft accounting documents of an approved sheet.
// The sheet must be refreshed so that its lines are loaded.
func (r *records) createMoves(ctx context.Context, sheet *entity.ExpenseSheet) ([]*entity.Move, error) {
	if err := expense.CheckLinesForMoves(sheet.CompanyID, sheet.Lines); err != nil {
		return nil, err
	}
	mc, err := r.loadMoveContext(ctx, sheet)
	if err != nil {
		return nil, err
	}

	switch {
	case sheet.IsLiquidation:
		move, err := r.createRefundDocument(ctx, mc)
		if err != nil {
			return nil, err
		}
		return []*entity.Move{move}, nil
	case sheet.PaymentMode == entity.PaymentModeCompanyAccount:
		return r.createCompanyPayments(ctx, mc)
	default:
		move, err := r.createVendorBill(ctx, mc)
		if err != nil {
			return nil, err
		}
		return []*entity.Move{move}, nil
	}
}

// billPartner is the provider when an expense is charged to the company budget,
// otherwise the employee's work contact
func billPartner(mc *moveContext) *int64 {
	for _, l := range mc.sheet.Lines {
		if l.PaymentAccountMode == entity.PaymentAccountCompany && mc.sheet.ProviderID != nil {
			return mc.sheet.ProviderID
		}
	}
	return mc.employee.WorkContactID
}

type taxTotal struct {
	tax    *entity.Tax
	amount decimal.Decimal
}

// productLines books each expense at its tax-excluded base and returns the aggregated taxes
func (r *records) productLines(ctx context.Context, mc *moveContext, partnerID *int64, sign decimal.Decimal) ([]*entity.MoveLine, []*taxTotal, error) {
	var lines []*entity.MoveLine
	var taxes []*taxTotal
	byTax := make(map[int64]*taxTotal)

	for _, e := range mc.sheet.Lines {
		lineTaxes, err := r.Catalog.GetTaxes(ctx, e.TaxIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load taxes: %w", err)
		}
		split := expense.SplitTaxIncluded(e.TotalAmount, lineTaxes)

		line := newLine(e.Name, *e.AccountID, partnerID, split.Base.Mul(sign), entity.LineTypeProduct)
		expenseID := e.ID
		line.ExpenseID = &expenseID
		line.TaxIDs = append([]int64(nil), e.TaxIDs...)
		line.AnalyticDistribution = e.AnalyticDistribution
		lines = append(lines, line)

		for _, ta := range split.Taxes {
			t, ok := byTax[ta.Tax.ID]
			if !ok {
				t = &taxTotal{tax: ta.Tax, amount: decimal.Zero}
				byTax[ta.Tax.ID] = t
				taxes = append(taxes, t)
			}
			t.amount = t.amount.Add(ta.Amount)
		}
	}
	return lines, taxes, nil
}

func taxLines(taxes []*taxTotal, partnerID *int64, sign decimal.Decimal) []*entity.MoveLine {
	lines := make([]*entity.MoveLine, 0, len(taxes))
	for _, t := range taxes {
		line := newLine(t.tax.Name, t.tax.AccountID, partnerID, t.amount.Mul(sign), entity.LineTypeTax)
		taxID := t.tax.ID
		line.TaxLineID = &taxID
		lines = append(lines, line)
	}
	return lines
}

// createVendorBill books an employee-paid sheet as a single vendor bill
func (r *records) createVendorBill(ctx context.Context, mc *moveContext) (*entity.Move, error) {
	journal, err := r.expenseJournal(ctx, mc)
	if err != nil {
		return nil, err
	}
	payable, err := r.payableAccount(mc)
	if err != nil {
		return nil, err
	}

	date := r.accountingDate(mc)
	mc.sheet.AccountingDate = &date
	partnerID := billPartner(mc)

	one := decimal.NewFromInt(1)
	lines, taxes, err := r.productLines(ctx, mc, partnerID, one)
	if err != nil {
		return nil, err
	}
	lines = append(lines, taxLines(taxes, partnerID, one)...)

	total := expense.SheetTotal(mc.sheet.Lines)
	lines = append(lines, newLine(mc.sheet.Name, payable, partnerID, total.Neg(), entity.LineTypePaymentTerm))

	move := r.newMove(mc, journal, entity.MoveTypeInInvoice, partnerID, date)
	move.AmountTotal = total
	move.AmountResidual = total
	move.Lines = lines
	if err := r.saveMove(ctx, move); err != nil {
		return nil, err
	}
	return move, nil
}

// createCompanyPayments books every line of a company-paid sheet as a payment and its entry
func (r *records) createCompanyPayments(ctx context.Context, mc *moveContext) ([]*entity.Move, error) {
	if mc.sheet.JournalID == nil {
		return nil, expense.Userf("No journal could be found for the expense report %q. Please set a payment journal.", mc.sheet.Name)
	}
	journal, err := r.journal(ctx, *mc.sheet.JournalID)
	if err != nil {
		return nil, err
	}
	if !journal.ManualPaymentMethod {
		return nil, expense.Userf("You need to add a manual payment method on the journal (%s)", journal.Name)
	}

	outstanding := mc.company.OutstandingAccountID
	if outstanding == nil {
		outstanding = journal.DefaultAccountID
	}
	if outstanding == nil {
		return nil, expense.Userf("Please define an outstanding payments account on the company %s.", mc.company.Name)
	}

	fallbackDate := r.accountingDate(mc)
	moves := make([]*entity.Move, 0, len(mc.sheet.Lines))
	for _, e := range mc.sheet.Lines {
		partnerID := e.VendorID
		if partnerID == nil {
			partnerID = mc.sheet.ProviderID
		}
		if partnerID == nil {
			partnerID = mc.employee.WorkContactID
		}
		date := fallbackDate
		if e.Date != nil {
			date = expense.DateOnly(*e.Date)
		}

		lineTaxes, err := r.Catalog.GetTaxes(ctx, e.TaxIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load taxes: %w", err)
		}
		split := expense.SplitTaxIncluded(e.TotalAmount, lineTaxes)

		base := newLine(e.Name, *e.AccountID, partnerID, split.Base, entity.LineTypeProduct)
		expenseID := e.ID
		base.ExpenseID = &expenseID
		base.TaxIDs = append([]int64(nil), e.TaxIDs...)
		base.AnalyticDistribution = e.AnalyticDistribution

		lines := []*entity.MoveLine{base}
		for _, ta := range split.Taxes {
			line := newLine(ta.Tax.Name, ta.Tax.AccountID, partnerID, ta.Amount, entity.LineTypeTax)
			taxID := ta.Tax.ID
			line.TaxLineID = &taxID
			lines = append(lines, line)
		}
		total := expense.Round(e.TotalAmount)
		lines = append(lines, newLine(e.Name, *outstanding, partnerID, total.Neg(), entity.LineTypePaymentTerm))

		move := r.newMove(mc, journal, entity.MoveTypeEntry, partnerID, date)
		move.Ref = e.Name
		move.AmountTotal = total
		move.AmountResidual = total
		move.Lines = lines
		if err := r.saveMove(ctx, move); err != nil {
			return nil, err
		}

		moveID := move.ID
		payment := &entity.Payment{
			CompanyID:   mc.company.ID,
			JournalID:   journal.ID,
			MoveID:      &moveID,
			PartnerID:   partnerID,
			Amount:      total,
			Currency:    mc.company.Currency,
			PaymentType: entity.PaymentOutbound,
			PartnerType: entity.PartnerTypeSupplier,
			State:       entity.PaymentRecordDraft,
			Date:        date,
			Memo:        e.Name,
		}
		if err := r.Payments.Create(ctx, payment); err != nil {
			return nil, fmt.Errorf("failed to create payment: %w", err)
		}
		move.PaymentID = &payment.ID
		if err := r.Moves.Update(ctx, move); err != nil {
			return nil, fmt.Errorf("failed to link payment: %w", err)
		}
		moves = append(moves, move)
	}
	return moves, nil
}

// createRefundDocument books the balance of a liquidation sheet.
// A negative refund is owed to the employee, a positive one is owed by the employee.
func (r *records) createRefundDocument(ctx context.Context, mc *moveContext) (*entity.Move, error) {
	refund := mc.sheet.Refund
	amount := refund.Abs()
	partnerID := mc.employee.WorkContactID
	date := r.accountingDate(mc)
	mc.sheet.AccountingDate = &date
	expenseAccount := *mc.sheet.Lines[0].AccountID

	var (
		journal *entity.Journal
		lines   []*entity.MoveLine
		err     error
	)
	switch {
	case refund.IsNegative():
		if journal, err = r.expenseJournal(ctx, mc); err != nil {
			return nil, err
		}
		payable, err := r.payableAccount(mc)
		if err != nil {
			return nil, err
		}
		lines = []*entity.MoveLine{
			newLine(mc.sheet.Name, expenseAccount, partnerID, amount, entity.LineTypeProduct),
			newLine(mc.sheet.Name, payable, partnerID, amount.Neg(), entity.LineTypePaymentTerm),
		}
	case refund.IsPositive():
		if mc.company.ReimbursementJournalID == nil {
			return nil, expense.Userf(`You must set up a "Reimbursement Journal" in Employee Expense Settings`)
		}
		if journal, err = r.journal(ctx, *mc.company.ReimbursementJournalID); err != nil {
			return nil, err
		}
		receivable, err := r.receivableAccount(mc)
		if err != nil {
			return nil, err
		}
		lines = []*entity.MoveLine{
			newLine(mc.sheet.Name, expenseAccount, partnerID, amount.Neg(), entity.LineTypeProduct),
			newLine(mc.sheet.Name, receivable, partnerID, amount, entity.LineTypePaymentTerm),
		}
	default:
		if mc.company.ReimbursementJournalID != nil {
			journal, err = r.journal(ctx, *mc.company.ReimbursementJournalID)
		} else {
			journal, err = r.expenseJournal(ctx, mc)
		}
		if err != nil {
			return nil, err
		}
	}

	move := r.newMove(mc, journal, expense.RefundMoveType(refund), partnerID, date)
	move.AmountTotal = amount
	move.AmountResidual = amount
	move.Lines = lines
	if amount.IsZero() {
		move.PaymentState = entity.PaymentStatePaid
	}
	if err := r.saveMove(ctx, move); err != nil {
		return nil, err
	}
	return move, nil
}

// postMove numbers and posts a draft move, along with its payment
func (r *records) postMove(ctx context.Context, move *entity.Move) error {
	if !move.IsDraft() {
		return nil
	}
	if err := r.number(ctx, move); err != nil {
		return err
	}
	move.State = entity.MoveStatePosted
	if move.IsInvoice() {
		move.PaymentState = expense.InvoicePaymentState(move.AmountTotal, move.AmountResidual)
	}
	if err := r.Moves.Update(ctx, move); err != nil {
		return fmt.Errorf("failed to post move: %w", err)
	}
	if move.PaymentID != nil {
		if err := r.Payments.UpdateState(ctx, *move.PaymentID, entity.PaymentRecordPosted); err != nil {
			return fmt.Errorf("failed to post payment: %w", err)
		}
	}
	return nil
}

// number assigns the next CODE/YYYY/NNNN name of the move's journal
func (r *records) number(ctx context.Context, move *entity.Move) error {
	journal, err := r.journal(ctx, move.JournalID)
	if err != nil {
		return err
	}
	year := move.Date.Year()
	seq, err := r.Moves.NextSequence(ctx, journal.ID, year)
	if err != nil {
		return fmt.Errorf("failed to number move: %w", err)
	}
	move.Name = fmt.Sprintf("%s/%04d/%04d", journal.Code, year, seq)
	return nil
}

// reverseMove cancels a posted move with a posted mirror entry and unlinks both from the sheet
func (r *records) reverseMove(ctx context.Context, move *entity.Move) (*entity.Move, error) {
	originalID := move.ID
	reversal := &entity.Move{
		CompanyID:       move.CompanyID,
		JournalID:       move.JournalID,
		MoveType:        entity.MoveTypeEntry,
		State:           entity.MoveStatePosted,
		PaymentState:    entity.PaymentStateNotPaid,
		PartnerID:       move.PartnerID,
		Date:            r.today(),
		Ref:             "Reversal of: " + move.Name,
		Currency:        move.Currency,
		AmountTotal:     move.AmountTotal,
		ReversedEntryID: &originalID,
	}
	for _, l := range move.Lines {
		reversal.Lines = append(reversal.Lines, &entity.MoveLine{
			Name:                 l.Name,
			AccountID:            l.AccountID,
			PartnerID:            l.PartnerID,
			ExpenseID:            l.ExpenseID,
			TaxIDs:               l.TaxIDs,
			TaxLineID:            l.TaxLineID,
			Debit:                l.Credit,
			Credit:               l.Debit,
			AnalyticDistribution: l.AnalyticDistribution,
			DisplayType:          l.DisplayType,
		})
	}
	if err := r.number(ctx, reversal); err != nil {
		return nil, err
	}
	if err := r.saveMove(ctx, reversal); err != nil {
		return nil, err
	}

	move.PaymentState = entity.PaymentStateReversed
	move.AmountResidual = decimal.Zero
	move.SheetID = nil
	if err := r.Moves.Update(ctx, move); err != nil {
		return nil, fmt.Errorf("failed to mark move reversed: %w", err)
	}
	if move.PaymentID != nil {
		if err := r.Payments.UpdateState(ctx, *move.PaymentID, entity.PaymentRecordCanceled); err != nil {
			return nil, fmt.Errorf("failed to cancel payment: %w", err)
		}
	}
	return reversal, nil
}

// deleteDraftMove removes a draft move and cancels the payment created with it
func (r *records) deleteDraftMove(ctx context.Context, move *entity.Move) error {
	if err := r.Moves.Delete(ctx, move.ID); err != nil {
		return fmt.Errorf("failed to delete move: %w", err)
	}
	if move.PaymentID != nil {
		if err := r.Payments.UpdateState(ctx, *move.PaymentID, entity.PaymentRecordCanceled); err != nil {
			return fmt.Errorf("failed to cancel payment: %w", err)
		}
	}
	return nil
}

// payInvoice records a payment of amount against a posted invoice on a bank or cash journal
func (r *records) payInvoice(ctx context.Context, mc *moveContext, invoice *entity.Move, journal *entity.Journal, amount decimal.Decimal, date time.Time) (*entity.Payment, error) {
	if journal.DefaultAccountID == nil {
		return nil, expense.Userf("The journal %s has no default account.", journal.Name)
	}
	bank := *journal.DefaultAccountID

	var (
		counterpart int64
		err         error
		payment     = &entity.Payment{
			CompanyID: invoice.CompanyID,
			JournalID: journal.ID,
			PartnerID: invoice.PartnerID,
			Amount:    amount,
			Currency:  invoice.Currency,
			State:     entity.PaymentRecordPosted,
			Date:      date,
			Memo:      invoice.Name,
		}
	)
	// money leaves the bank for a bill and comes in for an invoice
	sign := decimal.NewFromInt(1)
	if invoice.MoveType == entity.MoveTypeInInvoice {
		counterpart, err = r.payableAccount(mc)
		payment.PaymentType = entity.PaymentOutbound
		payment.PartnerType = entity.PartnerTypeSupplier
		sign = sign.Neg()
	} else {
		counterpart, err = r.receivableAccount(mc)
		payment.PaymentType = entity.PaymentInbound
		payment.PartnerType = entity.PartnerTypeCustomer
	}
	if err != nil {
		return nil, err
	}

	entry := &entity.Move{
		CompanyID:    invoice.CompanyID,
		JournalID:    journal.ID,
		MoveType:     entity.MoveTypeEntry,
		State:        entity.MoveStatePosted,
		PaymentState: entity.PaymentStatePaid,
		PartnerID:    invoice.PartnerID,
		Date:         date,
		Ref:          invoice.Name,
		Currency:     invoice.Currency,
		AmountTotal:  amount,
		Lines: []*entity.MoveLine{
			newLine(invoice.Name, bank, invoice.PartnerID, amount.Mul(sign), entity.LineTypeProduct),
			newLine(invoice.Name, counterpart, invoice.PartnerID, amount.Mul(sign).Neg(), entity.LineTypePaymentTerm),
		},
	}
	if err := r.number(ctx, entry); err != nil {
		return nil, err
	}
	if err := r.saveMove(ctx, entry); err != nil {
		return nil, err
	}

	invoiceID := invoice.ID
	payment.MoveID = &entry.ID
	payment.InvoiceID = &invoiceID
	if err := r.Payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	entry.PaymentID = &payment.ID
	if err := r.Moves.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to link payment: %w", err)
	}

	invoice.AmountResidual = expense.Round(invoice.AmountResidual.Sub(amount))
	invoice.PaymentState = expense.InvoicePaymentState(invoice.AmountTotal, invoice.AmountResidual)
	if err := r.Moves.Update(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	return payment, nil
}
