package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// ErrExtractionUnavailable is returned when no receipt extractor is configured
var ErrExtractionUnavailable = errors.New("receipt extraction is not configured")

const allowedFormatsMessage = "Please Only Allowed Formats (PDF, JPG, JPEG or PNG)"

// ExpenseInput carries the editable fields of an expense line. Nil fields are left unchanged.
type ExpenseInput struct {
	EmployeeID           *int64
	Name                 *string
	Description          *string
	Date                 *time.Time
	CategoryID           *int64
	AccountID            *int64
	TaxIDs               []int64
	TotalAmount          *decimal.Decimal
	Currency             *string
	PaymentMode          *string
	PaymentAccountMode   *string
	AreaManagerID        *int64
	VendorID             *int64
	AnalyticDistribution map[string]decimal.Decimal

	TravelDestination *string
	TripJustification *string
	ExpenseAmount     *decimal.Decimal
	TicketAmount      *decimal.Decimal
	TransportType     *string
	TravelDate        *time.Time
	DurationDays      *int

	RealExpense *decimal.Decimal
	Checked     *bool
}

// touchesContent tells whether the input changes anything beyond the verification fields
func (in ExpenseInput) touchesContent() bool {
	return in.EmployeeID != nil || in.Name != nil || in.Description != nil || in.Date != nil ||
		in.CategoryID != nil || in.AccountID != nil || in.TaxIDs != nil || in.TotalAmount != nil ||
		in.Currency != nil || in.PaymentMode != nil || in.PaymentAccountMode != nil ||
		in.AreaManagerID != nil || in.VendorID != nil || in.AnalyticDistribution != nil ||
		in.TravelDestination != nil || in.TripJustification != nil || in.ExpenseAmount != nil ||
		in.TicketAmount != nil || in.TransportType != nil || in.TravelDate != nil || in.DurationDays != nil
}

func (in ExpenseInput) touchesVerification() bool {
	return in.RealExpense != nil || in.Checked != nil
}

// checkVerifier allows the verification fields to accounting users and to the
// area manager of the report
func checkVerifier(actor *entity.User, sheet *entity.ExpenseSheet) error {
	if actor.HasGroup(entity.GroupAccountant) || actor.HasGroup(entity.GroupAccountUser) {
		return nil
	}
	if sheet != nil && sheet.AreaManagerID != nil && *sheet.AreaManagerID == actor.ID {
		return nil
	}
	return expense.Accessf("Only the approver can verify the real expense of a line.")
}

func (in ExpenseInput) apply(e *entity.Expense) {
	if in.Name != nil {
		e.Name = *in.Name
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Date != nil {
		e.Date = in.Date
	}
	if in.CategoryID != nil {
		e.CategoryID = in.CategoryID
	}
	if in.AccountID != nil {
		e.AccountID = in.AccountID
	}
	if in.TaxIDs != nil {
		e.TaxIDs = in.TaxIDs
	}
	if in.TotalAmount != nil {
		e.TotalAmount = expense.Round(*in.TotalAmount)
	}
	if in.Currency != nil {
		e.Currency = *in.Currency
	}
	if in.PaymentMode != nil {
		e.PaymentMode = *in.PaymentMode
	}
	if in.PaymentAccountMode != nil {
		e.PaymentAccountMode = *in.PaymentAccountMode
	}
	if in.AreaManagerID != nil {
		e.AreaManagerID = in.AreaManagerID
	}
	if in.VendorID != nil {
		e.VendorID = in.VendorID
	}
	if in.AnalyticDistribution != nil {
		e.AnalyticDistribution = in.AnalyticDistribution
	}
	if in.TravelDestination != nil {
		e.TravelDestination = *in.TravelDestination
	}
	if in.TripJustification != nil {
		e.TripJustification = *in.TripJustification
	}
	if in.ExpenseAmount != nil {
		e.ExpenseAmount = *in.ExpenseAmount
	}
	if in.TicketAmount != nil {
		e.TicketAmount = *in.TicketAmount
	}
	if in.TransportType != nil {
		e.TransportType = *in.TransportType
	}
	if in.TravelDate != nil {
		e.TravelDate = in.TravelDate
	}
	if in.DurationDays != nil {
		e.DurationDays = *in.DurationDays
	}
	if in.RealExpense != nil {
		e.RealExpense = *in.RealExpense
	}
	if in.Checked != nil {
		e.Checked = *in.Checked
	}
}

// Proof is a stored supporting document
type Proof struct {
	Filename string
	MimeType string
	Content  []byte
}

// ExpenseService manages expense lines, their supporting documents and reporting
type ExpenseService interface {
	Create(ctx context.Context, actor *entity.User, in ExpenseInput) (*entity.Expense, error)
	Get(ctx context.Context, actor *entity.User, id int64) (*entity.Expense, error)
	List(ctx context.Context, actor *entity.User, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	Update(ctx context.Context, actor *entity.User, id int64, in ExpenseInput) (*entity.Expense, error)
	Delete(ctx context.Context, actor *entity.User, id int64) error
	UploadProof(ctx context.Context, actor *entity.User, id int64, filename string, content []byte) (*entity.Expense, error)
	ReadProof(ctx context.Context, actor *entity.User, id int64) (*Proof, error)
	ExtractReceipt(ctx context.Context, actor *entity.User, id int64) (*port.ReceiptSuggestion, error)
	ReportExpenses(ctx context.Context, actor *entity.User, expenseIDs []int64, name string) ([]*entity.ExpenseSheet, error)
}

type expenseServiceImpl struct {
	records
	storage   port.FileStorage
	inspector port.DocumentInspector
	extractor port.ReceiptExtractor
	publisher Publisher
	logger    Logger
}

// NewExpenseService creates a new ExpenseService. extractor may be nil.
func NewExpenseService(
	stores Stores,
	storage port.FileStorage,
	inspector port.DocumentInspector,
	extractor port.ReceiptExtractor,
	publisher Publisher,
	clock Clock,
	logger Logger,
) ExpenseService {
	return &expenseServiceImpl{
		records:   newRecords(stores, clock),
		storage:   storage,
		inspector: inspector,
		extractor: extractor,
		publisher: publisher,
		logger:    logger,
	}
}

// loadExpense fetches a line the actor may access
func (r *records) loadExpense(ctx context.Context, actor *entity.User, id int64) (*entity.Expense, error) {
	e, err := r.Expenses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if e == nil {
		return nil, expense.NotFoundf("Expense %d not found.", id)
	}
	if e.SheetID != nil {
		if _, err := r.loadSheet(ctx, actor, *e.SheetID); err == nil {
			return e, nil
		}
	}
	employee, err := r.employee(ctx, e.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !canAccessEmployee(actor, employee) {
		return nil, expense.NotFoundf("Expense %d not found.", id)
	}
	return e, nil
}

// parentSheet returns the sheet of a line, nil when unreported
func (r *records) parentSheet(ctx context.Context, e *entity.Expense) (*entity.ExpenseSheet, error) {
	if e.SheetID == nil {
		return nil, nil
	}
	sheet, err := r.Sheets.GetByID(ctx, *e.SheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense report: %w", err)
	}
	return sheet, nil
}

// applyCategory fills the account and taxes of a line from its category
func (r *records) applyCategory(ctx context.Context, e *entity.Expense, in ExpenseInput) error {
	if in.CategoryID == nil {
		return nil
	}
	category, err := r.Catalog.GetCategory(ctx, *in.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}
	if category == nil {
		return expense.NotFoundf("Category %d not found.", *in.CategoryID)
	}
	if category.CompanyID != e.CompanyID {
		return expense.Validationf("The category %s belongs to another company.", category.Name)
	}
	if in.AccountID == nil {
		e.AccountID = &category.ExpenseAccountID
	}
	if in.TaxIDs == nil {
		e.TaxIDs = append([]int64(nil), category.TaxIDs...)
	}
	return nil
}

// Create records a new unreported expense
func (s *expenseServiceImpl) Create(ctx context.Context, actor *entity.User, in ExpenseInput) (*entity.Expense, error) {
	if in.touchesVerification() {
		if err := checkVerifier(actor, nil); err != nil {
			return nil, err
		}
	}
	employee, err := s.resolveEmployee(ctx, actor, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	company, err := s.company(ctx, employee.CompanyID)
	if err != nil {
		return nil, err
	}

	e := &entity.Expense{
		CompanyID:          company.ID,
		EmployeeID:         employee.ID,
		Currency:           company.Currency,
		PaymentMode:        entity.PaymentModeOwnAccount,
		PaymentAccountMode: entity.PaymentAccountManagerArea,
		TaxIDs:             []int64{},
		State:              entity.ExpenseStateDraft,
	}
	in.apply(e)
	if err := s.applyCategory(ctx, e, in); err != nil {
		return nil, err
	}
	expense.ApplyTravelTotal(e)
	e.VerifiedTotal = expense.VerifiedTotal(e)
	if err := expense.ValidateExpense(e, false); err != nil {
		return nil, err
	}

	if err := s.Expenses.Create(ctx, e); err != nil {
		s.logger.Error("Failed to create expense", "error", err, "employee_id", employee.ID)
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	s.logger.Info("Expense created", "id", e.ID, "employee_id", employee.ID, "total", e.TotalAmount.String())
	return e, nil
}

// Get returns a single expense
func (s *expenseServiceImpl) Get(ctx context.Context, actor *entity.User, id int64) (*entity.Expense, error) {
	return s.loadExpense(ctx, actor, id)
}

// List returns the expenses visible to the caller
func (s *expenseServiceImpl) List(ctx context.Context, actor *entity.User, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	if !privileged(actor) {
		employee, err := s.actorEmployee(ctx, actor)
		if err != nil {
			return []*entity.Expense{}, nil
		}
		filter.EmployeeID = &employee.ID
	}

	expenses, err := s.Expenses.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list expenses", "error", err)
		return nil, err
	}
	return expenses, nil
}

// checkEditable enforces what may change on a line given its report state.
// Verification fields stay editable while the report is in draft or submitted.
func checkEditable(e *entity.Expense, sheet *entity.ExpenseSheet, contentChange bool) error {
	if sheet == nil || sheet.State == entity.SheetStateDraft {
		return nil
	}
	if sheet.State == entity.SheetStateSubmit {
		if contentChange {
			return expense.Userf("You cannot modify the expense %q once its report is submitted; only the verification can change.", e.Name)
		}
		return nil
	}
	return expense.Userf("You cannot modify the expense %q once its report is approved.", e.Name)
}

// Update changes an expense and recomputes its report
func (s *expenseServiceImpl) Update(ctx context.Context, actor *entity.User, id int64, in ExpenseInput) (*entity.Expense, error) {
	var e *entity.Expense
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if e, err = s.loadExpense(txCtx, actor, id); err != nil {
			return err
		}
		sheet, err := s.parentSheet(txCtx, e)
		if err != nil {
			return err
		}
		if err := checkEditable(e, sheet, in.touchesContent()); err != nil {
			return err
		}
		if in.touchesVerification() {
			if err := checkVerifier(actor, sheet); err != nil {
				return err
			}
		}
		if in.EmployeeID != nil && *in.EmployeeID != e.EmployeeID {
			return expense.Userf("The employee of an expense cannot be changed.")
		}

		in.apply(e)
		if err := s.applyCategory(txCtx, e, in); err != nil {
			return err
		}
		expense.ApplyTravelTotal(e)
		e.VerifiedTotal = expense.VerifiedTotal(e)
		if err := expense.ValidateExpense(e, sheet != nil && sheet.IsLiquidation); err != nil {
			return err
		}

		if err := s.Expenses.Update(txCtx, e); err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if sheet != nil {
			return s.refresh(txCtx, sheet)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update expense", "error", err, "id", id)
		return nil, err
	}
	return e, nil
}

// Delete removes an expense that is unreported or on a draft report
func (s *expenseServiceImpl) Delete(ctx context.Context, actor *entity.User, id int64) error {
	var proof string
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.loadExpense(txCtx, actor, id)
		if err != nil {
			return err
		}
		sheet, err := s.parentSheet(txCtx, e)
		if err != nil {
			return err
		}
		if sheet != nil && sheet.State != entity.SheetStateDraft {
			return expense.Userf("You cannot delete a reported expense once its report is submitted.")
		}

		if err := s.Expenses.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		proof = e.ProofPath
		if sheet != nil {
			return s.refresh(txCtx, sheet)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete expense", "error", err, "id", id)
		return err
	}

	if proof != "" {
		if err := s.storage.Delete(ctx, proof); err != nil {
			s.logger.Error("Failed to delete proof", "error", err, "path", proof)
		}
	}
	s.logger.Info("Expense deleted", "id", id)
	return nil
}

// UploadProof stores the supporting document of an expense, replacing any previous one
func (s *expenseServiceImpl) UploadProof(ctx context.Context, actor *entity.User, id int64, filename string, content []byte) (*entity.Expense, error) {
	mimeType, ext, err := s.inspector.Detect(content)
	if err != nil {
		return nil, expense.Validationf(allowedFormatsMessage)
	}
	if mimeType == "application/pdf" {
		pages, err := s.inspector.PageCount(content)
		if err != nil {
			return nil, expense.Validationf("The PDF file %s could not be opened.", filename)
		}
		if pages == 0 {
			return nil, expense.Validationf("The PDF file %s has no pages.", filename)
		}
	}

	var (
		e        *entity.Expense
		previous string
		path     = fmt.Sprintf("proofs/%d/%s%s", id, uuid.New().String(), ext)
	)
	err = s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if e, err = s.loadExpense(txCtx, actor, id); err != nil {
			return err
		}
		sheet, err := s.parentSheet(txCtx, e)
		if err != nil {
			return err
		}
		if err := checkEditable(e, sheet, false); err != nil {
			return err
		}

		if err := s.storage.Save(txCtx, path, content); err != nil {
			return fmt.Errorf("failed to store proof: %w", err)
		}
		previous = e.ProofPath
		e.ProofPath = path
		e.ProofFilename = filename
		e.ProofMime = mimeType
		if err := s.Expenses.Update(txCtx, e); err != nil {
			_ = s.storage.Delete(txCtx, path)
			return fmt.Errorf("failed to update expense: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to upload proof", "error", err, "id", id)
		return nil, err
	}

	if previous != "" {
		if err := s.storage.Delete(ctx, previous); err != nil {
			s.logger.Error("Failed to delete previous proof", "error", err, "path", previous)
		}
	}
	s.logger.Info("Proof uploaded", "id", id, "mime", mimeType, "size", len(content))
	return e, nil
}

// ReadProof returns the supporting document of an expense
func (s *expenseServiceImpl) ReadProof(ctx context.Context, actor *entity.User, id int64) (*Proof, error) {
	e, err := s.loadExpense(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !e.HasProof() {
		return nil, expense.NotFoundf("The expense %q has no supporting document.", e.Name)
	}
	content, err := s.storage.Read(ctx, e.ProofPath)
	if err != nil {
		s.logger.Error("Failed to read proof", "error", err, "id", id, "path", e.ProofPath)
		return nil, fmt.Errorf("failed to read proof: %w", err)
	}
	return &Proof{Filename: e.ProofFilename, MimeType: e.ProofMime, Content: content}, nil
}

// ExtractReceipt asks the receipt extractor for suggested values. The expense is never modified.
func (s *expenseServiceImpl) ExtractReceipt(ctx context.Context, actor *entity.User, id int64) (*port.ReceiptSuggestion, error) {
	if s.extractor == nil {
		return nil, ErrExtractionUnavailable
	}
	proof, err := s.ReadProof(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	image, mimeType := proof.Content, proof.MimeType
	if mimeType == "application/pdf" {
		if image, err = s.inspector.FirstPageJPEG(proof.Content); err != nil {
			s.logger.Error("Failed to render proof", "error", err, "id", id)
			return nil, fmt.Errorf("failed to render proof: %w", err)
		}
		mimeType = "image/jpeg"
	}

	suggestion, err := s.extractor.Extract(ctx, image, mimeType)
	if err != nil {
		s.logger.Error("Failed to extract receipt", "error", err, "id", id)
		return nil, fmt.Errorf("failed to extract receipt: %w", err)
	}

	s.logger.Info("Receipt extracted", "id", id, "confidence", suggestion.Confidence)
	return suggestion, nil
}

var defaultReportNames = map[string]string{
	entity.PaymentModeOwnAccount:     "New Expense Report, paid by employee",
	entity.PaymentModeCompanyAccount: "New Expense Report, paid by company",
}

// ReportExpenses groups unreported expenses into new draft reports, one per payment mode.
// Lines without an amount are skipped.
func (s *expenseServiceImpl) ReportExpenses(ctx context.Context, actor *entity.User, expenseIDs []int64, name string) ([]*entity.ExpenseSheet, error) {
	var sheets []*entity.ExpenseSheet
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		sheets = nil
		if err := distinctIDs(expenseIDs, "expense"); err != nil {
			return err
		}

		var lines []*entity.Expense
		for _, id := range expenseIDs {
			e, err := s.loadExpense(txCtx, actor, id)
			if err != nil {
				return err
			}
			lines = append(lines, e)
		}
		for _, e := range lines {
			if e.IsReported() || e.State != entity.ExpenseStateDraft {
				return expense.Userf("You cannot report twice the same line!")
			}
		}

		var kept []*entity.Expense
		for _, e := range lines {
			if !e.TotalAmount.IsZero() {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			return expense.Userf("You cannot report the expenses without amount!")
		}
		for _, e := range kept {
			if e.CategoryID == nil {
				return expense.Userf("You can not create report without category.")
			}
		}
		if err := expense.CheckSameCompany(kept[0].CompanyID, kept); err != nil {
			return err
		}
		for _, e := range kept {
			if e.EmployeeID != kept[0].EmployeeID {
				return expense.Userf("You cannot report expenses for different employees in the same report.")
			}
		}
		if err := expense.CheckPaymentAccountModes(kept); err != nil {
			return err
		}

		employee, err := s.employee(txCtx, kept[0].EmployeeID)
		if err != nil {
			return err
		}
		for _, mode := range []string{entity.PaymentModeOwnAccount, entity.PaymentModeCompanyAccount} {
			var group []int64
			var first *entity.Expense
			for _, e := range kept {
				if e.PaymentMode == mode {
					if first == nil {
						first = e
					}
					group = append(group, e.ID)
				}
			}
			if first == nil {
				continue
			}

			sheetName := name
			if sheetName == "" {
				sheetName = defaultReportNames[mode]
			}
			sheet := &entity.ExpenseSheet{
				Name:          sheetName,
				CompanyID:     first.CompanyID,
				EmployeeID:    employee.ID,
				Department:    employee.Department,
				AreaManagerID: first.AreaManagerID,
				ProviderID:    first.VendorID,
				CreatedByID:   &actor.ID,
				PaymentMode:   mode,
				ApprovalState: entity.ApprovalNone,
				State:         entity.SheetStateDraft,
				PaymentState:  entity.PaymentStateNotPaid,
			}
			if err := s.Sheets.Create(txCtx, sheet); err != nil {
				return fmt.Errorf("failed to create expense report: %w", err)
			}
			if err := s.Expenses.SetSheet(txCtx, group, &sheet.ID); err != nil {
				return fmt.Errorf("failed to attach expenses: %w", err)
			}
			if err := s.refresh(txCtx, sheet); err != nil {
				return err
			}
			sheets = append(sheets, sheet)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to report expenses", "error", err, "expense_ids", expenseIDs)
		return nil, err
	}

	events := make([]*event.Event, 0, len(sheets))
	for _, sheet := range sheets {
		events = append(events, sheetEvent(event.TypeExpensesReported, sheet, actor, nil))
	}
	s.publish(ctx, s.publisher, events)

	s.logger.Info("Expenses reported", "expense_ids", expenseIDs, "sheets", len(sheets))
	return sheets, nil
}
