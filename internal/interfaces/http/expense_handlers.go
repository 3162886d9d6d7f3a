package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/application/service"
	"github.com/garyjia/travel-expense/internal/domain/entity"
)

// expenseRequest is the JSON form of an expense line. Omitted fields are left unchanged.
type expenseRequest struct {
	EmployeeID           *int64                     `json:"employee_id"`
	Name                 *string                    `json:"name"`
	Description          *string                    `json:"description"`
	Date                 *Date                      `json:"date"`
	CategoryID           *int64                     `json:"category_id"`
	AccountID            *int64                     `json:"account_id"`
	TaxIDs               []int64                    `json:"tax_ids"`
	TotalAmount          *decimal.Decimal           `json:"total_amount"`
	Currency             *string                    `json:"currency"`
	PaymentMode          *string                    `json:"payment_mode"`
	PaymentAccountMode   *string                    `json:"payment_account_mode"`
	AreaManagerID        *int64                     `json:"area_manager_id"`
	VendorID             *int64                     `json:"vendor_id"`
	AnalyticDistribution map[string]decimal.Decimal `json:"analytic_distribution"`

	TravelDestination *string          `json:"travel_destination"`
	TripJustification *string          `json:"trip_justification"`
	ExpenseAmount     *decimal.Decimal `json:"expense_amount"`
	TicketAmount      *decimal.Decimal `json:"ticket_amount"`
	TransportType     *string          `json:"transport_type"`
	TravelDate        *Date            `json:"travel_date"`
	DurationDays      *int             `json:"duration_days"`

	RealExpense *decimal.Decimal `json:"real_expense"`
	Checked     *bool            `json:"checked"`
}

func (r expenseRequest) toInput() service.ExpenseInput {
	return service.ExpenseInput{
		EmployeeID:           r.EmployeeID,
		Name:                 r.Name,
		Description:          r.Description,
		Date:                 r.Date.timePtr(),
		CategoryID:           r.CategoryID,
		AccountID:            r.AccountID,
		TaxIDs:               r.TaxIDs,
		TotalAmount:          r.TotalAmount,
		Currency:             r.Currency,
		PaymentMode:          r.PaymentMode,
		PaymentAccountMode:   r.PaymentAccountMode,
		AreaManagerID:        r.AreaManagerID,
		VendorID:             r.VendorID,
		AnalyticDistribution: r.AnalyticDistribution,
		TravelDestination:    r.TravelDestination,
		TripJustification:    r.TripJustification,
		ExpenseAmount:        r.ExpenseAmount,
		TicketAmount:         r.TicketAmount,
		TransportType:        r.TransportType,
		TravelDate:           r.TravelDate.timePtr(),
		DurationDays:         r.DurationDays,
		RealExpense:          r.RealExpense,
		Checked:              r.Checked,
	}
}

// listExpensesRequest represents query parameters for listing expenses
type listExpensesRequest struct {
	EmployeeID *int64 `form:"employee_id"`
	SheetID    *int64 `form:"sheet_id"`
	State      string `form:"state"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// reportExpensesRequest groups unreported expenses into new reports
type reportExpensesRequest struct {
	ExpenseIDs []int64 `json:"expense_ids" binding:"required,min=1,unique"`
	Name       string  `json:"name"`
}

// CreateExpense handles POST /api/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req expenseRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.services.Expense.Create(c.Request.Context(), actor(c), req.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	created(c, e)
}

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	var req listExpensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		badRequest(c, "invalid query parameters")
		return
	}

	// Set defaults
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	expenses, err := h.services.Expense.List(c.Request.Context(), actor(c), entity.ExpenseFilter{
		EmployeeID: req.EmployeeID,
		SheetID:    req.SheetID,
		State:      req.State,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, expenses)
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	e, err := h.services.Expense.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, e)
}

// UpdateExpense handles PATCH /api/expenses/:id
func (h *Handlers) UpdateExpense(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req expenseRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.services.Expense.Update(c.Request.Context(), actor(c), id, req.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, e)
}

// DeleteExpense handles DELETE /api/expenses/:id
func (h *Handlers) DeleteExpense(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.services.Expense.Delete(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"id": id})
}

// UploadProof handles POST /api/expenses/:id/proof (multipart field "file")
func (h *Handlers) UploadProof(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if h.maxUploadSize > 0 && fh.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   fmt.Sprintf("file exceeds %d bytes", h.maxUploadSize),
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		h.respondError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	e, err := h.services.Expense.UploadProof(c.Request.Context(), actor(c), id, fh.Filename, content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, e)
}

// DownloadProof handles GET /api/expenses/:id/proof
func (h *Handlers) DownloadProof(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	proof, err := h.services.Expense.ReadProof(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", proof.Filename))
	c.Data(http.StatusOK, proof.MimeType, proof.Content)
}

// ExtractReceipt handles POST /api/expenses/:id/extract
func (h *Handlers) ExtractReceipt(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	suggestion, err := h.services.Expense.ExtractReceipt(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, suggestion)
}

// ReportExpenses handles POST /api/expenses/report
func (h *Handlers) ReportExpenses(c *gin.Context) {
	var req reportExpensesRequest
	if !bindJSON(c, &req) {
		return
	}
	sheets, err := h.services.Expense.ReportExpenses(c.Request.Context(), actor(c), req.ExpenseIDs, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	created(c, sheets)
}
