package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/application/service"
	"github.com/garyjia/travel-expense/internal/domain/entity"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sheetRequest is the JSON form of an expense report. Omitted fields are left unchanged.
type sheetRequest struct {
	Name           *string `json:"name"`
	EmployeeID     *int64  `json:"employee_id"`
	AreaManagerID  *int64  `json:"area_manager_id"`
	ProviderID     *int64  `json:"provider_id"`
	JournalID      *int64  `json:"journal_id"`
	AccountingDate *Date   `json:"accounting_date"`

	Destination   *string `json:"destination"`
	Justification *string `json:"justification"`
	Overnight     *bool   `json:"overnight"`
	DateSince     *Date   `json:"date_since"`
	DateUp        *Date   `json:"date_up"`
	TicketType    *string `json:"ticket_type"`
	FlightDate    *Date   `json:"flight_date"`
	Airline       *string `json:"airline"`
	Route         *string `json:"route"`
	Flight        *string `json:"flight"`

	ExpenseIDs []int64 `json:"expense_ids"`
}

func (r sheetRequest) toInput() service.SheetInput {
	return service.SheetInput{
		Name:           r.Name,
		EmployeeID:     r.EmployeeID,
		AreaManagerID:  r.AreaManagerID,
		ProviderID:     r.ProviderID,
		JournalID:      r.JournalID,
		AccountingDate: r.AccountingDate.timePtr(),
		Destination:    r.Destination,
		Justification:  r.Justification,
		Overnight:      r.Overnight,
		DateSince:      r.DateSince.timePtr(),
		DateUp:         r.DateUp.timePtr(),
		TicketType:     r.TicketType,
		FlightDate:     r.FlightDate.timePtr(),
		Airline:        r.Airline,
		Route:          r.Route,
		Flight:         r.Flight,
		ExpenseIDs:     r.ExpenseIDs,
	}
}

// listSheetsRequest represents query parameters for listing expense reports
type listSheetsRequest struct {
	EmployeeID    *int64 `form:"employee_id"`
	State         string `form:"state"`
	IsLiquidation *bool  `form:"is_liquidation"`
	Limit         int    `form:"limit"`
	Offset        int    `form:"offset"`
}

type linesRequest struct {
	ExpenseIDs []int64 `json:"expense_ids" binding:"required,min=1,unique"`
}

type approveRequest struct {
	IDs   []int64 `json:"ids" binding:"required,min=1,unique"`
	Force bool    `json:"force"`
}

type refuseRequest struct {
	IDs    []int64 `json:"ids" binding:"required,min=1,unique"`
	Reason string  `json:"reason"`
}

type paymentRequest struct {
	IDs       []int64          `json:"ids" binding:"required,min=1,unique"`
	JournalID int64            `json:"journal_id" binding:"required"`
	Amount    *decimal.Decimal `json:"amount"`
	Date      *Date            `json:"date"`
}

type liquidationReportRequest struct {
	Notes string `json:"notes"`
}

// CreateSheet handles POST /api/sheets
func (h *Handlers) CreateSheet(c *gin.Context) {
	var req sheetRequest
	if !bindJSON(c, &req) {
		return
	}
	sheet, err := h.services.Sheet.Create(c.Request.Context(), actor(c), req.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	created(c, sheet)
}

// ListSheets handles GET /api/sheets
func (h *Handlers) ListSheets(c *gin.Context) {
	var req listSheetsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		badRequest(c, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	sheets, err := h.services.Sheet.List(c.Request.Context(), actor(c), entity.SheetFilter{
		EmployeeID:    req.EmployeeID,
		State:         req.State,
		IsLiquidation: req.IsLiquidation,
		Limit:         req.Limit,
		Offset:        req.Offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, sheets)
}

// GetSheet handles GET /api/sheets/:id
func (h *Handlers) GetSheet(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	sheet, err := h.services.Sheet.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, sheet)
}

// UpdateSheet handles PATCH /api/sheets/:id
func (h *Handlers) UpdateSheet(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req sheetRequest
	if !bindJSON(c, &req) {
		return
	}
	sheet, err := h.services.Sheet.Update(c.Request.Context(), actor(c), id, req.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, sheet)
}

// DeleteSheet handles DELETE /api/sheets/:id
func (h *Handlers) DeleteSheet(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.services.Sheet.Delete(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, gin.H{"id": id})
}

// AddLines handles POST /api/sheets/:id/lines
func (h *Handlers) AddLines(c *gin.Context) {
	h.changeLines(c, h.services.Sheet.AddLines)
}

// RemoveLines handles DELETE /api/sheets/:id/lines
func (h *Handlers) RemoveLines(c *gin.Context) {
	h.changeLines(c, h.services.Sheet.RemoveLines)
}

func (h *Handlers) changeLines(c *gin.Context, fn func(ctx context.Context, actor *entity.User, id int64, expenseIDs []int64) (*entity.ExpenseSheet, error)) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req linesRequest
	if !bindJSON(c, &req) {
		return
	}
	sheet, err := fn(c.Request.Context(), actor(c), id, req.ExpenseIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, sheet)
}

// ListMessages handles GET /api/sheets/:id/messages
func (h *Handlers) ListMessages(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	messages, err := h.services.Sheet.Messages(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, messages)
}

// ListActivities handles GET /api/sheets/:id/activities
func (h *Handlers) ListActivities(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	activities, err := h.services.Sheet.Activities(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, activities)
}

// ListMoves handles GET /api/sheets/:id/moves
func (h *Handlers) ListMoves(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	moves, err := h.services.Sheet.Moves(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, moves)
}

type batchAction func(ctx context.Context, actor *entity.User, ids []int64) ([]*entity.ExpenseSheet, error)

func (h *Handlers) runBatch(c *gin.Context, fn batchAction) {
	var req idsRequest
	if !bindJSON(c, &req) {
		return
	}
	sheets, err := fn(c.Request.Context(), actor(c), req.IDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, sheets)
}

// SubmitSheets handles POST /api/sheets/submit
func (h *Handlers) SubmitSheets(c *gin.Context) {
	h.runBatch(c, h.services.Approval.Submit)
}

// ApproveSheets handles POST /api/sheets/approve
func (h *Handlers) ApproveSheets(c *gin.Context) {
	var req approveRequest
	if !bindJSON(c, &req) {
		return
	}
	sheets, err := h.services.Approval.Approve(c.Request.Context(), actor(c), req.IDs, req.Force)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, sheets)
}

// RefuseSheets handles POST /api/sheets/refuse
func (h *Handlers) RefuseSheets(c *gin.Context) {
	var req refuseRequest
	if !bindJSON(c, &req) {
		return
	}
	sheets, err := h.services.Approval.Refuse(c.Request.Context(), actor(c), req.IDs, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, sheets)
}

// ResetSheets handles POST /api/sheets/reset
func (h *Handlers) ResetSheets(c *gin.Context) {
	h.runBatch(c, h.services.Approval.Reset)
}

// CreateMoves handles POST /api/sheets/create-moves
func (h *Handlers) CreateMoves(c *gin.Context) {
	h.runBatch(c, h.services.Accounting.CreateMoves)
}

// PostSheets handles POST /api/sheets/post
func (h *Handlers) PostSheets(c *gin.Context) {
	h.runBatch(c, h.services.Accounting.Post)
}

// SettleAdvances handles POST /api/sheets/settle
func (h *Handlers) SettleAdvances(c *gin.Context) {
	h.runBatch(c, h.services.Settlement.SettleAdvance)
}

// RegisterPayment handles POST /api/sheets/register-payment
func (h *Handlers) RegisterPayment(c *gin.Context) {
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payments, err := h.services.Accounting.RegisterPayment(c.Request.Context(), actor(c), service.PaymentRequest{
		SheetIDs:  req.IDs,
		JournalID: req.JournalID,
		Amount:    req.Amount,
		Date:      req.Date.timePtr(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	created(c, payments)
}

// CreateLiquidationReport handles POST /api/sheets/:id/liquidation-report
func (h *Handlers) CreateLiquidationReport(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req liquidationReportRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	report, err := h.services.Report.Create(c.Request.Context(), actor(c), id, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	created(c, report)
}

// GetLiquidationReport handles GET /api/sheets/:id/liquidation-report
func (h *Handlers) GetLiquidationReport(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	report, err := h.services.Report.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, report)
}

// ExportLiquidationReport handles GET /api/sheets/:id/liquidation-report/xlsx
func (h *Handlers) ExportLiquidationReport(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	content, filename, err := h.services.Report.Export(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxMimeType, content)
}
