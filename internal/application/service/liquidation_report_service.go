package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

const duplicateReportMessage = "A settlement report already exists for this expense report."

// LiquidationReportService manages the settlement reports of liquidation sheets
type LiquidationReportService interface {
	Create(ctx context.Context, actor *entity.User, sheetID int64, notes string) (*entity.LiquidationReport, error)
	Get(ctx context.Context, actor *entity.User, sheetID int64) (*entity.LiquidationReport, error)
	Export(ctx context.Context, actor *entity.User, sheetID int64) (content []byte, filename string, err error)
}

type liquidationReportServiceImpl struct {
	records
	renderer port.ReportRenderer
	logger   Logger
}

// NewLiquidationReportService creates a new LiquidationReportService
func NewLiquidationReportService(stores Stores, renderer port.ReportRenderer, clock Clock, logger Logger) LiquidationReportService {
	return &liquidationReportServiceImpl{
		records:  newRecords(stores, clock),
		renderer: renderer,
		logger:   logger,
	}
}

// Create opens the settlement report of a liquidation sheet
func (s *liquidationReportServiceImpl) Create(ctx context.Context, actor *entity.User, sheetID int64, notes string) (*entity.LiquidationReport, error) {
	sheet, err := s.loadSheet(ctx, actor, sheetID)
	if err != nil {
		return nil, err
	}
	if !sheet.IsLiquidation {
		return nil, expense.Userf("The expense report %q is not a settlement.", sheet.Name)
	}

	existing, err := s.Reports.GetBySheetID(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing report: %w", err)
	}
	if existing != nil {
		return nil, expense.Userf(duplicateReportMessage)
	}

	report := &entity.LiquidationReport{SheetID: sheetID, Notes: notes, CreatedBy: &actor.ID}
	if err := s.Reports.Create(ctx, report); err != nil {
		if errors.Is(err, port.ErrConflict) {
			return nil, expense.Userf(duplicateReportMessage)
		}
		s.logger.Error("Failed to create liquidation report", "error", err, "sheet_id", sheetID)
		return nil, err
	}

	s.logger.Info("Liquidation report created", "id", report.ID, "sheet_id", sheetID)
	return report, nil
}

// Get returns the settlement report of a sheet
func (s *liquidationReportServiceImpl) Get(ctx context.Context, actor *entity.User, sheetID int64) (*entity.LiquidationReport, error) {
	if _, err := s.loadSheet(ctx, actor, sheetID); err != nil {
		return nil, err
	}
	report, err := s.Reports.GetBySheetID(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liquidation report: %w", err)
	}
	if report == nil {
		return nil, expense.NotFoundf("The expense report %d has no settlement report.", sheetID)
	}
	return report, nil
}

// Export renders the settlement report as an XLSX workbook
func (s *liquidationReportServiceImpl) Export(ctx context.Context, actor *entity.User, sheetID int64) ([]byte, string, error) {
	report, err := s.Get(ctx, actor, sheetID)
	if err != nil {
		return nil, "", err
	}
	sheet, err := s.Sheets.GetByID(ctx, sheetID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load expense report: %w", err)
	}
	if sheet.Lines, err = s.Expenses.ListBySheet(ctx, sheetID); err != nil {
		return nil, "", fmt.Errorf("failed to load expense lines: %w", err)
	}
	employee, err := s.employee(ctx, sheet.EmployeeID)
	if err != nil {
		return nil, "", err
	}
	company, err := s.company(ctx, sheet.CompanyID)
	if err != nil {
		return nil, "", err
	}

	content, err := s.renderer.RenderLiquidation(&port.LiquidationDocument{
		Report:   report,
		Sheet:    sheet,
		Employee: employee,
		Company:  company,
	})
	if err != nil {
		s.logger.Error("Failed to render liquidation report", "error", err, "sheet_id", sheetID)
		return nil, "", fmt.Errorf("failed to render liquidation report: %w", err)
	}

	filename := strings.ReplaceAll(sheet.Name, "/", "-") + ".xlsx"
	return content, filename, nil
}
