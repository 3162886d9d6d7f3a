package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
)

const (
	sheetName  = "Settlement"
	dateLayout = "2006-01-02"

	// Travel header occupies rows 3-11, the line table starts at row 13
	headerRowStart = 3
	tableHeaderRow = 13
	dataRowStart   = 14
)

// Column letters of the line table
const (
	colSequence    = "A"
	colDescription = "B"
	colDate        = "C"
	colAmount      = "D"
	colRealExpense = "E"
	colChecked     = "F"
	colVerified    = "G"
)

var tableHeaders = []struct {
	col   string
	title string
}{
	{colSequence, "#"},
	{colDescription, "Description"},
	{colDate, "Date"},
	{colAmount, "Amount"},
	{colRealExpense, "Real Expense"},
	{colChecked, "Checked"},
	{colVerified, "Verified Total"},
}

// LiquidationRenderer writes settlement reports as XLSX workbooks
type LiquidationRenderer struct {
	logger *zap.Logger
}

// NewLiquidationRenderer creates a new LiquidationRenderer
func NewLiquidationRenderer(logger *zap.Logger) *LiquidationRenderer {
	return &LiquidationRenderer{logger: logger}
}

// RenderLiquidation builds the workbook and returns its bytes
func (r *LiquidationRenderer) RenderLiquidation(doc *port.LiquidationDocument) ([]byte, error) {
	if doc == nil || doc.Sheet == nil {
		return nil, fmt.Errorf("liquidation document has no expense report")
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	money, err := file.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := r.fillTitle(file, doc, bold); err != nil {
		return nil, fmt.Errorf("failed to fill title: %w", err)
	}
	if err := r.fillHeaderSection(file, doc, bold); err != nil {
		return nil, fmt.Errorf("failed to fill header: %w", err)
	}
	last, err := r.fillLineRows(file, doc.Sheet.Lines, bold, money)
	if err != nil {
		return nil, fmt.Errorf("failed to fill lines: %w", err)
	}
	if err := r.fillTotals(file, doc.Sheet, last+2, bold, money); err != nil {
		return nil, fmt.Errorf("failed to fill totals: %w", err)
	}

	if err := file.SetColWidth(sheetName, colDescription, colDescription, 40); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := file.SetColWidth(sheetName, colDate, colVerified, 15); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Info("Liquidation report rendered",
		zap.Int64("sheet_id", doc.Sheet.ID),
		zap.Int("line_count", len(doc.Sheet.Lines)))

	return buf.Bytes(), nil
}

// fillTitle fills rows 1-2 with the report title and company
func (r *LiquidationRenderer) fillTitle(file *excelize.File, doc *port.LiquidationDocument, bold int) error {
	if err := file.SetCellValue(sheetName, "A1", "SETTLEMENT REPORT "+doc.Sheet.Name); err != nil {
		return err
	}
	if err := file.MergeCell(sheetName, "A1", colVerified+"1"); err != nil {
		return err
	}
	if err := file.SetCellStyle(sheetName, "A1", "A1", bold); err != nil {
		return err
	}
	if doc.Company != nil {
		return file.SetCellValue(sheetName, "A2", doc.Company.Name)
	}
	return nil
}

// fillHeaderSection writes the travel request as label/value pairs
func (r *LiquidationRenderer) fillHeaderSection(file *excelize.File, doc *port.LiquidationDocument, bold int) error {
	sheet := doc.Sheet
	employee := ""
	if doc.Employee != nil {
		employee = doc.Employee.Name
	}
	days := ""
	if sheet.NumberDays > 0 {
		days = fmt.Sprint(sheet.NumberDays)
	}
	notes := ""
	if doc.Report != nil {
		notes = doc.Report.Notes
	}

	rows := [][2]string{
		{"Employee", employee},
		{"Department", sheet.Department},
		{"Destination", sheet.Destination},
		{"Justification", sheet.Justification},
		{"Date Since", formatDate(sheet.DateSince)},
		{"Date Up", formatDate(sheet.DateUp)},
		{"Number of Days", days},
		{"Ticket Type", sheet.TicketType},
		{"Notes", notes},
	}

	for i, row := range rows {
		n := headerRowStart + i
		label := fmt.Sprintf("A%d", n)
		if err := file.SetCellValue(sheetName, label, row[0]); err != nil {
			return fmt.Errorf("failed to set %s: %w", row[0], err)
		}
		if err := file.SetCellStyle(sheetName, label, label, bold); err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, fmt.Sprintf("B%d", n), row[1]); err != nil {
			return fmt.Errorf("failed to set %s: %w", row[0], err)
		}
	}
	return nil
}

// fillLineRows writes the line table and returns the last row used
func (r *LiquidationRenderer) fillLineRows(file *excelize.File, lines []*entity.Expense, bold, money int) (int, error) {
	for _, h := range tableHeaders {
		cell := fmt.Sprintf("%s%d", h.col, tableHeaderRow)
		if err := file.SetCellValue(sheetName, cell, h.title); err != nil {
			return 0, err
		}
	}
	if err := file.SetCellStyle(sheetName, colSequence+fmt.Sprint(tableHeaderRow), colVerified+fmt.Sprint(tableHeaderRow), bold); err != nil {
		return 0, err
	}

	row := tableHeaderRow
	for i, line := range lines {
		row = dataRowStart + i
		checked := "No"
		if line.Checked {
			checked = "Yes"
		}
		values := []struct {
			col   string
			value interface{}
		}{
			{colSequence, i + 1},
			{colDescription, line.Name},
			{colDate, formatDate(line.Date)},
			{colAmount, amount(line.TotalAmount)},
			{colRealExpense, amount(line.RealExpense)},
			{colChecked, checked},
			{colVerified, amount(line.VerifiedTotal)},
		}
		for _, v := range values {
			cell := fmt.Sprintf("%s%d", v.col, row)
			if err := file.SetCellValue(sheetName, cell, v.value); err != nil {
				return 0, fmt.Errorf("failed to set %s at row %d: %w", v.col, row, err)
			}
		}
		if err := file.SetCellStyle(sheetName, fmt.Sprintf("%s%d", colAmount, row), fmt.Sprintf("%s%d", colRealExpense, row), money); err != nil {
			return 0, err
		}
		if err := file.SetCellStyle(sheetName, fmt.Sprintf("%s%d", colVerified, row), fmt.Sprintf("%s%d", colVerified, row), money); err != nil {
			return 0, err
		}
	}
	return row, nil
}

// fillTotals writes the total, verified and refund block starting at row
func (r *LiquidationRenderer) fillTotals(file *excelize.File, sheet *entity.ExpenseSheet, row int, bold, money int) error {
	totals := []struct {
		label string
		value decimal.Decimal
	}{
		{"Total", sheet.TotalAmount},
		{"Total Verified", sheet.TotalVerified},
		{"Refund", sheet.Refund},
	}
	for i, t := range totals {
		label := fmt.Sprintf("%s%d", colChecked, row+i)
		value := fmt.Sprintf("%s%d", colVerified, row+i)
		if err := file.SetCellValue(sheetName, label, t.label); err != nil {
			return err
		}
		if err := file.SetCellStyle(sheetName, label, label, bold); err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, value, amount(t.value)); err != nil {
			return err
		}
		if err := file.SetCellStyle(sheetName, value, value, money); err != nil {
			return err
		}
	}
	return nil
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
