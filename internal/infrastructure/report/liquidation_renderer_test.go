package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
)

func TestLiquidationRenderer_RenderLiquidation(t *testing.T) {
	since := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	up := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	doc := &port.LiquidationDocument{
		Report:   &entity.LiquidationReport{ID: 1, SheetID: 9, Notes: "Receipts attached"},
		Company:  &entity.Company{Name: "Andes Travel"},
		Employee: &entity.Employee{Name: "Rosa Quispe"},
		Sheet: &entity.ExpenseSheet{
			ID:            9,
			Name:          "SETTLEMENT ADV-001",
			Department:    "Sales",
			Destination:   "Cusco",
			Justification: "Client visit",
			DateSince:     &since,
			DateUp:        &up,
			NumberDays:    3,
			TicketType:    entity.TicketAir,
			TotalAmount:   decimal.RequireFromString("500"),
			TotalVerified: decimal.RequireFromString("420.50"),
			Refund:        decimal.RequireFromString("79.50"),
			Lines: []*entity.Expense{
				{
					Name:          "Hotel",
					Date:          &day,
					TotalAmount:   decimal.RequireFromString("300"),
					RealExpense:   decimal.RequireFromString("280.50"),
					Checked:       true,
					VerifiedTotal: decimal.RequireFromString("280.50"),
				},
				{
					Name:          "Taxi",
					TotalAmount:   decimal.RequireFromString("200"),
					RealExpense:   decimal.RequireFromString("140"),
					VerifiedTotal: decimal.RequireFromString("140"),
				},
			},
		},
	}

	content, err := NewLiquidationRenderer(zap.NewNop()).RenderLiquidation(doc)
	require.NoError(t, err)
	require.NotEmpty(t, content)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	cell := func(axis string) string {
		v, err := f.GetCellValue(sheetName, axis)
		require.NoError(t, err)
		return v
	}

	t.Run("title and header", func(t *testing.T) {
		assert.Equal(t, "SETTLEMENT REPORT SETTLEMENT ADV-001", cell("A1"))
		assert.Equal(t, "Andes Travel", cell("A2"))
		assert.Equal(t, "Employee", cell("A3"))
		assert.Equal(t, "Rosa Quispe", cell("B3"))
		assert.Equal(t, "Cusco", cell("B5"))
		assert.Equal(t, "2024-03-04", cell("B7"))
		assert.Equal(t, "2024-03-06", cell("B8"))
		assert.Equal(t, "3", cell("B9"))
		assert.Equal(t, "Receipts attached", cell("B11"))
	})

	t.Run("line table", func(t *testing.T) {
		assert.Equal(t, "Real Expense", cell("E13"))
		assert.Equal(t, "Hotel", cell("B14"))
		assert.Equal(t, "2024-03-05", cell("C14"))
		assert.Equal(t, "Yes", cell("F14"))
		assert.Equal(t, "Taxi", cell("B15"))
		assert.Equal(t, "", cell("C15"))
		assert.Equal(t, "No", cell("F15"))

		raw, err := f.GetCellValue(sheetName, "E14", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "280.5", raw)
	})

	t.Run("totals", func(t *testing.T) {
		assert.Equal(t, "Total", cell("F17"))
		assert.Equal(t, "Total Verified", cell("F18"))
		assert.Equal(t, "Refund", cell("F19"))

		raw, err := f.GetCellValue(sheetName, "G19", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "79.5", raw)
	})
}

func TestLiquidationRenderer_NoLines(t *testing.T) {
	doc := &port.LiquidationDocument{
		Sheet: &entity.ExpenseSheet{Name: "SETTLEMENT ADV-002"},
	}
	content, err := NewLiquidationRenderer(zap.NewNop()).RenderLiquidation(doc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheetName, "F15")
	require.NoError(t, err)
	assert.Equal(t, "Total", v)
}

func TestLiquidationRenderer_MissingSheet(t *testing.T) {
	_, err := NewLiquidationRenderer(zap.NewNop()).RenderLiquidation(&port.LiquidationDocument{})
	assert.Error(t, err)
}
