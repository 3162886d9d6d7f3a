package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-expense/internal/domain/entity"
)

// Notifier delivers short text notifications to users
type Notifier interface {
	Notify(ctx context.Context, user *entity.User, text string) error
}

// ReceiptSuggestion is what a receipt extractor read from a supporting document.
// Fields it could not read are left empty.
type ReceiptSuggestion struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	Vendor     string          `json:"vendor,omitempty"`
	Date       string          `json:"date,omitempty"`
	Confidence float64         `json:"confidence"`
}

// ReceiptExtractor reads receipt data from an image
type ReceiptExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*ReceiptSuggestion, error)
}

// LiquidationDocument is everything printed on a liquidation report
type LiquidationDocument struct {
	Report   *entity.LiquidationReport
	Sheet    *entity.ExpenseSheet
	Employee *entity.Employee
	Company  *entity.Company
}

// ReportRenderer renders liquidation reports as spreadsheets
type ReportRenderer interface {
	RenderLiquidation(doc *LiquidationDocument) ([]byte, error)
}
