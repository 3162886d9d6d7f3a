package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/event"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

// SettlementService creates liquidation sheets reconciling advances with the actual spend
type SettlementService interface {
	SettleAdvance(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error)
}

type settlementServiceImpl struct {
	records
	publisher Publisher
	logger    Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(stores Stores, publisher Publisher, clock Clock, logger Logger) SettlementService {
	return &settlementServiceImpl{
		records:   newRecords(stores, clock),
		publisher: publisher,
		logger:    logger,
	}
}

// SettleAdvance creates one settlement sheet per advance. The whole batch fails
// when any advance cannot be settled.
func (s *settlementServiceImpl) SettleAdvance(ctx context.Context, actor *entity.User, sheetIDs []int64) ([]*entity.ExpenseSheet, error) {
	var (
		settlements []*entity.ExpenseSheet
		events      []*event.Event
	)
	err := s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		settlements, events = nil, nil

		advances, err := s.loadSheets(txCtx, actor, sheetIDs)
		if err != nil {
			return err
		}
		for _, advance := range advances {
			settlement, err := s.settle(txCtx, actor, advance)
			if err != nil {
				return err
			}
			settlements = append(settlements, settlement)

			employee, err := s.employee(txCtx, advance.EmployeeID)
			if err != nil {
				return err
			}
			evt := sheetEvent(event.TypeAdvanceSettled, advance, actor, employee.UserID).
				WithPayload("settlement_id", settlement.ID).
				WithPayload("settlement_name", settlement.Name)
			events = append(events, evt)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to settle advances", "error", err, "sheet_ids", sheetIDs)
		return nil, err
	}

	s.publish(ctx, s.publisher, events)
	s.logger.Info("Advances settled", "sheet_ids", sheetIDs, "settlements", len(settlements), "user_id", actor.ID)
	return settlements, nil
}

func (s *settlementServiceImpl) settle(ctx context.Context, actor *entity.User, advance *entity.ExpenseSheet) (*entity.ExpenseSheet, error) {
	switch advance.State {
	case entity.SheetStateApprove, entity.SheetStatePost, entity.SheetStateDone:
	default:
		return nil, expense.Userf(`Advances can only be settled on forms with a status of "Approved"`)
	}
	if advance.IsLiquidation {
		return nil, expense.Userf("The expense report %q is already a settlement and cannot be settled again.", advance.Name)
	}

	existing, err := s.Sheets.GetByOriginalSheetID(ctx, advance.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing settlement: %w", err)
	}
	if existing != nil {
		return nil, duplicateSettlement(advance, existing.Name)
	}

	originalID := advance.ID
	settlement := &entity.ExpenseSheet{
		Name:            "SETTLEMENT " + advance.Name,
		CompanyID:       advance.CompanyID,
		EmployeeID:      advance.EmployeeID,
		Department:      advance.Department,
		AreaManagerID:   advance.AreaManagerID,
		ProviderID:      advance.ProviderID,
		JournalID:       advance.JournalID,
		CreatedByID:     &actor.ID,
		PaymentMode:     advance.PaymentMode,
		ApprovalState:   entity.ApprovalNone,
		State:           entity.SheetStateDraft,
		PaymentState:    entity.PaymentStateNotPaid,
		Destination:     advance.Destination,
		Justification:   advance.Justification,
		Overnight:       advance.Overnight,
		DateSince:       advance.DateSince,
		DateUp:          advance.DateUp,
		TicketType:      advance.TicketType,
		FlightDate:      advance.FlightDate,
		Airline:         advance.Airline,
		Route:           advance.Route,
		Flight:          advance.Flight,
		IsLiquidation:   true,
		OriginalSheetID: &originalID,
	}
	if err := s.Sheets.Create(ctx, settlement); err != nil {
		if errors.Is(err, port.ErrConflict) {
			return nil, expense.Validationf("The advance %q already has a settlement.", advance.Name)
		}
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	lines, err := s.Expenses.ListBySheet(ctx, advance.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load advance lines: %w", err)
	}
	for _, l := range lines {
		cp := l.Duplicate()
		cp.SheetID = &settlement.ID
		if err := s.Expenses.Create(ctx, cp); err != nil {
			return nil, fmt.Errorf("failed to copy expense line: %w", err)
		}
	}
	if err := s.refresh(ctx, settlement); err != nil {
		return nil, err
	}

	advance.SettlementSheetID = &settlement.ID
	if err := s.refresh(ctx, advance); err != nil {
		return nil, err
	}

	if err := s.post(ctx, advance.ID, actor, fmt.Sprintf("Settlement %s created.", settlement.Name)); err != nil {
		return nil, err
	}
	if err := s.post(ctx, settlement.ID, actor, fmt.Sprintf("Settlement of the advance %s.", advance.Name)); err != nil {
		return nil, err
	}
	return settlement, nil
}

func duplicateSettlement(advance *entity.ExpenseSheet, existing string) error {
	return expense.Userf("The advance %q already has a settlement: %s.", advance.Name, existing)
}
