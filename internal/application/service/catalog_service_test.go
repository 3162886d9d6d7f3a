package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-expense/internal/application/port"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	"github.com/garyjia/travel-expense/internal/domain/expense"
)

func TestCatalogService_RequiresAccountant(t *testing.T) {
	h := newHarness(t)
	svc := NewCatalogService(h.stores.Catalog, nopLogger{})

	err := svc.CreateAccount(h.ctx, h.f.EmployeeUser, &entity.Account{
		CompanyID: h.f.Company.ID, Code: "6312", Name: "Lodging", Type: entity.AccountExpense,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, expense.ErrAccess))
	assert.Equal(t, catalogAccessMessage, err.Error())
}

func TestCatalogService_DuplicateCode(t *testing.T) {
	h := newHarness(t)
	svc := NewCatalogService(h.stores.Catalog, nopLogger{})

	err := svc.CreateJournal(h.ctx, h.f.AccountantUser, &entity.Journal{
		CompanyID: h.f.Company.ID, Code: "BILL", Name: "Other bills", Type: entity.JournalPurchase,
	})
	require.Error(t, err)
	assert.Equal(t, "A journal with the same code already exists.", err.Error())
}

func TestCatalogService_UpdateCompanySettings(t *testing.T) {
	h := newHarness(t)
	svc := NewCatalogService(h.stores.Catalog, nopLogger{})

	other := &entity.Company{Name: "Other", Currency: "USD"}
	require.NoError(t, svc.CreateCompany(h.ctx, h.f.AccountantUser, other))
	foreign := &entity.Journal{CompanyID: other.ID, Code: "MISC", Name: "Misc", Type: entity.JournalGeneral}
	require.NoError(t, svc.CreateJournal(h.ctx, h.f.AccountantUser, foreign))

	_, err := svc.UpdateCompanySettings(h.ctx, h.f.AccountantUser, h.f.Company.ID, port.CompanySettings{
		ExpenseJournalID: &foreign.ID,
	})
	assert.True(t, errors.Is(err, expense.ErrValidation))

	company, err := svc.UpdateCompanySettings(h.ctx, h.f.AccountantUser, h.f.Company.ID, port.CompanySettings{
		ExpenseJournalID:       &h.f.PurchaseJournal.ID,
		ReimbursementJournalID: &h.f.SaleJournal.ID,
		UseSameJournal:         true,
		PayableAccountID:       &h.f.PayableAccount.ID,
	})
	require.NoError(t, err)
	assert.True(t, company.UseSameJournal)
	assert.Equal(t, h.f.PurchaseJournal.ID, *company.ExpenseJournalID)
	assert.Nil(t, company.ReceivableAccountID)

	_, err = svc.UpdateCompanySettings(h.ctx, h.f.TreasuryUser, h.f.Company.ID, port.CompanySettings{})
	assert.True(t, errors.Is(err, expense.ErrAccess))
}

func TestCatalogService_CreateUserValidatesGroups(t *testing.T) {
	h := newHarness(t)
	svc := NewCatalogService(h.stores.Catalog, nopLogger{})

	err := svc.CreateUser(h.ctx, h.f.AccountantUser, &entity.User{Login: "eve", Groups: []string{"admin"}})
	assert.True(t, errors.Is(err, expense.ErrValidation))

	user := &entity.User{Login: "eve", Name: "Eve", Groups: []string{entity.GroupTreasury}}
	require.NoError(t, svc.CreateUser(h.ctx, h.f.AccountantUser, user))
	got, err := svc.GetUser(h.ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.HasGroup(entity.GroupTreasury))
}
