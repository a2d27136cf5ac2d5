package handlers

import (
	"context"

	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/services"
)

type ExpenseService interface {
	CreateExpense(ctx context.Context, in services.ExpenseInput) (models.Expense, error)
	EditExpense(ctx context.Context, expenseID string, in services.ExpenseInput) (models.Expense, error)
	ClearSplit(ctx context.Context, expenseID string) error
	DeleteExpense(ctx context.Context, expenseID string) error
	SettleDebt(ctx context.Context, debtID string) (models.Debt, error)
	GetExpense(ctx context.Context, expenseID string) (services.ExpenseDetail, error)
	ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error)
	CategoryTotals(ctx context.Context, filter models.ExpenseFilter, userID *string) (map[models.Category]money.Money, error)
	NetBalance(ctx context.Context, userID string, groupID *string) (money.Money, error)
	GroupBalances(ctx context.Context, groupID string) ([]ledger.Balance, error)
	ListDebts(ctx context.Context, groupID string, includeSettled bool) ([]models.Debt, error)
	GetDebt(ctx context.Context, debtID string) (models.Debt, error)
	OwedBetween(ctx context.Context, from, to, groupID string) (money.Money, error)
}

type DirectoryService interface {
	CreateUser(ctx context.Context, name string, email *string) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	CreateGroup(ctx context.Context, name string, memberIDs []string) (models.Group, error)
	AddMember(ctx context.Context, groupID, userID string) (models.Group, error)
	RemoveMember(ctx context.Context, groupID, userID string) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	GroupTotal(ctx context.Context, groupID string) (money.Money, error)
}
