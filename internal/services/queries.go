package services

import (
	"context"
	"errors"
	"fmt"

	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/store"
)

type ExpenseDetail struct {
	models.Expense
	Participants    []models.Participant `json:"participants"`
	SplitValid      bool                 `json:"split_valid"`
	SplitDifference money.Money          `json:"split_difference"`
}

func participantTotal(participants []models.Participant) money.Money {
	var sum money.Money
	for _, p := range participants {
		sum += p.Amount
	}
	return sum
}

// SplitValid reports whether the participant amounts add up to the expense amount.
func SplitValid(expense models.Expense, participants []models.Participant) bool {
	return participantTotal(participants) == expense.Amount
}

func SplitDifference(expense models.Expense, participants []models.Participant) money.Money {
	return expense.Amount - participantTotal(participants)
}

// UserSplitAmount is the part of an expense attributed to userID. A personal
// expense belongs entirely to its payer, or to anyone when it has none.
func UserSplitAmount(expense models.Expense, participants []models.Participant, userID string) money.Money {
	if !expense.IsGroupExpense {
		if expense.PaidBy == nil || *expense.PaidBy == userID {
			return expense.Amount
		}
		return 0
	}
	for _, p := range participants {
		if p.UserID == userID {
			return p.Amount
		}
	}
	return 0
}

func (s *ExpenseService) GetExpense(ctx context.Context, expenseID string) (ExpenseDetail, error) {
	expense, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return ExpenseDetail{}, err
	}
	defer s.locks.RLock(deref(expense.GroupID))()
	participants, err := s.participants.ListByExpense(ctx, nil, expenseID)
	if err != nil {
		return ExpenseDetail{}, fmt.Errorf("load participants: %w", err)
	}
	return ExpenseDetail{
		Expense:         expense,
		Participants:    participants,
		SplitValid:      SplitValid(expense, participants),
		SplitDifference: SplitDifference(expense, participants),
	}, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	defer s.locks.RLock(deref(filter.GroupID))()
	expenses, err := s.expenses.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// CategoryTotals sums expenses per category. With userID set, each expense
// contributes only that user's split amount.
func (s *ExpenseService) CategoryTotals(ctx context.Context, filter models.ExpenseFilter, userID *string) (map[models.Category]money.Money, error) {
	defer s.locks.RLock(deref(filter.GroupID))()
	expenses, err := s.expenses.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	totals := make(map[models.Category]money.Money)
	if userID == nil {
		for _, e := range expenses {
			totals[e.Category] += e.Amount
		}
		return totals, nil
	}

	shares, err := s.participants.ListByUser(ctx, *userID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	byExpense := make(map[string][]models.Participant, len(shares))
	for _, p := range shares {
		byExpense[p.ExpenseID] = append(byExpense[p.ExpenseID], p)
	}
	for _, e := range expenses {
		if amount := UserSplitAmount(e, byExpense[e.ID], *userID); amount != 0 {
			totals[e.Category] += amount
		}
	}
	return totals, nil
}

// NetBalance is what others owe userID minus what userID owes, within one
// group or across all groups when groupID is nil.
func (s *ExpenseService) NetBalance(ctx context.Context, userID string, groupID *string) (money.Money, error) {
	defer s.locks.RLock(deref(groupID))()
	debts, err := s.debts.ListUnsettledForUser(ctx, userID, groupID)
	if err != nil {
		return 0, fmt.Errorf("list debts: %w", err)
	}
	var balance money.Money
	for _, d := range debts {
		switch userID {
		case d.OwedTo:
			balance += d.Amount
		case d.OwedBy:
			balance -= d.Amount
		}
	}
	return balance, nil
}

func (s *ExpenseService) GroupBalances(ctx context.Context, groupID string) ([]ledger.Balance, error) {
	defer s.locks.RLock(groupID)()
	if _, err := s.groups.GetByID(ctx, nil, groupID); err != nil {
		return nil, err
	}
	members, err := s.memberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	debts, err := s.debts.ListByGroup(ctx, groupID, false)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	return ledger.NetBalances(members, debts), nil
}

func (s *ExpenseService) ListDebts(ctx context.Context, groupID string, includeSettled bool) ([]models.Debt, error) {
	defer s.locks.RLock(groupID)()
	if _, err := s.groups.GetByID(ctx, nil, groupID); err != nil {
		return nil, err
	}
	debts, err := s.debts.ListByGroup(ctx, groupID, includeSettled)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	return debts, nil
}

func (s *ExpenseService) GetDebt(ctx context.Context, debtID string) (models.Debt, error) {
	return s.debts.GetByID(ctx, nil, debtID)
}

// OwedBetween returns the unsettled amount from owes to within the group.
func (s *ExpenseService) OwedBetween(ctx context.Context, from, to, groupID string) (money.Money, error) {
	defer s.locks.RLock(groupID)()
	debt, err := s.debts.FindUnsettled(ctx, nil, groupID, from, to)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find debt: %w", err)
	}
	return debt.Amount, nil
}
