package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"splitledger/internal/models"
	"splitledger/internal/money"
)

type ExpenseStore struct {
	db DB
}

func NewExpenseStore(db DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

const expenseColumns = `id, name, amount, category, spent_at, group_id, paid_by, is_group_expense, split_policy, split_state, created_at, updated_at`

func (s *ExpenseStore) Create(ctx context.Context, tx Execer, e models.Expense) error {
	query := `
		INSERT INTO expenses (id, name, amount, category, spent_at, group_id, paid_by, is_group_expense, split_policy, split_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.ExecContext(ctx, query, e.ID, e.Name, e.Amount, e.Category, e.SpentAt, e.GroupID, e.PaidBy, e.IsGroupExpense, e.SplitPolicy, e.SplitState, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *ExpenseStore) Update(ctx context.Context, tx Execer, e models.Expense) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE expenses
		SET name = $1, amount = $2, category = $3, spent_at = $4, group_id = $5, paid_by = $6,
		    is_group_expense = $7, split_policy = $8, split_state = $9, updated_at = $10
		WHERE id = $11
	`, e.Name, e.Amount, e.Category, e.SpentAt, e.GroupID, e.PaidBy, e.IsGroupExpense, e.SplitPolicy, e.SplitState, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *ExpenseStore) UpdateState(ctx context.Context, tx Execer, expenseID string, state models.SplitState, at time.Time) error {
	result, err := tx.ExecContext(ctx, `UPDATE expenses SET split_state = $1, updated_at = $2 WHERE id = $3`, state, at, expenseID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *ExpenseStore) Delete(ctx context.Context, tx Execer, expenseID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, expenseID)
	return err
}

func (s *ExpenseStore) GetByID(ctx context.Context, q Getter, expenseID string) (models.Expense, error) {
	q = getter(q, s.db)
	var row models.Expense
	if err := q.GetContext(ctx, &row, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, expenseID); err != nil {
		return models.Expense{}, notFound(err)
	}
	return row, nil
}

func (s *ExpenseStore) List(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	query, args := buildExpenseQuery(filter)
	var rows []models.Expense
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ExpenseStore) SumByGroup(ctx context.Context, groupID string) (money.Money, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE group_id = $1
	`, groupID)
	return money.Money(sum), err
}

func buildExpenseQuery(filter models.ExpenseFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.GroupID != nil {
		clauses = append(clauses, "group_id = "+next(*filter.GroupID))
	} else if filter.PersonalOnly {
		clauses = append(clauses, "group_id IS NULL")
	}
	if filter.IsGroupExpense != nil {
		clauses = append(clauses, "is_group_expense = "+next(*filter.IsGroupExpense))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, 0, len(filter.Categories))
		for _, c := range filter.Categories {
			placeholders = append(placeholders, next(c))
		}
		clauses = append(clauses, "category IN ("+strings.Join(placeholders, ", ")+")")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, "LOWER(name) LIKE "+next("%"+strings.ToLower(search)+"%"))
	}
	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY spent_at DESC, created_at DESC`
	return query, args
}
