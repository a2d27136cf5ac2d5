package store

import (
	"context"
	"time"

	"splitledger/internal/models"
	"splitledger/internal/money"
)

type DebtStore struct {
	db     DB
	driver string
}

func NewDebtStore(db DB, driver string) *DebtStore {
	return &DebtStore{db: db, driver: driver}
}

const debtColumns = `id, group_id, owed_by, owed_to, amount, is_settled, created_at, settled_at`

func (s *DebtStore) Create(ctx context.Context, tx Execer, debt models.Debt) error {
	query := `
		INSERT INTO debts (id, group_id, owed_by, owed_to, amount, is_settled, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query, debt.ID, debt.GroupID, debt.OwedBy, debt.OwedTo, debt.Amount, debt.IsSettled, debt.CreatedAt, debt.SettledAt)
	return err
}

func (s *DebtStore) GetByID(ctx context.Context, q Getter, debtID string) (models.Debt, error) {
	q = getter(q, s.db)
	var row models.Debt
	err := q.GetContext(ctx, &row, `SELECT `+debtColumns+` FROM debts WHERE id = $1`, debtID)
	if err != nil {
		return models.Debt{}, notFound(err)
	}
	return row, nil
}

func (s *DebtStore) FindUnsettled(ctx context.Context, q Getter, groupID, owedBy, owedTo string) (models.Debt, error) {
	q = getter(q, s.db)
	var row models.Debt
	err := q.GetContext(ctx, &row, `
		SELECT `+debtColumns+`
		FROM debts
		WHERE group_id = $1 AND owed_by = $2 AND owed_to = $3 AND is_settled = FALSE
	`, groupID, owedBy, owedTo)
	if err != nil {
		return models.Debt{}, notFound(err)
	}
	return row, nil
}

func (s *DebtStore) ListUnsettled(ctx context.Context, q Selecter, groupID string) ([]models.Debt, error) {
	q = selecter(q, s.db)
	var rows []models.Debt
	err := q.SelectContext(ctx, &rows, `
		SELECT `+debtColumns+`
		FROM debts
		WHERE group_id = $1 AND is_settled = FALSE
		ORDER BY owed_by, owed_to
	`, groupID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DebtStore) ListByGroup(ctx context.Context, groupID string, includeSettled bool) ([]models.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE group_id = $1`
	if !includeSettled {
		query += ` AND is_settled = FALSE`
	}
	query += ` ORDER BY is_settled, created_at DESC, owed_by, owed_to`
	var rows []models.Debt
	if err := s.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUnsettledForUser returns open debts where the user is on either side,
// optionally restricted to one group.
func (s *DebtStore) ListUnsettledForUser(ctx context.Context, userID string, groupID *string) ([]models.Debt, error) {
	query := `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE is_settled = FALSE AND (owed_by = $1 OR owed_to = $1)
	`
	args := []any{userID}
	if groupID != nil {
		query += ` AND group_id = $2`
		args = append(args, *groupID)
	}
	query += ` ORDER BY group_id, owed_by, owed_to`
	var rows []models.Debt
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DebtStore) UpdateAmount(ctx context.Context, tx Execer, debtID string, amount money.Money) error {
	result, err := tx.ExecContext(ctx, `UPDATE debts SET amount = $1 WHERE id = $2 AND is_settled = FALSE`, amount, debtID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *DebtStore) Delete(ctx context.Context, tx Execer, debtID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM debts WHERE id = $1`, debtID)
	return err
}

func (s *DebtStore) DeleteUnsettled(ctx context.Context, tx Execer, groupID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM debts WHERE group_id = $1 AND is_settled = FALSE`, groupID)
	return err
}

func (s *DebtStore) MarkSettled(ctx context.Context, tx Execer, debtID string, at time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE debts
		SET is_settled = TRUE, settled_at = $1
		WHERE id = $2 AND is_settled = FALSE
	`, at, debtID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// LockGroup serializes debt rewrites for a group across processes. SQLite
// already serializes writers, so it only needs the lock on postgres.
func (s *DebtStore) LockGroup(ctx context.Context, tx Execer, groupID string) error {
	if s.driver != DriverPostgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, groupID)
	return err
}
