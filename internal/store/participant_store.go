package store

import (
	"context"

	"splitledger/internal/models"
)

type ParticipantStore struct {
	db DB
}

func NewParticipantStore(db DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

func (s *ParticipantStore) InsertBatch(ctx context.Context, tx Execer, participants []models.Participant) error {
	query := `
		INSERT INTO expense_participants (id, expense_id, user_id, amount, position)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range participants {
		if _, err := tx.ExecContext(ctx, query, p.ID, p.ExpenseID, p.UserID, p.Amount, p.Position); err != nil {
			return err
		}
	}
	return nil
}

func (s *ParticipantStore) DeleteByExpense(ctx context.Context, tx Execer, expenseID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM expense_participants WHERE expense_id = $1`, expenseID)
	return err
}

func (s *ParticipantStore) ListByExpense(ctx context.Context, q Selecter, expenseID string) ([]models.Participant, error) {
	q = selecter(q, s.db)
	var rows []models.Participant
	err := q.SelectContext(ctx, &rows, `
		SELECT p.id, p.expense_id, p.user_id, p.amount, p.position
		FROM expense_participants p
		WHERE p.expense_id = $1
		ORDER BY p.position, p.user_id
	`, expenseID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ParticipantStore) ListByUser(ctx context.Context, userID string) ([]models.Participant, error) {
	var rows []models.Participant
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.expense_id, p.user_id, p.amount, p.position
		FROM expense_participants p
		WHERE p.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
