package store

import (
	"context"
	"fmt"
	"strings"

	"splitledger/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	query := `
		INSERT INTO users (id, name, email, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.CreatedAt)
	return err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT id, name, email, created_at FROM users WHERE id = $1`, userID)
	if err != nil {
		return models.User{}, notFound(err)
	}
	return row, nil
}

// ListByIDs returns the users that exist among ids, ordered by id.
func (s *UserStore) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	var rows []models.User
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, email, created_at
		FROM users
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
