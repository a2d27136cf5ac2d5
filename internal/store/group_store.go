package store

import (
	"context"
	"time"

	"splitledger/internal/models"
)

type GroupStore struct {
	db DB
}

func NewGroupStore(db DB) *GroupStore {
	return &GroupStore{db: db}
}

func (s *GroupStore) Create(ctx context.Context, tx Execer, group models.Group) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, created_at)
		VALUES ($1, $2, $3)
	`, group.ID, group.Name, group.CreatedAt)
	return err
}

func (s *GroupStore) GetByID(ctx context.Context, q Getter, groupID string) (models.Group, error) {
	q = getter(q, s.db)
	var row models.Group
	if err := q.GetContext(ctx, &row, `SELECT id, name, created_at FROM groups WHERE id = $1`, groupID); err != nil {
		return models.Group{}, notFound(err)
	}
	return row, nil
}

func (s *GroupStore) List(ctx context.Context) ([]models.Group, error) {
	var rows []models.Group
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, created_at FROM groups ORDER BY created_at DESC, id`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GroupStore) AddMember(ctx context.Context, tx Execer, groupID, userID string, joinedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, groupID, userID, joinedAt)
	return err
}

func (s *GroupStore) RemoveMember(ctx context.Context, tx Execer, groupID, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return err
}

// ListMembers returns members sorted by name, then id.
func (s *GroupStore) ListMembers(ctx context.Context, q Selecter, groupID string) ([]models.User, error) {
	q = selecter(q, s.db)
	var rows []models.User
	err := q.SelectContext(ctx, &rows, `
		SELECT u.id, u.name, u.email, u.created_at
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY u.name, u.id
	`, groupID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
