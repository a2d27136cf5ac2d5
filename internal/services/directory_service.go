package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"splitledger/internal/db"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/store"
	"splitledger/internal/validator"

	"github.com/google/uuid"
)

// DirectoryService manages users and group membership.
type DirectoryService struct {
	txRunner db.TxRunner
	users    UserStore
	groups   GroupStore
	expenses ExpenseStore
	locks    *GroupLocks
	clock    Clock
	notifier ChangeNotifier
	newID    func() string
}

func NewDirectoryService(txRunner db.TxRunner, users UserStore, groups GroupStore, expenses ExpenseStore, locks *GroupLocks, clock Clock, notifier ChangeNotifier) *DirectoryService {
	if locks == nil {
		locks = NewGroupLocks()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &DirectoryService{
		txRunner: txRunner,
		users:    users,
		groups:   groups,
		expenses: expenses,
		locks:    locks,
		clock:    clock,
		notifier: notifier,
		newID:    uuid.NewString,
	}
}

func (s *DirectoryService) CreateUser(ctx context.Context, name string, email *string) (models.User, error) {
	name = strings.TrimSpace(name)
	if err := validator.ValidateName(name); err != nil {
		return models.User{}, &ValidationError{Field: "name", Message: err.Error(), Err: err}
	}
	if email != nil {
		trimmed := strings.TrimSpace(*email)
		if err := validator.ValidateEmail(trimmed); err != nil {
			return models.User{}, &ValidationError{Field: "email", Message: err.Error(), Err: err}
		}
		email = &trimmed
	}
	user := models.User{ID: s.newID(), Name: name, Email: email, CreatedAt: s.clock.Now()}
	err := s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		return s.users.Create(ctx, tx, user)
	})
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user created", "user_id", user.ID)
	return user, nil
}

func (s *DirectoryService) GetUser(ctx context.Context, userID string) (models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// CreateGroup creates a group with the given members, ignoring repeats.
func (s *DirectoryService) CreateGroup(ctx context.Context, name string, memberIDs []string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if err := validator.ValidateName(name); err != nil {
		return models.Group{}, &ValidationError{Field: "name", Message: err.Error(), Err: err}
	}
	ids := dedupe(memberIDs)
	members, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return models.Group{}, fmt.Errorf("load users: %w", err)
	}
	if len(members) != len(ids) {
		return models.Group{}, invalid("member_ids", "unknown user")
	}

	now := s.clock.Now()
	group := models.Group{ID: s.newID(), Name: name, CreatedAt: now}
	err = s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		if err := s.groups.Create(ctx, tx, group); err != nil {
			return err
		}
		for _, id := range ids {
			if err := s.groups.AddMember(ctx, tx, group.ID, id, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Group{}, fmt.Errorf("create group: %w", err)
	}
	slog.Info("group created", "group_id", group.ID, "members", len(ids))
	return s.GetGroup(ctx, group.ID)
}

// AddMember adds userID to the group. Adding an existing member is a no-op.
func (s *DirectoryService) AddMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	unlock := s.locks.Lock(groupID)
	defer unlock()
	if _, err := s.groups.GetByID(ctx, nil, groupID); err != nil {
		return models.Group{}, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Group{}, invalid("user_id", "unknown user")
		}
		return models.Group{}, fmt.Errorf("load user: %w", err)
	}
	err := s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		return s.groups.AddMember(ctx, tx, groupID, userID, s.clock.Now())
	})
	s.notifier.Publish(ctx, models.ChangeEvent{Kind: models.ChangeGroupUpdated, GroupID: groupID, EntityID: userID})
	if err != nil {
		return models.Group{}, fmt.Errorf("add member: %w", err)
	}
	return s.getGroup(ctx, groupID)
}

// RemoveMember drops userID from the group. Debts already involving the user are kept.
func (s *DirectoryService) RemoveMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	unlock := s.locks.Lock(groupID)
	defer unlock()
	if _, err := s.groups.GetByID(ctx, nil, groupID); err != nil {
		return models.Group{}, err
	}
	err := s.txRunner.WithTx(ctx, func(tx store.Tx) error {
		return s.groups.RemoveMember(ctx, tx, groupID, userID)
	})
	s.notifier.Publish(ctx, models.ChangeEvent{Kind: models.ChangeGroupUpdated, GroupID: groupID, EntityID: userID})
	if err != nil {
		return models.Group{}, fmt.Errorf("remove member: %w", err)
	}
	return s.getGroup(ctx, groupID)
}

// GetGroup returns the group with its members sorted by name.
func (s *DirectoryService) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	defer s.locks.RLock(groupID)()
	return s.getGroup(ctx, groupID)
}

func (s *DirectoryService) getGroup(ctx context.Context, groupID string) (models.Group, error) {
	group, err := s.groups.GetByID(ctx, nil, groupID)
	if err != nil {
		return models.Group{}, err
	}
	members, err := s.groups.ListMembers(ctx, nil, groupID)
	if err != nil {
		return models.Group{}, fmt.Errorf("load members: %w", err)
	}
	group.Members = members
	return group, nil
}

func (s *DirectoryService) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// GroupTotal sums the amounts of every expense in the group.
func (s *DirectoryService) GroupTotal(ctx context.Context, groupID string) (money.Money, error) {
	defer s.locks.RLock(groupID)()
	if _, err := s.groups.GetByID(ctx, nil, groupID); err != nil {
		return 0, err
	}
	total, err := s.expenses.SumByGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
