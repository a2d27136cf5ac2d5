package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"splitledger/internal/metrics"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/store"
)

var ErrValidation = errors.New("validation failed")

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type ChangeNotifier interface {
	Publish(ctx context.Context, event models.ChangeEvent)
}

type ExpenseStore interface {
	Create(ctx context.Context, tx store.Execer, e models.Expense) error
	Update(ctx context.Context, tx store.Execer, e models.Expense) error
	UpdateState(ctx context.Context, tx store.Execer, expenseID string, state models.SplitState, at time.Time) error
	Delete(ctx context.Context, tx store.Execer, expenseID string) error
	GetByID(ctx context.Context, q store.Getter, expenseID string) (models.Expense, error)
	List(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error)
	SumByGroup(ctx context.Context, groupID string) (money.Money, error)
}

type ParticipantStore interface {
	InsertBatch(ctx context.Context, tx store.Execer, participants []models.Participant) error
	DeleteByExpense(ctx context.Context, tx store.Execer, expenseID string) error
	ListByExpense(ctx context.Context, q store.Selecter, expenseID string) ([]models.Participant, error)
	ListByUser(ctx context.Context, userID string) ([]models.Participant, error)
}

type GroupStore interface {
	Create(ctx context.Context, tx store.Execer, group models.Group) error
	GetByID(ctx context.Context, q store.Getter, groupID string) (models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	AddMember(ctx context.Context, tx store.Execer, groupID, userID string, joinedAt time.Time) error
	RemoveMember(ctx context.Context, tx store.Execer, groupID, userID string) error
	ListMembers(ctx context.Context, q store.Selecter, groupID string) ([]models.User, error)
}

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByID(ctx context.Context, userID string) (models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type DebtReader interface {
	GetByID(ctx context.Context, q store.Getter, debtID string) (models.Debt, error)
	FindUnsettled(ctx context.Context, q store.Getter, groupID, owedBy, owedTo string) (models.Debt, error)
	ListByGroup(ctx context.Context, groupID string, includeSettled bool) ([]models.Debt, error)
	ListUnsettledForUser(ctx context.Context, userID string, groupID *string) ([]models.Debt, error)
}

// GroupLocks serializes writers per group inside one process. The store's
// advisory lock covers other processes.
type GroupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewGroupLocks() *GroupLocks {
	return &GroupLocks{locks: make(map[string]*sync.RWMutex)}
}

func (g *GroupLocks) get(groupID string) *sync.RWMutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[groupID]
	if !ok {
		l = &sync.RWMutex{}
		g.locks[groupID] = l
	}
	return l
}

// Lock write-locks every listed group in id order and returns the release func.
func (g *GroupLocks) Lock(groupIDs ...string) func() {
	ids := lockOrder(groupIDs)
	held := make([]*sync.RWMutex, 0, len(ids))
	for _, id := range ids {
		l := g.get(id)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (g *GroupLocks) RLock(groupID string) func() {
	if groupID == "" {
		return func() {}
	}
	l := g.get(groupID)
	l.RLock()
	return l.RUnlock
}

func lockOrder(groupIDs []string) []string {
	seen := make(map[string]struct{}, len(groupIDs))
	ids := make([]string, 0, len(groupIDs))
	for _, id := range groupIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, store.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeStoreError
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, models.ChangeEvent) {}
