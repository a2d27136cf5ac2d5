package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"splitledger/internal/db"
	"splitledger/internal/ledger"
	"splitledger/internal/metrics"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/split"
	"splitledger/internal/store"
	"splitledger/internal/validator"

	"github.com/google/uuid"
)

var ErrConcurrentUpdate = errors.New("expense moved between groups while locking")

type ExpenseService struct {
	txRunner     db.TxRunner
	expenses     ExpenseStore
	participants ParticipantStore
	groups       GroupStore
	debts        DebtReader
	ledger       *ledger.Ledger
	locks        *GroupLocks
	clock        Clock
	notifier     ChangeNotifier
	atomic       bool
	newID        func() string
}

type Option func(*ExpenseService)

// WithAtomic selects whether every step of an operation shares one
// transaction. With false, each step commits on its own and the expense's
// split_state records how far the operation got.
func WithAtomic(atomic bool) Option {
	return func(s *ExpenseService) {
		s.atomic = atomic
	}
}

func NewExpenseService(txRunner db.TxRunner, expenses ExpenseStore, participants ParticipantStore, groups GroupStore, debts DebtReader, ledger *ledger.Ledger, locks *GroupLocks, clock Clock, notifier ChangeNotifier, opts ...Option) *ExpenseService {
	if locks == nil {
		locks = NewGroupLocks()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &ExpenseService{
		txRunner:     txRunner,
		expenses:     expenses,
		participants: participants,
		groups:       groups,
		debts:        debts,
		ledger:       ledger,
		locks:        locks,
		clock:        clock,
		notifier:     notifier,
		atomic:       true,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SplitInput struct {
	Policy models.SplitPolicy
	Users  []string
	Shares []split.Share
}

func (in SplitInput) request() split.Request {
	return split.Request{Policy: in.Policy, Users: in.Users, Shares: in.Shares}
}

// ExpenseInput is the full desired state of an expense, used by both create and edit.
type ExpenseInput struct {
	Name           string
	Amount         money.Money
	Category       models.Category
	SpentAt        time.Time
	GroupID        *string
	PaidBy         *string
	IsGroupExpense bool
	Split          *SplitInput
}

type prepared struct {
	expense      models.Expense
	members      []string
	participants []models.Participant
}

type step func(ctx context.Context, tx store.Tx) error

func (s *ExpenseService) CreateExpense(ctx context.Context, in ExpenseInput) (models.Expense, error) {
	done := metrics.Track("create_expense")
	now := s.clock.Now()
	expense := s.expenseFrom(in, now)
	expense.ID = s.newID()
	expense.CreatedAt = now

	unlock := s.locks.Lock(deref(expense.GroupID))
	defer unlock()

	p, err := s.prepare(ctx, expense, in.Split, nil)
	if err != nil {
		done(outcome(err))
		return models.Expense{}, err
	}

	steps := []step{s.insertStep(&p)}
	if p.expense.IsGroupExpense {
		steps = append(steps, s.materializeStep(&p, now), s.accrueStep(&p, now))
	}
	err = s.run(ctx, []string{deref(p.expense.GroupID)}, steps...)
	s.finish(ctx, done, "create_expense", models.ChangeEvent{
		Kind:     models.ChangeExpenseCreated,
		GroupID:  deref(p.expense.GroupID),
		EntityID: p.expense.ID,
	}, err)
	if err != nil {
		return models.Expense{}, err
	}
	return p.expense, nil
}

func (s *ExpenseService) EditExpense(ctx context.Context, expenseID string, in ExpenseInput) (models.Expense, error) {
	done := metrics.Track("edit_expense")
	old, unlock, err := s.lockExpense(ctx, expenseID, deref(in.GroupID))
	if err != nil {
		done(outcome(err))
		return models.Expense{}, err
	}
	defer unlock()

	previous, err := s.participants.ListByExpense(ctx, nil, expenseID)
	if err != nil {
		err = fmt.Errorf("load participants: %w", err)
		done(outcome(err))
		return models.Expense{}, err
	}
	var oldMembers []string
	if old.InLedger() {
		if oldMembers, err = s.memberIDs(ctx, *old.GroupID); err != nil {
			done(outcome(err))
			return models.Expense{}, err
		}
	}

	now := s.clock.Now()
	expense := s.expenseFrom(in, now)
	expense.ID = old.ID
	expense.CreatedAt = old.CreatedAt
	p, err := s.prepare(ctx, expense, in.Split, reuseSplit(old.SplitPolicy, previous))
	if err != nil {
		done(outcome(err))
		return models.Expense{}, err
	}

	var steps []step
	if old.InLedger() {
		steps = append(steps, s.reverseStep(old, previous, oldMembers, now))
	}
	steps = append(steps, func(ctx context.Context, tx store.Tx) error {
		if err := s.participants.DeleteByExpense(ctx, tx, old.ID); err != nil {
			return fmt.Errorf("clear participants: %w", err)
		}
		if p.expense.IsGroupExpense {
			p.expense.SplitState = models.StateUnsplit
		}
		if err := s.expenses.Update(ctx, tx, p.expense); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		return nil
	})
	if p.expense.IsGroupExpense {
		steps = append(steps, s.materializeStep(&p, now), s.accrueStep(&p, now))
	}

	err = s.run(ctx, []string{deref(old.GroupID), deref(p.expense.GroupID)}, steps...)
	groupID := deref(p.expense.GroupID)
	if groupID == "" {
		groupID = deref(old.GroupID)
	}
	s.finish(ctx, done, "edit_expense", models.ChangeEvent{
		Kind:     models.ChangeExpenseUpdated,
		GroupID:  groupID,
		EntityID: old.ID,
	}, err)
	if err != nil {
		return models.Expense{}, err
	}
	return p.expense, nil
}

// ClearSplit removes an expense's participants and its contribution to the
// ledger. A missing expense is a no-op.
func (s *ExpenseService) ClearSplit(ctx context.Context, expenseID string) error {
	done := metrics.Track("clear_split")
	old, unlock, err := s.lockExpense(ctx, expenseID)
	if errors.Is(err, store.ErrNotFound) {
		done(metrics.OutcomeNotFound)
		return nil
	}
	if err != nil {
		done(outcome(err))
		return err
	}
	defer unlock()

	steps, err := s.unwindSteps(ctx, old)
	if err != nil {
		done(outcome(err))
		return err
	}
	now := s.clock.Now()
	steps = append(steps, func(ctx context.Context, tx store.Tx) error {
		if err := s.participants.DeleteByExpense(ctx, tx, old.ID); err != nil {
			return fmt.Errorf("clear participants: %w", err)
		}
		if !old.IsGroupExpense {
			return nil
		}
		cleared := old
		cleared.SplitPolicy = models.SplitNone
		cleared.SplitState = models.StateUnsplit
		cleared.UpdatedAt = now
		if err := s.expenses.Update(ctx, tx, cleared); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		return nil
	})

	err = s.run(ctx, []string{deref(old.GroupID)}, steps...)
	s.finish(ctx, done, "clear_split", models.ChangeEvent{
		Kind:     models.ChangeSplitCleared,
		GroupID:  deref(old.GroupID),
		EntityID: old.ID,
	}, err)
	return err
}

// DeleteExpense reverses the expense's debts, then removes its participants
// and the expense itself. A missing expense is a no-op.
func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID string) error {
	done := metrics.Track("delete_expense")
	old, unlock, err := s.lockExpense(ctx, expenseID)
	if errors.Is(err, store.ErrNotFound) {
		done(metrics.OutcomeNotFound)
		return nil
	}
	if err != nil {
		done(outcome(err))
		return err
	}
	defer unlock()

	steps, err := s.unwindSteps(ctx, old)
	if err != nil {
		done(outcome(err))
		return err
	}
	steps = append(steps, func(ctx context.Context, tx store.Tx) error {
		if err := s.participants.DeleteByExpense(ctx, tx, old.ID); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		if err := s.expenses.Delete(ctx, tx, old.ID); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		return nil
	})

	err = s.run(ctx, []string{deref(old.GroupID)}, steps...)
	s.finish(ctx, done, "delete_expense", models.ChangeEvent{
		Kind:     models.ChangeExpenseDeleted,
		GroupID:  deref(old.GroupID),
		EntityID: old.ID,
	}, err)
	return err
}

// SettleDebt marks a debt as paid. A missing debt is a no-op and returns a zero Debt.
func (s *ExpenseService) SettleDebt(ctx context.Context, debtID string) (models.Debt, error) {
	done := metrics.Track("settle_debt")
	debt, err := s.debts.GetByID(ctx, nil, debtID)
	if errors.Is(err, store.ErrNotFound) {
		done(metrics.OutcomeNotFound)
		return models.Debt{}, nil
	}
	if err != nil {
		err = fmt.Errorf("load debt: %w", err)
		done(outcome(err))
		return models.Debt{}, err
	}
	unlock := s.locks.Lock(debt.GroupID)
	defer unlock()

	var settled models.Debt
	err = s.run(ctx, []string{debt.GroupID}, func(ctx context.Context, tx store.Tx) error {
		var err error
		settled, err = s.ledger.Settle(ctx, tx, debtID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		// Simplified away while waiting for the lock.
		done(metrics.OutcomeNotFound)
		return models.Debt{}, nil
	}
	s.finish(ctx, done, "settle_debt", models.ChangeEvent{
		Kind:     models.ChangeDebtSettled,
		GroupID:  debt.GroupID,
		EntityID: debtID,
	}, err)
	if err != nil {
		return models.Debt{}, err
	}
	return settled, nil
}

func (s *ExpenseService) expenseFrom(in ExpenseInput, now time.Time) models.Expense {
	spentAt := in.SpentAt
	if spentAt.IsZero() {
		spentAt = now
	}
	return models.Expense{
		Name:           strings.TrimSpace(in.Name),
		Amount:         in.Amount,
		Category:       models.ParseCategory(string(in.Category)),
		SpentAt:        spentAt.UTC(),
		GroupID:        in.GroupID,
		PaidBy:         in.PaidBy,
		IsGroupExpense: in.IsGroupExpense,
		UpdatedAt:      now,
	}
}

// prepare validates the expense and computes its participants without
// writing anything. fallback is used for group expenses when no split is given.
func (s *ExpenseService) prepare(ctx context.Context, expense models.Expense, in, fallback *SplitInput) (prepared, error) {
	if err := validator.ValidateName(expense.Name); err != nil {
		return prepared{}, &ValidationError{Field: "name", Message: err.Error(), Err: err}
	}
	if expense.Amount <= 0 {
		return prepared{}, invalid("amount", "must be greater than zero")
	}
	if expense.IsGroupExpense {
		if expense.GroupID == nil || *expense.GroupID == "" {
			return prepared{}, invalid("group_id", "required for group expenses")
		}
		if expense.PaidBy == nil || *expense.PaidBy == "" {
			return prepared{}, invalid("paid_by", "required for group expenses")
		}
	}

	p := prepared{expense: expense}
	var members []models.User
	if expense.GroupID != nil {
		group, err := s.groups.GetByID(ctx, nil, *expense.GroupID)
		if errors.Is(err, store.ErrNotFound) {
			return prepared{}, invalid("group_id", "group not found")
		}
		if err != nil {
			return prepared{}, fmt.Errorf("load group: %w", err)
		}
		members, err = s.groups.ListMembers(ctx, nil, group.ID)
		if err != nil {
			return prepared{}, fmt.Errorf("load members: %w", err)
		}
		group.Members = members
		p.members = group.MemberIDs()
	}

	if !expense.IsGroupExpense {
		if in != nil {
			return prepared{}, invalid("split", "only group expenses can be split")
		}
		p.expense.SplitPolicy = models.SplitNone
		p.expense.SplitState = models.StateReconciled
		return p, nil
	}

	isMember := make(map[string]bool, len(p.members))
	for _, id := range p.members {
		isMember[id] = true
	}
	if !isMember[*expense.PaidBy] {
		return prepared{}, invalid("paid_by", "payer is not a member of the group")
	}

	input := in
	if input == nil {
		input = fallback
	}
	if input == nil {
		input = &SplitInput{Policy: models.SplitEqual, Users: p.members}
	}
	req := input.request()
	for _, userID := range req.Participants() {
		if userID != "" && !isMember[userID] {
			return prepared{}, invalid("split", fmt.Sprintf("user %s is not a member of the group", userID))
		}
	}
	allocations, err := split.Calculate(expense.Amount, req)
	if err != nil {
		return prepared{}, &ValidationError{Field: "split", Message: err.Error(), Err: err}
	}

	p.expense.SplitPolicy = input.Policy
	p.expense.SplitState = models.StateUnsplit
	p.participants = make([]models.Participant, 0, len(allocations))
	for i, a := range allocations {
		p.participants = append(p.participants, models.Participant{
			ID:        s.newID(),
			ExpenseID: expense.ID,
			UserID:    a.UserID,
			Amount:    a.Amount,
			Position:  i,
		})
	}
	return p, nil
}

// reuseSplit rebuilds split input from an expense's current participants so
// an edit without new split input keeps the same people and proportions.
// previous must be in position order so an equal split keeps its residue
// on the same participant.
func reuseSplit(policy models.SplitPolicy, previous []models.Participant) *SplitInput {
	if len(previous) == 0 {
		return nil
	}
	if policy == models.SplitEqual {
		users := make([]string, 0, len(previous))
		for _, p := range previous {
			users = append(users, p.UserID)
		}
		return &SplitInput{Policy: models.SplitEqual, Users: users}
	}
	shares := make([]split.Share, 0, len(previous))
	for _, p := range previous {
		shares = append(shares, split.Share{UserID: p.UserID, Value: p.Amount.Decimal()})
	}
	return &SplitInput{Policy: models.SplitAmount, Shares: shares}
}

func (s *ExpenseService) insertStep(p *prepared) step {
	return func(ctx context.Context, tx store.Tx) error {
		if err := s.expenses.Create(ctx, tx, p.expense); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		return nil
	}
}

func (s *ExpenseService) materializeStep(p *prepared, now time.Time) step {
	return func(ctx context.Context, tx store.Tx) error {
		if len(p.participants) > 0 {
			if err := s.participants.InsertBatch(ctx, tx, p.participants); err != nil {
				return fmt.Errorf("insert participants: %w", err)
			}
		}
		if err := s.expenses.UpdateState(ctx, tx, p.expense.ID, models.StateSplitPendingDebts, now); err != nil {
			return fmt.Errorf("update split state: %w", err)
		}
		p.expense.SplitState = models.StateSplitPendingDebts
		return nil
	}
}

func (s *ExpenseService) accrueStep(p *prepared, now time.Time) step {
	return func(ctx context.Context, tx store.Tx) error {
		entry := ledger.Entry{GroupID: *p.expense.GroupID, Payer: *p.expense.PaidBy, Participants: p.participants}
		if _, err := s.ledger.Accrue(ctx, tx, entry, p.members); err != nil {
			return fmt.Errorf("accrue debts: %w", err)
		}
		if err := s.expenses.UpdateState(ctx, tx, p.expense.ID, models.StateReconciled, now); err != nil {
			return fmt.Errorf("update split state: %w", err)
		}
		p.expense.SplitState = models.StateReconciled
		return nil
	}
}

func (s *ExpenseService) reverseStep(old models.Expense, participants []models.Participant, members []string, now time.Time) step {
	return func(ctx context.Context, tx store.Tx) error {
		entry := ledger.Entry{GroupID: *old.GroupID, Payer: *old.PaidBy, Participants: participants}
		if _, err := s.ledger.Reverse(ctx, tx, entry, members); err != nil {
			return fmt.Errorf("reverse debts: %w", err)
		}
		if err := s.expenses.UpdateState(ctx, tx, old.ID, models.StateSplitPendingDebts, now); err != nil {
			return fmt.Errorf("update split state: %w", err)
		}
		return nil
	}
}

// unwindSteps returns the reversal step for an expense whose debts are in the ledger.
func (s *ExpenseService) unwindSteps(ctx context.Context, old models.Expense) ([]step, error) {
	if !old.InLedger() {
		return nil, nil
	}
	participants, err := s.participants.ListByExpense(ctx, nil, old.ID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	members, err := s.memberIDs(ctx, *old.GroupID)
	if err != nil {
		return nil, err
	}
	return []step{s.reverseStep(old, participants, members, s.clock.Now())}, nil
}

// run executes the steps under the store-level group locks, in one
// transaction when atomic and one transaction per step otherwise.
func (s *ExpenseService) run(ctx context.Context, groupIDs []string, steps ...step) error {
	ids := lockOrder(groupIDs)
	inTx := func(batch []step) error {
		return s.txRunner.WithTx(ctx, func(tx store.Tx) error {
			for _, id := range ids {
				if err := s.ledger.Lock(ctx, tx, id); err != nil {
					return err
				}
			}
			for _, st := range batch {
				if err := st(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if s.atomic {
		return inTx(steps)
	}
	for _, st := range steps {
		if err := inTx([]step{st}); err != nil {
			return err
		}
	}
	return nil
}

// lockExpense loads an expense and write-locks its group plus extra. It
// re-reads after locking in case the expense moved groups in between.
func (s *ExpenseService) lockExpense(ctx context.Context, expenseID string, extra ...string) (models.Expense, func(), error) {
	for attempt := 0; attempt < 3; attempt++ {
		current, err := s.loadExpense(ctx, expenseID)
		if err != nil {
			return models.Expense{}, nil, err
		}
		unlock := s.locks.Lock(append([]string{deref(current.GroupID)}, extra...)...)
		locked, err := s.loadExpense(ctx, expenseID)
		if err != nil {
			unlock()
			return models.Expense{}, nil, err
		}
		if deref(locked.GroupID) == deref(current.GroupID) {
			return locked, unlock, nil
		}
		unlock()
	}
	return models.Expense{}, nil, ErrConcurrentUpdate
}

func (s *ExpenseService) loadExpense(ctx context.Context, expenseID string) (models.Expense, error) {
	expense, err := s.expenses.GetByID(ctx, nil, expenseID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return models.Expense{}, fmt.Errorf("load expense: %w", err)
	}
	return expense, err
}

func (s *ExpenseService) memberIDs(ctx context.Context, groupID string) ([]string, error) {
	members, err := s.groups.ListMembers(ctx, nil, groupID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	return models.Group{Members: members}.MemberIDs(), nil
}

// finish publishes the operation's single change event and records its outcome.
func (s *ExpenseService) finish(ctx context.Context, done func(string), operation string, event models.ChangeEvent, err error) {
	s.notifier.Publish(ctx, event)
	done(outcome(err))
	if err != nil {
		slog.Error("ledger operation failed", "operation", operation, "entity_id", event.EntityID, "group_id", event.GroupID, "error", err)
		return
	}
	slog.Info("ledger operation completed", "operation", operation, "entity_id", event.EntityID, "group_id", event.GroupID)
}
