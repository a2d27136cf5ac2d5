// Package memory is an in-process implementation of the store interfaces,
// used by tests and by the server when DB_DRIVER=memory. Transactions are
// serialized and roll back by restoring a snapshot.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/store"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	// Fail, when set, is consulted before every write; a non-nil result is
	// returned as the write's error.
	Fail func(op string) error

	users        map[string]models.User
	groups       map[string]models.Group
	members      map[string]map[string]time.Time
	expenses     map[string]models.Expense
	participants map[string][]models.Participant
	debts        map[string]models.Debt
}

func New() *Store {
	return &Store{
		users:        make(map[string]models.User),
		groups:       make(map[string]models.Group),
		members:      make(map[string]map[string]time.Time),
		expenses:     make(map[string]models.Expense),
		participants: make(map[string][]models.Participant),
		debts:        make(map[string]models.Debt),
	}
}

type snapshot struct {
	users        map[string]models.User
	groups       map[string]models.Group
	members      map[string]map[string]time.Time
	expenses     map[string]models.Expense
	participants map[string][]models.Participant
	debts        map[string]models.Debt
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make(map[string]map[string]time.Time, len(s.members))
	for k, v := range s.members {
		members[k] = maps.Clone(v)
	}
	participants := make(map[string][]models.Participant, len(s.participants))
	for k, v := range s.participants {
		participants[k] = append([]models.Participant(nil), v...)
	}
	return snapshot{
		users:        maps.Clone(s.users),
		groups:       maps.Clone(s.groups),
		members:      members,
		expenses:     maps.Clone(s.expenses),
		participants: participants,
		debts:        maps.Clone(s.debts),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.groups = snap.groups
	s.members = snap.members
	s.expenses = snap.expenses
	s.participants = snap.participants
	s.debts = snap.debts
}

// WithTx runs fn with a nil transaction handle; the memory stores ignore it.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) check(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

func (s *Store) Users() *Users               { return &Users{s: s} }
func (s *Store) Groups() *Groups             { return &Groups{s: s} }
func (s *Store) Expenses() *Expenses         { return &Expenses{s: s} }
func (s *Store) Participants() *Participants { return &Participants{s: s} }
func (s *Store) Debts() *Debts               { return &Debts{s: s} }

type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, _ store.Execer, user models.User) error {
	if err := u.s.check("users.create"); err != nil {
		return err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	u.s.users[user.ID] = user
	return nil
}

func (u *Users) GetByID(_ context.Context, userID string) (models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[userID]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) ListByIDs(_ context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	var out []models.User
	for _, id := range ids {
		if user, ok := u.s.users[id]; ok {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type Groups struct{ s *Store }

func (g *Groups) Create(_ context.Context, _ store.Execer, group models.Group) error {
	if err := g.s.check("groups.create"); err != nil {
		return err
	}
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	group.Members = nil
	g.s.groups[group.ID] = group
	return nil
}

func (g *Groups) GetByID(_ context.Context, _ store.Getter, groupID string) (models.Group, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	group, ok := g.s.groups[groupID]
	if !ok {
		return models.Group{}, store.ErrNotFound
	}
	return group, nil
}

func (g *Groups) List(_ context.Context) ([]models.Group, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	out := make([]models.Group, 0, len(g.s.groups))
	for _, group := range g.s.groups {
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (g *Groups) AddMember(_ context.Context, _ store.Execer, groupID, userID string, joinedAt time.Time) error {
	if err := g.s.check("groups.add_member"); err != nil {
		return err
	}
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if g.s.members[groupID] == nil {
		g.s.members[groupID] = make(map[string]time.Time)
	}
	if _, ok := g.s.members[groupID][userID]; !ok {
		g.s.members[groupID][userID] = joinedAt
	}
	return nil
}

func (g *Groups) RemoveMember(_ context.Context, _ store.Execer, groupID, userID string) error {
	if err := g.s.check("groups.remove_member"); err != nil {
		return err
	}
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	delete(g.s.members[groupID], userID)
	return nil
}

func (g *Groups) ListMembers(_ context.Context, _ store.Selecter, groupID string) ([]models.User, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()
	out := make([]models.User, 0, len(g.s.members[groupID]))
	for userID := range g.s.members[groupID] {
		if user, ok := g.s.users[userID]; ok {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type Expenses struct{ s *Store }

func (e *Expenses) Create(_ context.Context, _ store.Execer, expense models.Expense) error {
	if err := e.s.check("expenses.create"); err != nil {
		return err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.expenses[expense.ID] = expense
	return nil
}

func (e *Expenses) Update(_ context.Context, _ store.Execer, expense models.Expense) error {
	if err := e.s.check("expenses.update"); err != nil {
		return err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	current, ok := e.s.expenses[expense.ID]
	if !ok {
		return store.ErrNotFound
	}
	expense.CreatedAt = current.CreatedAt
	e.s.expenses[expense.ID] = expense
	return nil
}

func (e *Expenses) UpdateState(_ context.Context, _ store.Execer, expenseID string, state models.SplitState, at time.Time) error {
	if err := e.s.check("expenses.update_state"); err != nil {
		return err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	expense, ok := e.s.expenses[expenseID]
	if !ok {
		return store.ErrNotFound
	}
	expense.SplitState = state
	expense.UpdatedAt = at
	e.s.expenses[expenseID] = expense
	return nil
}

func (e *Expenses) Delete(_ context.Context, _ store.Execer, expenseID string) error {
	if err := e.s.check("expenses.delete"); err != nil {
		return err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	delete(e.s.expenses, expenseID)
	delete(e.s.participants, expenseID)
	return nil
}

func (e *Expenses) GetByID(_ context.Context, _ store.Getter, expenseID string) (models.Expense, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	expense, ok := e.s.expenses[expenseID]
	if !ok {
		return models.Expense{}, store.ErrNotFound
	}
	return expense, nil
}

func (e *Expenses) List(_ context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []models.Expense
	for _, expense := range e.s.expenses {
		if !matches(expense, filter, search) {
			continue
		}
		out = append(out, expense)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SpentAt.Equal(out[j].SpentAt) {
			return out[i].SpentAt.After(out[j].SpentAt)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matches(e models.Expense, filter models.ExpenseFilter, search string) bool {
	if filter.GroupID != nil {
		if e.GroupID == nil || *e.GroupID != *filter.GroupID {
			return false
		}
	} else if filter.PersonalOnly && e.GroupID != nil {
		return false
	}
	if filter.IsGroupExpense != nil && e.IsGroupExpense != *filter.IsGroupExpense {
		return false
	}
	if len(filter.Categories) > 0 {
		found := false
		for _, c := range filter.Categories {
			if c == e.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return search == "" || strings.Contains(strings.ToLower(e.Name), search)
}

func (e *Expenses) SumByGroup(_ context.Context, groupID string) (money.Money, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	var total money.Money
	for _, expense := range e.s.expenses {
		if expense.GroupID != nil && *expense.GroupID == groupID {
			total += expense.Amount
		}
	}
	return total, nil
}

type Participants struct{ s *Store }

func (p *Participants) InsertBatch(_ context.Context, _ store.Execer, participants []models.Participant) error {
	if err := p.s.check("participants.insert"); err != nil {
		return err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, participant := range participants {
		p.s.participants[participant.ExpenseID] = append(p.s.participants[participant.ExpenseID], participant)
	}
	return nil
}

func (p *Participants) DeleteByExpense(_ context.Context, _ store.Execer, expenseID string) error {
	if err := p.s.check("participants.delete"); err != nil {
		return err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	delete(p.s.participants, expenseID)
	return nil
}

func (p *Participants) ListByExpense(_ context.Context, _ store.Selecter, expenseID string) ([]models.Participant, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	out := append([]models.Participant(nil), p.s.participants[expenseID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (p *Participants) ListByUser(_ context.Context, userID string) ([]models.Participant, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	var out []models.Participant
	for _, batch := range p.s.participants {
		for _, participant := range batch {
			if participant.UserID == userID {
				out = append(out, participant)
			}
		}
	}
	return out, nil
}

type Debts struct{ s *Store }

func (d *Debts) Create(_ context.Context, _ store.Execer, debt models.Debt) error {
	if err := d.s.check("debts.create"); err != nil {
		return err
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	d.s.debts[debt.ID] = debt
	return nil
}

func (d *Debts) GetByID(_ context.Context, _ store.Getter, debtID string) (models.Debt, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	debt, ok := d.s.debts[debtID]
	if !ok {
		return models.Debt{}, store.ErrNotFound
	}
	return debt, nil
}

func (d *Debts) FindUnsettled(_ context.Context, _ store.Getter, groupID, owedBy, owedTo string) (models.Debt, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	for _, debt := range d.s.debts {
		if !debt.IsSettled && debt.GroupID == groupID && debt.OwedBy == owedBy && debt.OwedTo == owedTo {
			return debt, nil
		}
	}
	return models.Debt{}, store.ErrNotFound
}

func (d *Debts) ListUnsettled(_ context.Context, _ store.Selecter, groupID string) ([]models.Debt, error) {
	return d.collect(func(debt models.Debt) bool {
		return !debt.IsSettled && debt.GroupID == groupID
	}), nil
}

func (d *Debts) ListByGroup(_ context.Context, groupID string, includeSettled bool) ([]models.Debt, error) {
	out := d.collect(func(debt models.Debt) bool {
		return debt.GroupID == groupID && (includeSettled || !debt.IsSettled)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsSettled != out[j].IsSettled {
			return !out[i].IsSettled
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (d *Debts) ListUnsettledForUser(_ context.Context, userID string, groupID *string) ([]models.Debt, error) {
	return d.collect(func(debt models.Debt) bool {
		if debt.IsSettled || (debt.OwedBy != userID && debt.OwedTo != userID) {
			return false
		}
		return groupID == nil || debt.GroupID == *groupID
	}), nil
}

// collect returns matching debts ordered by group, owed_by, owed_to.
func (d *Debts) collect(keep func(models.Debt) bool) []models.Debt {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	var out []models.Debt
	for _, debt := range d.s.debts {
		if keep(debt) {
			out = append(out, debt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		if a.OwedBy != b.OwedBy {
			return a.OwedBy < b.OwedBy
		}
		if a.OwedTo != b.OwedTo {
			return a.OwedTo < b.OwedTo
		}
		return a.ID < b.ID
	})
	return out
}

func (d *Debts) UpdateAmount(_ context.Context, _ store.Execer, debtID string, amount money.Money) error {
	if err := d.s.check("debts.update_amount"); err != nil {
		return err
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	debt, ok := d.s.debts[debtID]
	if !ok || debt.IsSettled {
		return store.ErrNotFound
	}
	debt.Amount = amount
	d.s.debts[debtID] = debt
	return nil
}

func (d *Debts) Delete(_ context.Context, _ store.Execer, debtID string) error {
	if err := d.s.check("debts.delete"); err != nil {
		return err
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	delete(d.s.debts, debtID)
	return nil
}

func (d *Debts) DeleteUnsettled(_ context.Context, _ store.Execer, groupID string) error {
	if err := d.s.check("debts.delete_unsettled"); err != nil {
		return err
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	for id, debt := range d.s.debts {
		if debt.GroupID == groupID && !debt.IsSettled {
			delete(d.s.debts, id)
		}
	}
	return nil
}

func (d *Debts) MarkSettled(_ context.Context, _ store.Execer, debtID string, at time.Time) error {
	if err := d.s.check("debts.mark_settled"); err != nil {
		return err
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	debt, ok := d.s.debts[debtID]
	if !ok || debt.IsSettled {
		return store.ErrNotFound
	}
	settledAt := at
	debt.IsSettled = true
	debt.SettledAt = &settledAt
	d.s.debts[debtID] = debt
	return nil
}

func (d *Debts) LockGroup(context.Context, store.Execer, string) error {
	return nil
}
