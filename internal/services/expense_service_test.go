package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/split"
	"splitledger/internal/store/memory"

	"github.com/shopspring/decimal"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (r *recordingNotifier) Publish(_ context.Context, event models.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingNotifier) last() models.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type testEnv struct {
	store    *memory.Store
	svc      *ExpenseService
	dir      *DirectoryService
	notifier *recordingNotifier
}

var groupID = "g1"

func newTestEnv(t *testing.T, opts ...Option) testEnv {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	clock := fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	locks := NewGroupLocks()

	if err := s.Groups().Create(ctx, nil, models.Group{ID: groupID, Name: "Trip", CreatedAt: clock.at}); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	for _, u := range []models.User{{ID: "A", Name: "Ann"}, {ID: "B", Name: "Bob"}, {ID: "C", Name: "Cy"}, {ID: "D", Name: "Dee"}} {
		if err := s.Users().Create(ctx, nil, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		if u.ID == "D" {
			continue
		}
		if err := s.Groups().AddMember(ctx, nil, groupID, u.ID, clock.at); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}

	l := ledger.New(s.Debts(), clock)
	svc := NewExpenseService(s, s.Expenses(), s.Participants(), s.Groups(), s.Debts(), l, locks, clock, notifier, opts...)
	dir := NewDirectoryService(s, s.Users(), s.Groups(), s.Expenses(), locks, clock, notifier)
	return testEnv{store: s, svc: svc, dir: dir, notifier: notifier}
}

func ptr[T any](v T) *T { return &v }

func equalExpense(name, payer, amount string) ExpenseInput {
	return ExpenseInput{
		Name:           name,
		Amount:         money.MustParse(amount),
		Category:       models.CategoryFood,
		GroupID:        ptr(groupID),
		PaidBy:         ptr(payer),
		IsGroupExpense: true,
		Split:          &SplitInput{Policy: models.SplitEqual, Users: []string{"A", "B", "C"}},
	}
}

func debtEdges(t *testing.T, env testEnv) map[string]money.Money {
	t.Helper()
	debts, err := env.svc.ListDebts(context.Background(), groupID, false)
	if err != nil {
		t.Fatalf("list debts: %v", err)
	}
	out := make(map[string]money.Money, len(debts))
	for _, d := range debts {
		out[d.OwedBy+"->"+d.OwedTo] += d.Amount
	}
	return out
}

func assertDebts(t *testing.T, env testEnv, want map[string]money.Money) {
	t.Helper()
	got := debtEdges(t, env)
	if len(got) != len(want) {
		t.Fatalf("expected debts %v, got %v", want, got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("expected debts %v, got %v", want, got)
		}
	}
}

func mustCreate(t *testing.T, env testEnv, in ExpenseInput) models.Expense {
	t.Helper()
	expense, err := env.svc.CreateExpense(context.Background(), in)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return expense
}

func TestCreateExpenseEqualSplit(t *testing.T) {
	env := newTestEnv(t)
	expense := mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))
	if expense.SplitState != models.StateReconciled || expense.SplitPolicy != models.SplitEqual {
		t.Fatalf("unexpected expense state: %+v", expense)
	}
	assertDebts(t, env, map[string]money.Money{"B->A": 1000, "C->A": 1000})

	detail, err := env.svc.GetExpense(context.Background(), expense.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if len(detail.Participants) != 3 || !detail.SplitValid || detail.SplitDifference != 0 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if detail.SplitState != models.StateReconciled {
		t.Fatalf("expected stored state reconciled, got %s", detail.SplitState)
	}
	if env.notifier.count() != 1 || env.notifier.last().Kind != models.ChangeExpenseCreated {
		t.Fatalf("expected one create event, got %+v", env.notifier.events)
	}
}

func TestSecondExpenseSimplifies(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))
	mustCreate(t, env, equalExpense("Taxi", "B", "30.00"))
	assertDebts(t, env, map[string]money.Money{"C->A": 1000, "C->B": 1000})
}

func TestClearSplitReversesOnlyThatExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))
	mustCreate(t, env, equalExpense("Taxi", "B", "30.00"))

	if err := env.svc.ClearSplit(ctx, first.ID); err != nil {
		t.Fatalf("clear split: %v", err)
	}
	assertDebts(t, env, map[string]money.Money{"A->B": 1000, "C->B": 1000})

	detail, err := env.svc.GetExpense(ctx, first.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if detail.SplitState != models.StateUnsplit || detail.SplitPolicy != models.SplitNone || len(detail.Participants) != 0 {
		t.Fatalf("unexpected cleared expense: %+v", detail)
	}
	if env.notifier.count() != 3 || env.notifier.last().Kind != models.ChangeSplitCleared {
		t.Fatalf("expected clear event, got %+v", env.notifier.events)
	}

	// A cleared expense is no longer in the ledger, so clearing again changes nothing.
	if err := env.svc.ClearSplit(ctx, first.ID); err != nil {
		t.Fatalf("clear split again: %v", err)
	}
	assertDebts(t, env, map[string]money.Money{"A->B": 1000, "C->B": 1000})
}

func TestEditExpenseReversesOldParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))
	mustCreate(t, env, equalExpense("Taxi", "B", "30.00"))

	in := equalExpense("Dinner and drinks", "A", "60.00")
	in.Split = nil
	edited, err := env.svc.EditExpense(ctx, first.ID, in)
	if err != nil {
		t.Fatalf("edit expense: %v", err)
	}
	if edited.Name != "Dinner and drinks" || edited.Amount != 6000 || edited.SplitState != models.StateReconciled {
		t.Fatalf("unexpected edited expense: %+v", edited)
	}
	assertDebts(t, env, map[string]money.Money{"C->A": 3000})

	detail, err := env.svc.GetExpense(ctx, first.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	for _, p := range detail.Participants {
		if p.Amount != 2000 {
			t.Fatalf("expected reused equal split of 20.00, got %+v", detail.Participants)
		}
	}
	if !detail.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("edit must keep created_at")
	}
}

func TestEditExpenseKeepsEqualResidueOnSameParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := equalExpense("Dinner", "A", "10.00")
	in.Split = &SplitInput{Policy: models.SplitEqual, Users: []string{"C", "B", "A"}}
	first := mustCreate(t, env, in)

	edit := equalExpense("Dinner", "A", "20.00")
	edit.Split = nil
	if _, err := env.svc.EditExpense(ctx, first.ID, edit); err != nil {
		t.Fatalf("edit expense: %v", err)
	}
	detail, err := env.svc.GetExpense(ctx, first.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	want := []struct {
		user   string
		amount money.Money
	}{{"C", 666}, {"B", 666}, {"A", 668}}
	if len(detail.Participants) != len(want) {
		t.Fatalf("unexpected participants %+v", detail.Participants)
	}
	for i, w := range want {
		got := detail.Participants[i]
		if got.UserID != w.user || got.Amount != w.amount {
			t.Fatalf("participant %d: expected %s %s, got %+v", i, w.user, w.amount, got)
		}
	}
	assertDebts(t, env, map[string]money.Money{"B->A": 666, "C->A": 666})
}

func TestEditExpenseToPersonalDropsDebts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))

	edited, err := env.svc.EditExpense(ctx, first.ID, ExpenseInput{Name: "Dinner", Amount: 3000, PaidBy: ptr("A")})
	if err != nil {
		t.Fatalf("edit expense: %v", err)
	}
	if edited.IsGroupExpense || edited.SplitState != models.StateReconciled {
		t.Fatalf("unexpected personal expense: %+v", edited)
	}
	assertDebts(t, env, map[string]money.Money{})
}

func TestEditMissingExpense(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.EditExpense(context.Background(), "nope", equalExpense("Dinner", "A", "30.00"))
	if err == nil {
		t.Fatalf("expected not found error")
	}
	if env.notifier.count() != 0 {
		t.Fatalf("expected no events, got %+v", env.notifier.events)
	}
}

func TestDeleteExpenseCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))
	second := mustCreate(t, env, equalExpense("Taxi", "B", "30.00"))

	if err := env.svc.DeleteExpense(ctx, second.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	assertDebts(t, env, map[string]money.Money{"B->A": 1000, "C->A": 1000})
	if _, err := env.svc.GetExpense(ctx, second.ID); err == nil {
		t.Fatalf("expected deleted expense to be gone")
	}
	participants, _ := env.store.Participants().ListByExpense(ctx, nil, second.ID)
	if len(participants) != 0 {
		t.Fatalf("expected participants deleted, got %+v", participants)
	}
	if env.notifier.last().Kind != models.ChangeExpenseDeleted {
		t.Fatalf("expected delete event, got %+v", env.notifier.last())
	}
}

func TestMissingEntitiesAreNoOps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.svc.DeleteExpense(ctx, "nope"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := env.svc.ClearSplit(ctx, "nope"); err != nil {
		t.Fatalf("clear missing: %v", err)
	}
	debt, err := env.svc.SettleDebt(ctx, "nope")
	if err != nil || debt.ID != "" {
		t.Fatalf("settle missing: %+v %v", debt, err)
	}
	if env.notifier.count() != 0 {
		t.Fatalf("expected no events, got %+v", env.notifier.events)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	cases := []struct {
		name  string
		field string
		in    func() ExpenseInput
	}{
		{"empty name", "name", func() ExpenseInput { in := equalExpense(" ", "A", "30.00"); return in }},
		{"zero amount", "amount", func() ExpenseInput { in := equalExpense("Dinner", "A", "30.00"); in.Amount = 0; return in }},
		{"missing payer", "paid_by", func() ExpenseInput { in := equalExpense("Dinner", "A", "30.00"); in.PaidBy = nil; return in }},
		{"missing group", "group_id", func() ExpenseInput { in := equalExpense("Dinner", "A", "30.00"); in.GroupID = nil; return in }},
		{"unknown group", "group_id", func() ExpenseInput { in := equalExpense("Dinner", "A", "30.00"); in.GroupID = ptr("nope"); return in }},
		{"payer outside group", "paid_by", func() ExpenseInput { return equalExpense("Dinner", "D", "30.00") }},
		{"participant outside group", "split", func() ExpenseInput {
			in := equalExpense("Dinner", "A", "30.00")
			in.Split.Users = []string{"A", "D"}
			return in
		}},
		{"personal with split", "split", func() ExpenseInput {
			in := equalExpense("Dinner", "A", "30.00")
			in.IsGroupExpense = false
			in.GroupID = nil
			return in
		}},
		{"unknown policy", "split", func() ExpenseInput {
			in := equalExpense("Dinner", "A", "30.00")
			in.Split.Policy = "weighted"
			return in
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.svc.CreateExpense(context.Background(), tc.in())
			var ve *ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, ve.Field)
			}
			expenses, _ := env.svc.ListExpenses(context.Background(), models.ExpenseFilter{})
			if len(expenses) != 0 {
				t.Fatalf("validation failure must not write, got %+v", expenses)
			}
			if env.notifier.count() != 0 {
				t.Fatalf("validation failure must not publish, got %+v", env.notifier.events)
			}
		})
	}
}

func TestCreateExpenseWrapsSplitErrors(t *testing.T) {
	env := newTestEnv(t)
	in := equalExpense("Dinner", "A", "30.00")
	in.Split.Users = []string{"A", "A"}
	_, err := env.svc.CreateExpense(context.Background(), in)
	if !errors.Is(err, ErrValidation) || !errors.Is(err, split.ErrDuplicateUser) {
		t.Fatalf("expected wrapped duplicate user error, got %v", err)
	}
}

func TestCreateExpenseByAmount(t *testing.T) {
	env := newTestEnv(t)
	in := equalExpense("Groceries", "A", "100.00")
	in.Split = &SplitInput{Policy: models.SplitAmount, Shares: []split.Share{
		{UserID: "A", Value: decimal.RequireFromString("50")},
		{UserID: "B", Value: decimal.RequireFromString("30")},
		{UserID: "C", Value: decimal.RequireFromString("20")},
	}}
	mustCreate(t, env, in)
	assertDebts(t, env, map[string]money.Money{"B->A": 3000, "C->A": 2000})
}

func TestCreateExpenseDefaultsToEqualAcrossMembers(t *testing.T) {
	env := newTestEnv(t)
	in := equalExpense("Fuel", "C", "10.00")
	in.Split = nil
	mustCreate(t, env, in)
	// Members are ordered by name, so the residue cent lands on Cy.
	assertDebts(t, env, map[string]money.Money{"A->C": 333, "B->C": 333})
}

func TestStoreFailureRollsBackAndStillPublishes(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("disk full")
	env.store.Fail = func(op string) error {
		if op == "debts.create" {
			return boom
		}
		return nil
	}
	_, err := env.svc.CreateExpense(context.Background(), equalExpense("Dinner", "A", "30.00"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if env.notifier.count() != 1 {
		t.Fatalf("expected exactly one event, got %+v", env.notifier.events)
	}
	expenses, _ := env.svc.ListExpenses(context.Background(), models.ExpenseFilter{})
	if len(expenses) != 0 {
		t.Fatalf("atomic failure must roll back, got %+v", expenses)
	}
}

func TestNonAtomicFailureLeavesStateMarker(t *testing.T) {
	env := newTestEnv(t, WithAtomic(false))
	ctx := context.Background()
	boom := errors.New("disk full")
	env.store.Fail = func(op string) error {
		if op == "debts.create" {
			return boom
		}
		return nil
	}
	if _, err := env.svc.CreateExpense(ctx, equalExpense("Dinner", "A", "30.00")); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if env.notifier.count() != 1 {
		t.Fatalf("expected exactly one event, got %+v", env.notifier.events)
	}
	expenses, _ := env.svc.ListExpenses(ctx, models.ExpenseFilter{})
	if len(expenses) != 1 || expenses[0].SplitState != models.StateSplitPendingDebts {
		t.Fatalf("expected expense parked in split_pending_debts, got %+v", expenses)
	}

	env.store.Fail = nil
	if err := env.svc.DeleteExpense(ctx, expenses[0].ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	assertDebts(t, env, map[string]money.Money{})
}

func TestSettleDebt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))
	debts, _ := env.svc.ListDebts(ctx, groupID, false)
	var target models.Debt
	for _, d := range debts {
		if d.OwedBy == "B" {
			target = d
		}
	}
	settled, err := env.svc.SettleDebt(ctx, target.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !settled.IsSettled || settled.SettledAt == nil {
		t.Fatalf("expected settled debt, got %+v", settled)
	}
	if env.notifier.last().Kind != models.ChangeDebtSettled {
		t.Fatalf("expected settle event, got %+v", env.notifier.last())
	}

	balance, _ := env.svc.NetBalance(ctx, "B", ptr(groupID))
	if balance != 0 {
		t.Fatalf("expected B to be square, got %s", balance)
	}
	mustCreate(t, env, equalExpense("Lunch", "A", "6.00"))
	assertDebts(t, env, map[string]money.Money{"B->A": 200, "C->A": 1200})
	all, _ := env.svc.ListDebts(ctx, groupID, true)
	if len(all) != 3 {
		t.Fatalf("expected settled debt kept in history, got %+v", all)
	}
}

func TestDeleteAfterSettleRefundsThePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := equalExpense("Tickets", "A", "20.00")
	in.Split = &SplitInput{Policy: models.SplitEqual, Users: []string{"A", "B"}}
	expense := mustCreate(t, env, in)

	debts, _ := env.svc.ListDebts(ctx, groupID, false)
	if len(debts) != 1 || debts[0].OwedBy != "B" || debts[0].Amount != 1000 {
		t.Fatalf("expected B->A 10.00, got %+v", debts)
	}
	if _, err := env.svc.SettleDebt(ctx, debts[0].ID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := env.svc.DeleteExpense(ctx, expense.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}

	// B already paid A back, so undoing the expense leaves A owing the refund.
	assertDebts(t, env, map[string]money.Money{"A->B": 1000})
	balanceA, _ := env.svc.NetBalance(ctx, "A", ptr(groupID))
	balanceB, _ := env.svc.NetBalance(ctx, "B", ptr(groupID))
	if balanceA != -1000 || balanceB != 1000 {
		t.Fatalf("expected A -10.00 and B +10.00, got %s and %s", balanceA, balanceB)
	}
}

func TestNetBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mustCreate(t, env, equalExpense("Dinner", "A", "30.00"))
	mustCreate(t, env, equalExpense("Taxi", "B", "30.00"))
	want := map[string]money.Money{"A": 1000, "B": 1000, "C": -2000}
	for user, amount := range want {
		got, err := env.svc.NetBalance(ctx, user, nil)
		if err != nil {
			t.Fatalf("net balance: %v", err)
		}
		if got != amount {
			t.Fatalf("expected %s for %s, got %s", amount, user, got)
		}
	}

	balances, err := env.svc.GroupBalances(ctx, groupID)
	if err != nil {
		t.Fatalf("group balances: %v", err)
	}
	if len(balances) != 3 || balances[0].UserID != "A" || balances[2].Amount != -2000 {
		t.Fatalf("unexpected group balances: %+v", balances)
	}

	owed, _ := env.svc.OwedBetween(ctx, "C", "B", groupID)
	if owed != 1000 {
		t.Fatalf("expected C to owe B 10.00, got %s", owed)
	}
	owed, _ = env.svc.OwedBetween(ctx, "A", "B", groupID)
	if owed != 0 {
		t.Fatalf("expected nothing owed, got %s", owed)
	}
}

func TestCategoryTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	outing := equalExpense("Cinema", "B", "30.00")
	outing.Category = models.CategoryEntertainment
	mustCreate(t, env, outing)
	mustCreate(t, env, ExpenseInput{Name: "Sandwich", Amount: 500, Category: models.CategoryFood, PaidBy: ptr("A")})

	all, err := env.svc.CategoryTotals(ctx, models.ExpenseFilter{}, nil)
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	if all[models.CategoryFood] != 500 || all[models.CategoryEntertainment] != 3000 {
		t.Fatalf("unexpected totals: %v", all)
	}

	forA, _ := env.svc.CategoryTotals(ctx, models.ExpenseFilter{}, ptr("A"))
	if forA[models.CategoryFood] != 500 || forA[models.CategoryEntertainment] != 1000 {
		t.Fatalf("unexpected totals for A: %v", forA)
	}
	forB, _ := env.svc.CategoryTotals(ctx, models.ExpenseFilter{}, ptr("B"))
	if _, ok := forB[models.CategoryFood]; ok || forB[models.CategoryEntertainment] != 1000 {
		t.Fatalf("unexpected totals for B: %v", forB)
	}
}

func TestConcurrentCreatesKeepLedgerConsistent(t *testing.T) {
	env := newTestEnv(t)
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.CreateExpense(context.Background(), equalExpense("Round", "A", "30.00")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("create expense: %v", err)
	}
	assertDebts(t, env, map[string]money.Money{"B->A": 10000, "C->A": 10000})
	if env.notifier.count() != 10 {
		t.Fatalf("expected one event per create, got %d", env.notifier.count())
	}
}

func TestUserSplitAmount(t *testing.T) {
	participants := []models.Participant{{UserID: "A", Amount: 700}, {UserID: "B", Amount: 300}}
	group := models.Expense{Amount: 1000, IsGroupExpense: true, GroupID: ptr(groupID), PaidBy: ptr("A")}
	personal := models.Expense{Amount: 1000, PaidBy: ptr("A")}
	cases := []struct {
		name    string
		expense models.Expense
		user    string
		want    money.Money
	}{
		{"group participant", group, "B", 300},
		{"group outsider", group, "C", 0},
		{"personal owner", personal, "A", 1000},
		{"personal other user", personal, "B", 0},
		{"personal without payer", models.Expense{Amount: 1000}, "B", 1000},
	}
	for _, tc := range cases {
		if got := UserSplitAmount(tc.expense, participants, tc.user); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
	if !SplitValid(group, participants) || SplitDifference(group, participants[:1]) != 300 {
		t.Fatalf("unexpected split validity")
	}
}

func TestLockOrder(t *testing.T) {
	got := lockOrder([]string{"g2", "", "g1", "g2"})
	if len(got) != 2 || got[0] != "g1" || got[1] != "g2" {
		t.Fatalf("unexpected lock order %v", got)
	}
}
