// Package ledger owns the unsettled debt set of each group. Every write goes
// through Accrue, Reverse or Settle, and accrual and reversal end by
// re-simplifying the group, so stored debts are always in simplified form.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"splitledger/internal/metrics"
	"splitledger/internal/models"
	"splitledger/internal/money"
	"splitledger/internal/store"

	"github.com/google/uuid"
)

var ErrSelfDebt = errors.New("debtor and creditor are the same user")

type Clock interface {
	Now() time.Time
}

type DebtStore interface {
	GetByID(ctx context.Context, q store.Getter, debtID string) (models.Debt, error)
	FindUnsettled(ctx context.Context, q store.Getter, groupID, owedBy, owedTo string) (models.Debt, error)
	ListUnsettled(ctx context.Context, q store.Selecter, groupID string) ([]models.Debt, error)
	Create(ctx context.Context, tx store.Execer, debt models.Debt) error
	UpdateAmount(ctx context.Context, tx store.Execer, debtID string, amount money.Money) error
	Delete(ctx context.Context, tx store.Execer, debtID string) error
	DeleteUnsettled(ctx context.Context, tx store.Execer, groupID string) error
	MarkSettled(ctx context.Context, tx store.Execer, debtID string, at time.Time) error
	LockGroup(ctx context.Context, tx store.Execer, groupID string) error
}

type Ledger struct {
	debts DebtStore
	clock Clock
	newID func() string
}

func New(debts DebtStore, clock Clock) *Ledger {
	return &Ledger{debts: debts, clock: clock, newID: uuid.NewString}
}

// Entry is one expense's claim: Payer is owed Amount by each listed participant.
type Entry struct {
	GroupID      string
	Payer        string
	Participants []models.Participant
}

func (e Entry) qualifying() []models.Participant {
	out := make([]models.Participant, 0, len(e.Participants))
	for _, p := range e.Participants {
		if p.UserID == e.Payer || p.Amount <= 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Lock takes the cross-process lock for the group's debt set inside tx.
func (l *Ledger) Lock(ctx context.Context, tx store.Tx, groupID string) error {
	if err := l.debts.LockGroup(ctx, tx, groupID); err != nil {
		return fmt.Errorf("lock group debts: %w", err)
	}
	return nil
}

// Accrue charges each participant other than the payer, then simplifies the group.
func (l *Ledger) Accrue(ctx context.Context, tx store.Tx, entry Entry, members []string) ([]models.Debt, error) {
	for _, p := range entry.qualifying() {
		if err := l.add(ctx, tx, entry.GroupID, p.UserID, entry.Payer, p.Amount); err != nil {
			return nil, err
		}
	}
	return l.Simplify(ctx, tx, entry.GroupID, members)
}

// Reverse undoes Accrue for the same entry, then simplifies the group. When
// simplification has already folded the participant's debt into other edges,
// the uncovered part is booked in the opposite direction so net balances come
// out exactly as if the entry had never been accrued.
func (l *Ledger) Reverse(ctx context.Context, tx store.Tx, entry Entry, members []string) ([]models.Debt, error) {
	for _, p := range entry.qualifying() {
		if err := l.unwind(ctx, tx, entry.GroupID, p.UserID, entry.Payer, p.Amount); err != nil {
			return nil, err
		}
	}
	return l.Simplify(ctx, tx, entry.GroupID, members)
}

func (l *Ledger) add(ctx context.Context, tx store.Tx, groupID, owedBy, owedTo string, amount money.Money) error {
	if owedBy == owedTo {
		return ErrSelfDebt
	}
	existing, err := l.debts.FindUnsettled(ctx, tx, groupID, owedBy, owedTo)
	switch {
	case err == nil:
		if err := l.debts.UpdateAmount(ctx, tx, existing.ID, existing.Amount+amount); err != nil {
			return fmt.Errorf("increase debt: %w", err)
		}
		return nil
	case errors.Is(err, store.ErrNotFound):
		debt := models.Debt{
			ID:        l.newID(),
			GroupID:   groupID,
			OwedBy:    owedBy,
			OwedTo:    owedTo,
			Amount:    amount,
			CreatedAt: l.clock.Now(),
		}
		if err := l.debts.Create(ctx, tx, debt); err != nil {
			return fmt.Errorf("create debt: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find debt: %w", err)
	}
}

func (l *Ledger) unwind(ctx context.Context, tx store.Tx, groupID, owedBy, owedTo string, amount money.Money) error {
	remaining := amount
	existing, err := l.debts.FindUnsettled(ctx, tx, groupID, owedBy, owedTo)
	switch {
	case err == nil:
		left := existing.Amount - remaining
		if left > 0 {
			if err := l.debts.UpdateAmount(ctx, tx, existing.ID, left); err != nil {
				return fmt.Errorf("decrease debt: %w", err)
			}
			return nil
		}
		if err := l.debts.Delete(ctx, tx, existing.ID); err != nil {
			return fmt.Errorf("delete debt: %w", err)
		}
		remaining = -left
	case errors.Is(err, store.ErrNotFound):
	default:
		return fmt.Errorf("find debt: %w", err)
	}
	if remaining <= 0 {
		return nil
	}
	return l.add(ctx, tx, groupID, owedTo, owedBy, remaining)
}

// Simplify replaces the group's unsettled debts with the greedy settlement
// plan for the same net balances. A set already in planned form is left as is.
func (l *Ledger) Simplify(ctx context.Context, tx store.Tx, groupID string, members []string) ([]models.Debt, error) {
	current, err := l.debts.ListUnsettled(ctx, tx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	plan := Plan(NetBalances(members, current))
	if samePlan(current, plan) {
		metrics.ObserveSimplified(len(current))
		return current, nil
	}
	if err := l.debts.DeleteUnsettled(ctx, tx, groupID); err != nil {
		return nil, fmt.Errorf("clear debts: %w", err)
	}
	now := l.clock.Now()
	simplified := make([]models.Debt, 0, len(plan))
	for _, t := range plan {
		debt := models.Debt{
			ID:        l.newID(),
			GroupID:   groupID,
			OwedBy:    t.From,
			OwedTo:    t.To,
			Amount:    t.Amount,
			CreatedAt: now,
		}
		if err := l.debts.Create(ctx, tx, debt); err != nil {
			return nil, fmt.Errorf("create simplified debt: %w", err)
		}
		simplified = append(simplified, debt)
	}
	metrics.ObserveSimplified(len(simplified))
	slog.Debug("debts simplified", "group_id", groupID, "before", len(current), "after", len(simplified))
	return simplified, nil
}

// Settle marks an unsettled debt as paid. Settling an already settled debt is a no-op.
func (l *Ledger) Settle(ctx context.Context, tx store.Tx, debtID string) (models.Debt, error) {
	debt, err := l.debts.GetByID(ctx, tx, debtID)
	if err != nil {
		return models.Debt{}, err
	}
	if debt.IsSettled {
		return debt, nil
	}
	now := l.clock.Now()
	if err := l.debts.MarkSettled(ctx, tx, debtID, now); err != nil {
		return models.Debt{}, fmt.Errorf("settle debt: %w", err)
	}
	debt.IsSettled = true
	debt.SettledAt = &now
	return debt, nil
}
