// Package split distributes an expense total across participants so the
// allocated amounts always add up to the total exactly.
package split

import (
	"errors"
	"fmt"

	"splitledger/internal/models"
	"splitledger/internal/money"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownPolicy  = errors.New("unknown split policy")
	ErrDuplicateUser  = errors.New("participant listed more than once")
	ErrNegativeShare  = errors.New("share cannot be negative")
	ErrMissingUserID  = errors.New("participant user id is required")
	ErrSharesForEqual = errors.New("equal split takes users, not shares")
	ErrUsersForShares = errors.New("amount and percentage splits take shares, not users")
)

// Share is a per-user input value: an amount for SplitAmount or a percentage for SplitPercentage.
type Share struct {
	UserID string          `json:"user_id"`
	Value  decimal.Decimal `json:"value"`
}

type Allocation struct {
	UserID string      `json:"user_id"`
	Amount money.Money `json:"amount"`
}

type Request struct {
	Policy models.SplitPolicy
	Users  []string
	Shares []Share
}

// Participants returns the user ids named by the request in input order.
func (r Request) Participants() []string {
	if r.Policy == models.SplitEqual {
		return r.Users
	}
	ids := make([]string, 0, len(r.Shares))
	for _, s := range r.Shares {
		ids = append(ids, s.UserID)
	}
	return ids
}

type Strategy interface {
	Policy() models.SplitPolicy
	Validate(req Request) error
	Allocate(total money.Money, req Request) []Allocation
}

func New(policy models.SplitPolicy) (Strategy, error) {
	switch policy {
	case models.SplitEqual:
		return EqualStrategy{}, nil
	case models.SplitAmount:
		return AmountStrategy{}, nil
	case models.SplitPercentage:
		return PercentageStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// Calculate validates the request and allocates total. A non-positive total or an
// empty participant list yields no allocations and no error.
func Calculate(total money.Money, req Request) ([]Allocation, error) {
	strategy, err := New(req.Policy)
	if err != nil {
		return nil, err
	}
	if err := strategy.Validate(req); err != nil {
		return nil, err
	}
	if total <= 0 || len(req.Participants()) == 0 {
		return nil, nil
	}
	return strategy.Allocate(total, req), nil
}

func Total(allocations []Allocation) money.Money {
	var sum money.Money
	for _, a := range allocations {
		sum += a.Amount
	}
	return sum
}

func checkUsers(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return ErrMissingUserID
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateUser, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func checkShares(shares []Share) error {
	ids := make([]string, 0, len(shares))
	for _, s := range shares {
		if s.Value.IsNegative() {
			return fmt.Errorf("%w: %s", ErrNegativeShare, s.UserID)
		}
		ids = append(ids, s.UserID)
	}
	return checkUsers(ids)
}
