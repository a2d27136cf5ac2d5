package split

import (
	"splitledger/internal/models"
	"splitledger/internal/money"
)

// EqualStrategy gives everyone the floored per-head amount; the last user in
// input order absorbs the residue.
type EqualStrategy struct{}

func (EqualStrategy) Policy() models.SplitPolicy {
	return models.SplitEqual
}

func (EqualStrategy) Validate(req Request) error {
	if len(req.Shares) > 0 {
		return ErrSharesForEqual
	}
	return checkUsers(req.Users)
}

func (EqualStrategy) Allocate(total money.Money, req Request) []Allocation {
	n := money.Money(len(req.Users))
	if n == 0 || total <= 0 {
		return nil
	}
	base := total / n
	allocations := make([]Allocation, 0, len(req.Users))
	for i, userID := range req.Users {
		amount := base
		if i == len(req.Users)-1 {
			amount = total - base*(n-1)
		}
		allocations = append(allocations, Allocation{UserID: userID, Amount: amount})
	}
	return allocations
}
