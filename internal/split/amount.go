package split

import (
	"splitledger/internal/models"
	"splitledger/internal/money"

	"github.com/shopspring/decimal"
)

type AmountStrategy struct{}

func (AmountStrategy) Policy() models.SplitPolicy {
	return models.SplitAmount
}

func (AmountStrategy) Validate(req Request) error {
	if len(req.Users) > 0 {
		return ErrUsersForShares
	}
	return checkShares(req.Shares)
}

func (AmountStrategy) Allocate(total money.Money, req Request) []Allocation {
	return normalize(total, req.Shares)
}

// normalize turns arbitrary-precision amounts into cents summing to total.
// Amounts off by more than a cent are rescaled proportionally first. The
// residual lands on the lexicographically greatest user id holding a positive
// amount, and non-positive results are dropped.
func normalize(total money.Money, shares []Share) []Allocation {
	if total <= 0 || len(shares) == 0 {
		return nil
	}
	target := total.Decimal()
	provided := decimal.Zero
	for _, s := range shares {
		provided = provided.Add(s.Value)
	}

	rescale := provided.IsPositive() && provided.Sub(target).Abs().GreaterThan(money.Cent.Decimal())
	amounts := make([]money.Money, len(shares))
	var sum money.Money
	for i, s := range shares {
		value := s.Value
		if rescale {
			value = value.Mul(target).Div(provided)
		}
		amounts[i] = money.FromDecimal(value)
		sum += amounts[i]
	}

	// A negative residual larger than the designated amount moves on to the
	// next candidate; total > 0 guarantees this terminates.
	for residual := total - sum; residual != 0; {
		d := designated(shares, amounts)
		next := amounts[d] + residual
		if next > 0 || amounts[d] <= 0 {
			amounts[d] = next
			break
		}
		amounts[d] = 0
		residual = next
	}

	allocations := make([]Allocation, 0, len(shares))
	for i, s := range shares {
		if amounts[i] <= 0 {
			continue
		}
		allocations = append(allocations, Allocation{UserID: s.UserID, Amount: amounts[i]})
	}
	return allocations
}

func designated(shares []Share, amounts []money.Money) int {
	pick := -1
	for i, s := range shares {
		if amounts[i] <= 0 {
			continue
		}
		if pick < 0 || s.UserID > shares[pick].UserID {
			pick = i
		}
	}
	if pick >= 0 {
		return pick
	}
	pick = 0
	for i, s := range shares {
		if s.UserID > shares[pick].UserID {
			pick = i
		}
	}
	return pick
}
