package split

import (
	"splitledger/internal/models"
	"splitledger/internal/money"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type PercentageStrategy struct{}

func (PercentageStrategy) Policy() models.SplitPolicy {
	return models.SplitPercentage
}

func (PercentageStrategy) Validate(req Request) error {
	if len(req.Users) > 0 {
		return ErrUsersForShares
	}
	return checkShares(req.Shares)
}

// Allocate converts percentages of total into amounts and normalizes them
// like an amount split, so percentages that miss 100 are rescaled.
func (PercentageStrategy) Allocate(total money.Money, req Request) []Allocation {
	amounts := make([]Share, 0, len(req.Shares))
	base := total.Decimal()
	for _, s := range req.Shares {
		amounts = append(amounts, Share{
			UserID: s.UserID,
			Value:  base.Mul(s.Value).Div(hundred),
		})
	}
	return normalize(total, amounts)
}
