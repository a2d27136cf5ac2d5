package ledger

import (
	"sort"

	"splitledger/internal/models"
	"splitledger/internal/money"
)

// Balance is a user's net position: positive means others owe them.
type Balance struct {
	UserID string      `json:"user_id"`
	Amount money.Money `json:"amount"`
}

type Transfer struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount money.Money `json:"amount"`
}

// NetBalances folds unsettled debts into per-user balances. Every member gets
// an entry even at zero; users that appear only in debts are included too.
// The result is ordered by user id.
func NetBalances(members []string, debts []models.Debt) []Balance {
	totals := make(map[string]money.Money, len(members))
	for _, id := range members {
		totals[id] += 0
	}
	for _, d := range debts {
		if d.IsSettled {
			continue
		}
		totals[d.OwedBy] -= d.Amount
		totals[d.OwedTo] += d.Amount
	}
	balances := make([]Balance, 0, len(totals))
	for id, amount := range totals {
		balances = append(balances, Balance{UserID: id, Amount: amount})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].UserID < balances[j].UserID })
	return balances
}

// Plan greedily pairs debtors with creditors in balance order. Each step
// exhausts at least one side, so the plan has fewer transfers than there are
// non-zero balances.
func Plan(balances []Balance) []Transfer {
	var creditors, debtors []Balance
	for _, b := range balances {
		switch {
		case b.Amount > 0:
			creditors = append(creditors, b)
		case b.Amount < 0:
			debtors = append(debtors, Balance{UserID: b.UserID, Amount: -b.Amount})
		}
	}

	var transfers []Transfer
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := money.Min(creditors[i].Amount, debtors[j].Amount)
		if amount > 0 {
			transfers = append(transfers, Transfer{From: debtors[j].UserID, To: creditors[i].UserID, Amount: amount})
		}
		creditors[i].Amount -= amount
		debtors[j].Amount -= amount
		if creditors[i].Amount <= 0 {
			i++
		}
		if debtors[j].Amount <= 0 {
			j++
		}
	}
	return transfers
}

// samePlan reports whether debts already are exactly the planned transfers.
func samePlan(debts []models.Debt, plan []Transfer) bool {
	if len(debts) != len(plan) {
		return false
	}
	want := make(map[[2]string]money.Money, len(plan))
	for _, t := range plan {
		want[[2]string{t.From, t.To}] = t.Amount
	}
	for _, d := range debts {
		amount, ok := want[[2]string{d.OwedBy, d.OwedTo}]
		if !ok || amount != d.Amount {
			return false
		}
		delete(want, [2]string{d.OwedBy, d.OwedTo})
	}
	return len(want) == 0
}
