package models

import (
	"strings"
	"time"

	"splitledger/internal/money"
)

type Category string

const (
	CategoryDonation       Category = "donation"
	CategoryFood           Category = "food"
	CategoryEntertainment  Category = "entertainment"
	CategoryHealth         Category = "health"
	CategoryShopping       Category = "shopping"
	CategoryTransportation Category = "transportation"
	CategoryUtilities      Category = "utilities"
	CategoryOther          Category = "other"
)

var Categories = []Category{
	CategoryDonation,
	CategoryFood,
	CategoryEntertainment,
	CategoryHealth,
	CategoryShopping,
	CategoryTransportation,
	CategoryUtilities,
	CategoryOther,
}

// ParseCategory falls back to CategoryOther for anything unknown.
func ParseCategory(raw string) Category {
	value := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, c := range Categories {
		if c == value {
			return c
		}
	}
	return CategoryOther
}

type SplitPolicy string

const (
	SplitNone       SplitPolicy = ""
	SplitEqual      SplitPolicy = "equal"
	SplitAmount     SplitPolicy = "amount"
	SplitPercentage SplitPolicy = "percentage"
)

// SplitState tracks how far an expense has been carried into the ledger.
type SplitState string

const (
	StateUnsplit           SplitState = "unsplit"
	StateSplitPendingDebts SplitState = "split_pending_debts"
	StateReconciled        SplitState = "reconciled"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Members   []User    `db:"-" json:"members"`
}

func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (g Group) MemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

type Expense struct {
	ID             string      `db:"id" json:"id"`
	Name           string      `db:"name" json:"name"`
	Amount         money.Money `db:"amount" json:"amount"`
	Category       Category    `db:"category" json:"category"`
	SpentAt        time.Time   `db:"spent_at" json:"spent_at"`
	GroupID        *string     `db:"group_id" json:"group_id,omitempty"`
	PaidBy         *string     `db:"paid_by" json:"paid_by,omitempty"`
	IsGroupExpense bool        `db:"is_group_expense" json:"is_group_expense"`
	SplitPolicy    SplitPolicy `db:"split_policy" json:"split_policy"`
	SplitState     SplitState  `db:"split_state" json:"split_state"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// InLedger reports whether the expense's participants are currently accrued as debts.
func (e Expense) InLedger() bool {
	return e.IsGroupExpense && e.GroupID != nil && e.PaidBy != nil && e.SplitState == StateReconciled
}

type Participant struct {
	ID        string      `db:"id" json:"id"`
	ExpenseID string      `db:"expense_id" json:"expense_id"`
	UserID    string      `db:"user_id" json:"user_id"`
	Amount    money.Money `db:"amount" json:"amount"`
	// Position is the participant's index in the split input.
	Position int `db:"position" json:"-"`
}

type Debt struct {
	ID        string      `db:"id" json:"id"`
	GroupID   string      `db:"group_id" json:"group_id"`
	OwedBy    string      `db:"owed_by" json:"owed_by"`
	OwedTo    string      `db:"owed_to" json:"owed_to"`
	Amount    money.Money `db:"amount" json:"amount"`
	IsSettled bool        `db:"is_settled" json:"is_settled"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	SettledAt *time.Time  `db:"settled_at" json:"settled_at,omitempty"`
}

// ExpenseFilter narrows expense listings. Zero values match everything.
type ExpenseFilter struct {
	GroupID        *string
	PersonalOnly   bool
	Categories     []Category
	Search         string
	IsGroupExpense *bool
}

type ChangeKind string

const (
	ChangeExpenseCreated ChangeKind = "expense_created"
	ChangeExpenseUpdated ChangeKind = "expense_updated"
	ChangeExpenseDeleted ChangeKind = "expense_deleted"
	ChangeSplitCleared   ChangeKind = "split_cleared"
	ChangeDebtSettled    ChangeKind = "debt_settled"
	ChangeGroupUpdated   ChangeKind = "group_updated"
)

// ChangeEvent tells observers that ledger state changed. GroupID is empty for
// personal expenses.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	GroupID  string     `json:"group_id,omitempty"`
	EntityID string     `json:"entity_id"`
}
