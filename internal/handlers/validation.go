package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"splitledger/internal/money"
	"splitledger/internal/split"

	"github.com/shopspring/decimal"
)

var (
	errAmountRequired = errors.New("amount is required")
	errInvalidAmount  = errors.New("invalid amount")
	errInvalidShare   = errors.New("invalid share value")
)

// parseAmount accepts a decimal string with at most two places. Positivity is
// checked by the services so the error carries a field name.
func parseAmount(raw string) (money.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errAmountRequired
	}
	amount, err := money.Parse(raw)
	if err != nil {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseShare(userID, raw string) (split.Share, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return split.Share{}, errInvalidShare
	}
	if value.Exponent() < -6 {
		return split.Share{}, errInvalidShare
	}
	return split.Share{UserID: strings.TrimSpace(userID), Value: value}, nil
}

// numeric holds a JSON value given either as a string or as a bare number.
type numeric string

func (n *numeric) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		return nil
	case strings.HasPrefix(raw, `"`):
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*n = numeric(value)
	default:
		*n = numeric(raw)
	}
	return nil
}

func parseBoolParam(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
