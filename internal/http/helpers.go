package http

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"walletlens/internal/core"
)

// sanitizeInput drops control characters (except tab and newlines) and trims.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// flexAmount accepts an amount sent as a JSON number or a string such as
// "12,34".
type flexAmount string

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = flexAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("amount must be a number or a string")
	}
	*a = flexAmount(n.String())
	return nil
}

func (a flexAmount) Decimal() (decimal.Decimal, error) {
	return core.ParseAmount(string(a))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
