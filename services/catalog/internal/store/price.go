package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Price is a monetary amount in hundredths (NUMERIC(10,2) in the schema).
type Price int64

// maxPriceCents bounds NUMERIC(10,2): eight integer digits.
var maxPriceCents = decimal.New(1, 10)

// PriceFromFloat rounds f to the nearest cent using its shortest decimal
// form, so 1.005 becomes 1.01.
func PriceFromFloat(f float64) (Price, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("price: not a finite number")
	}
	return fromDecimal(decimal.NewFromFloat(f))
}

// ParsePrice parses a decimal string such as "9.99", "10", "-0.5" or "1e2".
// Half cents round away from zero, as Postgres NUMERIC does.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("price: empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price: %w", err)
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Price, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThanOrEqual(maxPriceCents) {
		return 0, fmt.Errorf("price: %s out of range", d.String())
	}
	return Price(cents.IntPart()), nil
}

func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders the price as a decimal string, e.g. "9.99".
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the string form written by MarshalJSON as well as a
// bare JSON number.
func (p *Price) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("price: %w", err)
		}
		s = n.String()
	}
	v, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
