package analytics

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent is a percentage rounded to two decimal places.
type Percent struct {
	d decimal.Decimal
}

// PercentOf returns num/den*100, or zero when den is zero.
func PercentOf(num, den int64) Percent {
	if den == 0 {
		return Percent{}
	}
	q := decimal.NewFromInt(num).Mul(hundred).Div(decimal.NewFromInt(den))
	return Percent{d: q.Round(2)}
}

// Decimal returns the underlying value.
func (p Percent) Decimal() decimal.Decimal { return p.d }

// Float64 returns the value for presentation.
func (p Percent) Float64() float64 {
	f, _ := p.d.Float64()
	return f
}

// String formats with exactly two decimals, e.g. "66.67".
func (p Percent) String() string { return p.d.StringFixed(2) }

// MarshalJSON encodes the percentage as a JSON number.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.d.StringFixed(2)), nil
}

// UnmarshalJSON decodes a JSON number or numeric string.
func (p *Percent) UnmarshalJSON(b []byte) error {
	return p.d.UnmarshalJSON(b)
}

// Equal compares two percentages.
func (p Percent) Equal(o Percent) bool { return p.d.Equal(o.d) }
