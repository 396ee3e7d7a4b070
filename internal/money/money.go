// Package money implements fixed-point USD amounts stored as integer cents.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents.
type Money int64

const (
	Zero Money = 0
	Cent Money = 1
)

var hundred = decimal.NewFromInt(100)

func FromCents(cents int64) Money {
	return Money(cents)
}

// FromDecimal rounds d half away from zero to whole cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse reads a dollar amount such as "12.34".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Cents() int64 {
	return int64(m)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) Add(o Money) Money {
	return m + o
}

func (m Money) Sub(o Money) Money {
	return m - o
}

func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

func (m Money) IsZero() bool {
	return m == 0
}

// MulRate multiplies by rate and rounds to cents.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(rate))
}

// Split divides m into k shares of round(m/k). The first share absorbs
// the rounding residual so the shares always sum to m. When rounding up
// would leave the first share negative, every share falls back to
// floor(m/k) and the first one takes the remaining cents.
func (m Money) Split(k int) []Money {
	if k <= 0 {
		return nil
	}
	n := Money(k)
	share := FromDecimal(m.Decimal().Div(decimal.NewFromInt(int64(k))))
	if m-share*(n-1) < 0 {
		share = m / n
	}
	shares := make([]Money, k)
	for i := 1; i < k; i++ {
		shares[i] = share
	}
	shares[0] = m - share*(n-1)
	return shares
}

func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts both 12.34 and "12.34".
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*m = FromDecimal(d)
	return nil
}
