// Package billing holds the hub's pricing rules: storage debt proration,
// handling fees and payment allocation.
package billing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

const (
	FreeDays = 30

	cubicInchesPerFoot = 1728
	daysPerMonth       = 30
)

var (
	RatePerCubicFootPerMonth = decimal.RequireFromString("2.25")

	// BlockThreshold is the debt above which a parcel is storage-locked.
	BlockThreshold = money.Cent

	DefaultDimensions = Dimensions{Length: 12, Width: 12, Height: 10}
)

// Dimensions are in inches.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OrDefault substitutes the legacy 12x12x10 box when any side is unset.
func (d Dimensions) OrDefault() Dimensions {
	if d.Length <= 0 || d.Width <= 0 || d.Height <= 0 {
		return DefaultDimensions
	}
	return d
}

func (d Dimensions) cubicInches() decimal.Decimal {
	d = d.OrDefault()
	return decimal.NewFromFloat(d.Length).
		Mul(decimal.NewFromFloat(d.Width)).
		Mul(decimal.NewFromFloat(d.Height))
}

// CubicFeet returns the volume of d, using the default box for unset sides.
func (d Dimensions) CubicFeet() decimal.Decimal {
	return d.cubicInches().Div(decimal.NewFromInt(cubicInchesPerFoot))
}

// StorageInput is everything the storage projection depends on.
type StorageInput struct {
	ArrivedAt  *time.Time
	PaidUntil  *time.Time
	Dimensions Dimensions
}

// DailyRate is the storage charge per day for a parcel of dimensions d,
// (volume * monthly rate) / 30 with a single division.
func DailyRate(d Dimensions) decimal.Decimal {
	return d.cubicInches().
		Mul(RatePerCubicFootPerMonth).
		Div(decimal.NewFromInt(cubicInchesPerFoot * daysPerMonth))
}

// OverdueDays counts the billable storage days at now.
//
// After a settlement only whole days past the paid-until mark are billed.
// Without one, every started day counts and the first FreeDays are free.
func OverdueDays(in StorageInput, now time.Time) int64 {
	if in.PaidUntil != nil {
		days := math.Floor(daysBetween(*in.PaidUntil, now))
		return int64(math.Max(0, days))
	}
	if in.ArrivedAt == nil {
		return 0
	}
	total := math.Ceil(daysBetween(*in.ArrivedAt, now))
	return int64(math.Max(0, total-FreeDays))
}

// StorageDebt projects the accrued storage fee at now. It is pure and never
// settles anything.
func StorageDebt(in StorageInput, now time.Time) money.Money {
	overdue := OverdueDays(in, now)
	if overdue == 0 {
		return money.Zero
	}
	return money.FromDecimal(DailyRate(in.Dimensions).Mul(decimal.NewFromInt(overdue)))
}

// IsBlocked reports whether debt locks the parcel. A balance of one cent or
// less never locks.
func IsBlocked(debt money.Money) bool {
	return debt > BlockThreshold
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}
