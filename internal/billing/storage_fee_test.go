package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

var arrival = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func TestDailyRate(t *testing.T) {
	assert.True(t, decimal.RequireFromString("0.0625").Equal(DailyRate(DefaultDimensions)))
	assert.True(t, DailyRate(Dimensions{}).Equal(DailyRate(DefaultDimensions)), "unset dimensions use the default box")
	assert.True(t, decimal.RequireFromString("0.075").Equal(DailyRate(Dimensions{Length: 12, Width: 12, Height: 12})))
}

func TestStorageDebt(t *testing.T) {
	in := StorageInput{ArrivedAt: &arrival, Dimensions: Dimensions{Length: 12, Width: 12, Height: 10}}

	tests := []struct {
		name    string
		now     time.Time
		want    money.Money
		blocked bool
	}{
		{name: "same day", now: arrival, want: money.Zero},
		{name: "inside free period", now: arrival.Add(days(20)), want: money.Zero},
		{name: "last free day", now: arrival.Add(days(30)), want: money.Zero},
		{name: "started day counts", now: arrival.Add(days(30) + time.Hour), want: money.MustParse("0.06"), blocked: true},
		{name: "day 45", now: arrival.Add(days(45)), want: money.MustParse("0.94"), blocked: true},
		{name: "day 90", now: arrival.Add(days(90)), want: money.MustParse("3.75"), blocked: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			debt := StorageDebt(in, tc.now)
			assert.Equal(t, tc.want, debt)
			assert.Equal(t, tc.blocked, IsBlocked(debt))
		})
	}
}

func TestStorageDebtMonotonic(t *testing.T) {
	in := StorageInput{ArrivedAt: &arrival, Dimensions: Dimensions{Length: 20, Width: 14, Height: 9}}

	prev := money.Zero
	for h := 0; h <= 24*120; h += 7 {
		debt := StorageDebt(in, arrival.Add(time.Duration(h)*time.Hour))
		assert.GreaterOrEqual(t, debt.Cents(), prev.Cents(), "hour %d", h)
		if h <= 24*FreeDays {
			assert.True(t, debt.IsZero(), "hour %d", h)
		}
		prev = debt
	}
}

func TestStorageDebtAfterPayment(t *testing.T) {
	paidAt := arrival.Add(days(45))
	in := StorageInput{ArrivedAt: &arrival, PaidUntil: &paidAt}

	assert.Equal(t, money.Zero, StorageDebt(in, paidAt))
	assert.Equal(t, money.Zero, StorageDebt(in, paidAt.Add(23*time.Hour)), "partial day after payment is free")
	assert.Equal(t, money.MustParse("0.06"), StorageDebt(in, paidAt.Add(days(1))))
	assert.Equal(t, money.MustParse("0.63"), StorageDebt(in, paidAt.Add(days(10))))
	assert.Equal(t, money.Zero, StorageDebt(in, paidAt.Add(-days(3))), "clock skew never yields negative debt")
}

func TestStorageDebtWithoutArrival(t *testing.T) {
	assert.Equal(t, money.Zero, StorageDebt(StorageInput{}, arrival.Add(days(400))))
}

func TestIsBlocked(t *testing.T) {
	assert.False(t, IsBlocked(money.Zero))
	assert.False(t, IsBlocked(money.Cent))
	assert.True(t, IsBlocked(money.FromCents(2)))
}

func TestHandlingFee(t *testing.T) {
	tests := []struct {
		weight float64
		want   string
	}{
		{weight: 0.5, want: "3.00"},
		{weight: 10, want: "3.00"},
		{weight: 10.1, want: "5.00"},
		{weight: 30, want: "5.00"},
		{weight: 50, want: "8.00"},
		{weight: 50.01, want: "15.00"},
		{weight: 120, want: "15.00"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, HandlingFee(tc.weight).String(), "weight %v", tc.weight)
	}
	assert.False(t, IsHeavy(50))
	assert.True(t, IsHeavy(50.5))
}
