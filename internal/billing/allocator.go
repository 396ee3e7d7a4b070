package billing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

// FeeRate is the processing-fee markup applied on top of every invoice subtotal.
var FeeRate = decimal.RequireFromString("0.0727")

var (
	ErrNoInvoices     = errors.New("payment settles no invoices")
	ErrEmptyInvoice   = errors.New("invoice has no member parcels")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrDuplicateShare = errors.New("invoice listed twice in one payment")

	ErrAllocationMismatch = errors.New("allocation mismatch")
)

// AllocationMismatchError means the invoice totals do not reconcile with the
// amount the gateway charged.
type AllocationMismatchError struct {
	Charged   money.Money
	Allocated money.Money
	Tolerance money.Money
}

func (e *AllocationMismatchError) Error() string {
	return fmt.Sprintf("%s: charged %s, allocated %s (tolerance %s)",
		ErrAllocationMismatch, e.Charged, e.Allocated, e.Tolerance)
}

func (e *AllocationMismatchError) Is(target error) bool {
	return target == ErrAllocationMismatch
}

// InvoiceShare is the caller-declared portion of a charge for one invoice.
type InvoiceShare struct {
	InvoiceID string
	Subtotal  money.Money
	ParcelIDs []string
}

type ParcelCharge struct {
	ParcelID string
	Subtotal money.Money
	Fee      money.Money
	Total    money.Money
}

type InvoiceCharge struct {
	InvoiceID string
	Subtotal  money.Money
	Fee       money.Money
	Total     money.Money
	Parcels   []ParcelCharge
}

type Allocation struct {
	Charged  money.Money
	Invoices []InvoiceCharge
}

// Allocated is the sum of all invoice totals.
func (a *Allocation) Allocated() money.Money {
	var sum money.Money
	for _, inv := range a.Invoices {
		sum += inv.Total
	}
	return sum
}

// WithFee returns round(subtotal * (1 + FeeRate)).
func WithFee(subtotal money.Money) money.Money {
	return subtotal.MulRate(decimal.NewFromInt(1).Add(FeeRate))
}

// Allocate distributes a fee-bearing charge across invoices and their member
// parcels. Invoices keep the caller's order. Inside an invoice parcels are
// ordered by id and the first one absorbs the split residual, so parcel
// totals always add up to the invoice total.
func Allocate(charged money.Money, shares []InvoiceShare) (*Allocation, error) {
	if len(shares) == 0 {
		return nil, ErrNoInvoices
	}
	if charged < 0 {
		return nil, fmt.Errorf("charge: %w", ErrNegativeAmount)
	}

	alloc := &Allocation{Charged: charged, Invoices: make([]InvoiceCharge, 0, len(shares))}
	seen := make(map[string]struct{}, len(shares))
	for _, share := range shares {
		if _, dup := seen[share.InvoiceID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateShare, share.InvoiceID)
		}
		seen[share.InvoiceID] = struct{}{}

		inv, err := allocateInvoice(share)
		if err != nil {
			return nil, err
		}
		alloc.Invoices = append(alloc.Invoices, inv)
	}

	if err := Reconcile(charged, alloc.Allocated(), len(alloc.Invoices)); err != nil {
		return nil, err
	}
	return alloc, nil
}

// Reconcile accepts a rounding drift of one cent per invoice.
func Reconcile(charged, allocated money.Money, invoices int) error {
	tolerance := money.Cent * money.Money(invoices)
	if charged.Sub(allocated).Abs() > tolerance {
		return &AllocationMismatchError{Charged: charged, Allocated: allocated, Tolerance: tolerance}
	}
	return nil
}

func allocateInvoice(share InvoiceShare) (InvoiceCharge, error) {
	if share.Subtotal < 0 {
		return InvoiceCharge{}, fmt.Errorf("invoice %s: %w", share.InvoiceID, ErrNegativeAmount)
	}
	if len(share.ParcelIDs) == 0 {
		return InvoiceCharge{}, fmt.Errorf("%w: %s", ErrEmptyInvoice, share.InvoiceID)
	}

	total := WithFee(share.Subtotal)
	inv := InvoiceCharge{
		InvoiceID: share.InvoiceID,
		Subtotal:  share.Subtotal,
		Fee:       total.Sub(share.Subtotal),
		Total:     total,
	}

	ids := append([]string(nil), share.ParcelIDs...)
	sort.Strings(ids)

	totals := total.Split(len(ids))
	subtotals := share.Subtotal.Split(len(ids))
	inv.Parcels = make([]ParcelCharge, len(ids))
	for i, id := range ids {
		inv.Parcels[i] = ParcelCharge{
			ParcelID: id,
			Subtotal: subtotals[i],
			Fee:      totals[i].Sub(subtotals[i]),
			Total:    totals[i],
		}
	}
	return inv, nil
}
