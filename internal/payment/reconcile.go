package payment

import (
	"fmt"

	"github.com/smallbiznis/tally/internal/money"
	"github.com/smallbiznis/tally/internal/payment/domain"
)

// Reconcile sums a payment breakdown against the receipt grand total and
// derives the settlement status. Every split amount must be non-negative
// and carry a known method; balance due floors at zero (overpayment still
// completes the receipt, change handling is the register's problem).
func Reconcile(grandTotal money.Money, breakdown []domain.Split) (domain.Reconciliation, error) {
	if grandTotal.IsNegative() {
		return domain.Reconciliation{}, domain.ErrInvalidPayment
	}

	paid := money.Zero(grandTotal.Currency())
	for _, split := range breakdown {
		if !split.Method.Valid() {
			return domain.Reconciliation{}, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, split.Method)
		}
		if split.Amount.IsNegative() {
			return domain.Reconciliation{}, fmt.Errorf("%w: %s amount is negative", domain.ErrInvalidPayment, split.Method)
		}
		var err error
		paid, err = paid.Add(split.Amount)
		if err != nil {
			return domain.Reconciliation{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayment, err)
		}
	}

	due, err := grandTotal.SubClamped(paid)
	if err != nil {
		return domain.Reconciliation{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayment, err)
	}

	return domain.Reconciliation{
		AmountPaid: paid,
		BalanceDue: due,
		Status:     StatusFor(grandTotal, paid),
	}, nil
}

// StatusFor derives the settlement status from the two totals. Read paths
// use it to recompute status instead of trusting a stored value.
func StatusFor(grandTotal, paid money.Money) domain.Status {
	cmp, err := paid.Cmp(grandTotal)
	if err == nil && cmp >= 0 {
		return domain.StatusCompleted
	}
	if paid.IsZero() {
		return domain.StatusPending
	}
	return domain.StatusPartial
}
