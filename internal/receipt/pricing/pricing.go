// Package pricing is the pure line-item engine: per-line gross/net
// amounts and receipt-level subtotal, tax and grand total. No I/O, no
// clock, no shared state; callers resolve tax rates and loyalty discounts
// first and persist afterwards.
package pricing

import (
	"fmt"

	"github.com/smallbiznis/tally/internal/money"
	receiptdomain "github.com/smallbiznis/tally/internal/receipt/domain"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
)

// LineAmounts is the derived money for one line item.
type LineAmounts struct {
	GrossTotal money.Money
	NetTotal   money.Money
}

// Totals is the derived money for a whole receipt.
type Totals struct {
	Subtotal       money.Money // net lines, returned lines excluded
	OrderDiscount  money.Money
	TaxableBase    money.Money // subtotal after order discount
	TaxRate        float64
	TaxAmount      money.Money
	GrandTotal     money.Money
}

// ComputeLine derives gross and net totals for one line item. Quantity
// must be at least one and the line discount may not exceed the gross.
func ComputeLine(item receiptdomain.LineItem) (LineAmounts, error) {
	if item.Quantity < 1 {
		return LineAmounts{}, fmt.Errorf("%w: quantity %d", receiptdomain.ErrInvalidLineItem, item.Quantity)
	}
	if item.UnitPrice.IsNegative() || item.LineDiscount.IsNegative() {
		return LineAmounts{}, receiptdomain.ErrInvalidLineItem
	}

	gross, err := item.UnitPrice.MulInt(item.Quantity)
	if err != nil {
		return LineAmounts{}, fmt.Errorf("%w: %v", receiptdomain.ErrInvalidLineItem, err)
	}

	net, err := gross.Sub(item.LineDiscount)
	if err != nil {
		// Discount larger than the line itself.
		return LineAmounts{}, fmt.Errorf("%w: line discount exceeds gross total", receiptdomain.ErrInvalidLineItem)
	}

	return LineAmounts{GrossTotal: gross, NetTotal: net}, nil
}

// ComputeReceiptTotals aggregates the lines into subtotal, tax and grand
// total. Lines flagged returned are excluded. Tax applies to the subtotal
// after the order discount; with an inclusive tax mode the grand total
// already contains the tax portion.
func ComputeReceiptTotals(lines []receiptdomain.LineItem, orderDiscount money.Money, taxRate float64, taxMode taxdomain.TaxMode, currency string) (Totals, error) {
	if orderDiscount.IsNegative() {
		return Totals{}, receiptdomain.ErrExcessiveDiscount
	}

	subtotal := money.Zero(currency)
	for i, item := range lines {
		amounts, err := ComputeLine(item)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: %w", i, err)
		}
		if item.Returned {
			continue
		}
		subtotal, err = subtotal.Add(amounts.NetTotal)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: %w", i, err)
		}
	}

	base, err := subtotal.Sub(orderDiscount)
	if err != nil {
		return Totals{}, fmt.Errorf("%w: discount %s against subtotal %s",
			receiptdomain.ErrExcessiveDiscount, orderDiscount, subtotal)
	}

	tax, grand, err := applyTax(base, taxRate, taxMode)
	if err != nil {
		return Totals{}, err
	}

	return Totals{
		Subtotal:      subtotal,
		OrderDiscount: orderDiscount,
		TaxableBase:   base,
		TaxRate:       taxRate,
		TaxAmount:     tax,
		GrandTotal:    grand,
	}, nil
}

func applyTax(base money.Money, rate float64, mode taxdomain.TaxMode) (tax, grand money.Money, err error) {
	if rate == 0 {
		return money.Zero(base.Currency()), base, nil
	}

	switch mode {
	case taxdomain.TaxModeInclusive:
		// Tax portion already inside the base: tax = base * r/(1+r).
		tax, err = base.PercentOf(rate / (1 + rate))
		if err != nil {
			return money.Money{}, money.Money{}, err
		}
		return tax, base, nil
	case taxdomain.TaxModeExclusive, "":
		tax, err = base.PercentOf(rate)
		if err != nil {
			return money.Money{}, money.Money{}, err
		}
		grand, err = base.Add(tax)
		if err != nil {
			return money.Money{}, money.Money{}, err
		}
		return tax, grand, nil
	default:
		return money.Money{}, money.Money{}, taxdomain.ErrInvalidTaxMode
	}
}
