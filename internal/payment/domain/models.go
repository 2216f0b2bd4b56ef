package domain

import "github.com/smallbiznis/tally/internal/money"

// Method identifies how a portion of a receipt was tendered.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodGiftCard     Method = "gift_card"
	MethodMobileWallet Method = "mobile_wallet"
)

// Valid reports whether the method is one the engine knows about.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodGiftCard, MethodMobileWallet:
		return true
	default:
		return false
	}
}

// Status is derived from amountPaid vs grandTotal, never stored as an
// authoritative input.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusCompleted Status = "completed"
)

// Split is one tender line of a receipt's payment breakdown.
type Split struct {
	Method Method
	Amount money.Money
}

// Reconciliation is the computed settlement state of a receipt.
type Reconciliation struct {
	AmountPaid money.Money
	BalanceDue money.Money
	Status     Status
}
