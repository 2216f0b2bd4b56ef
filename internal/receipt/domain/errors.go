package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidBranch       = errors.New("invalid_branch")
	ErrInvalidCashier      = errors.New("invalid_cashier")
	ErrInvalidLineItem     = errors.New("invalid_line_item")
	ErrExcessiveDiscount   = errors.New("excessive_discount")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrNotFound            = errors.New("not_found")
	ErrEmptyReceipt        = errors.New("empty_receipt")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)
