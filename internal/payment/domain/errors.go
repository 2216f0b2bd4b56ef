package domain

import "errors"

var (
	ErrInvalidPayment = errors.New("invalid_payment")
	ErrUnknownMethod  = errors.New("unknown_payment_method")
)
