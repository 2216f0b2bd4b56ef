package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidMethod       = errors.New("invalid_tax_method")
	ErrInvalidTaxMode      = errors.New("invalid_tax_mode")
	ErrInvalidTaxRate      = errors.New("invalid_tax_rate")
	ErrDuplicateMethod     = errors.New("duplicate_tax_method")
)
