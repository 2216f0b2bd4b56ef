package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidRule         = errors.New("invalid_loyalty_rule")
	ErrInvalidRedemption   = errors.New("invalid_redemption")
	ErrNotFound            = errors.New("not_found")
	ErrAccountExists       = errors.New("loyalty_account_exists")
	ErrInsufficientPoints  = errors.New("insufficient_points")
	ErrAlreadyApplied      = errors.New("redemption_already_applied")
	ErrMilestoneAwarded    = errors.New("milestone_already_awarded")
)
