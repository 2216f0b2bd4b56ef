package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/internal/money"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	receiptdomain "github.com/smallbiznis/tally/internal/receipt/domain"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictErrorCode(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case errors.Is(err, receiptdomain.ErrInvalidOrganization),
		errors.Is(err, receiptdomain.ErrInvalidBranch),
		errors.Is(err, receiptdomain.ErrInvalidCashier),
		errors.Is(err, receiptdomain.ErrInvalidLineItem),
		errors.Is(err, receiptdomain.ErrExcessiveDiscount),
		errors.Is(err, receiptdomain.ErrInvalidCurrency),
		errors.Is(err, receiptdomain.ErrEmptyReceipt),
		errors.Is(err, receiptdomain.ErrInvalidPageToken):
		return true
	case errors.Is(err, loyaltydomain.ErrInvalidOrganization),
		errors.Is(err, loyaltydomain.ErrInvalidCustomer),
		errors.Is(err, loyaltydomain.ErrInvalidName),
		errors.Is(err, loyaltydomain.ErrInvalidRule),
		errors.Is(err, loyaltydomain.ErrInvalidRedemption):
		return true
	case errors.Is(err, taxdomain.ErrInvalidOrganization),
		errors.Is(err, taxdomain.ErrInvalidID),
		errors.Is(err, taxdomain.ErrInvalidMethod),
		errors.Is(err, taxdomain.ErrInvalidTaxMode),
		errors.Is(err, taxdomain.ErrInvalidTaxRate):
		return true
	case errors.Is(err, paymentdomain.ErrInvalidPayment),
		errors.Is(err, paymentdomain.ErrUnknownMethod):
		return true
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrNegativeResult),
		errors.Is(err, money.ErrCurrencyMismatch):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, loyaltydomain.ErrInsufficientPoints),
		errors.Is(err, loyaltydomain.ErrAlreadyApplied),
		errors.Is(err, loyaltydomain.ErrAccountExists),
		errors.Is(err, taxdomain.ErrDuplicateMethod):
		return true
	default:
		return false
	}
}

func conflictErrorCode(err error) string {
	switch {
	case errors.Is(err, loyaltydomain.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, loyaltydomain.ErrAlreadyApplied):
		return "redemption_already_applied"
	case errors.Is(err, loyaltydomain.ErrAccountExists):
		return "account_exists"
	case errors.Is(err, taxdomain.ErrDuplicateMethod):
		return "duplicate_tax_method"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, receiptdomain.ErrNotFound),
		errors.Is(err, loyaltydomain.ErrNotFound),
		errors.Is(err, taxdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "invalid_request" {
		return "request"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
