package domain

import (
	"context"
	"time"

	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	"github.com/smallbiznis/tally/pkg/db/pagination"
)

type Service interface {
	// Compute runs the pricing pipeline without persisting anything:
	// line totals, tax by payment method, optional loyalty redemption
	// preview, payment reconciliation.
	Compute(ctx context.Context, req ComputeRequest) (*ComputeResponse, error)

	// Submit freezes the receipt: totals, redemption debit, accrual and
	// payment rows commit in one transaction or not at all.
	Submit(ctx context.Context, req SubmitRequest) (*Response, error)

	GetByID(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

type LineRequest struct {
	ProductID    string `json:"product_id"`
	Description  string `json:"description"`
	UnitPrice    string `json:"unit_price"`
	Quantity     int64  `json:"quantity"`
	LineDiscount string `json:"line_discount"`
	Returned     bool   `json:"returned"`
}

type SplitRequest struct {
	Method paymentdomain.Method `json:"method"`
	Amount string               `json:"amount"`
}

type ComputeRequest struct {
	Currency      string         `json:"currency"`
	Lines         []LineRequest  `json:"lines"`
	OrderDiscount string         `json:"order_discount"`
	CustomerID    string         `json:"customer_id,omitempty"`
	RedeemPoints  bool           `json:"redeem_points"`
	Payments      []SplitRequest `json:"payments"`
}

type SubmitRequest struct {
	Currency      string         `json:"currency"`
	Lines         []LineRequest  `json:"lines"`
	OrderDiscount string         `json:"order_discount"`
	CustomerID    string         `json:"customer_id,omitempty"`
	PointsUsed    int64          `json:"points_used"`
	Payments      []SplitRequest `json:"payments"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type ListRequest struct {
	CustomerID string
	Status     string
	From       *time.Time
	To         *time.Time
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	Data     []Response          `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type ComputeResponse struct {
	Currency              string               `json:"currency"`
	SubtotalAmount        int64                `json:"subtotal_amount"`
	OrderDiscountAmount   int64                `json:"order_discount_amount"`
	LoyaltyDiscountAmount int64                `json:"loyalty_discount_amount"`
	LoyaltyPointsUsed     int64                `json:"loyalty_points_used"`
	TaxRate               float64              `json:"tax_rate"`
	TaxAmount             int64                `json:"tax_amount"`
	GrandTotalAmount      int64                `json:"grand_total_amount"`
	AmountPaid            int64                `json:"amount_paid"`
	BalanceDue            int64                `json:"balance_due"`
	PaymentStatus         paymentdomain.Status `json:"payment_status"`
}

type LineResponse struct {
	ProductID          string `json:"product_id"`
	Description        string `json:"description,omitempty"`
	UnitPriceAmount    int64  `json:"unit_price_amount"`
	Quantity           int64  `json:"quantity"`
	LineDiscountAmount int64  `json:"line_discount_amount"`
	Returned           bool   `json:"returned"`
	GrossAmount        int64  `json:"gross_amount"`
	NetAmount          int64  `json:"net_amount"`
}

type SplitResponse struct {
	Method paymentdomain.Method `json:"method"`
	Amount int64                `json:"amount"`
}

type Response struct {
	ID                    string               `json:"id"`
	OrganizationID        string               `json:"organization_id"`
	BranchID              string               `json:"branch_id"`
	CashierID             string               `json:"cashier_id"`
	CustomerID            string               `json:"customer_id,omitempty"`
	Currency              string               `json:"currency"`
	Status                ReceiptStatus        `json:"status"`
	Lines                 []LineResponse       `json:"lines"`
	Payments              []SplitResponse      `json:"payments"`
	SubtotalAmount        int64                `json:"subtotal_amount"`
	OrderDiscountAmount   int64                `json:"order_discount_amount"`
	LoyaltyDiscountAmount int64                `json:"loyalty_discount_amount"`
	LoyaltyPointsUsed     int64                `json:"loyalty_points_used"`
	LoyaltyPointsEarned   int64                `json:"loyalty_points_earned"`
	TaxRate               float64              `json:"tax_rate"`
	TaxAmount             int64                `json:"tax_amount"`
	GrandTotalAmount      int64                `json:"grand_total_amount"`
	AmountPaid            int64                `json:"amount_paid"`
	BalanceDue            int64                `json:"balance_due"`
	PaymentStatus         paymentdomain.Status `json:"payment_status"`
	Metadata              map[string]any       `json:"metadata,omitempty"`
	SubmittedAt           *time.Time           `json:"submitted_at,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
}
