package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tally/internal/money"
	"gorm.io/gorm"
)

// Service is the loyalty program surface used by HTTP handlers.
type Service interface {
	EnrollAccount(ctx context.Context, req EnrollRequest) (*AccountResponse, error)
	GetAccount(ctx context.Context, customerID string) (*AccountResponse, error)
	PreviewRedemption(ctx context.Context, req PreviewRequest) (*PreviewResponse, error)

	CreateRule(ctx context.Context, req CreateRuleRequest) (*RuleResponse, error)
	ListRules(ctx context.Context) ([]RuleResponse, error)
	ActivateRule(ctx context.Context, id string) (*RuleResponse, error)
	GetActiveRule(ctx context.Context, orgID snowflake.ID) (*LoyaltyRule, error)
}

// Ledger is the transactional surface the receipt submit path drives.
// Both methods expect the caller's gorm transaction handle; the receipt,
// the redemption and the account mutation commit or roll back together.
type Ledger interface {
	// ApplyRedemption re-validates the preview against the live balance
	// with a conditional update. ErrInsufficientPoints means the snapshot
	// went stale; ErrAlreadyApplied means this receipt already redeemed.
	ApplyRedemption(ctx context.Context, tx *gorm.DB, req ApplyRequest) error

	// AccrueForReceipt credits earned points plus any milestone bonuses
	// crossed by the receipt's eligible subtotal.
	AccrueForReceipt(ctx context.Context, tx *gorm.DB, req AccrueRequest) (*AccrualResult, error)

	// PreviewForReceipt computes the advisory redemption for a customer
	// against an eligible subtotal. A customer without an account or an
	// org without an active rule previews to zero.
	PreviewForReceipt(ctx context.Context, orgID, customerID snowflake.ID, eligibleSubtotal money.Money) (*ReceiptPreview, error)

	// DiscountForPoints revalues a previously previewed point spend
	// against the live rule; the submit path never trusts a
	// client-supplied discount amount.
	DiscountForPoints(ctx context.Context, orgID snowflake.ID, pointsUsed int64, eligibleSubtotal money.Money) (money.Money, error)
}

// ReceiptPreview is a redemption preview annotated with the account it
// was taken against.
type ReceiptPreview struct {
	AccountID  snowflake.ID
	PointsUsed int64
	Discount   money.Money
}

type EnrollRequest struct {
	CustomerID string `json:"customer_id"`
}

type PreviewRequest struct {
	CustomerID       string `json:"customer_id"`
	EligibleSubtotal string `json:"eligible_subtotal"`
	Currency         string `json:"currency"`
}

type PreviewResponse struct {
	PointsUsed int64  `json:"points_used"`
	Discount   string `json:"discount"`
	DiscountMinorUnits int64 `json:"discount_minor_units"`
}

type ApplyRequest struct {
	OrgID      snowflake.ID
	AccountID  snowflake.ID
	ReceiptID  snowflake.ID
	PointsUsed int64
	Discount   money.Money
	At         time.Time
}

type AccrueRequest struct {
	OrgID            snowflake.ID
	AccountID        snowflake.ID
	EligibleSubtotal money.Money
	At               time.Time
}

type AccrualResult struct {
	PointsEarned   int64
	MilestoneBonus int64
}

type CreateRuleRequest struct {
	Name                  string          `json:"name"`
	Currency              string          `json:"currency"`
	RedeemUnitPoints      int64           `json:"redeem_unit_points"`
	CashbackPerRedeemUnit int64           `json:"cashback_per_redeem_unit"`
	SpendUnitAmount       int64           `json:"spend_unit_amount"`
	PointsPerSpendUnit    int64           `json:"points_per_spend_unit"`
	MaxDiscountType       MaxDiscountType `json:"max_discount_type"`
	MaxDiscountAmount     int64           `json:"max_discount_amount"`
	MaxDiscountPercent    float64         `json:"max_discount_percent"`
	ExpireAfterDays       int             `json:"expire_after_days"`
	SignUpBonusPoints     int64           `json:"sign_up_bonus_points"`
	BirthdayDiscountRate  float64         `json:"birthday_discount_rate"`
	Milestones            []MilestoneSpec `json:"milestones"`
}

type MilestoneSpec struct {
	ThresholdAmount int64 `json:"threshold_amount"`
	RewardPoints    int64 `json:"reward_points"`
}

type AccountResponse struct {
	ID                  string     `json:"id"`
	CustomerID          string     `json:"customer_id"`
	PointsBalance       int64      `json:"points_balance"`
	LifetimeSpendAmount int64      `json:"lifetime_spend_amount"`
	LastAccrualAt       *time.Time `json:"last_accrual_at,omitempty"`
	LastRedemptionAt    *time.Time `json:"last_redemption_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type RuleResponse struct {
	ID                    string          `json:"id"`
	OrganizationID        string          `json:"organization_id"`
	Name                  string          `json:"name"`
	Currency              string          `json:"currency"`
	RedeemUnitPoints      int64           `json:"redeem_unit_points"`
	CashbackPerRedeemUnit int64           `json:"cashback_per_redeem_unit"`
	SpendUnitAmount       int64           `json:"spend_unit_amount"`
	PointsPerSpendUnit    int64           `json:"points_per_spend_unit"`
	MaxDiscountType       MaxDiscountType `json:"max_discount_type"`
	MaxDiscountAmount     int64           `json:"max_discount_amount"`
	MaxDiscountPercent    float64         `json:"max_discount_percent"`
	ExpireAfterDays       int             `json:"expire_after_days"`
	SignUpBonusPoints     int64           `json:"sign_up_bonus_points"`
	BirthdayDiscountRate  float64         `json:"birthday_discount_rate"`
	IsActive              bool            `json:"is_active"`
	Milestones            []MilestoneSpec `json:"milestones"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
