package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tally/internal/money"
)

// MaxDiscountType selects how a rule's redemption cap is expressed.
type MaxDiscountType string

const (
	MaxDiscountFlat       MaxDiscountType = "flat"
	MaxDiscountPercentage MaxDiscountType = "percentage"
)

// LoyaltyRule is an org-scoped loyalty program configuration. Exactly one
// rule is active per org at evaluation time; activating a rule deactivates
// the previous one.
type LoyaltyRule struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	OrgID snowflake.ID `gorm:"column:org_id;not null;index"`

	Name     string `gorm:"type:text;not null"`
	Currency string `gorm:"type:text;not null"`

	// Redemption: every RedeemUnitPoints points held converts into
	// CashbackPerRedeemUnit of discount.
	RedeemUnitPoints      int64 `gorm:"not null"`
	CashbackPerRedeemUnit int64 `gorm:"not null"` // minor units

	// Accrual: every SpendUnitAmount of eligible subtotal earns
	// PointsPerSpendUnit points.
	SpendUnitAmount    int64 `gorm:"not null"` // minor units
	PointsPerSpendUnit int64 `gorm:"not null"`

	MaxDiscountType    MaxDiscountType `gorm:"type:text;not null;default:flat"`
	MaxDiscountAmount  int64           `gorm:"not null;default:0"` // minor units, flat cap
	MaxDiscountPercent float64         `gorm:"type:numeric(6,4);not null;default:0"`

	ExpireAfterDays      int     `gorm:"not null;default:0"`
	SignUpBonusPoints    int64   `gorm:"not null;default:0"`
	BirthdayDiscountRate float64 `gorm:"type:numeric(6,4);not null;default:0"`

	IsActive bool `gorm:"column:is_active;not null;default:false;index"`

	Milestones []LoyaltyMilestone `gorm:"foreignKey:RuleID"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LoyaltyRule) TableName() string { return "loyalty_rules" }

func (r *LoyaltyRule) Validate() error {
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.Currency == "" {
		return ErrInvalidRule
	}
	if r.RedeemUnitPoints < 0 || r.CashbackPerRedeemUnit < 0 ||
		r.SpendUnitAmount < 0 || r.PointsPerSpendUnit < 0 ||
		r.MaxDiscountAmount < 0 || r.SignUpBonusPoints < 0 ||
		r.ExpireAfterDays < 0 {
		return ErrInvalidRule
	}
	if r.CashbackPerRedeemUnit > 0 && r.RedeemUnitPoints == 0 {
		return ErrInvalidRule
	}
	if r.PointsPerSpendUnit > 0 && r.SpendUnitAmount == 0 {
		return ErrInvalidRule
	}
	if r.MaxDiscountPercent < 0 || r.MaxDiscountPercent > 1 {
		return ErrInvalidRule
	}
	if r.BirthdayDiscountRate < 0 || r.BirthdayDiscountRate > 1 {
		return ErrInvalidRule
	}
	switch r.MaxDiscountType {
	case MaxDiscountFlat, MaxDiscountPercentage:
	default:
		return ErrInvalidRule
	}
	for i := range r.Milestones {
		if err := r.Milestones[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoyaltyMilestone grants a one-time point bonus when an account's
// lifetime spend crosses the threshold.
type LoyaltyMilestone struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	RuleID snowflake.ID `gorm:"column:rule_id;not null;index"`

	ThresholdAmount int64 `gorm:"not null"` // minor units of lifetime spend
	RewardPoints    int64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LoyaltyMilestone) TableName() string { return "loyalty_milestones" }

func (m *LoyaltyMilestone) Validate() error {
	if m.ThresholdAmount <= 0 || m.RewardPoints <= 0 {
		return ErrInvalidRule
	}
	return nil
}

// LoyaltyAccount tracks one customer's point balance within an org.
// PointsBalance never goes negative: redemptions that would overdraw are
// rejected, not clamped.
type LoyaltyAccount struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:ux_loyalty_accounts_org_customer,priority:1"`
	CustomerID snowflake.ID `gorm:"column:customer_id;not null;uniqueIndex:ux_loyalty_accounts_org_customer,priority:2"`

	PointsBalance       int64 `gorm:"not null;default:0"`
	LifetimeSpendAmount int64 `gorm:"not null;default:0"` // minor units

	LastAccrualAt    *time.Time
	LastRedemptionAt *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LoyaltyAccount) TableName() string { return "loyalty_accounts" }

// RedemptionStatus is the per-receipt redemption lifecycle.
type RedemptionStatus string

const (
	RedemptionPreviewed RedemptionStatus = "previewed"
	RedemptionApplied   RedemptionStatus = "applied"
	RedemptionDiscarded RedemptionStatus = "discarded"
)

// LoyaltyRedemption records a point redemption against one receipt. The
// unique receipt index is what makes a second apply for the same receipt
// fail instead of silently double-spending points.
type LoyaltyRedemption struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"column:org_id;not null;index"`
	AccountID snowflake.ID `gorm:"column:account_id;not null;index"`
	ReceiptID snowflake.ID `gorm:"column:receipt_id;not null;uniqueIndex:ux_loyalty_redemptions_receipt"`

	PointsUsed     int64            `gorm:"not null"`
	DiscountAmount int64            `gorm:"not null"` // minor units
	Status         RedemptionStatus `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LoyaltyRedemption) TableName() string { return "loyalty_redemptions" }

// MilestoneAward marks a milestone bonus as granted so it is never granted
// twice to the same account.
type MilestoneAward struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	AccountID   snowflake.ID `gorm:"column:account_id;not null;uniqueIndex:ux_milestone_awards_account_milestone,priority:1"`
	MilestoneID snowflake.ID `gorm:"column:milestone_id;not null;uniqueIndex:ux_milestone_awards_account_milestone,priority:2"`

	RewardPoints int64     `gorm:"not null"`
	AwardedAt    time.Time `gorm:"not null"`
}

func (MilestoneAward) TableName() string { return "loyalty_milestone_awards" }

// RedemptionPreview is the advisory result of previewing a redemption
// against a snapshot of the account balance.
type RedemptionPreview struct {
	PointsUsed int64
	Discount   money.Money
}
