package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take an explicit *gorm.DB so the receipt submit path
// can run account mutations inside its own transaction.
type Repository interface {
	InsertAccount(ctx context.Context, db *gorm.DB, account *LoyaltyAccount) error
	FindAccount(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID) (*LoyaltyAccount, error)
	FindAccountByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LoyaltyAccount, error)

	// CompareAndSwapBalance debits an account only when the balance still
	// matches the caller's snapshot. Returns false when the row has moved,
	// which the service surfaces as ErrInsufficientPoints.
	CompareAndSwapBalance(ctx context.Context, db *gorm.DB, accountID snowflake.ID, expectedBalance, newBalance int64, at time.Time) (bool, error)

	// CreditPoints adds accrued points and lifetime spend unconditionally.
	CreditPoints(ctx context.Context, db *gorm.DB, accountID snowflake.ID, points, spendDelta int64, at time.Time) error

	InsertRedemption(ctx context.Context, db *gorm.DB, redemption *LoyaltyRedemption) error
	FindRedemptionByReceipt(ctx context.Context, db *gorm.DB, orgID, receiptID snowflake.ID) (*LoyaltyRedemption, error)

	ActiveRule(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*LoyaltyRule, error)
	InsertRule(ctx context.Context, db *gorm.DB, rule *LoyaltyRule) error
	FindRuleByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LoyaltyRule, error)
	ListRules(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]LoyaltyRule, error)
	UpdateRule(ctx context.Context, db *gorm.DB, rule *LoyaltyRule) error
	DeactivateRules(ctx context.Context, db *gorm.DB, orgID snowflake.ID, exceptID snowflake.ID) error

	MilestoneAwarded(ctx context.Context, db *gorm.DB, accountID, milestoneID snowflake.ID) (bool, error)
	InsertMilestoneAward(ctx context.Context, db *gorm.DB, award *MilestoneAward) error
}
