package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() loyaltydomain.Repository {
	return &repository{}
}

func (r *repository) InsertAccount(ctx context.Context, conn *gorm.DB, account *loyaltydomain.LoyaltyAccount) error {
	err := conn.WithContext(ctx).Create(account).Error
	if db.IsDuplicateKeyErr(err) {
		return loyaltydomain.ErrAccountExists
	}
	return err
}

func (r *repository) FindAccount(ctx context.Context, conn *gorm.DB, orgID, customerID snowflake.ID) (*loyaltydomain.LoyaltyAccount, error) {
	var account loyaltydomain.LoyaltyAccount
	err := conn.WithContext(ctx).
		Where("org_id = ? AND customer_id = ?", orgID, customerID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*loyaltydomain.LoyaltyAccount, error) {
	var account loyaltydomain.LoyaltyAccount
	err := conn.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) CompareAndSwapBalance(ctx context.Context, conn *gorm.DB, accountID snowflake.ID, expectedBalance, newBalance int64, at time.Time) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`UPDATE loyalty_accounts
		 SET points_balance = ?, last_redemption_at = ?, updated_at = ?
		 WHERE id = ? AND points_balance = ?`,
		newBalance, at, at, accountID, expectedBalance,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreditPoints(ctx context.Context, conn *gorm.DB, accountID snowflake.ID, points, spendDelta int64, at time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE loyalty_accounts
		 SET points_balance = points_balance + ?,
		     lifetime_spend_amount = lifetime_spend_amount + ?,
		     last_accrual_at = ?, updated_at = ?
		 WHERE id = ?`,
		points, spendDelta, at, at, accountID,
	).Error
}

func (r *repository) InsertRedemption(ctx context.Context, conn *gorm.DB, redemption *loyaltydomain.LoyaltyRedemption) error {
	err := conn.WithContext(ctx).Create(redemption).Error
	if db.IsDuplicateKeyErr(err) {
		return loyaltydomain.ErrAlreadyApplied
	}
	return err
}

func (r *repository) FindRedemptionByReceipt(ctx context.Context, conn *gorm.DB, orgID, receiptID snowflake.ID) (*loyaltydomain.LoyaltyRedemption, error) {
	var redemption loyaltydomain.LoyaltyRedemption
	err := conn.WithContext(ctx).
		Where("org_id = ? AND receipt_id = ?", orgID, receiptID).
		First(&redemption).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *repository) ActiveRule(ctx context.Context, conn *gorm.DB, orgID snowflake.ID) (*loyaltydomain.LoyaltyRule, error) {
	var rule loyaltydomain.LoyaltyRule
	err := conn.WithContext(ctx).
		Preload("Milestones").
		Where("org_id = ? AND is_active = ?", orgID, true).
		Order("id ASC").
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) InsertRule(ctx context.Context, conn *gorm.DB, rule *loyaltydomain.LoyaltyRule) error {
	return conn.WithContext(ctx).Create(rule).Error
}

func (r *repository) FindRuleByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*loyaltydomain.LoyaltyRule, error) {
	var rule loyaltydomain.LoyaltyRule
	err := conn.WithContext(ctx).
		Preload("Milestones").
		Where("org_id = ? AND id = ?", orgID, id).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) ListRules(ctx context.Context, conn *gorm.DB, orgID snowflake.ID) ([]loyaltydomain.LoyaltyRule, error) {
	var rules []loyaltydomain.LoyaltyRule
	err := conn.WithContext(ctx).
		Preload("Milestones").
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) UpdateRule(ctx context.Context, conn *gorm.DB, rule *loyaltydomain.LoyaltyRule) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE loyalty_rules SET is_active = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		rule.IsActive, rule.UpdatedAt, rule.OrgID, rule.ID,
	).Error
}

func (r *repository) DeactivateRules(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, exceptID snowflake.ID) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE loyalty_rules SET is_active = false, updated_at = ? WHERE org_id = ? AND id <> ?`,
		time.Now().UTC(), orgID, exceptID,
	).Error
}

func (r *repository) MilestoneAwarded(ctx context.Context, conn *gorm.DB, accountID, milestoneID snowflake.ID) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).
		Model(&loyaltydomain.MilestoneAward{}).
		Where("account_id = ? AND milestone_id = ?", accountID, milestoneID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) InsertMilestoneAward(ctx context.Context, conn *gorm.DB, award *loyaltydomain.MilestoneAward) error {
	err := conn.WithContext(ctx).Create(award).Error
	if db.IsDuplicateKeyErr(err) {
		return loyaltydomain.ErrMilestoneAwarded
	}
	return err
}
