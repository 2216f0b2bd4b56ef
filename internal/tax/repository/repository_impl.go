package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"github.com/smallbiznis/tally/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) taxdomain.Repository {
	return &repository{db: conn}
}

func (r *repository) ListEnabled(ctx context.Context, orgID snowflake.ID) ([]taxdomain.TaxPolicy, error) {
	var policies []taxdomain.TaxPolicy
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND is_enabled = ?", orgID, true).
		Order("id ASC").
		Find(&policies).Error
	if err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *repository) Create(ctx context.Context, policy *taxdomain.TaxPolicy) error {
	err := r.db.WithContext(ctx).Create(policy).Error
	if db.IsDuplicateKeyErr(err) {
		return taxdomain.ErrDuplicateMethod
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, orgID, id snowflake.ID) (*taxdomain.TaxPolicy, error) {
	var policy taxdomain.TaxPolicy
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *repository) List(ctx context.Context, orgID snowflake.ID, filter taxdomain.ListRequest) ([]taxdomain.TaxPolicy, error) {
	stmt := r.db.WithContext(ctx).
		Model(&taxdomain.TaxPolicy{}).
		Where("org_id = ?", orgID)

	if filter.Method != "" {
		stmt = stmt.Where("method = ?", filter.Method)
	}
	if filter.IsEnabled != nil {
		stmt = stmt.Where("is_enabled = ?", *filter.IsEnabled)
	}

	var policies []taxdomain.TaxPolicy
	if err := stmt.Order("created_at DESC").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *repository) Update(ctx context.Context, policy *taxdomain.TaxPolicy) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE tax_policies
		 SET tax_mode = ?, rate = ?, is_enabled = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		policy.TaxMode,
		policy.Rate,
		policy.IsEnabled,
		policy.UpdatedAt,
		policy.OrgID,
		policy.ID,
	).Error
}
