package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"gorm.io/gorm"
)

// Startup defaults for orgs created without explicit tax setup. Card-present
// transactions carry the reduced rate; everything else is taxed as cash.
var defaultPolicies = []struct {
	method paymentdomain.Method
	rate   float64
}{
	{paymentdomain.MethodCard, 0.05},
	{paymentdomain.MethodCash, 0.16},
	{paymentdomain.MethodBankTransfer, 0.16},
	{paymentdomain.MethodGiftCard, 0.16},
	{paymentdomain.MethodMobileWallet, 0.16},
}

// EnsureDefaultTaxPolicies seeds per-method tax rates for the bootstrap org
// so a fresh install prices receipts without manual setup. Orgs that already
// have any policy rows are left untouched.
func EnsureDefaultTaxPolicies(db *gorm.DB, orgID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&taxdomain.TaxPolicy{}).
			Where("org_id = ?", orgID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, p := range defaultPolicies {
			policy := taxdomain.TaxPolicy{
				ID:        node.Generate(),
				OrgID:     snowflake.ID(orgID),
				Method:    p.method,
				TaxMode:   taxdomain.TaxModeExclusive,
				Rate:      p.rate,
				IsEnabled: true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&policy).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
