package migration

import (
	"github.com/smallbiznis/tally/internal/config"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	receiptdomain "github.com/smallbiznis/tally/internal/receipt/domain"
	"github.com/smallbiznis/tally/internal/seed"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql and sqlite deployments rely on gorm's schema sync;
			// the versioned SQL is written for postgres.
			if err := conn.AutoMigrate(
				&receiptdomain.Receipt{},
				&receiptdomain.ReceiptLine{},
				&receiptdomain.ReceiptPayment{},
				&loyaltydomain.LoyaltyRule{},
				&loyaltydomain.LoyaltyMilestone{},
				&loyaltydomain.LoyaltyAccount{},
				&loyaltydomain.LoyaltyRedemption{},
				&loyaltydomain.MilestoneAward{},
				&taxdomain.TaxPolicy{},
			); err != nil {
				return err
			}
		}

		if cfg.DefaultOrgID != 0 {
			return seed.EnsureDefaultTaxPolicies(conn, cfg.DefaultOrgID)
		}
		return nil
	}),
)
