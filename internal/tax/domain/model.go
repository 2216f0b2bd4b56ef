package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
)

// TaxMode represents how tax is applied to the receipt total.
type TaxMode string

const (
	TaxModeExclusive TaxMode = "exclusive" // subtotal + tax
	TaxModeInclusive TaxMode = "inclusive" // total already includes tax
)

// TaxPolicy is an org-scoped rate for one payment method. The per-method
// split exists because card-present transactions are commonly taxed at a
// different rate than cash; the rates are deployment configuration, never
// constants in code.
type TaxPolicy struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	OrgID snowflake.ID `gorm:"column:org_id;not null;index;uniqueIndex:ux_tax_policies_org_method,priority:1"`

	Method  paymentdomain.Method `gorm:"type:text;not null;uniqueIndex:ux_tax_policies_org_method,priority:2"`
	TaxMode TaxMode              `gorm:"column:tax_mode;type:text;not null"`
	Rate    float64              `gorm:"type:numeric(6,4);not null"` // fraction, e.g. 0.0500 for 5%

	IsEnabled bool `gorm:"column:is_enabled;not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TaxPolicy) TableName() string { return "tax_policies" }

func (p *TaxPolicy) Validate() error {
	if !p.Method.Valid() {
		return ErrInvalidMethod
	}
	if p.TaxMode != TaxModeExclusive && p.TaxMode != TaxModeInclusive {
		return ErrInvalidTaxMode
	}
	if p.Rate < 0 || p.Rate > 1 {
		return ErrInvalidTaxRate
	}
	return nil
}

// RateTable is the resolved payment-method tax treatment for one org.
type RateTable struct {
	Mode  TaxMode
	Rates map[paymentdomain.Method]float64
}

// RateFor returns the configured rate for a method, falling back to zero
// when the org has no policy for it (no tax configured is not an error).
func (t RateTable) RateFor(method paymentdomain.Method) float64 {
	if t.Rates == nil {
		return 0
	}
	return t.Rates[method]
}
