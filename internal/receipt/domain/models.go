package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tally/internal/money"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	"gorm.io/datatypes"
)

// LineItem is the computation-side view of one product row in a receipt.
type LineItem struct {
	ProductID    snowflake.ID
	Description  string
	UnitPrice    money.Money
	Quantity     int64
	LineDiscount money.Money
	Returned     bool
}

// ReceiptStatus is the persistence lifecycle of a receipt. Submitted
// receipts are frozen records; only drafts mutate.
type ReceiptStatus string

const (
	ReceiptStatusDraft     ReceiptStatus = "draft"
	ReceiptStatusSubmitted ReceiptStatus = "submitted"
)

// Receipt is the persisted, immutable result of a submitted sale.
// All amounts are integer minor units in Currency; PaymentStatus is
// re-derived on read paths, the stored value is a convenience copy.
type Receipt struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"column:org_id;not null;index"`
	BranchID  snowflake.ID `gorm:"column:branch_id;not null;index"`
	CashierID snowflake.ID `gorm:"column:cashier_id;not null"`

	CustomerID *snowflake.ID `gorm:"column:customer_id;index"`

	Currency string        `gorm:"type:text;not null"`
	Status   ReceiptStatus `gorm:"type:text;not null"`

	SubtotalAmount        int64   `gorm:"not null"`
	OrderDiscountAmount   int64   `gorm:"not null;default:0"`
	LoyaltyDiscountAmount int64   `gorm:"not null;default:0"`
	TaxRate               float64 `gorm:"type:numeric(6,4);not null;default:0"`
	TaxAmount             int64   `gorm:"not null;default:0"`
	GrandTotalAmount      int64   `gorm:"not null"`

	AmountPaid    int64                `gorm:"not null;default:0"`
	BalanceDue    int64                `gorm:"not null;default:0"`
	PaymentStatus paymentdomain.Status `gorm:"type:text;not null"`

	LoyaltyPointsUsed   int64 `gorm:"not null;default:0"`
	LoyaltyPointsEarned int64 `gorm:"not null;default:0"`

	// Free-form POS annotations: table number, order note, terminal tags.
	Metadata datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`

	Lines    []ReceiptLine    `gorm:"foreignKey:ReceiptID"`
	Payments []ReceiptPayment `gorm:"foreignKey:ReceiptID"`

	SubmittedAt *time.Time
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Receipt) TableName() string { return "receipts" }

// ReceiptLine is one frozen product row of a submitted receipt.
type ReceiptLine struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ReceiptID snowflake.ID `gorm:"column:receipt_id;not null;index"`
	ProductID snowflake.ID `gorm:"column:product_id;not null"`

	Description        string `gorm:"type:text"`
	UnitPriceAmount    int64  `gorm:"not null"`
	Quantity           int64  `gorm:"not null"`
	LineDiscountAmount int64  `gorm:"not null;default:0"`
	Returned           bool   `gorm:"not null;default:false"`

	GrossAmount int64 `gorm:"not null"`
	NetAmount   int64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ReceiptLine) TableName() string { return "receipt_lines" }

// ReceiptPayment is one tender split of a submitted receipt.
type ReceiptPayment struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ReceiptID snowflake.ID `gorm:"column:receipt_id;not null;index"`

	Method paymentdomain.Method `gorm:"type:text;not null"`
	Amount int64                `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ReceiptPayment) TableName() string { return "receipt_payments" }
