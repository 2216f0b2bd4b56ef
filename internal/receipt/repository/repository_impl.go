package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	receiptdomain "github.com/smallbiznis/tally/internal/receipt/domain"
	"github.com/smallbiznis/tally/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() receiptdomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, conn *gorm.DB, receipt *receiptdomain.Receipt) error {
	// Lines and payments ride along through gorm associations.
	return conn.WithContext(ctx).Create(receipt).Error
}

func (r *repository) FindByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*receiptdomain.Receipt, error) {
	var receipt receiptdomain.Receipt
	err := conn.WithContext(ctx).
		Preload("Lines").
		Preload("Payments").
		Where("org_id = ? AND id = ?", orgID, id).
		First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) List(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, filter receiptdomain.ListRequest) ([]receiptdomain.Receipt, *pagination.PageInfo, error) {
	stmt := conn.WithContext(ctx).
		Model(&receiptdomain.Receipt{}).
		Preload("Lines").
		Preload("Payments").
		Where("org_id = ?", orgID)

	if filter.CustomerID != "" {
		customerID, err := snowflake.ParseString(filter.CustomerID)
		if err != nil {
			return nil, nil, receiptdomain.ErrNotFound
		}
		stmt = stmt.Where("customer_id = ?", customerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("created_at < ?", *filter.To)
	}

	if filter.PageToken != "" {
		cursor, err := pagination.DecodeCursor(filter.PageToken)
		if err != nil {
			return nil, nil, receiptdomain.ErrInvalidPageToken
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, receiptdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, nil, receiptdomain.ErrInvalidPageToken
		}
		stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, afterID)
	}

	limit := filter.PageSize
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var receipts []receiptdomain.Receipt
	// Fetch one extra row to detect whether another page exists.
	if err := stmt.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&receipts).Error; err != nil {
		return nil, nil, err
	}

	refs := make([]*receiptdomain.Receipt, len(receipts))
	for i := range receipts {
		refs[i] = &receipts[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(refs, int32(limit), func(rc *receiptdomain.Receipt) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        rc.ID.String(),
			CreatedAt: rc.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		return token
	})
	if len(receipts) > limit {
		receipts = receipts[:limit]
	}
	return receipts, pageInfo, nil
}
