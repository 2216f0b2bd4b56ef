package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	ListEnabled(ctx context.Context, orgID snowflake.ID) ([]TaxPolicy, error)
	Create(ctx context.Context, policy *TaxPolicy) error
	FindByID(ctx context.Context, orgID, id snowflake.ID) (*TaxPolicy, error)
	List(ctx context.Context, orgID snowflake.ID, filter ListRequest) ([]TaxPolicy, error)
	Update(ctx context.Context, policy *TaxPolicy) error
}
