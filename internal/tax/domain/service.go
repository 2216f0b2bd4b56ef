package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
)

// RateResolver returns the effective rate table for a receipt computation.
type RateResolver interface {
	ResolveForReceipt(ctx context.Context, orgID snowflake.ID) (RateTable, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Disable(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Method    string
	IsEnabled *bool
}

type CreateRequest struct {
	Method    paymentdomain.Method `json:"method"`
	TaxMode   TaxMode              `json:"tax_mode"`
	Rate      float64              `json:"rate"`
	IsEnabled *bool                `json:"is_enabled"`
}

type UpdateRequest struct {
	ID      string   `json:"id"`
	TaxMode *TaxMode `json:"tax_mode,omitempty"`
	Rate    *float64 `json:"rate,omitempty"`
}

type Response struct {
	ID             string               `json:"id"`
	OrganizationID string               `json:"organization_id"`
	Method         paymentdomain.Method `json:"method"`
	TaxMode        TaxMode              `json:"tax_mode"`
	Rate           float64              `json:"rate"`
	IsEnabled      bool                 `json:"is_enabled"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}
