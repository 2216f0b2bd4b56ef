// Package sessionctx carries the caller's org, branch and cashier
// identity through request contexts. The engine never reads ambient
// globals; whoever invokes it resolves the session first and stamps it
// here.
package sessionctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type orgKey struct{}
type branchKey struct{}
type cashierKey struct{}

// WithOrgID stores the active organization ID in the context.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, orgKey{}, orgID)
}

// WithBranchID stores the branch the receipt is rung up at.
func WithBranchID(ctx context.Context, branchID snowflake.ID) context.Context {
	return context.WithValue(ctx, branchKey{}, branchID)
}

// WithCashierID stores the acting cashier.
func WithCashierID(ctx context.Context, cashierID snowflake.ID) context.Context {
	return context.WithValue(ctx, cashierKey{}, cashierID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, orgKey{})
}

// BranchIDFromContext returns the branch ID from context, if set.
func BranchIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, branchKey{})
}

// CashierIDFromContext returns the cashier ID from context, if set.
func CashierIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	return idFromContext(ctx, cashierKey{})
}

func idFromContext(ctx context.Context, key any) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(key).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, parsed != 0
		}
	}
	return 0, false
}
