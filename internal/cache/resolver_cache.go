package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
)

const (
	defaultRateTableTTL   = 5 * time.Minute
	defaultLoyaltyRuleTTL = 1 * time.Minute
)

// ResolverCache stores hot-path lookups made once per receipt computation:
// the org's tax rate table and its active loyalty rule.
type ResolverCache interface {
	GetRateTable(orgID snowflake.ID) (taxdomain.RateTable, bool)
	SetRateTable(orgID snowflake.ID, table taxdomain.RateTable)
	InvalidateRateTable(orgID snowflake.ID)

	GetActiveRule(orgID snowflake.ID) (*loyaltydomain.LoyaltyRule, bool)
	SetActiveRule(orgID snowflake.ID, rule *loyaltydomain.LoyaltyRule)
	InvalidateActiveRule(orgID snowflake.ID)
}

type resolverCache struct {
	rateTables Cache[snowflake.ID, taxdomain.RateTable]
	rules      Cache[snowflake.ID, *loyaltydomain.LoyaltyRule]
	rateTTL    time.Duration
	ruleTTL    time.Duration
}

// NewResolverCache returns an in-memory cache tuned for receipt compute.
func NewResolverCache() ResolverCache {
	return &resolverCache{
		rateTables: NewTTLCache[snowflake.ID, taxdomain.RateTable](),
		rules:      NewTTLCache[snowflake.ID, *loyaltydomain.LoyaltyRule](),
		rateTTL:    defaultRateTableTTL,
		ruleTTL:    defaultLoyaltyRuleTTL,
	}
}

func (c *resolverCache) GetRateTable(orgID snowflake.ID) (taxdomain.RateTable, bool) {
	return c.rateTables.Get(orgID)
}

func (c *resolverCache) SetRateTable(orgID snowflake.ID, table taxdomain.RateTable) {
	c.rateTables.Set(orgID, table, c.rateTTL)
}

func (c *resolverCache) InvalidateRateTable(orgID snowflake.ID) {
	c.rateTables.Delete(orgID)
}

func (c *resolverCache) GetActiveRule(orgID snowflake.ID) (*loyaltydomain.LoyaltyRule, bool) {
	return c.rules.Get(orgID)
}

func (c *resolverCache) SetActiveRule(orgID snowflake.ID, rule *loyaltydomain.LoyaltyRule) {
	if rule == nil {
		return
	}
	c.rules.Set(orgID, rule, c.ruleTTL)
}

func (c *resolverCache) InvalidateActiveRule(orgID snowflake.ID) {
	c.rules.Delete(orgID)
}
