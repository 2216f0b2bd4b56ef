package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tally/internal/cache"
	"github.com/smallbiznis/tally/internal/config"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	"github.com/smallbiznis/tally/internal/sessionctx"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"github.com/smallbiznis/tally/internal/tax/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const taxTestOrgID snowflake.ID = 8001

type taxTestEnv struct {
	db       *gorm.DB
	service  *Service
	resolver taxdomain.RateResolver
	cache    cache.ResolverCache
}

func setupTaxTest(t *testing.T) *taxTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&taxdomain.TaxPolicy{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	repo := repository.NewRepository(conn)
	resolverCache := cache.NewResolverCache()
	return &taxTestEnv{
		db: conn,
		service: &Service{
			log:   zap.NewNop(),
			genID: node,
			repo:  repo,
			cache: resolverCache,
		},
		resolver: &resolver{
			repo:   repo,
			cache:  resolverCache,
			policy: &config.PolicyHolder{},
		},
		cache: resolverCache,
	}
}

func taxContext() context.Context {
	return sessionctx.WithOrgID(context.Background(), taxTestOrgID)
}

func TestCreateTaxPolicy(t *testing.T) {
	env := setupTaxTest(t)

	resp, err := env.service.Create(taxContext(), taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCard,
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    0.05,
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.MethodCard, resp.Method)
	assert.Equal(t, 0.05, resp.Rate)
	assert.True(t, resp.IsEnabled)
}

func TestCreateTaxPolicy_DuplicateMethod(t *testing.T) {
	env := setupTaxTest(t)

	_, err := env.service.Create(taxContext(), taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCard,
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    0.05,
	})
	require.NoError(t, err)

	_, err = env.service.Create(taxContext(), taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCard,
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    0.07,
	})
	assert.ErrorIs(t, err, taxdomain.ErrDuplicateMethod)
}

func TestCreateTaxPolicy_InvalidRate(t *testing.T) {
	env := setupTaxTest(t)

	_, err := env.service.Create(taxContext(), taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCash,
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    1.5,
	})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidTaxRate)
}

func TestResolveForReceipt_FromPolicies(t *testing.T) {
	env := setupTaxTest(t)
	ctx := taxContext()

	_, err := env.service.Create(ctx, taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCard,
		TaxMode: taxdomain.TaxModeInclusive,
		Rate:    0.05,
	})
	require.NoError(t, err)
	_, err = env.service.Create(ctx, taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCash,
		TaxMode: taxdomain.TaxModeInclusive,
		Rate:    0.16,
	})
	require.NoError(t, err)

	table, err := env.resolver.ResolveForReceipt(ctx, taxTestOrgID)
	require.NoError(t, err)
	assert.Equal(t, taxdomain.TaxModeInclusive, table.Mode)
	assert.Equal(t, 0.05, table.RateFor(paymentdomain.MethodCard))
	assert.Equal(t, 0.16, table.RateFor(paymentdomain.MethodCash))
	assert.Equal(t, float64(0), table.RateFor(paymentdomain.MethodGiftCard))
}

func TestResolveForReceipt_DefaultsWhenUnconfigured(t *testing.T) {
	env := setupTaxTest(t)

	table, err := env.resolver.ResolveForReceipt(taxContext(), taxTestOrgID)
	require.NoError(t, err)

	defaults := config.DefaultPolicyConfig().Tax
	assert.Equal(t, taxdomain.TaxMode(defaults.Mode), table.Mode)
	for name, rate := range defaults.Rates {
		assert.Equal(t, rate, table.RateFor(paymentdomain.Method(name)))
	}
}

func TestResolveForReceipt_CacheInvalidatedOnWrite(t *testing.T) {
	env := setupTaxTest(t)
	ctx := taxContext()

	resp, err := env.service.Create(ctx, taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCard,
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    0.05,
	})
	require.NoError(t, err)

	table, err := env.resolver.ResolveForReceipt(ctx, taxTestOrgID)
	require.NoError(t, err)
	require.Equal(t, 0.05, table.RateFor(paymentdomain.MethodCard))
	_, cached := env.cache.GetRateTable(taxTestOrgID)
	require.True(t, cached)

	newRate := 0.08
	_, err = env.service.Update(ctx, taxdomain.UpdateRequest{ID: resp.ID, Rate: &newRate})
	require.NoError(t, err)

	// Update dropped the cached table; the next resolve reads the new rate.
	_, cached = env.cache.GetRateTable(taxTestOrgID)
	assert.False(t, cached)

	table, err = env.resolver.ResolveForReceipt(ctx, taxTestOrgID)
	require.NoError(t, err)
	assert.Equal(t, 0.08, table.RateFor(paymentdomain.MethodCard))
}

func TestDisableTaxPolicy(t *testing.T) {
	env := setupTaxTest(t)
	ctx := taxContext()

	resp, err := env.service.Create(ctx, taxdomain.CreateRequest{
		Method:  paymentdomain.MethodCard,
		TaxMode: taxdomain.TaxModeExclusive,
		Rate:    0.05,
	})
	require.NoError(t, err)

	disabled, err := env.service.Disable(ctx, resp.ID)
	require.NoError(t, err)
	assert.False(t, disabled.IsEnabled)

	// The sole policy disabled, the resolver falls back to defaults.
	table, err := env.resolver.ResolveForReceipt(ctx, taxTestOrgID)
	require.NoError(t, err)
	defaults := config.DefaultPolicyConfig().Tax
	assert.Equal(t, defaults.Rates["card"], table.RateFor(paymentdomain.MethodCard))
}

func TestUpdateTaxPolicy_NotFound(t *testing.T) {
	env := setupTaxTest(t)

	rate := 0.1
	_, err := env.service.Update(taxContext(), taxdomain.UpdateRequest{ID: "424242", Rate: &rate})
	assert.ErrorIs(t, err, taxdomain.ErrNotFound)
}

func TestListTaxPolicies_Filter(t *testing.T) {
	env := setupTaxTest(t)
	ctx := taxContext()

	for _, p := range []struct {
		method paymentdomain.Method
		rate   float64
	}{
		{paymentdomain.MethodCard, 0.05},
		{paymentdomain.MethodCash, 0.16},
	} {
		_, err := env.service.Create(ctx, taxdomain.CreateRequest{
			Method:  p.method,
			TaxMode: taxdomain.TaxModeExclusive,
			Rate:    p.rate,
		})
		require.NoError(t, err)
	}

	all, err := env.service.List(ctx, taxdomain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cards, err := env.service.List(ctx, taxdomain.ListRequest{Method: "card"})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, paymentdomain.MethodCard, cards[0].Method)
}
