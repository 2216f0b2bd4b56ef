package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tally/internal/cache"
	"github.com/smallbiznis/tally/internal/clock"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	loyaltyrepository "github.com/smallbiznis/tally/internal/loyalty/repository"
	loyaltyservice "github.com/smallbiznis/tally/internal/loyalty/service"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	"github.com/smallbiznis/tally/internal/receipt/domain"
	"github.com/smallbiznis/tally/internal/receipt/repository"
	"github.com/smallbiznis/tally/internal/sessionctx"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testOrgID     = snowflake.ID(9001)
	testBranchID  = snowflake.ID(9002)
	testCashierID = snowflake.ID(9003)
)

// staticRates is a fixed rate table: 5% card, 16% cash, tax exclusive.
type staticRates struct{}

func (staticRates) ResolveForReceipt(ctx context.Context, orgID snowflake.ID) (taxdomain.RateTable, error) {
	return taxdomain.RateTable{
		Mode: taxdomain.TaxModeExclusive,
		Rates: map[paymentdomain.Method]float64{
			paymentdomain.MethodCard: 0.05,
			paymentdomain.MethodCash: 0.16,
		},
	}, nil
}

type receiptTestEnv struct {
	db      *gorm.DB
	svc     domain.Service
	loyalty *loyaltyservice.Service
	node    *snowflake.Node
}

func setupReceiptTest(t *testing.T) *receiptTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&domain.Receipt{},
		&domain.ReceiptLine{},
		&domain.ReceiptPayment{},
		&loyaltydomain.LoyaltyRule{},
		&loyaltydomain.LoyaltyMilestone{},
		&loyaltydomain.LoyaltyAccount{},
		&loyaltydomain.LoyaltyRedemption{},
		&loyaltydomain.MilestoneAward{},
	)
	require.NoError(t, err)

	node, _ := snowflake.NewNode(2)

	loyaltySvc := loyaltyservice.New(loyaltyservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  loyaltyrepository.NewRepository(),
		Cache: cache.NewResolverCache(),
	})

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.NewRepository(),
		Rates:   staticRates{},
		Loyalty: loyaltySvc,
		Clock:   clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})

	return &receiptTestEnv{db: db, svc: svc, loyalty: loyaltySvc, node: node}
}

func sessionContext() context.Context {
	ctx := sessionctx.WithOrgID(context.Background(), testOrgID)
	ctx = sessionctx.WithBranchID(ctx, testBranchID)
	return sessionctx.WithCashierID(ctx, testCashierID)
}

func standardLines() []domain.LineRequest {
	return []domain.LineRequest{
		{ProductID: "101", Description: "espresso beans", UnitPrice: "100.00", Quantity: 2, LineDiscount: "5.00"},
		{ProductID: "102", Description: "grinder burr", UnitPrice: "50.00", Quantity: 1},
	}
}

func (e *receiptTestEnv) seedLoyalty(t *testing.T, balance int64) *loyaltydomain.LoyaltyAccount {
	t.Helper()

	rule := &loyaltydomain.LoyaltyRule{
		ID:                    e.node.Generate(),
		OrgID:                 testOrgID,
		Name:                  "standard",
		Currency:              "USD",
		RedeemUnitPoints:      1000,
		CashbackPerRedeemUnit: 10000,
		SpendUnitAmount:       1000,
		PointsPerSpendUnit:    1,
		MaxDiscountType:       loyaltydomain.MaxDiscountFlat,
		MaxDiscountAmount:     15000,
		IsActive:              true,
	}
	require.NoError(t, e.db.Create(rule).Error)

	account := &loyaltydomain.LoyaltyAccount{
		ID:            e.node.Generate(),
		OrgID:         testOrgID,
		CustomerID:    42,
		PointsBalance: balance,
	}
	require.NoError(t, e.db.Create(account).Error)
	return account
}

func TestCompute(t *testing.T) {
	env := setupReceiptTest(t)

	resp, err := env.svc.Compute(sessionContext(), domain.ComputeRequest{
		Currency: "USD",
		Lines:    standardLines(),
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCard, Amount: "257.25"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(24500), resp.SubtotalAmount)
	assert.Equal(t, 0.05, resp.TaxRate)
	assert.Equal(t, int64(1225), resp.TaxAmount)
	assert.Equal(t, int64(25725), resp.GrandTotalAmount)
	assert.Equal(t, int64(0), resp.BalanceDue)
	assert.Equal(t, paymentdomain.StatusCompleted, resp.PaymentStatus)
}

func TestCompute_SplitTender(t *testing.T) {
	env := setupReceiptTest(t)

	// Card carries the larger share, so the card rate applies.
	resp, err := env.svc.Compute(sessionContext(), domain.ComputeRequest{
		Currency: "USD",
		Lines:    standardLines(),
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCash, Amount: "57.25"},
			{Method: paymentdomain.MethodCard, Amount: "200.00"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.05, resp.TaxRate)
	assert.Equal(t, paymentdomain.StatusCompleted, resp.PaymentStatus)
}

func TestCompute_RedemptionPreview(t *testing.T) {
	env := setupReceiptTest(t)
	env.seedLoyalty(t, 2500)

	resp, err := env.svc.Compute(sessionContext(), domain.ComputeRequest{
		Currency:     "USD",
		Lines:        standardLines(),
		CustomerID:   "42",
		RedeemPoints: true,
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCard, Amount: "100.00"},
		},
	})
	require.NoError(t, err)

	// 2000 points redeem into 150.00 off the 245.00 base; 5% tax applies
	// to the reduced base of 95.00.
	assert.Equal(t, int64(2000), resp.LoyaltyPointsUsed)
	assert.Equal(t, int64(15000), resp.LoyaltyDiscountAmount)
	assert.Equal(t, int64(475), resp.TaxAmount)
	assert.Equal(t, int64(9975), resp.GrandTotalAmount)
}

func TestSubmit(t *testing.T) {
	env := setupReceiptTest(t)

	resp, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency: "USD",
		Lines:    standardLines(),
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCash, Amount: "200.00"},
			{Method: paymentdomain.MethodCard, Amount: "57.25"},
		},
		Metadata: map[string]any{"table": "7"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReceiptStatusSubmitted, resp.Status)
	assert.Equal(t, paymentdomain.StatusCompleted, resp.PaymentStatus)
	require.NotNil(t, resp.SubmittedAt)
	assert.Equal(t, "7", resp.Metadata["table"])

	var count int64
	require.NoError(t, env.db.Model(&domain.ReceiptLine{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	require.NoError(t, env.db.Model(&domain.ReceiptPayment{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSubmit_PartialPayment(t *testing.T) {
	env := setupReceiptTest(t)
	account := env.seedLoyalty(t, 0)

	resp, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency:   "USD",
		Lines:      standardLines(),
		CustomerID: "42",
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCard, Amount: "100.00"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, paymentdomain.StatusPartial, resp.PaymentStatus)
	assert.Equal(t, int64(15725), resp.BalanceDue)

	// No accrual until the receipt settles in full.
	var stored loyaltydomain.LoyaltyAccount
	require.NoError(t, env.db.First(&stored, "id = ?", account.ID).Error)
	assert.Zero(t, stored.PointsBalance)
	assert.Zero(t, resp.LoyaltyPointsEarned)
}

func TestSubmit_RedeemAndAccrue(t *testing.T) {
	env := setupReceiptTest(t)
	account := env.seedLoyalty(t, 2500)

	resp, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency:   "USD",
		Lines:      standardLines(),
		CustomerID: "42",
		PointsUsed: 2000,
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCard, Amount: "99.75"},
		},
	})
	require.NoError(t, err)

	// Base 245.00 less 150.00 redeemed, 5% tax on 95.00.
	assert.Equal(t, int64(15000), resp.LoyaltyDiscountAmount)
	assert.Equal(t, int64(9975), resp.GrandTotalAmount)
	assert.Equal(t, paymentdomain.StatusCompleted, resp.PaymentStatus)
	assert.Equal(t, int64(2000), resp.LoyaltyPointsUsed)

	// Accrual base is the taxable base net of the loyalty discount:
	// floor(9500 / 1000) = 9 points.
	assert.Equal(t, int64(9), resp.LoyaltyPointsEarned)

	var stored loyaltydomain.LoyaltyAccount
	require.NoError(t, env.db.First(&stored, "id = ?", account.ID).Error)
	assert.Equal(t, int64(509), stored.PointsBalance)

	var redemption loyaltydomain.LoyaltyRedemption
	require.NoError(t, env.db.First(&redemption, "account_id = ?", account.ID).Error)
	assert.Equal(t, loyaltydomain.RedemptionApplied, redemption.Status)
}

func TestSubmit_InsufficientPoints(t *testing.T) {
	env := setupReceiptTest(t)
	env.seedLoyalty(t, 500)

	_, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency:   "USD",
		Lines:      standardLines(),
		CustomerID: "42",
		PointsUsed: 2000,
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCard, Amount: "99.75"},
		},
	})
	assert.ErrorIs(t, err, loyaltydomain.ErrInsufficientPoints)

	// Nothing persisted: the transaction rolled back whole.
	var count int64
	require.NoError(t, env.db.Model(&domain.Receipt{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmit_ExcessiveDiscount(t *testing.T) {
	env := setupReceiptTest(t)

	_, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency:      "USD",
		Lines:         standardLines(),
		OrderDiscount: "500.00",
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCash, Amount: "10.00"},
		},
	})
	assert.ErrorIs(t, err, domain.ErrExcessiveDiscount)
}

func TestSubmit_EmptyReceipt(t *testing.T) {
	env := setupReceiptTest(t)

	_, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency: "USD",
	})
	assert.ErrorIs(t, err, domain.ErrEmptyReceipt)
}

func TestSubmit_NegativeTender(t *testing.T) {
	env := setupReceiptTest(t)

	_, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency: "USD",
		Lines:    standardLines(),
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCash, Amount: "-5.00"},
		},
	})
	require.Error(t, err)
}

func TestSubmit_MissingSession(t *testing.T) {
	env := setupReceiptTest(t)

	_, err := env.svc.Submit(sessionctx.WithOrgID(context.Background(), testOrgID), domain.SubmitRequest{
		Currency: "USD",
		Lines:    standardLines(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidBranch)
}

func TestGetByID_RederivesPaymentStatus(t *testing.T) {
	env := setupReceiptTest(t)

	created, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
		Currency: "USD",
		Lines:    standardLines(),
		Payments: []domain.SplitRequest{
			{Method: paymentdomain.MethodCard, Amount: "257.25"},
		},
	})
	require.NoError(t, err)

	fetched, err := env.svc.GetByID(sessionContext(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusCompleted, fetched.PaymentStatus)
	assert.Equal(t, created.GrandTotalAmount, fetched.GrandTotalAmount)
	assert.Len(t, fetched.Lines, 2)
}

func TestList_CursorPagination(t *testing.T) {
	env := setupReceiptTest(t)

	for i := 0; i < 3; i++ {
		_, err := env.svc.Submit(sessionContext(), domain.SubmitRequest{
			Currency: "USD",
			Lines:    standardLines(),
			Payments: []domain.SplitRequest{
				{Method: paymentdomain.MethodCard, Amount: "257.25"},
			},
		})
		require.NoError(t, err)
	}

	first, err := env.svc.List(sessionContext(), domain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Data, 2)
	require.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	second, err := env.svc.List(sessionContext(), domain.ListRequest{
		PageSize:  2,
		PageToken: first.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Data, 1)
	assert.False(t, second.PageInfo.HasMore)
}
