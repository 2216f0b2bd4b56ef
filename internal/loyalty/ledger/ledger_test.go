package ledger

import (
	"testing"

	"github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule() *domain.LoyaltyRule {
	return &domain.LoyaltyRule{
		Currency:              "USD",
		RedeemUnitPoints:      1000,
		CashbackPerRedeemUnit: 10000, // 100.00 per 1000 points
		SpendUnitAmount:       100000, // 1000.00 spent
		PointsPerSpendUnit:    10,
		MaxDiscountType:       domain.MaxDiscountFlat,
		MaxDiscountAmount:     15000, // 150.00
	}
}

func usd(v string) money.Money { return money.MustParse(v, "USD") }

func TestPreviewRedemption_CappedFlat(t *testing.T) {
	// Balance 2500 -> 2000 points usable -> 200.00 cashback, capped at 150.00.
	preview, err := PreviewRedemption(2500, rule(), usd("500.00"))
	require.NoError(t, err)

	assert.Equal(t, int64(2000), preview.PointsUsed)
	assert.Equal(t, int64(15000), preview.Discount.MinorUnits())
}

func TestPreviewRedemption_BelowOneUnit(t *testing.T) {
	preview, err := PreviewRedemption(999, rule(), usd("500.00"))
	require.NoError(t, err)

	assert.Zero(t, preview.PointsUsed)
	assert.True(t, preview.Discount.IsZero())
}

func TestPreviewRedemption_PointsAreMultipleOfUnit(t *testing.T) {
	for _, balance := range []int64{0, 1, 1000, 1500, 2999, 10000} {
		preview, err := PreviewRedemption(balance, rule(), usd("10000.00"))
		require.NoError(t, err)
		assert.Zero(t, preview.PointsUsed%1000, "balance %d", balance)
		assert.LessOrEqual(t, preview.PointsUsed, balance)
	}
}

func TestPreviewRedemption_PercentageCap(t *testing.T) {
	r := rule()
	r.MaxDiscountType = domain.MaxDiscountPercentage
	r.MaxDiscountPercent = 0.10
	r.MaxDiscountAmount = 0

	// 10% of 500.00 = 50.00 cap against 100.00 cashback.
	preview, err := PreviewRedemption(1000, r, usd("500.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), preview.Discount.MinorUnits())
	assert.Equal(t, int64(1000), preview.PointsUsed)
}

func TestPreviewRedemption_NeverExceedsSubtotal(t *testing.T) {
	r := rule()
	r.MaxDiscountAmount = 0 // no cap

	preview, err := PreviewRedemption(5000, r, usd("120.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(12000), preview.Discount.MinorUnits())
}

func TestPreviewRedemption_NoProgramConfigured(t *testing.T) {
	preview, err := PreviewRedemption(5000, nil, usd("100.00"))
	require.NoError(t, err)
	assert.Zero(t, preview.PointsUsed)
	assert.True(t, preview.Discount.IsZero())
}

func TestPreviewRedemption_NegativeBalanceRejected(t *testing.T) {
	_, err := PreviewRedemption(-1, rule(), usd("100.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidRedemption)
}

func TestAccrue(t *testing.T) {
	// 2450.00 spent / 1000.00 per unit = 2 units * 10 points.
	assert.Equal(t, int64(20), Accrue(usd("2450.00"), rule()))

	// Below one spend unit earns nothing.
	assert.Zero(t, Accrue(usd("999.99"), rule()))

	// No accrual configured.
	r := rule()
	r.PointsPerSpendUnit = 0
	assert.Zero(t, Accrue(usd("5000.00"), r))
}

func TestCrossedMilestones(t *testing.T) {
	r := rule()
	r.Milestones = []domain.LoyaltyMilestone{
		{ID: 1, ThresholdAmount: 100000, RewardPoints: 500},
		{ID: 2, ThresholdAmount: 500000, RewardPoints: 2000},
	}

	crossed := CrossedMilestones(r, 90000, 120000)
	require.Len(t, crossed, 1)
	assert.Equal(t, int64(500), crossed[0].RewardPoints)

	// Threshold already passed before this receipt is not re-crossed.
	assert.Empty(t, CrossedMilestones(r, 100000, 120000))

	// Both crossed in one large receipt.
	assert.Len(t, CrossedMilestones(r, 0, 500000), 2)
}

func TestTransition(t *testing.T) {
	require.NoError(t, Transition(StateIdle, StatePreviewed))
	require.NoError(t, Transition(StatePreviewed, StateApplied))
	require.NoError(t, Transition(StatePreviewed, StateDiscarded))
	// Cart changed, caller re-previews.
	require.NoError(t, Transition(StatePreviewed, StatePreviewed))

	assert.ErrorIs(t, Transition(StateApplied, StateApplied), domain.ErrAlreadyApplied)
	assert.ErrorIs(t, Transition(StateIdle, StateApplied), domain.ErrInvalidRedemption)
	assert.ErrorIs(t, Transition(StateDiscarded, StateApplied), domain.ErrInvalidRedemption)
}
