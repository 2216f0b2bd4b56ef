// Package ledger holds the pure loyalty arithmetic: redemption previews,
// point accrual and the per-receipt redemption state machine. Nothing in
// here touches storage; the service layer runs these results through the
// conditional balance update that makes them stick.
package ledger

import (
	"fmt"

	"github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/internal/money"
)

// PreviewRedemption computes the advisory redemption for a balance
// snapshot. PointsUsed is the largest multiple of the rule's redeem unit
// not exceeding the balance; the discount is capped by the rule's max
// (flat or percentage of the eligible subtotal) and never exceeds the
// subtotal itself. A balance below one redeem unit yields a zero preview,
// not an error: redemption is opportunistic, never required.
func PreviewRedemption(balance int64, rule *domain.LoyaltyRule, eligibleSubtotal money.Money) (domain.RedemptionPreview, error) {
	zero := domain.RedemptionPreview{Discount: money.Zero(eligibleSubtotal.Currency())}
	if rule == nil || rule.RedeemUnitPoints <= 0 || rule.CashbackPerRedeemUnit <= 0 {
		return zero, nil
	}
	if balance < 0 {
		return domain.RedemptionPreview{}, domain.ErrInvalidRedemption
	}
	if eligibleSubtotal.IsNegative() {
		return domain.RedemptionPreview{}, domain.ErrInvalidRedemption
	}

	units := balance / rule.RedeemUnitPoints
	if units == 0 {
		return zero, nil
	}
	pointsUsed := units * rule.RedeemUnitPoints

	cashback := money.New(rule.CashbackPerRedeemUnit, rule.Currency)
	discount, err := cashback.MulInt(units)
	if err != nil {
		return domain.RedemptionPreview{}, fmt.Errorf("%w: %v", domain.ErrInvalidRedemption, err)
	}

	cap, err := discountCap(rule, eligibleSubtotal)
	if err != nil {
		return domain.RedemptionPreview{}, err
	}
	if cap != nil {
		if cmp, cmpErr := discount.Cmp(*cap); cmpErr == nil && cmp > 0 {
			discount = *cap
		}
	}

	// A redemption discount never flips the receipt negative.
	if cmp, cmpErr := discount.Cmp(eligibleSubtotal); cmpErr == nil && cmp > 0 {
		discount = eligibleSubtotal
	}

	return domain.RedemptionPreview{PointsUsed: pointsUsed, Discount: discount}, nil
}

func discountCap(rule *domain.LoyaltyRule, eligibleSubtotal money.Money) (*money.Money, error) {
	switch rule.MaxDiscountType {
	case domain.MaxDiscountFlat:
		if rule.MaxDiscountAmount <= 0 {
			return nil, nil
		}
		cap := money.New(rule.MaxDiscountAmount, rule.Currency)
		return &cap, nil
	case domain.MaxDiscountPercentage:
		if rule.MaxDiscountPercent <= 0 {
			return nil, nil
		}
		cap, err := eligibleSubtotal.PercentOf(rule.MaxDiscountPercent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRedemption, err)
		}
		return &cap, nil
	default:
		return nil, domain.ErrInvalidRule
	}
}

// DiscountForPoints recomputes the discount a given point spend is worth.
// The submit path uses this instead of trusting a client-supplied discount
// amount. PointsUsed must be a positive multiple of the redeem unit.
func DiscountForPoints(pointsUsed int64, rule *domain.LoyaltyRule, eligibleSubtotal money.Money) (money.Money, error) {
	if rule == nil || rule.RedeemUnitPoints <= 0 {
		return money.Money{}, domain.ErrInvalidRedemption
	}
	if pointsUsed <= 0 || pointsUsed%rule.RedeemUnitPoints != 0 {
		return money.Money{}, fmt.Errorf("%w: %d points is not a multiple of %d",
			domain.ErrInvalidRedemption, pointsUsed, rule.RedeemUnitPoints)
	}

	preview, err := PreviewRedemption(pointsUsed, rule, eligibleSubtotal)
	if err != nil {
		return money.Money{}, err
	}
	return preview.Discount, nil
}

// Accrue returns the points earned for an eligible subtotal: integer floor
// division by the rule's spend unit, never fractional points.
func Accrue(eligibleSubtotal money.Money, rule *domain.LoyaltyRule) int64 {
	if rule == nil || rule.SpendUnitAmount <= 0 || rule.PointsPerSpendUnit <= 0 {
		return 0
	}
	if eligibleSubtotal.IsNegative() {
		return 0
	}
	return (eligibleSubtotal.MinorUnits() / rule.SpendUnitAmount) * rule.PointsPerSpendUnit
}

// CrossedMilestones returns the rule milestones whose thresholds fall in
// (lifetimeBefore, lifetimeAfter]. Previously-awarded milestones are
// filtered out by the service via the award table.
func CrossedMilestones(rule *domain.LoyaltyRule, lifetimeBefore, lifetimeAfter int64) []domain.LoyaltyMilestone {
	if rule == nil || lifetimeAfter <= lifetimeBefore {
		return nil
	}
	var crossed []domain.LoyaltyMilestone
	for _, m := range rule.Milestones {
		if m.ThresholdAmount > lifetimeBefore && m.ThresholdAmount <= lifetimeAfter {
			crossed = append(crossed, m)
		}
	}
	return crossed
}

// State is the in-flight redemption lifecycle for one receipt.
type State string

const (
	StateIdle      State = "idle"
	StatePreviewed State = "previewed"
	StateApplied   State = "applied"
	StateDiscarded State = "discarded"
)

// Transition validates a redemption state change. Applied and Discarded
// are terminal; re-applying an applied redemption reports ErrAlreadyApplied
// so a double-fired submit handler cannot double-spend points.
func Transition(from, to State) error {
	if from == StateApplied && to == StateApplied {
		return domain.ErrAlreadyApplied
	}
	allowed := map[State][]State{
		StateIdle:      {StatePreviewed},
		StatePreviewed: {StateApplied, StateDiscarded, StatePreviewed},
	}
	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidRedemption, from, to)
}
