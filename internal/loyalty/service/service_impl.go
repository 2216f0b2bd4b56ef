package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tally/internal/cache"
	"github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/internal/loyalty/ledger"
	"github.com/smallbiznis/tally/internal/loyalty/lock"
	"github.com/smallbiznis/tally/internal/money"
	"github.com/smallbiznis/tally/internal/sessionctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const redemptionLockTTL = 5 * time.Second

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Cache cache.ResolverCache
	Lock  *lock.RedemptionLock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	cache cache.ResolverCache
	lock  *lock.RedemptionLock
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("loyalty.service"),
		genID: p.GenID,
		repo:  p.Repo,
		cache: p.Cache,
		lock:  p.Lock,
	}
}

func (s *Service) EnrollAccount(ctx context.Context, req domain.EnrollRequest) (*domain.AccountResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}

	var bonus int64
	rule, err := s.GetActiveRule(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		bonus = rule.SignUpBonusPoints
	}

	now := time.Now().UTC()
	account := domain.LoyaltyAccount{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		CustomerID:    customerID,
		PointsBalance: bonus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertAccount(ctx, s.db, &account); err != nil {
		return nil, err
	}

	s.log.Info("loyalty account enrolled",
		zap.String("account_id", account.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int64("sign_up_bonus", bonus),
	)
	return accountResponse(&account), nil
}

func (s *Service) GetAccount(ctx context.Context, customerID string) (*domain.AccountResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(customerID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidCustomer
	}

	account, err := s.repo.FindAccount(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return accountResponse(account), nil
}

// PreviewRedemption computes the advisory redemption for the customer's
// current balance. The snapshot is advisory only: ApplyRedemption
// re-validates inside the submit transaction.
func (s *Service) PreviewRedemption(ctx context.Context, req domain.PreviewRequest) (*domain.PreviewResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil || customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}

	subtotal, err := money.Parse(req.EligibleSubtotal, req.Currency)
	if err != nil {
		return nil, err
	}

	rule, err := s.GetActiveRule(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var balance int64
	account, err := s.repo.FindAccount(ctx, s.db, orgID, customerID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		balance = account.PointsBalance
	}

	preview, err := ledger.PreviewRedemption(balance, rule, subtotal)
	if err != nil {
		return nil, err
	}
	return &domain.PreviewResponse{
		PointsUsed:         preview.PointsUsed,
		Discount:           preview.Discount.String(),
		DiscountMinorUnits: preview.Discount.MinorUnits(),
	}, nil
}

// ApplyRedemption debits points inside the caller's transaction. The
// compare-and-swap against the live balance is what defends against a
// stale preview; the redis lock only shortens the race window between
// terminals sharing one customer.
func (s *Service) ApplyRedemption(ctx context.Context, tx *gorm.DB, req domain.ApplyRequest) error {
	if req.PointsUsed <= 0 {
		return domain.ErrInvalidRedemption
	}

	token, acquired, err := s.lock.TryAcquire(ctx, req.AccountID, redemptionLockTTL)
	if err != nil {
		s.log.Warn("redemption lock unavailable, relying on conditional update", zap.Error(err))
	} else if !acquired {
		return domain.ErrInsufficientPoints
	}
	defer func() {
		if releaseErr := s.lock.Release(ctx, req.AccountID, token); releaseErr != nil {
			s.log.Warn("redemption lock release failed", zap.Error(releaseErr))
		}
	}()

	existing, err := s.repo.FindRedemptionByReceipt(ctx, tx, req.OrgID, req.ReceiptID)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := ledger.Transition(ledger.State(existing.Status), ledger.StateApplied); err != nil {
			return err
		}
	}

	account, err := s.repo.FindAccountByID(ctx, tx, req.OrgID, req.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrNotFound
	}
	if req.PointsUsed > account.PointsBalance {
		return domain.ErrInsufficientPoints
	}

	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	swapped, err := s.repo.CompareAndSwapBalance(ctx, tx, account.ID, account.PointsBalance, account.PointsBalance-req.PointsUsed, at)
	if err != nil {
		return err
	}
	if !swapped {
		// Balance moved between read and update inside this tx; the
		// caller's snapshot is stale either way.
		return domain.ErrInsufficientPoints
	}

	redemption := domain.LoyaltyRedemption{
		ID:             s.genID.Generate(),
		OrgID:          req.OrgID,
		AccountID:      account.ID,
		ReceiptID:      req.ReceiptID,
		PointsUsed:     req.PointsUsed,
		DiscountAmount: req.Discount.MinorUnits(),
		Status:         domain.RedemptionApplied,
		CreatedAt:      at,
	}
	if err := s.repo.InsertRedemption(ctx, tx, &redemption); err != nil {
		return err
	}

	s.log.Info("redemption applied",
		zap.String("account_id", account.ID.String()),
		zap.String("receipt_id", req.ReceiptID.String()),
		zap.Int64("points_used", req.PointsUsed),
	)
	return nil
}

// AccrueForReceipt credits earned points and any milestone bonuses the
// receipt's lifetime spend crossed. Runs inside the caller's transaction.
func (s *Service) AccrueForReceipt(ctx context.Context, tx *gorm.DB, req domain.AccrueRequest) (*domain.AccrualResult, error) {
	rule, err := s.GetActiveRule(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return &domain.AccrualResult{}, nil
	}

	account, err := s.repo.FindAccountByID(ctx, tx, req.OrgID, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}

	earned := ledger.Accrue(req.EligibleSubtotal, rule)
	spend := req.EligibleSubtotal.MinorUnits()

	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var milestoneBonus int64
	crossed := ledger.CrossedMilestones(rule, account.LifetimeSpendAmount, account.LifetimeSpendAmount+spend)
	for _, milestone := range crossed {
		awarded, err := s.repo.MilestoneAwarded(ctx, tx, account.ID, milestone.ID)
		if err != nil {
			return nil, err
		}
		if awarded {
			continue
		}
		err = s.repo.InsertMilestoneAward(ctx, tx, &domain.MilestoneAward{
			ID:           s.genID.Generate(),
			AccountID:    account.ID,
			MilestoneID:  milestone.ID,
			RewardPoints: milestone.RewardPoints,
			AwardedAt:    at,
		})
		if err != nil {
			if errors.Is(err, domain.ErrMilestoneAwarded) {
				continue
			}
			return nil, err
		}
		milestoneBonus += milestone.RewardPoints
	}

	if earned+milestoneBonus > 0 || spend > 0 {
		if err := s.repo.CreditPoints(ctx, tx, account.ID, earned+milestoneBonus, spend, at); err != nil {
			return nil, err
		}
	}

	return &domain.AccrualResult{PointsEarned: earned, MilestoneBonus: milestoneBonus}, nil
}

// PreviewForReceipt is the receipt pipeline's redemption preview: no
// account or no active rule previews to zero rather than erroring.
func (s *Service) PreviewForReceipt(ctx context.Context, orgID, customerID snowflake.ID, eligibleSubtotal money.Money) (*domain.ReceiptPreview, error) {
	rule, err := s.GetActiveRule(ctx, orgID)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindAccount(ctx, s.db, orgID, customerID)
	if err != nil {
		return nil, err
	}
	if account == nil || rule == nil {
		return &domain.ReceiptPreview{Discount: money.Zero(eligibleSubtotal.Currency())}, nil
	}

	preview, err := ledger.PreviewRedemption(account.PointsBalance, rule, eligibleSubtotal)
	if err != nil {
		return nil, err
	}
	return &domain.ReceiptPreview{
		AccountID:  account.ID,
		PointsUsed: preview.PointsUsed,
		Discount:   preview.Discount,
	}, nil
}

func (s *Service) DiscountForPoints(ctx context.Context, orgID snowflake.ID, pointsUsed int64, eligibleSubtotal money.Money) (money.Money, error) {
	rule, err := s.GetActiveRule(ctx, orgID)
	if err != nil {
		return money.Money{}, err
	}
	return ledger.DiscountForPoints(pointsUsed, rule, eligibleSubtotal)
}

func (s *Service) GetActiveRule(ctx context.Context, orgID snowflake.ID) (*domain.LoyaltyRule, error) {
	if rule, ok := s.cache.GetActiveRule(orgID); ok {
		return rule, nil
	}
	rule, err := s.repo.ActiveRule(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		s.cache.SetActiveRule(orgID, rule)
	}
	return rule, nil
}

func (s *Service) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.RuleResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	now := time.Now().UTC()
	rule := domain.LoyaltyRule{
		ID:                    s.genID.Generate(),
		OrgID:                 orgID,
		Name:                  strings.TrimSpace(req.Name),
		Currency:              strings.ToUpper(strings.TrimSpace(req.Currency)),
		RedeemUnitPoints:      req.RedeemUnitPoints,
		CashbackPerRedeemUnit: req.CashbackPerRedeemUnit,
		SpendUnitAmount:       req.SpendUnitAmount,
		PointsPerSpendUnit:    req.PointsPerSpendUnit,
		MaxDiscountType:       req.MaxDiscountType,
		MaxDiscountAmount:     req.MaxDiscountAmount,
		MaxDiscountPercent:    req.MaxDiscountPercent,
		ExpireAfterDays:       req.ExpireAfterDays,
		SignUpBonusPoints:     req.SignUpBonusPoints,
		BirthdayDiscountRate:  req.BirthdayDiscountRate,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if rule.MaxDiscountType == "" {
		rule.MaxDiscountType = domain.MaxDiscountFlat
	}
	for _, spec := range req.Milestones {
		rule.Milestones = append(rule.Milestones, domain.LoyaltyMilestone{
			ID:              s.genID.Generate(),
			RuleID:          rule.ID,
			ThresholdAmount: spec.ThresholdAmount,
			RewardPoints:    spec.RewardPoints,
			CreatedAt:       now,
		})
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.InsertRule(ctx, s.db, &rule); err != nil {
		return nil, err
	}
	return ruleResponse(&rule), nil
}

func (s *Service) ListRules(ctx context.Context) ([]domain.RuleResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	rules, err := s.repo.ListRules(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RuleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, *ruleResponse(&rules[i]))
	}
	return out, nil
}

// ActivateRule makes the rule the org's single active rule, deactivating
// any other.
func (s *Service) ActivateRule(ctx context.Context, id string) (*domain.RuleResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	ruleID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || ruleID == 0 {
		return nil, domain.ErrNotFound
	}

	rule, err := s.repo.FindRuleByID(ctx, s.db, orgID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateRules(ctx, tx, orgID, ruleID); err != nil {
			return err
		}
		rule.IsActive = true
		rule.UpdatedAt = time.Now().UTC()
		return s.repo.UpdateRule(ctx, tx, rule)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateActiveRule(orgID)
	return ruleResponse(rule), nil
}

func accountResponse(account *domain.LoyaltyAccount) *domain.AccountResponse {
	return &domain.AccountResponse{
		ID:                  account.ID.String(),
		CustomerID:          account.CustomerID.String(),
		PointsBalance:       account.PointsBalance,
		LifetimeSpendAmount: account.LifetimeSpendAmount,
		LastAccrualAt:       account.LastAccrualAt,
		LastRedemptionAt:    account.LastRedemptionAt,
		CreatedAt:           account.CreatedAt,
	}
}

func ruleResponse(rule *domain.LoyaltyRule) *domain.RuleResponse {
	resp := &domain.RuleResponse{
		ID:                    rule.ID.String(),
		OrganizationID:        rule.OrgID.String(),
		Name:                  rule.Name,
		Currency:              rule.Currency,
		RedeemUnitPoints:      rule.RedeemUnitPoints,
		CashbackPerRedeemUnit: rule.CashbackPerRedeemUnit,
		SpendUnitAmount:       rule.SpendUnitAmount,
		PointsPerSpendUnit:    rule.PointsPerSpendUnit,
		MaxDiscountType:       rule.MaxDiscountType,
		MaxDiscountAmount:     rule.MaxDiscountAmount,
		MaxDiscountPercent:    rule.MaxDiscountPercent,
		ExpireAfterDays:       rule.ExpireAfterDays,
		SignUpBonusPoints:     rule.SignUpBonusPoints,
		BirthdayDiscountRate:  rule.BirthdayDiscountRate,
		IsActive:              rule.IsActive,
		CreatedAt:             rule.CreatedAt,
		UpdatedAt:             rule.UpdatedAt,
	}
	for _, m := range rule.Milestones {
		resp.Milestones = append(resp.Milestones, domain.MilestoneSpec{
			ThresholdAmount: m.ThresholdAmount,
			RewardPoints:    m.RewardPoints,
		})
	}
	return resp
}
