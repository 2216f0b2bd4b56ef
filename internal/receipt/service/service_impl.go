package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tally/internal/clock"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/internal/money"
	"github.com/smallbiznis/tally/internal/observability/metrics"
	"github.com/smallbiznis/tally/internal/payment"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	"github.com/smallbiznis/tally/internal/receipt/domain"
	"github.com/smallbiznis/tally/internal/receipt/pricing"
	"github.com/smallbiznis/tally/internal/sessionctx"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Rates   taxdomain.RateResolver
	Loyalty loyaltydomain.Ledger
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	rates   taxdomain.RateResolver
	loyalty loyaltydomain.Ledger
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("receipt.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		rates:   p.Rates,
		loyalty: p.Loyalty,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// draft is the parsed, validated working copy of an incoming receipt.
type draft struct {
	currency      string
	lines         []domain.LineItem
	orderDiscount money.Money
	customerID    snowflake.ID
	splits        []paymentdomain.Split
	taxRate       float64
	taxMode       taxdomain.TaxMode
}

func (s *Service) Compute(ctx context.Context, req domain.ComputeRequest) (*domain.ComputeResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	d, err := s.parseDraft(ctx, orgID, req.Currency, req.Lines, req.OrderDiscount, req.CustomerID, req.Payments)
	if err != nil {
		return nil, err
	}

	totals, err := pricing.ComputeReceiptTotals(d.lines, d.orderDiscount, d.taxRate, d.taxMode, d.currency)
	if err != nil {
		return nil, err
	}

	var pointsUsed, loyaltyDiscount int64
	if req.RedeemPoints && d.customerID != 0 {
		preview, err := s.loyalty.PreviewForReceipt(ctx, orgID, d.customerID, totals.TaxableBase)
		if err != nil {
			return nil, err
		}
		if preview.PointsUsed > 0 {
			pointsUsed = preview.PointsUsed
			loyaltyDiscount = preview.Discount.MinorUnits()

			combined, err := d.orderDiscount.Add(preview.Discount)
			if err != nil {
				return nil, err
			}
			totals, err = pricing.ComputeReceiptTotals(d.lines, combined, d.taxRate, d.taxMode, d.currency)
			if err != nil {
				return nil, err
			}
		}
	}

	rec, err := payment.Reconcile(totals.GrandTotal, d.splits)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ReceiptsComputed.Inc()
	}

	return &domain.ComputeResponse{
		Currency:              d.currency,
		SubtotalAmount:        totals.Subtotal.MinorUnits(),
		OrderDiscountAmount:   d.orderDiscount.MinorUnits(),
		LoyaltyDiscountAmount: loyaltyDiscount,
		LoyaltyPointsUsed:     pointsUsed,
		TaxRate:               totals.TaxRate,
		TaxAmount:             totals.TaxAmount.MinorUnits(),
		GrandTotalAmount:      totals.GrandTotal.MinorUnits(),
		AmountPaid:            rec.AmountPaid.MinorUnits(),
		BalanceDue:            rec.BalanceDue.MinorUnits(),
		PaymentStatus:         rec.Status,
	}, nil
}

// Submit runs the whole pipeline inside one transaction: the frozen
// receipt, the point debit and the accrual commit together or roll back
// together. A redemption rejected mid-transaction (stale balance, receipt
// already redeemed) aborts the submit entirely.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Response, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	branchID, ok := sessionctx.BranchIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidBranch
	}
	cashierID, ok := sessionctx.CashierIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidCashier
	}

	if len(req.Lines) == 0 {
		return nil, domain.ErrEmptyReceipt
	}
	if req.PointsUsed > 0 && strings.TrimSpace(req.CustomerID) == "" {
		return nil, loyaltydomain.ErrInvalidCustomer
	}

	d, err := s.parseDraft(ctx, orgID, req.Currency, req.Lines, req.OrderDiscount, req.CustomerID, req.Payments)
	if err != nil {
		return nil, err
	}

	totals, err := pricing.ComputeReceiptTotals(d.lines, d.orderDiscount, d.taxRate, d.taxMode, d.currency)
	if err != nil {
		return nil, err
	}

	loyaltyDiscount := money.Zero(d.currency)
	if req.PointsUsed > 0 {
		loyaltyDiscount, err = s.loyalty.DiscountForPoints(ctx, orgID, req.PointsUsed, totals.TaxableBase)
		if err != nil {
			s.countRejection(err)
			return nil, err
		}
		combined, err := d.orderDiscount.Add(loyaltyDiscount)
		if err != nil {
			return nil, err
		}
		totals, err = pricing.ComputeReceiptTotals(d.lines, combined, d.taxRate, d.taxMode, d.currency)
		if err != nil {
			return nil, err
		}
	}

	rec, err := payment.Reconcile(totals.GrandTotal, d.splits)
	if err != nil {
		return nil, err
	}

	var accountID snowflake.ID
	if d.customerID != 0 {
		preview, err := s.loyalty.PreviewForReceipt(ctx, orgID, d.customerID, totals.TaxableBase)
		if err != nil {
			return nil, err
		}
		accountID = preview.AccountID
	}
	if req.PointsUsed > 0 && accountID == 0 {
		return nil, loyaltydomain.ErrNotFound
	}

	now := s.clock.Now()
	receipt := s.buildReceipt(orgID, branchID, cashierID, d, totals, loyaltyDiscount, req.PointsUsed, rec, now)
	receipt.Metadata = normalizeMap(req.Metadata)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, receipt); err != nil {
			return err
		}

		if req.PointsUsed > 0 {
			if err := s.loyalty.ApplyRedemption(ctx, tx, loyaltydomain.ApplyRequest{
				OrgID:      orgID,
				AccountID:  accountID,
				ReceiptID:  receipt.ID,
				PointsUsed: req.PointsUsed,
				Discount:   loyaltyDiscount,
				At:         now,
			}); err != nil {
				return err
			}
		}

		// Accrual only follows a fully settled receipt; partial payments
		// earn nothing until completed.
		if rec.Status == paymentdomain.StatusCompleted && accountID != 0 {
			// totals carry the combined discount at this point, so the
			// taxable base is already net of the redeemed amount.
			eligible := totals.TaxableBase
			result, err := s.loyalty.AccrueForReceipt(ctx, tx, loyaltydomain.AccrueRequest{
				OrgID:            orgID,
				AccountID:        accountID,
				EligibleSubtotal: eligible,
				At:               now,
			})
			if err != nil {
				return err
			}
			receipt.LoyaltyPointsEarned = result.PointsEarned + result.MilestoneBonus
			if err := tx.Model(&domain.Receipt{}).
				Where("id = ?", receipt.ID).
				Update("loyalty_points_earned", receipt.LoyaltyPointsEarned).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ReceiptsSubmitted.WithLabelValues(string(rec.Status)).Inc()
		s.metrics.ReceiptGrandTotal.Observe(float64(receipt.GrandTotalAmount))
		if req.PointsUsed > 0 {
			s.metrics.RedemptionsApplied.Inc()
		}
		if receipt.LoyaltyPointsEarned > 0 {
			s.metrics.PointsAccrued.Add(float64(receipt.LoyaltyPointsEarned))
		}
	}

	s.log.Info("receipt submitted",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("branch_id", branchID.String()),
		zap.Int64("grand_total", receipt.GrandTotalAmount),
		zap.String("payment_status", string(rec.Status)),
	)
	return response(receipt), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Response, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	receiptID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || receiptID == 0 {
		return nil, domain.ErrNotFound
	}

	receipt, err := s.repo.FindByID(ctx, s.db, orgID, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, domain.ErrNotFound
	}
	return response(receipt), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	receipts, pageInfo, err := s.repo.List(ctx, s.db, orgID, req)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Response, 0, len(receipts))
	for i := range receipts {
		out = append(out, *response(&receipts[i]))
	}
	resp := &domain.ListResponse{Data: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) parseDraft(ctx context.Context, orgID snowflake.ID, currency string, lines []domain.LineRequest, orderDiscount, customerID string, payments []domain.SplitRequest) (*draft, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}

	d := &draft{currency: currency}

	for _, line := range lines {
		productID, err := snowflake.ParseString(strings.TrimSpace(line.ProductID))
		if err != nil || productID == 0 {
			return nil, domain.ErrInvalidLineItem
		}
		unitPrice, err := money.Parse(line.UnitPrice, currency)
		if err != nil {
			return nil, err
		}
		discount := money.Zero(currency)
		if strings.TrimSpace(line.LineDiscount) != "" {
			discount, err = money.Parse(line.LineDiscount, currency)
			if err != nil {
				return nil, err
			}
		}
		d.lines = append(d.lines, domain.LineItem{
			ProductID:    productID,
			Description:  strings.TrimSpace(line.Description),
			UnitPrice:    unitPrice,
			Quantity:     line.Quantity,
			LineDiscount: discount,
			Returned:     line.Returned,
		})
	}

	d.orderDiscount = money.Zero(currency)
	if strings.TrimSpace(orderDiscount) != "" {
		var err error
		d.orderDiscount, err = money.Parse(orderDiscount, currency)
		if err != nil {
			return nil, err
		}
	}

	if trimmed := strings.TrimSpace(customerID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil || parsed == 0 {
			return nil, loyaltydomain.ErrInvalidCustomer
		}
		d.customerID = parsed
	}

	for _, split := range payments {
		amount, err := money.Parse(split.Amount, currency)
		if err != nil {
			return nil, err
		}
		d.splits = append(d.splits, paymentdomain.Split{Method: split.Method, Amount: amount})
	}

	table, err := s.rates.ResolveForReceipt(ctx, orgID)
	if err != nil {
		return nil, err
	}
	d.taxMode = table.Mode
	d.taxRate = table.RateFor(dominantMethod(d.splits))

	return d, nil
}

// dominantMethod picks the method carrying the largest tendered amount;
// an unpaid draft is treated as cash for rate selection.
func dominantMethod(splits []paymentdomain.Split) paymentdomain.Method {
	method := paymentdomain.MethodCash
	var best int64 = -1
	for _, split := range splits {
		if split.Amount.MinorUnits() > best {
			best = split.Amount.MinorUnits()
			method = split.Method
		}
	}
	return method
}

func (s *Service) buildReceipt(orgID, branchID, cashierID snowflake.ID, d *draft, totals pricing.Totals, loyaltyDiscount money.Money, pointsUsed int64, rec paymentdomain.Reconciliation, now time.Time) *domain.Receipt {
	receipt := &domain.Receipt{
		ID:                    s.genID.Generate(),
		OrgID:                 orgID,
		BranchID:              branchID,
		CashierID:             cashierID,
		Currency:              d.currency,
		Status:                domain.ReceiptStatusSubmitted,
		SubtotalAmount:        totals.Subtotal.MinorUnits(),
		OrderDiscountAmount:   d.orderDiscount.MinorUnits(),
		LoyaltyDiscountAmount: loyaltyDiscount.MinorUnits(),
		TaxRate:               totals.TaxRate,
		TaxAmount:             totals.TaxAmount.MinorUnits(),
		GrandTotalAmount:      totals.GrandTotal.MinorUnits(),
		AmountPaid:            rec.AmountPaid.MinorUnits(),
		BalanceDue:            rec.BalanceDue.MinorUnits(),
		PaymentStatus:         rec.Status,
		LoyaltyPointsUsed:     pointsUsed,
		SubmittedAt:           &now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if d.customerID != 0 {
		customerID := d.customerID
		receipt.CustomerID = &customerID
	}

	for _, item := range d.lines {
		amounts, _ := pricing.ComputeLine(item)
		receipt.Lines = append(receipt.Lines, domain.ReceiptLine{
			ID:                 s.genID.Generate(),
			ReceiptID:          receipt.ID,
			ProductID:          item.ProductID,
			Description:        item.Description,
			UnitPriceAmount:    item.UnitPrice.MinorUnits(),
			Quantity:           item.Quantity,
			LineDiscountAmount: item.LineDiscount.MinorUnits(),
			Returned:           item.Returned,
			GrossAmount:        amounts.GrossTotal.MinorUnits(),
			NetAmount:          amounts.NetTotal.MinorUnits(),
			CreatedAt:          now,
		})
	}
	for _, split := range d.splits {
		receipt.Payments = append(receipt.Payments, domain.ReceiptPayment{
			ID:        s.genID.Generate(),
			ReceiptID: receipt.ID,
			Method:    split.Method,
			Amount:    split.Amount.MinorUnits(),
			CreatedAt: now,
		})
	}
	return receipt
}

func normalizeMap(input map[string]any) datatypes.JSONMap {
	if len(input) == 0 {
		return datatypes.JSONMap{}
	}
	output := datatypes.JSONMap{}
	for k, v := range input {
		output[k] = v
	}
	return output
}

func (s *Service) countRejection(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
	case errors.Is(err, loyaltydomain.ErrInsufficientPoints):
		s.metrics.RedemptionsRejected.WithLabelValues("insufficient_points").Inc()
	case errors.Is(err, loyaltydomain.ErrAlreadyApplied):
		s.metrics.RedemptionsRejected.WithLabelValues("already_applied").Inc()
	case errors.Is(err, loyaltydomain.ErrInvalidRedemption):
		s.metrics.RedemptionsRejected.WithLabelValues("invalid_redemption").Inc()
	}
}

func response(receipt *domain.Receipt) *domain.Response {
	// Settlement status is always re-derived from the stored amounts.
	status := payment.StatusFor(
		money.New(receipt.GrandTotalAmount, receipt.Currency),
		money.New(receipt.AmountPaid, receipt.Currency),
	)

	resp := &domain.Response{
		ID:                    receipt.ID.String(),
		OrganizationID:        receipt.OrgID.String(),
		BranchID:              receipt.BranchID.String(),
		CashierID:             receipt.CashierID.String(),
		Currency:              receipt.Currency,
		Status:                receipt.Status,
		SubtotalAmount:        receipt.SubtotalAmount,
		OrderDiscountAmount:   receipt.OrderDiscountAmount,
		LoyaltyDiscountAmount: receipt.LoyaltyDiscountAmount,
		LoyaltyPointsUsed:     receipt.LoyaltyPointsUsed,
		LoyaltyPointsEarned:   receipt.LoyaltyPointsEarned,
		TaxRate:               receipt.TaxRate,
		TaxAmount:             receipt.TaxAmount,
		GrandTotalAmount:      receipt.GrandTotalAmount,
		AmountPaid:            receipt.AmountPaid,
		BalanceDue:            receipt.BalanceDue,
		PaymentStatus:         status,
		SubmittedAt:           receipt.SubmittedAt,
		CreatedAt:             receipt.CreatedAt,
	}
	if len(receipt.Metadata) > 0 {
		resp.Metadata = map[string]any(receipt.Metadata)
	}
	if receipt.CustomerID != nil {
		resp.CustomerID = receipt.CustomerID.String()
	}
	for _, line := range receipt.Lines {
		resp.Lines = append(resp.Lines, domain.LineResponse{
			ProductID:          line.ProductID.String(),
			Description:        line.Description,
			UnitPriceAmount:    line.UnitPriceAmount,
			Quantity:           line.Quantity,
			LineDiscountAmount: line.LineDiscountAmount,
			Returned:           line.Returned,
			GrossAmount:        line.GrossAmount,
			NetAmount:          line.NetAmount,
		})
	}
	for _, split := range receipt.Payments {
		resp.Payments = append(resp.Payments, domain.SplitResponse{
			Method: split.Method,
			Amount: split.Amount,
		})
	}
	return resp
}
