package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tally/internal/cache"
	"github.com/smallbiznis/tally/internal/config"
	paymentdomain "github.com/smallbiznis/tally/internal/payment/domain"
	"github.com/smallbiznis/tally/internal/sessionctx"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ResolverParams struct {
	fx.In

	Repository taxdomain.Repository
	Cache      cache.ResolverCache
	Policy     *config.PolicyHolder
}

type resolver struct {
	repo   taxdomain.Repository
	cache  cache.ResolverCache
	policy *config.PolicyHolder
}

func NewResolver(p ResolverParams) taxdomain.RateResolver {
	return &resolver{repo: p.Repository, cache: p.Cache, policy: p.Policy}
}

// ResolveForReceipt returns the org's enabled tax policies as a rate table.
// Orgs with no persisted policies fall back to the deployment defaults so
// a fresh install taxes receipts without any setup step.
func (r *resolver) ResolveForReceipt(ctx context.Context, orgID snowflake.ID) (taxdomain.RateTable, error) {
	if table, ok := r.cache.GetRateTable(orgID); ok {
		return table, nil
	}

	policies, err := r.repo.ListEnabled(ctx, orgID)
	if err != nil {
		return taxdomain.RateTable{}, err
	}

	var table taxdomain.RateTable
	if len(policies) == 0 {
		table = r.defaultTable()
	} else {
		table = taxdomain.RateTable{
			Mode:  policies[0].TaxMode,
			Rates: make(map[paymentdomain.Method]float64, len(policies)),
		}
		for _, p := range policies {
			table.Rates[p.Method] = p.Rate
		}
	}

	r.cache.SetRateTable(orgID, table)
	return table, nil
}

func (r *resolver) defaultTable() taxdomain.RateTable {
	defaults := r.policy.Current().Tax
	table := taxdomain.RateTable{
		Mode:  taxdomain.TaxMode(defaults.Mode),
		Rates: make(map[paymentdomain.Method]float64, len(defaults.Rates)),
	}
	for name, rate := range defaults.Rates {
		table.Rates[paymentdomain.Method(name)] = rate
	}
	return table
}

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  taxdomain.Repository
	Cache cache.ResolverCache
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  taxdomain.Repository
	cache cache.ResolverCache
}

func New(p Params) *Service {
	return &Service{
		log:   p.Log.Named("tax.service"),
		genID: p.GenID,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) Create(ctx context.Context, req taxdomain.CreateRequest) (*taxdomain.Response, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, taxdomain.ErrInvalidOrganization
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}
	now := time.Now().UTC()
	policy := taxdomain.TaxPolicy{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Method:    req.Method,
		TaxMode:   req.TaxMode,
		Rate:      req.Rate,
		IsEnabled: enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &policy); err != nil {
		return nil, err
	}
	s.cache.InvalidateRateTable(orgID)

	s.log.Info("tax policy created",
		zap.String("policy_id", policy.ID.String()),
		zap.String("method", string(policy.Method)),
		zap.Float64("rate", policy.Rate),
	)
	return response(&policy), nil
}

func (s *Service) List(ctx context.Context, req taxdomain.ListRequest) ([]taxdomain.Response, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, taxdomain.ErrInvalidOrganization
	}

	policies, err := s.repo.List(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	out := make([]taxdomain.Response, 0, len(policies))
	for i := range policies {
		out = append(out, *response(&policies[i]))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, req taxdomain.UpdateRequest) (*taxdomain.Response, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, taxdomain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return nil, taxdomain.ErrInvalidID
	}

	policy, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, taxdomain.ErrNotFound
	}

	if req.TaxMode != nil {
		policy.TaxMode = *req.TaxMode
	}
	if req.Rate != nil {
		policy.Rate = *req.Rate
	}
	policy.UpdatedAt = time.Now().UTC()
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, policy); err != nil {
		return nil, err
	}
	s.cache.InvalidateRateTable(orgID)
	return response(policy), nil
}

func (s *Service) Disable(ctx context.Context, rawID string) (*taxdomain.Response, error) {
	orgID, ok := sessionctx.OrgIDFromContext(ctx)
	if !ok {
		return nil, taxdomain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, taxdomain.ErrInvalidID
	}

	policy, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, taxdomain.ErrNotFound
	}

	policy.IsEnabled = false
	policy.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, policy); err != nil {
		return nil, err
	}
	s.cache.InvalidateRateTable(orgID)

	s.log.Info("tax policy disabled", zap.String("policy_id", policy.ID.String()))
	return response(policy), nil
}

func response(p *taxdomain.TaxPolicy) *taxdomain.Response {
	return &taxdomain.Response{
		ID:             p.ID.String(),
		OrganizationID: p.OrgID.String(),
		Method:         p.Method,
		TaxMode:        p.TaxMode,
		Rate:           p.Rate,
		IsEnabled:      p.IsEnabled,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
