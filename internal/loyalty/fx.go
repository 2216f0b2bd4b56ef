package loyalty

import (
	"github.com/smallbiznis/tally/internal/loyalty/domain"
	"github.com/smallbiznis/tally/internal/loyalty/lock"
	"github.com/smallbiznis/tally/internal/loyalty/repository"
	"github.com/smallbiznis/tally/internal/loyalty/service"
	"go.uber.org/fx"
)

var Module = fx.Module("loyalty.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(lock.NewRedisClient),
	fx.Provide(lock.NewRedemptionLock),
	fx.Provide(
		service.New,
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) domain.Ledger { return s },
	),
)
