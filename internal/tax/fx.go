package tax

import (
	"github.com/smallbiznis/tally/internal/tax/domain"
	"github.com/smallbiznis/tally/internal/tax/repository"
	"github.com/smallbiznis/tally/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewResolver),
	fx.Provide(
		service.New,
		func(s *service.Service) domain.Service { return s },
	),
)
