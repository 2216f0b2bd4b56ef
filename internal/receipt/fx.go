package receipt

import (
	"github.com/smallbiznis/tally/internal/receipt/repository"
	"github.com/smallbiznis/tally/internal/receipt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
