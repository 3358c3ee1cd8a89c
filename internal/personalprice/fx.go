package personalprice

import (
	"github.com/smallbiznis/bootcamp/internal/personalprice/repository"
	"github.com/smallbiznis/bootcamp/internal/personalprice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("personalprice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
