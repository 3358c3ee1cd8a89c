package enrollment

import (
	"github.com/smallbiznis/bootcamp/internal/enrollment/repository"
	"github.com/smallbiznis/bootcamp/internal/enrollment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("enrollment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
