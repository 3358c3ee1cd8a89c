package reminder

import (
	"github.com/smallbiznis/bootcamp/internal/reminder/repository"
	"github.com/smallbiznis/bootcamp/internal/reminder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reminder.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
