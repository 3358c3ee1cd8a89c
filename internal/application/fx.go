package application

import (
	"github.com/smallbiznis/bootcamp/internal/application/domain"
	"github.com/smallbiznis/bootcamp/internal/application/repository"
	"github.com/smallbiznis/bootcamp/internal/application/service"
	"go.uber.org/fx"
)

var Module = fx.Module("application.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) domain.Recomputer { return svc }),
)
