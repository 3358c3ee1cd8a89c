package main

import (
	"github.com/smallbiznis/bootcamp/internal/bootstrap"
	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/migration"
	"github.com/smallbiznis/bootcamp/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		bootstrap.Infrastructure,
		fx.Invoke(func(cfg config.Config) error { return cfg.Validate() }),
		migration.Module,

		bootstrap.Domain,

		server.Module,
	)
	app.Run()
}
