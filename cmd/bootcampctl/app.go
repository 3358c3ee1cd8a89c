package main

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/bootcamp/internal/bootstrap"
	obslogger "github.com/smallbiznis/bootcamp/internal/observability/logger"
	"github.com/smallbiznis/bootcamp/internal/operator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const startTimeout = 30 * time.Second

var verbose bool

// withOperator builds the service graph, runs fn and shuts the graph down.
func withOperator(ctx context.Context, fn func(context.Context, *operator.Operator) error) error {
	var op *operator.Operator
	return runApp(ctx, func(ctx context.Context) error { return fn(ctx, op) },
		bootstrap.Domain,
		operator.Module,
		fx.Populate(&op),
	)
}

func runApp(ctx context.Context, fn func(context.Context) error, opts ...fx.Option) error {
	app := fx.New(
		bootstrap.Infrastructure,
		fx.Options(opts...),
		// keep stdout for command output
		fx.Decorate(func() *zap.Logger { return obslogger.NewCLI(verbose) }),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), startTimeout)
	defer stopCancel()
	return errors.Join(runErr, app.Stop(stopCtx))
}
