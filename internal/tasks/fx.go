package tasks

import (
	"context"

	"github.com/smallbiznis/bootcamp/internal/tasks/repository"
	"github.com/smallbiznis/bootcamp/internal/tasks/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tasks",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewQueue),
	fx.Provide(service.NewWorker),
)

// RunWorker starts the pool with the application and stops it on shutdown.
func RunWorker(lc fx.Lifecycle, w *service.Worker) {
	var cancel context.CancelFunc
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				w.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
