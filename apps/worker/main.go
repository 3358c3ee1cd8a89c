package main

import (
	"github.com/smallbiznis/bootcamp/internal/bootstrap"
	"github.com/smallbiznis/bootcamp/internal/crm"
	"github.com/smallbiznis/bootcamp/internal/intake"
	"github.com/smallbiznis/bootcamp/internal/notification"
	"github.com/smallbiznis/bootcamp/internal/scheduler"
	"github.com/smallbiznis/bootcamp/internal/tasks"
	"go.uber.org/fx"
)

// The worker drains the deferred task outbox and runs the scheduler.
func main() {
	app := fx.New(
		bootstrap.Infrastructure,
		bootstrap.Domain,

		// handlers must be registered before the pool starts
		fx.Invoke(intake.RegisterTasks),
		fx.Invoke(crm.RegisterTasks),
		fx.Invoke(notification.RegisterTasks),
		fx.Invoke(tasks.RunWorker),

		scheduler.Module,
	)
	app.Run()
}
