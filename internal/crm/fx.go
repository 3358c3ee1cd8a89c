package crm

import (
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	tasksservice "github.com/smallbiznis/bootcamp/internal/tasks/service"
	"go.uber.org/fx"
)

var Module = fx.Module("crm",
	fx.Provide(NewSyncer),
)

func RegisterTasks(w *tasksservice.Worker, s *Syncer) {
	w.Register(tasksdomain.KindCRMDealSync, s.SyncDeal)
}
