package notification

import (
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	tasksservice "github.com/smallbiznis/bootcamp/internal/tasks/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(NewNotifier),
)

func RegisterTasks(w *tasksservice.Worker, n *Notifier) {
	w.Register(tasksdomain.KindReceiptEmail, n.SendReceipt)
	w.Register(tasksdomain.KindOpsAlertEmail, n.SendOpsAlert)
}
