package intake

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	"github.com/smallbiznis/bootcamp/internal/intake/oauth"
	"github.com/smallbiznis/bootcamp/internal/intake/repository"
	"github.com/smallbiznis/bootcamp/internal/intake/service"
	"github.com/smallbiznis/bootcamp/internal/intake/sourcea"
	"github.com/smallbiznis/bootcamp/internal/intake/sourceb"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	tasksservice "github.com/smallbiznis/bootcamp/internal/tasks/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("intake.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewRegistry),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
	fx.Provide(func(s *service.Service) domain.Syncer { return s }),
)

type RegistryParams struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
}

// NewRegistry wires both intake systems. Webhooks are always accepted; the
// API-backed capabilities need a base URL.
func NewRegistry(p RegistryParams) *service.Registry {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	client := func(source catalogdomain.Source, cfg config.IntakeConfig) *oauth.Client {
		return oauth.New(oauth.Params{
			Source:     source,
			Config:     cfg,
			DB:         p.DB,
			Repo:       p.Repo,
			GenID:      p.GenID,
			Clock:      p.Clock,
			HTTPClient: httpClient,
			Log:        p.Log,
		})
	}

	a := &domain.Adapter{
		Source:       catalogdomain.SourceIntakeA,
		WebhookToken: p.Config.IntakeA.WebhookAuthToken,
		Parser:       sourcea.Parser{},
	}
	if p.Config.IntakeA.Enabled() {
		a.Reporter = sourcea.Reporter{API: client(catalogdomain.SourceIntakeA, p.Config.IntakeA)}
	}

	b := &domain.Adapter{
		Source:       catalogdomain.SourceIntakeB,
		WebhookToken: p.Config.IntakeB.WebhookAuthToken,
		Parser:       sourceb.Parser{},
	}
	if p.Config.IntakeB.Enabled() {
		api := client(catalogdomain.SourceIntakeB, p.Config.IntakeB)
		b.Parser = sourceb.Parser{API: api}
		b.Reporter = sourceb.Reporter{API: api, AmountFieldID: p.Config.IntakeB.AmountFieldID}
	}
	return service.NewRegistry(a, b)
}

// RegisterTasks binds the payment sync to the worker.
func RegisterTasks(w *tasksservice.Worker, s domain.Syncer) {
	w.Register(tasksdomain.KindIntakePaymentSync, s.SyncPayment)
}
