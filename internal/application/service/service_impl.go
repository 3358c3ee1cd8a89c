package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	ppdomain "github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	CatalogRepo catalogdomain.Repository
	PriceRepo   ppdomain.Repository
	OrderRepo   orderdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
	priceRepo   ppdomain.Repository
	orderRepo   orderdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("application.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		priceRepo:   p.PriceRepo,
		orderRepo:   p.OrderRepo,
	}
}

// Recompute re-reads the effective price and the net paid total inside one
// transaction, with the application row locked, and writes price and state.
// A missing application is left alone.
func (s *Service) Recompute(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID, event domain.Event) (*domain.Transition, error) {
	var result *domain.Transition
	err := s.conn(conn).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		app, err := s.repo.FindForUpdate(ctx, tx, userID, runID)
		metrics.Scheduler().ObserveDBLockWait(metrics.LockResourceApplication, time.Since(lockStart))
		if err != nil {
			return err
		}
		if app == nil {
			return nil
		}

		run, err := s.catalogRepo.FindRunByID(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return domain.ErrRunNotFound
		}
		pp, err := s.priceRepo.Find(ctx, tx, userID, runID)
		if err != nil {
			return err
		}
		prices, err := s.orderRepo.LinePrices(ctx, tx, userID, runID, orderdomain.NetStatuses)
		if err != nil {
			return err
		}

		price := ppdomain.Effective(pp, run.Price)
		paid := money.Sum(prices...)
		from := app.State
		to := domain.NextState(from, event, price, paid)

		result = &domain.Transition{
			Application: app,
			From:        from,
			To:          to,
			Price:       price,
			Paid:        paid,
		}
		if app.Price != nil && app.Price.Equal(price) && from == to {
			return nil
		}

		app.State = to
		app.Price = &price
		app.UpdatedAt = s.clock.Now()
		return s.repo.UpdateStateAndPrice(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	if result != nil && result.Changed() {
		s.log.Info("application state changed",
			zap.String("application_id", result.Application.ID.String()),
			zap.String("event", string(event)),
			zap.String("from", string(result.From)),
			zap.String("to", string(result.To)),
			zap.String("price", result.Price.String()),
			zap.String("paid", result.Paid.String()),
		)
	}
	return result, nil
}

func (s *Service) Ensure(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID) (*domain.Application, error) {
	conn = s.conn(conn)
	existing, err := s.repo.Find(ctx, conn, userID, runID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	now := s.clock.Now()
	app := &domain.Application{
		ID:            s.genID.Generate(),
		UserID:        userID,
		BootcampRunID: runID,
		State:         domain.StateAwaitingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	inserted, err := s.repo.Insert(ctx, conn, app)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return s.repo.Find(ctx, conn, userID, runID)
	}
	return app, nil
}

func (s *Service) Get(ctx context.Context, userID, runID snowflake.ID) (*domain.Application, error) {
	app, err := s.repo.Find(ctx, s.db, userID, runID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, domain.ErrApplicationNotFound
	}
	return app, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Application, error) {
	app, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, domain.ErrApplicationNotFound
	}
	return app, nil
}

func (s *Service) conn(conn *gorm.DB) *gorm.DB {
	if conn != nil {
		return conn
	}
	return s.db
}
