package crm

import (
	"context"
	"encoding/json"
	"errors"

	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/config"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	OrderRepo   orderdomain.Repository
	OrderSvc    orderdomain.Service
	AppRepo     appdomain.Repository
	CatalogRepo catalogdomain.Repository
	Client      *Client `optional:"true"`
}

type Syncer struct {
	db          *gorm.DB
	log         *zap.Logger
	client      *Client
	orderRepo   orderdomain.Repository
	orderSvc    orderdomain.Service
	appRepo     appdomain.Repository
	catalogRepo catalogdomain.Repository
}

func NewSyncer(p Params) *Syncer {
	client := p.Client
	if client == nil && p.Config.CRM.Enabled() {
		client = NewClient(p.Config.CRM.URL, p.Config.CRM.APIKey, nil)
	}
	return &Syncer{
		db:          p.DB,
		log:         p.Log.Named("crm.sync"),
		client:      client,
		orderRepo:   p.OrderRepo,
		orderSvc:    p.OrderSvc,
		appRepo:     p.AppRepo,
		catalogRepo: p.CatalogRepo,
	}
}

// SyncDeal is the crm_deal_sync task handler.
func (s *Syncer) SyncDeal(ctx context.Context, task tasksdomain.Task) error {
	if s.client == nil {
		s.log.Debug("crm not configured, skipping deal sync")
		return nil
	}
	var payload tasksdomain.OrderPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.OrderID == 0 {
		return tasksdomain.Permanent(tasksdomain.ErrInvalidPayload)
	}
	order, err := s.orderRepo.FindByID(ctx, s.db, payload.OrderID)
	if err != nil {
		return err
	}
	if order == nil || order.ApplicationID == nil {
		return tasksdomain.Permanent(orderdomain.ErrOrderNotFound)
	}
	app, err := s.appRepo.FindByID(ctx, s.db, *order.ApplicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return tasksdomain.Permanent(appdomain.ErrApplicationNotFound)
	}
	run, err := s.catalogRepo.FindRunByID(ctx, s.db, app.BootcampRunID)
	if err != nil {
		return err
	}
	if run == nil {
		return tasksdomain.Permanent(orderdomain.ErrRunNotFound)
	}
	paid, err := s.orderSvc.NetPaidForRun(ctx, s.db, app.UserID, run.ID)
	if err != nil {
		return err
	}

	deal := Deal{AmountPaid: paid, Stage: string(app.State), RunKey: run.RunKey}
	if err := s.client.PutDeal(ctx, app.ID.String(), deal); err != nil {
		s.log.Error("crm deal sync failed", zap.String("application_id", app.ID.String()), zap.Error(err))
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return tasksdomain.Permanent(err)
		}
		return err
	}
	s.log.Info("crm deal synced",
		zap.String("application_id", app.ID.String()),
		zap.String("amount_paid", paid.String()),
		zap.String("stage", deal.Stage),
	)
	return nil
}
