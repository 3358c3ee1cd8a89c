package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/bwmarrin/snowflake"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	"github.com/smallbiznis/bootcamp/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	ppdomain "github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
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
	Registry    *Registry
	CatalogRepo catalogdomain.Repository
	UserRepo    userdomain.Repository
	OrderRepo   orderdomain.Repository
	Users       userdomain.Service
	Apps        appdomain.Service
	Prices      ppdomain.Service
	OrderSvc    orderdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	registry    *Registry
	catalogRepo catalogdomain.Repository
	userRepo    userdomain.Repository
	orderRepo   orderdomain.Repository
	users       userdomain.Service
	apps        appdomain.Service
	prices      ppdomain.Service
	orderSvc    orderdomain.Service
	metrics     *metrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("intake.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		registry:    p.Registry,
		catalogRepo: p.CatalogRepo,
		userRepo:    p.UserRepo,
		orderRepo:   p.OrderRepo,
		users:       p.Users,
		apps:        p.Apps,
		prices:      p.Prices,
		orderSvc:    p.OrderSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) Ingest(ctx context.Context, source catalogdomain.Source, authorization string, body []byte) (*domain.WebhookRecord, error) {
	adapter := s.registry.Get(source)
	if adapter == nil {
		return nil, domain.ErrUnknownSource
	}
	if !authorized(adapter.WebhookToken, authorization) {
		s.metrics.RecordIntakeWebhook(ctx, string(source), "unauthorized")
		s.log.Warn("intake webhook auth failed", zap.String("source", string(source)))
		return nil, domain.ErrAuthFailure
	}
	ctx = obscontext.WithActor(ctx, "intake", string(source))

	now := s.clock.Now()
	rec := &domain.WebhookRecord{
		ID:        s.genID.Generate(),
		Source:    source,
		Body:      body,
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertRecord(ctx, s.db, rec); err != nil {
		return nil, err
	}

	parsed, err := adapter.Parser.Parse(ctx, body)
	if err != nil {
		s.fail(ctx, rec, err)
		return rec, nil
	}
	if err := s.apply(ctx, rec, parsed); err != nil {
		s.fail(ctx, rec, err)
		if recordable(err) {
			return rec, nil
		}
		return rec, err
	}

	s.metrics.RecordIntakeWebhook(ctx, string(source), string(domain.StatusSucceeded))
	s.log.Info("intake webhook processed",
		zap.String("record_id", rec.ID.String()),
		zap.String("source", string(source)),
		zap.String("upstream_user_id", parsed.UserID),
	)
	return rec, nil
}

// apply writes the parse result and provisions user, profile, application and
// personal price in one transaction.
func (s *Service) apply(ctx context.Context, rec *domain.WebhookRecord, parsed *domain.Parsed) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec.Status = domain.StatusSucceeded
		rec.UserEmail = optional(parsed.UserEmail)
		rec.UserID = optional(parsed.UserID)
		rec.SubmissionID = optional(parsed.SubmissionID)
		rec.AwardID = parsed.AwardID
		rec.AwardName = optional(parsed.AwardName)
		rec.AwardCost = parsed.AwardCost
		rec.AmountToPay = parsed.AmountToPay
		rec.UpdatedAt = s.clock.Now()
		if err := s.repo.SaveParsed(ctx, tx, rec); err != nil {
			return err
		}

		user, _, err := s.users.EnsureUser(ctx, tx, parsed.UserEmail)
		if err != nil {
			return err
		}
		if _, err := s.users.EnsureProfile(ctx, tx, user.ID, rec.Source, parsed.UserID); err != nil {
			return err
		}
		if parsed.AwardID == nil {
			return nil
		}

		run, err := s.catalogRepo.FindRunByKey(ctx, tx, *parsed.AwardID)
		if err != nil {
			return err
		}
		if run == nil {
			s.log.Warn("intake webhook names unknown run", zap.Int64("run_key", *parsed.AwardID))
			return nil
		}
		if run.Source != catalogdomain.SourceNone && run.Source != rec.Source {
			s.log.Warn("intake webhook source does not own run",
				zap.Int64("run_key", run.RunKey),
				zap.String("run_source", string(run.Source)),
			)
			return nil
		}

		if _, err := s.apps.Ensure(ctx, tx, user.ID, run.ID); err != nil {
			return err
		}
		changed := false
		switch {
		case parsed.AmountToPay != nil:
			_, changed, err = s.prices.Set(ctx, tx, user.ID, run.ID, *parsed.AmountToPay)
		case parsed.AmountToPayCleared:
			changed, err = s.prices.Delete(ctx, tx, user.ID, run.ID)
		}
		if err != nil {
			return err
		}
		if !changed {
			_, err = s.apps.Recompute(ctx, tx, user.ID, run.ID, appdomain.EventPriceChanged)
		}
		return err
	})
}

func (s *Service) fail(ctx context.Context, rec *domain.WebhookRecord, cause error) {
	s.metrics.RecordIntakeWebhook(ctx, string(rec.Source), string(domain.StatusFailed))
	s.log.Warn("intake webhook failed",
		zap.String("record_id", rec.ID.String()),
		zap.String("source", string(rec.Source)),
		zap.Error(cause),
	)
	rec.Status = domain.StatusFailed
	if err := s.repo.MarkFailed(ctx, s.db, rec.ID, cause.Error(), s.clock.Now()); err != nil {
		s.log.Error("mark intake webhook failed", zap.String("record_id", rec.ID.String()), zap.Error(err))
	}
}

// recordable errors fail the row without asking the sender to redeliver.
func recordable(err error) bool {
	return errors.Is(err, domain.ErrParse) ||
		errors.Is(err, userdomain.ErrInvalidEmail) ||
		errors.Is(err, userdomain.ErrInvalidIdent) ||
		errors.Is(err, ppdomain.ErrInvalidPrice)
}

func authorized(token, header string) bool {
	if token == "" {
		return false
	}
	expected := "Basic " + token
	return subtle.ConstantTimeCompare([]byte(expected), []byte(header)) == 1
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
