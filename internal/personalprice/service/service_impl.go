package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	auditdomain "github.com/smallbiznis/bootcamp/internal/audit/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	AuditSvc   auditdomain.Service
	Recomputer appdomain.Recomputer
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	auditSvc   auditdomain.Service
	recomputer appdomain.Recomputer
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("personalprice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		auditSvc:   p.AuditSvc,
		recomputer: p.Recomputer,
	}
}

func (s *Service) Set(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID, price money.Amount) (*domain.PersonalPrice, bool, error) {
	if userID == 0 || runID == 0 {
		return nil, false, domain.ErrInvalidTarget
	}
	if price.IsNegative() {
		return nil, false, domain.ErrInvalidPrice
	}

	var (
		result  *domain.PersonalPrice
		changed bool
	)
	err := s.conn(conn).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.FindForUpdate(ctx, tx, userID, runID)
		if err != nil {
			return err
		}
		if before != nil && before.Price.Equal(price) {
			result = before
			return nil
		}

		now := s.clock.Now()
		after := domain.PersonalPrice{
			ID:            s.genID.Generate(),
			UserID:        userID,
			BootcampRunID: runID,
			Price:         price,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if before != nil {
			after.ID = before.ID
			after.CreatedAt = before.CreatedAt
		}
		if err := s.repo.Upsert(ctx, tx, &after); err != nil {
			return err
		}
		if err := s.auditSvc.RecordPersonalPrice(ctx, tx, userID, runID, domain.AuditActionSet, before, after); err != nil {
			return err
		}
		if _, err := s.recomputer.Recompute(ctx, tx, userID, runID, appdomain.EventPriceChanged); err != nil {
			return err
		}
		result = &after
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.log.Info("personal price set",
			zap.String("user_id", userID.String()),
			zap.String("bootcamp_run_id", runID.String()),
			zap.String("price", price.String()),
		)
	}
	return result, changed, nil
}

func (s *Service) Delete(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID) (bool, error) {
	if userID == 0 || runID == 0 {
		return false, domain.ErrInvalidTarget
	}

	deleted := false
	err := s.conn(conn).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.FindForUpdate(ctx, tx, userID, runID)
		if err != nil {
			return err
		}
		if before == nil {
			return nil
		}
		n, err := s.repo.Delete(ctx, tx, userID, runID)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := s.auditSvc.RecordPersonalPrice(ctx, tx, userID, runID, domain.AuditActionDelete, before, nil); err != nil {
			return err
		}
		if _, err := s.recomputer.Recompute(ctx, tx, userID, runID, appdomain.EventPriceChanged); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("personal price removed",
			zap.String("user_id", userID.String()),
			zap.String("bootcamp_run_id", runID.String()),
		)
	}
	return deleted, nil
}

func (s *Service) Get(ctx context.Context, userID, runID snowflake.ID) (*domain.PersonalPrice, error) {
	return s.repo.Find(ctx, s.db, userID, runID)
}

func (s *Service) conn(conn *gorm.DB) *gorm.DB {
	if conn != nil {
		return conn
	}
	return s.db
}
