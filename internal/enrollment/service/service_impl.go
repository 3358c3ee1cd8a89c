package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/enrollment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("enrollment.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Ensure(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID) (*domain.Enrollment, error) {
	conn = s.conn(conn)
	existing, err := s.repo.Find(ctx, conn, userID, runID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if existing != nil {
		if existing.Active && existing.ChangeStatus == nil {
			return existing, nil
		}
		if err := s.repo.SetStatus(ctx, conn, existing.ID, true, nil, now); err != nil {
			return nil, err
		}
		existing.Active = true
		existing.ChangeStatus = nil
		existing.UpdatedAt = now
		s.log.Info("enrollment reactivated", zap.String("enrollment_id", existing.ID.String()))
		return existing, nil
	}

	e := &domain.Enrollment{
		ID:            s.genID.Generate(),
		UserID:        userID,
		BootcampRunID: runID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	inserted, err := s.repo.Insert(ctx, conn, e)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return s.repo.Find(ctx, conn, userID, runID)
	}
	s.log.Info("enrollment created",
		zap.String("enrollment_id", e.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("bootcamp_run_id", runID.String()),
	)
	return e, nil
}

func (s *Service) MarkRefunded(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Enrollment, error) {
	conn = s.conn(conn)
	e, err := s.repo.FindByID(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrEnrollmentNotFound
	}
	status := domain.ChangeStatusRefunded
	now := s.clock.Now()
	if err := s.repo.SetStatus(ctx, conn, e.ID, false, &status, now); err != nil {
		return nil, err
	}
	e.Active = false
	e.ChangeStatus = &status
	e.UpdatedAt = now
	return e, nil
}

func (s *Service) Find(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID) (*domain.Enrollment, error) {
	return s.repo.Find(ctx, s.conn(conn), userID, runID)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Enrollment, error) {
	e, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrEnrollmentNotFound
	}
	return e, nil
}

func (s *Service) conn(conn *gorm.DB) *gorm.DB {
	if conn != nil {
		return conn
	}
	return s.db
}
