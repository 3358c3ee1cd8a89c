package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/pkg/db"
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
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateBootcamp(ctx context.Context, req domain.CreateBootcampRequest) (*domain.Bootcamp, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	now := s.clock.Now()
	b := &domain.Bootcamp{
		ID:        s.genID.Generate(),
		Title:     title,
		Slug:      slug.Make(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertBootcamp(ctx, s.db, b); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) CreateRun(ctx context.Context, req domain.CreateRunRequest) (*domain.BootcampRun, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	if req.RunKey <= 0 {
		return nil, domain.ErrInvalidRunKey
	}
	if req.Price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}
	if !req.Source.Valid() {
		return nil, domain.ErrInvalidSource
	}
	bootcamp, err := s.repo.FindBootcampByID(ctx, s.db, req.BootcampID)
	if err != nil {
		return nil, err
	}
	if bootcamp == nil {
		return nil, domain.ErrBootcampNotFound
	}

	now := s.clock.Now()
	run := &domain.BootcampRun{
		ID:                 s.genID.Generate(),
		BootcampID:         bootcamp.ID,
		RunKey:             req.RunKey,
		Title:              title,
		Price:              req.Price,
		Source:             req.Source,
		AllowsSkippedSteps: req.AllowsSkippedSteps,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertRun(ctx, s.db, run); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrRunKeyTaken
		}
		return nil, err
	}
	s.log.Info("bootcamp run created",
		zap.Int64("run_key", run.RunKey),
		zap.String("price", run.Price.String()),
		zap.String("source", string(run.Source)),
	)
	return run, nil
}

func (s *Service) AddInstallment(ctx context.Context, req domain.AddInstallmentRequest) (*domain.Installment, error) {
	if req.Deadline.IsZero() {
		return nil, domain.ErrInvalidDeadline
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	run, err := s.GetRun(ctx, req.BootcampRunID)
	if err != nil {
		return nil, err
	}

	inst := &domain.Installment{
		ID:            s.genID.Generate(),
		BootcampRunID: run.ID,
		Deadline:      req.Deadline.UTC(),
		Amount:        req.Amount,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertInstallment(ctx, s.db, inst); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateInstallment
		}
		return nil, err
	}
	return inst, nil
}

func (s *Service) GetBootcamp(ctx context.Context, id snowflake.ID) (*domain.Bootcamp, error) {
	b, err := s.repo.FindBootcampByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrBootcampNotFound
	}
	return b, nil
}

func (s *Service) GetRun(ctx context.Context, id snowflake.ID) (*domain.BootcampRun, error) {
	run, err := s.repo.FindRunByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (s *Service) GetRunByKey(ctx context.Context, runKey int64) (*domain.BootcampRun, error) {
	if runKey <= 0 {
		return nil, domain.ErrInvalidRunKey
	}
	run, err := s.repo.FindRunByKey(ctx, s.db, runKey)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (s *Service) ListActiveRuns(ctx context.Context) ([]domain.BootcampRun, error) {
	return s.repo.ListActiveRuns(ctx, s.db, s.clock.Now())
}

func (s *Service) ListInstallments(ctx context.Context, runID snowflake.ID) ([]domain.Installment, error) {
	items, err := s.repo.ListInstallments(ctx, s.db, runID)
	if err != nil {
		return nil, err
	}
	domain.SortInstallments(items)
	return items, nil
}

