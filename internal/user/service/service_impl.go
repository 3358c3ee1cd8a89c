package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/user/domain"
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
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) EnsureUser(ctx context.Context, conn *gorm.DB, email string) (*domain.User, bool, error) {
	conn = s.conn(conn)
	normalized := domain.NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return nil, false, domain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, conn, normalized)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:        s.genID.Generate(),
		Email:     normalized,
		Username:  normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inserted, err := s.repo.InsertUser(ctx, conn, user)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Lost a concurrent insert; the winner's row is the user.
		existing, err := s.repo.FindByEmail(ctx, conn, normalized)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, domain.ErrUserNotFound
		}
		return existing, false, nil
	}
	s.log.Info("user provisioned", zap.String("user_id", user.ID.String()))
	return user, true, nil
}

func (s *Service) EnsureProfile(ctx context.Context, conn *gorm.DB, userID snowflake.ID, source catalogdomain.Source, upstreamID string) (*domain.Profile, error) {
	conn = s.conn(conn)
	upstreamID = strings.TrimSpace(upstreamID)

	profile, err := s.repo.FindProfile(ctx, conn, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if profile == nil {
		profile = &domain.Profile{
			ID:        s.genID.Generate(),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		setUpstream(profile, source, upstreamID)
		inserted, err := s.repo.InsertProfile(ctx, conn, profile)
		if err != nil {
			return nil, err
		}
		if inserted {
			return profile, nil
		}
		profile, err = s.repo.FindProfile(ctx, conn, userID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, domain.ErrProfileNotFound
		}
	}

	if upstreamID == "" || source == catalogdomain.SourceNone || profile.UpstreamID(source) == upstreamID {
		return profile, nil
	}
	if err := s.repo.SetUpstreamID(ctx, conn, profile.ID, source, upstreamID, now); err != nil {
		return nil, err
	}
	setUpstream(profile, source, upstreamID)
	profile.UpdatedAt = now
	return profile, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) GetProfile(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	profile, err := s.repo.FindProfile(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	return profile, nil
}

func (s *Service) Resolve(ctx context.Context, ident string) (*domain.User, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, domain.ErrInvalidIdent
	}
	if id, err := strconv.ParseInt(ident, 10, 64); err == nil && id > 0 {
		user, err := s.repo.FindByID(ctx, s.db, snowflake.ID(id))
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	if strings.Contains(ident, "@") {
		return s.FindByEmail(ctx, ident)
	}
	user, err := s.repo.FindByUsername(ctx, s.db, ident)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) conn(conn *gorm.DB) *gorm.DB {
	if conn != nil {
		return conn
	}
	return s.db
}

func setUpstream(profile *domain.Profile, source catalogdomain.Source, upstreamID string) {
	if upstreamID == "" {
		return
	}
	v := upstreamID
	switch source {
	case catalogdomain.SourceIntakeA:
		profile.IntakeAUserID = &v
	case catalogdomain.SourceIntakeB:
		profile.IntakeBUserID = &v
	}
}
