package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/bootcamp/internal/audit/domain"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) RecordOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, action string, before, after any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if orderID == 0 {
		return auditdomain.ErrInvalidTarget
	}

	dataBefore, dataAfter, err := snapshots(before, after)
	if err != nil {
		return err
	}
	actorType, actorID := resolveActor(ctx)

	entry := auditdomain.OrderAudit{
		ID:         s.genID.Generate(),
		OrderID:    orderID,
		Action:     action,
		ActorType:  actorType,
		ActorID:    actorID,
		DataBefore: dataBefore,
		DataAfter:  dataAfter,
		RequestID:  requestID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.InsertOrderAudit(ctx, s.conn(db), &entry); err != nil {
		s.log.Warn("failed to write order audit",
			zap.String("action", action),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) RecordPersonalPrice(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID, action string, before, after any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if userID == 0 || runID == 0 {
		return auditdomain.ErrInvalidTarget
	}

	dataBefore, dataAfter, err := snapshots(before, after)
	if err != nil {
		return err
	}
	actorType, actorID := resolveActor(ctx)

	entry := auditdomain.PersonalPriceAudit{
		ID:            s.genID.Generate(),
		UserID:        userID,
		BootcampRunID: runID,
		Action:        action,
		ActorType:     actorType,
		ActorID:       actorID,
		DataBefore:    dataBefore,
		DataAfter:     dataAfter,
		RequestID:     requestID(ctx),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.InsertPersonalPriceAudit(ctx, s.conn(db), &entry); err != nil {
		s.log.Warn("failed to write personal price audit",
			zap.String("action", action),
			zap.String("user_id", userID.String()),
			zap.String("bootcamp_run_id", runID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) ListOrderAudits(ctx context.Context, orderID snowflake.ID) ([]auditdomain.OrderAudit, error) {
	return s.repo.ListOrderAudits(ctx, s.db, orderID)
}

func (s *Service) ListPersonalPriceAudits(ctx context.Context, userID, runID snowflake.ID) ([]auditdomain.PersonalPriceAudit, error) {
	return s.repo.ListPersonalPriceAudits(ctx, s.db, userID, runID)
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
}

// snapshots encodes before/after states. A nil state is stored as JSON null.
func snapshots(before, after any) (datatypes.JSON, datatypes.JSON, error) {
	b, err := json.Marshal(before)
	if err != nil {
		return nil, nil, err
	}
	a, err := json.Marshal(after)
	if err != nil {
		return nil, nil, err
	}
	return datatypes.JSON(b), datatypes.JSON(a), nil
}

func resolveActor(ctx context.Context) (string, *string) {
	actorType, actorID := obscontext.ActorFromContext(ctx)
	actorType = strings.TrimSpace(actorType)
	if actorType == "" {
		actorType = auditdomain.ActorTypeSystem
	}
	return actorType, normalizePointer(&actorID)
}

func requestID(ctx context.Context) *string {
	id := obscontext.RequestIDFromContext(ctx)
	return normalizePointer(&id)
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
