package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QueueParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Config config.Config
}

type Queue struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	maxAttempts int
}

func NewQueue(p QueueParams) domain.Enqueuer {
	maxAttempts := p.Config.Worker.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &Queue{
		db:          p.DB,
		log:         p.Log.Named("tasks.queue"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		maxAttempts: maxAttempts,
	}
}

func (q *Queue) Enqueue(ctx context.Context, conn *gorm.DB, req domain.EnqueueRequest) (*domain.Task, error) {
	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		return nil, domain.ErrInvalidKind
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if conn == nil {
		conn = q.db
	}

	now := q.clock.Now()
	task := &domain.Task{
		ID:          q.genID.Generate(),
		Kind:        kind,
		Payload:     datatypes.JSON(payload),
		Status:      domain.StatusPending,
		MaxAttempts: q.maxAttempts,
		RunAfter:    now.Add(req.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if key := strings.TrimSpace(req.DedupeKey); key != "" {
		task.DedupeKey = &key
	}

	inserted, err := q.repo.Insert(ctx, conn, task)
	if err != nil {
		return nil, err
	}
	if !inserted {
		q.log.Debug("task already enqueued",
			zap.String("kind", kind),
			zap.String("dedupe_key", req.DedupeKey),
		)
		return nil, nil
	}
	q.log.Debug("task enqueued",
		zap.String("task_id", task.ID.String()),
		zap.String("kind", kind),
	)
	return task, nil
}
