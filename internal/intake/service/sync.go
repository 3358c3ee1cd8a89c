package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"go.uber.org/zap"
)

type temporary interface {
	Temporary() bool
}

// SyncPayment pushes the net paid total for every run on the task's order to
// the intake system that owns the run.
func (s *Service) SyncPayment(ctx context.Context, task tasksdomain.Task) error {
	var payload tasksdomain.OrderPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.OrderID == 0 {
		return tasksdomain.Permanent(tasksdomain.ErrInvalidPayload)
	}
	order, err := s.orderRepo.FindByID(ctx, s.db, payload.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return tasksdomain.Permanent(orderdomain.ErrOrderNotFound)
	}

	seen := make(map[snowflake.ID]bool, len(order.Lines))
	for _, line := range order.Lines {
		if seen[line.BootcampRunID] {
			continue
		}
		seen[line.BootcampRunID] = true
		if err := s.syncRun(ctx, order.UserID, line.BootcampRunID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) syncRun(ctx context.Context, userID, runID snowflake.ID) error {
	run, err := s.catalogRepo.FindRunByID(ctx, s.db, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return tasksdomain.Permanent(orderdomain.ErrRunNotFound)
	}
	if run.Source == catalogdomain.SourceNone {
		return nil
	}
	source := string(run.Source)
	adapter := s.registry.Get(run.Source)
	if adapter == nil || adapter.Reporter == nil {
		s.metrics.RecordIntakeSync(ctx, source, "skipped")
		s.log.Warn("intake sync not configured", zap.String("source", source), zap.Int64("run_key", run.RunKey))
		return nil
	}

	profile, err := s.userRepo.FindProfile(ctx, s.db, userID)
	if err != nil {
		return err
	}
	upstreamID := profile.UpstreamID(run.Source)
	var submissionID string
	if upstreamID != "" {
		rec, err := s.repo.LatestSucceeded(ctx, s.db, run.Source, run.RunKey, upstreamID)
		if err != nil {
			return err
		}
		if rec != nil && rec.SubmissionID != nil {
			submissionID = *rec.SubmissionID
		}
	}
	if submissionID == "" {
		s.metrics.RecordIntakeSync(ctx, source, "missing_submission")
		s.log.Error("intake sync has no submission",
			zap.String("user_id", userID.String()),
			zap.Int64("run_key", run.RunKey),
		)
		return tasksdomain.Permanent(fmt.Errorf("%w: user %s run %d", domain.ErrMissingSubmission, userID, run.RunKey))
	}

	total, err := s.orderSvc.NetPaidForRun(ctx, s.db, userID, run.ID)
	if err != nil {
		return err
	}
	if err := adapter.Reporter.ReportPaid(ctx, submissionID, total); err != nil {
		s.metrics.RecordIntakeSync(ctx, source, "failed")
		s.log.Error("intake sync failed",
			zap.String("source", source),
			zap.String("submission_id", submissionID),
			zap.Error(err),
		)
		var t temporary
		if errors.Is(err, domain.ErrAuthFailure) || (errors.As(err, &t) && !t.Temporary()) {
			return tasksdomain.Permanent(err)
		}
		return err
	}

	s.metrics.RecordIntakeSync(ctx, source, "ok")
	s.log.Info("intake sync reported paid total",
		zap.String("source", source),
		zap.String("submission_id", submissionID),
		zap.String("total", total.String()),
	)
	return nil
}
