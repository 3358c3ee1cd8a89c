package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/clock"
	obsmetrics "github.com/smallbiznis/bootcamp/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	reminderdomain "github.com/smallbiznis/bootcamp/internal/reminder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobSendReminders     = "send_reminders"
	JobMarkAbandonedOrders = "mark_abandoned_orders"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Reminders reminderdomain.Service
	Orders    orderdomain.Service
	Config    Config `optional:"true"`
	Locker    Locker `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	reminders reminderdomain.Service
	orders    orderdomain.Service
	locker    Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Reminders == nil || p.Orders == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		reminders: p.Reminders,
		orders:    p.Orders,
		locker:    p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errors == 0 {
			run.errors++
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobMarkAbandonedOrders, s.isJobEnabled(JobMarkAbandonedOrders), func(ctx context.Context) error {
			return s.runJob(ctx, JobMarkAbandonedOrders, s.cfg.BatchSize, 30*time.Second, s.MarkAbandonedOrdersJob)
		}},
		{JobSendReminders, s.isJobEnabled(JobSendReminders), func(ctx context.Context) error {
			return s.runJob(ctx, JobSendReminders, 0, 10*time.Minute, s.SendRemindersJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// SendRemindersJob runs one reminder pass. Reminder rows are unique per
// user, template and run, so overlapping passes never double-send; the lock
// keeps replicas off the mail provider at the same time.
func (s *Scheduler) SendRemindersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobSendReminders, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	return s.withLock(ctx, JobSendReminders, func(ctx context.Context) error {
		report, err := s.reminders.SendReminders(ctx, s.clock.Now())
		run.record("reminders", report.Sent)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.reminders.failed", err,
				zap.Int("runs_checked", report.RunsChecked),
			)
			return err
		}
		if report.Failed > 0 {
			s.logger(ctx).Warn("scheduler.reminders.partial",
				zap.Int("sent", report.Sent),
				zap.Int("failed", report.Failed),
			)
		}
		return nil
	})
}

// MarkAbandonedOrdersJob flags abandoned checkouts in batches until a short
// batch signals the backlog is drained.
func (s *Scheduler) MarkAbandonedOrdersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobMarkAbandonedOrders, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	return s.withLock(ctx, JobMarkAbandonedOrders, func(ctx context.Context) error {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			marked, err := s.orders.MarkAbandonedOrders(ctx, s.cfg.StaleOrderAge, s.cfg.BatchSize)
			run.record("orders", marked)
			if err != nil {
				s.logSchedulerError(ctx, run, "scheduler.orders.abandon_failed", err)
				return err
			}
			if marked < s.cfg.BatchSize {
				return nil
			}
		}
	})
}
