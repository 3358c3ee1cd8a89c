package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/config"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	"github.com/smallbiznis/bootcamp/internal/observability/metrics"
	"github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	baseBackoff = 5 * time.Second
	maxBackoff  = 10 * time.Minute
)

type WorkerParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
	Config config.Config
}

// Worker claims due tasks and runs them on a fixed pool of goroutines.
type Worker struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	cfg   config.WorkerConfig

	mu       sync.RWMutex
	handlers map[string]domain.Handler
}

func NewWorker(p WorkerParams) *Worker {
	cfg := p.Config.Worker
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	return &Worker{
		db:       p.DB,
		log:      p.Log.Named("tasks.worker"),
		clock:    p.Clock,
		repo:     p.Repo,
		cfg:      cfg,
		handlers: make(map[string]domain.Handler),
	}
}

func (w *Worker) Register(kind string, h domain.Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

func (w *Worker) handler(kind string) (domain.Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[kind]
	return h, ok
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("task poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch and waits for it to finish.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.claim(ctx)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	jobs := make(chan domain.Task)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency && i < len(tasks); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				w.process(ctx, task)
			}
		}()
	}
	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)
	wg.Wait()
	return len(tasks), nil
}

func (w *Worker) claim(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	now := w.clock.Now()
	lease := now.Add(2 * w.cfg.TaskTimeout)
	lockStart := time.Now()
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tasks, err = w.repo.ClaimDue(ctx, tx, now, lease, w.cfg.Concurrency*4)
		return err
	})
	metrics.Scheduler().ObserveDBLockWait(metrics.LockResourceTasks, time.Since(lockStart))
	return tasks, err
}

func (w *Worker) process(parent context.Context, task domain.Task) {
	start := time.Now()
	log := w.log.With(
		zap.String("task_id", task.ID.String()),
		zap.String("kind", task.Kind),
		zap.Int("attempt", task.Attempts),
	)

	err := w.invoke(parent, task)
	now := w.clock.Now()
	outcome := metrics.TaskOutcomeSucceeded

	switch {
	case err == nil:
		if markErr := w.repo.MarkSucceeded(context.WithoutCancel(parent), w.db, task.ID, now); markErr != nil {
			log.Error("mark task succeeded", zap.Error(markErr))
		}
	case domain.IsPermanent(err) || task.Attempts >= task.MaxAttempts || !metrics.IsRetryable(err):
		outcome = metrics.TaskOutcomeFailed
		log.Error("task failed", zap.Error(err), zap.String("reason", metrics.ClassifySchedulerJobReason(err)))
		if markErr := w.repo.MarkFailed(context.WithoutCancel(parent), w.db, task.ID, err.Error(), now); markErr != nil {
			log.Error("mark task failed", zap.Error(markErr))
		}
	default:
		outcome = metrics.TaskOutcomeRetried
		next := now.Add(Backoff(task.Attempts))
		log.Warn("task will retry", zap.Error(err), zap.Time("run_after", next))
		if markErr := w.repo.MarkRetry(context.WithoutCancel(parent), w.db, task.ID, next, err.Error(), now); markErr != nil {
			log.Error("mark task retry", zap.Error(markErr))
		}
	}
	metrics.Scheduler().ObserveTask(task.Kind, outcome, time.Since(start))
}

func (w *Worker) invoke(parent context.Context, task domain.Task) (err error) {
	h, ok := w.handler(task.Kind)
	if !ok {
		return domain.Permanent(fmt.Errorf("%w: %s", domain.ErrUnknownKind, task.Kind))
	}

	ctx, cancel := context.WithTimeout(parent, w.cfg.TaskTimeout)
	defer cancel()
	ctx = obscontext.WithActor(ctx, "system", "worker")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, task)
}

// Backoff is the delay before attempt n+1.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
