package scheduler

import (
	"context"
	"sort"
	"time"

	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	obslogger "github.com/smallbiznis/bootcamp/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bootcamp/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun collects what one job invocation touched for its finish line.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time
	processed map[string]int
	errors    int
}

type jobRunKey struct{}

// record counts n rows of resource and feeds the batch metric.
func (r *jobRun) record(resource string, n int) {
	if n <= 0 {
		return
	}
	r.processed[resource] += n
	obsmetrics.Scheduler().AddBatchProcessed(r.job, resource, n)
}

func (r *jobRun) total() int {
	n := 0
	for _, v := range r.processed {
		n += v
	}
	return n
}

// ensureJobRun returns the run already carried by ctx, or starts one. owner
// is true for the caller that started it and must log its finish.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return ctx, run, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
		processed: make(map[string]int),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler:"+job)
	return ctx, run, true
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.total()),
		zap.Int("error_count", run.errors),
	}
	resources := make([]string, 0, len(run.processed))
	for resource := range run.processed {
		resources = append(resources, resource)
	}
	sort.Strings(resources)
	for _, resource := range resources {
		fields = append(fields, zap.Int("processed_"+resource, run.processed[resource]))
	}

	if run.errors > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, err error, fields ...zap.Field) {
	run.errors++
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("job", run.job),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Bool("retryable", obsmetrics.IsRetryable(err)),
		zap.Error(err),
	}, fields...)...)
}
