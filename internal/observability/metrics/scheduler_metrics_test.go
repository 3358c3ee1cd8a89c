package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"
)

type fakeUpstreamErr struct{}

func (fakeUpstreamErr) Error() string    { return "intake returned 502" }
func (fakeUpstreamErr) Upstream() string { return "intake_a" }

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "upstream", err: fmt.Errorf("sync: %w", fakeUpstreamErr{}), want: SchedulerJobReasonUpstream},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fakeUpstreamErr{}) {
		t.Fatalf("expected upstream errors to be retryable")
	}
	if !IsRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("expected serialization failure to be retryable")
	}
	if IsRetryable(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("expected unique violation to be permanent")
	}
	if IsRetryable(errors.New("invalid payload")) {
		t.Fatalf("expected plain errors to be permanent")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "bootcamp", Environment: "test"})

	metrics.AddBatchProcessed("send_reminders", "recipients", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("send_reminders", "recipients"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestObserveTask(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "bootcamp", Environment: "test"})

	metrics.ObserveTask("intake_payment_sync", TaskOutcomeRetried, 20*time.Millisecond)
	metrics.ObserveTask("intake_payment_sync", TaskOutcomeSucceeded, 10*time.Millisecond)

	if got := testutil.ToFloat64(metrics.tasks.WithLabelValues("intake_payment_sync", TaskOutcomeRetried)); got != 1 {
		t.Fatalf("expected one retried task, got %v", got)
	}

	observer, err := metrics.taskDuration.GetMetricWithLabelValues("intake_payment_sync")
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}
	var m dto.Metric
	if err := observer.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", m.GetHistogram().GetSampleCount())
	}
}

func TestObserveRunLoopLagIsRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "bootcamp", Environment: "test"})

	metrics.ObserveRunLoopLag(1500 * time.Millisecond)
	metrics.ObserveRunLoopLag(-time.Second)

	var m dto.Metric
	if err := metrics.runLoopLag.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", m.GetHistogram().GetSampleCount())
	}
	if got := m.GetHistogram().GetSampleSum(); got != 1.5 {
		t.Fatalf("expected negative lag clamped to zero, sum %v", got)
	}
	if n, err := testutil.GatherAndCount(registry, "bootcamp_scheduler_runloop_lag_seconds"); err != nil || n != 1 {
		t.Fatalf("expected runloop lag in registry, got %d (%v)", n, err)
	}
}
