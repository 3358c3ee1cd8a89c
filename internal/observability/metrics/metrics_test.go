package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("decision", "ACCEPT"),
		attribute.String("user_email", "u@x"),
		attribute.String("source", "intake_a"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_email" {
			t.Fatalf("expected user_email to be dropped")
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordConfirmation(context.Background(), "ACCEPT", "fulfilled")
	m.RecordRemindersSent(context.Background(), "installment_reminder_2", 3)

	built, err := New(Config{ServiceName: "bootcamp"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	built.RecordIntakeWebhook(context.Background(), "intake_a", "SUCCEEDED")
}
