package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "operator", "refund")
	ctx = obscontext.WithRunKey(ctx, 77)
	ctx = obscontext.WithOrderID(ctx, "123")
	WithContext(ctx, zap.New(core)).Info("refund recorded")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "operator", fields["actor_type"])
		assert.Equal(t, "refund", fields["actor_id"])
		assert.Equal(t, "77", fields["run_key"])
		assert.Equal(t, "123", fields["order_id"])
		assert.NotContains(t, fields, "trace_id")
	}
}

func TestFieldsEmptyContext(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))
}

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		`SELECT * FROM "orders" WHERE id = $1`:                       "SELECT",
		`  insert into receipts (id) values ($1)`:                    "INSERT",
		`WITH paid AS (SELECT 1) UPDATE applications SET state = $1`: "SELECT",
		`(DELETE FROM deferred_tasks)`:                               "DELETE",
		``:                                                           "UNKNOWN",
		`VACUUM`:                                                     "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestConfigRejectsBadLevel(t *testing.T) {
	_, err := Config{Level: "loud"}.zapConfig()
	assert.Error(t, err)

	zc, err := Config{Format: "console"}.zapConfig()
	assert.NoError(t, err)
	assert.Equal(t, "console", zc.Encoding)
	assert.Equal(t, zapcore.InfoLevel, zc.Level.Level())
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", 500))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/api/v0/payment/", 500))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/api/v0/order_fulfillment/", 403))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/api/v0/payment/", 429))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/v0/payment/", 400))
}
