package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func TestWithContext(t *testing.T) {
	t.Run("stores and retrieves logger", func(t *testing.T) {
		l := zap.NewNop()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("returns noop logger when absent", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})
}

func TestWithRequestID(t *testing.T) {
	l, logs := observedLogger()
	ctx, enriched := WithRequestID(context.Background(), l, "req-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	enriched.Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
}

func TestWithCorrelationID(t *testing.T) {
	l, logs := observedLogger()
	ctx, enriched := WithCorrelationID(context.Background(), l, "corr-1")

	assert.Equal(t, "corr-1", GetCorrelationID(ctx))
	enriched.Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "corr-1", logs.All()[0].ContextMap()["correlation_id"])
}

func TestWithEventID(t *testing.T) {
	l, _ := observedLogger()
	ctx, _ := WithEventID(context.Background(), l, "evt-1")
	assert.Equal(t, "evt-1", GetEventID(ctx))
}

func TestGetters_MissingValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestID(ctx))
	assert.Equal(t, "", GetCorrelationID(ctx))
	assert.Equal(t, "", GetEventID(ctx))
}

func TestContextLogger(t *testing.T) {
	t.Run("enriches entries with context fields", func(t *testing.T) {
		l, logs := observedLogger()
		ctx := WithContext(context.Background(), l)
		ctx = context.WithValue(ctx, RequestIDKey, "req-9")
		ctx = context.WithValue(ctx, CorrelationIDKey, "corr-9")
		ctx = context.WithValue(ctx, EventIDKey, "evt-9")

		L(ctx).Info("processing")

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "corr-9", fields["correlation_id"])
		assert.Equal(t, "evt-9", fields["event_id"])
	})

	t.Run("tolerates a bare context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			L(context.Background()).Info("no logger attached")
		})
	})

	t.Run("With adds fields to child loggers", func(t *testing.T) {
		l, logs := observedLogger()
		cl := WithLogger(context.Background(), l).With(zap.String("worker", "w1"))
		cl.Warn("slow")

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "w1", logs.All()[0].ContextMap()["worker"])
	})

	t.Run("Zap returns a usable logger", func(t *testing.T) {
		l, logs := observedLogger()
		WithLogger(context.Background(), l).Zap().Info("direct")
		assert.Equal(t, 1, logs.Len())
	})
}
