package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/utafrali/promarket/pkg/logger"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestNewRedisClient_PoolSettings(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{
		Addr:        mr.Addr(),
		PoolSize:    4,
		DialTimeout: time.Second,
		ReadTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
}

func TestTraceCommand_Success(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceCommand(context.Background(), "GET", "promarket_cart:s1")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "redis.GET", spans[0].Name)
	attrs := map[string]string{}
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	assert.Equal(t, "redis", attrs["db.system"])
	assert.Equal(t, "GET", attrs["db.operation"])
	assert.Equal(t, "promarket_cart:s1", attrs["db.redis.key"])
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func TestTraceCommand_Error(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceCommand(context.Background(), "SET", "k")
	end(errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "connection refused", spans[0].Status.Description)
}

func TestTraceCommand_SlowCommandLogged(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	SetSlowCommandLogging(time.Nanosecond, logger.NewWithWriter("test", "debug", &buf))
	t.Cleanup(func() { SetSlowCommandLogging(0, nil) })

	_, end := TraceCommand(context.Background(), "DEL", "k")
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow redis command")
	assert.Contains(t, buf.String(), `"command":"DEL"`)
}

func TestTraceCommand_SlowLoggingDisabled(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	SetSlowCommandLogging(0, logger.NewWithWriter("test", "debug", &buf))
	t.Cleanup(func() { SetSlowCommandLogging(0, nil) })

	_, end := TraceCommand(context.Background(), "GET", "k")
	end(nil)

	assert.Empty(t, buf.String())
}
