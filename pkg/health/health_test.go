package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveCheck(t *testing.T, hf http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	hf.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler(0)
	h.Register("broken", func(context.Context) error { return errors.New("down") })

	code, resp := serveCheck(t, h.LivenessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler_NoChecks(t *testing.T) {
	code, resp := serveCheck(t, NewHandler(0).ReadinessHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestReadinessHandler_OneDown(t *testing.T) {
	h := NewHandler(time.Second)
	h.Register("redis", func(context.Context) error { return nil })
	h.Register("kafka", func(context.Context) error { return errors.New("no brokers") })

	code, resp := serveCheck(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, StatusUp, resp.Checks["redis"].Status)
	assert.Equal(t, StatusDown, resp.Checks["kafka"].Status)
	assert.Equal(t, "no brokers", resp.Checks["kafka"].Error)
}

func TestReadinessHandler_SlowCheckTimesOut(t *testing.T) {
	h := NewHandler(50 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	h.Register("stuck", func(context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	code, resp := serveCheck(t, h.ReadinessHandler())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["stuck"].Error)
}

func TestReadinessHandler_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHandler(time.Second)
	h.Register("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })

	code, _ := serveCheck(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusOK, code)

	mr.Close()
	code, resp := serveCheck(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDown, resp.Checks["redis"].Status)
}

func TestRegister_ReplacesAndNames(t *testing.T) {
	h := NewHandler(0)
	h.Register("redis", func(context.Context) error { return errors.New("old") })
	h.Register("redis", func(context.Context) error { return nil })
	h.Register("kafka", func(context.Context) error { return nil })

	assert.Equal(t, []string{"kafka", "redis"}, h.Names())
	assert.Equal(t, StatusUp, h.Check(context.Background()).Status)
}
