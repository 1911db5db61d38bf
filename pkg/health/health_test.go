package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestCheckThresholds(t *testing.T) {
	ctx := context.Background()
	fail := true
	c := newCheck("db", time.Second, func(context.Context) error {
		if fail {
			return errors.New("connection refused")
		}
		return nil
	}, []Option{WithThresholds(2, 2)})

	c.probe(ctx)
	assert.True(t, c.healthy.Load(), "one failure is tolerated")
	c.probe(ctx)
	assert.False(t, c.healthy.Load())
	assert.EqualError(t, c.err(), "connection refused")

	fail = false
	c.probe(ctx)
	assert.False(t, c.healthy.Load(), "one pass is not enough to recover")
	c.probe(ctx)
	assert.True(t, c.healthy.Load())
	assert.NoError(t, c.err())
}

func TestCheckTimeout(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, []Option{WithThresholds(1, 1)})

	c.probe(context.Background())
	assert.False(t, c.healthy.Load())
	assert.ErrorIs(t, c.err(), context.DeadlineExceeded)
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("ok", time.Second, func(context.Context) error { return nil })
	h.AddLivenessCheck("broken", time.Second, func(context.Context) error {
		return errors.New("boom")
	}, WithThresholds(1, 1))

	w := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code, "checks start healthy")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	for _, c := range h.liveness {
		c.probe(context.Background())
	}
	w = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"broken":"boom"}}`, w.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	var pingErr error
	h.AddReadinessCheck("postgres", time.Second, PingCheck(pingerFunc(func(context.Context) error {
		return pingErr
	})), WithThresholds(1, 1))

	w := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())
	assert.False(t, h.IsReady())

	h.SetReady(true)
	w = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.IsReady())

	pingErr = errors.New("refused")
	h.readiness[0].probe(context.Background())
	w = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"postgres":"ping: refused"}}`, w.Body.String())
	assert.False(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("objects", time.Second, func(context.Context) error {
		return errors.New("bucket missing")
	}, WithThresholds(1, 1))

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestCheckers(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
	assert.NoError(t, PingCheck(pingerFunc(func(context.Context) error { return nil }))(ctx))
}
