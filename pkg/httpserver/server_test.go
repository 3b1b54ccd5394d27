package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planwarden/pkg/httpserver"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return l
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err, "run")
	case <-time.After(time.Second):
		require.Fail(t, "run did not finish")
	}
}

func TestRunAndShutdown(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.Config{ShutdownTimeout: 100 * time.Millisecond}, httpserver.WithListener(listen(t)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }))
	}()
	<-srv.Ready()

	resp, err := http.Get("http://" + srv.Addr().String())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	waitRun(t, done)
	require.NoError(t, srv.Shutdown(context.Background()), "shutdown after run is a no-op")
}

func TestStartError(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.Config{Addr: ":invalid"})
	err := srv.Run(context.Background(), http.NewServeMux())
	require.Error(t, err)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestShutdownFuncs(t *testing.T) {
	t.Parallel()
	var flushed atomic.Int32
	flushErr := errors.New("audit flush timed out")
	srv := httpserver.New(httpserver.Config{},
		httpserver.WithListener(listen(t)),
		httpserver.WithShutdownFunc(func(context.Context) error { flushed.Add(1); return nil }),
		httpserver.WithShutdownFunc(func(context.Context) error { flushed.Add(1); return flushErr }),
		httpserver.WithShutdownFunc(nil),
	)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background(), nil) }()
	<-srv.Ready()

	err := srv.Shutdown(context.Background())
	assert.ErrorIs(t, err, httpserver.ErrShutdown)
	assert.ErrorIs(t, err, flushErr)
	assert.Equal(t, int32(2), flushed.Load())

	require.NoError(t, srv.Shutdown(context.Background()), "second shutdown does nothing")
	assert.Equal(t, int32(2), flushed.Load())
	waitRun(t, done)
}

func TestAlreadyRunning(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.Config{ShutdownTimeout: 50 * time.Millisecond}, httpserver.WithListener(listen(t)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, http.NewServeMux()) }()
	<-srv.Ready()

	err := srv.Run(context.Background(), http.NewServeMux())
	assert.ErrorIs(t, err, httpserver.ErrStart)
	assert.ErrorIs(t, err, httpserver.ErrAlreadyRunning)

	cancel()
	waitRun(t, done)
}

func TestShutdownBeforeRun(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.Config{})
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Nil(t, srv.Addr())
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	httpserver.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	tests := []struct {
		name   string
		checks map[string]httpserver.Check
		code   int
		want   map[string]string
	}{
		{
			name:   "all ready",
			checks: map[string]httpserver.Check{"postgres": ok, "redis": ok},
			code:   http.StatusOK,
			want:   map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:   "one down",
			checks: map[string]httpserver.Check{"postgres": ok, "redis": down},
			code:   http.StatusServiceUnavailable,
			want:   map[string]string{"postgres": "ok", "redis": "connection refused"},
		},
		{
			name:   "timeout",
			checks: map[string]httpserver.Check{"postgres": slow},
			code:   http.StatusServiceUnavailable,
			want:   map[string]string{"postgres": context.DeadlineExceeded.Error()},
		},
		{
			name: "no checks",
			code: http.StatusOK,
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			h := httpserver.ReadinessHandler(nil, 50*time.Millisecond, tt.checks)
			h(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body struct {
				Ready  bool              `json:"ready"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code == http.StatusOK, body.Ready)
			assert.Equal(t, tt.want, body.Checks)
		})
	}
}
