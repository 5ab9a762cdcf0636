package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/partloader/internal/infrastructure/config"
	"github.com/GriffinCanCode/partloader/internal/infrastructure/resilience"
)

func statusServer(t *testing.T, code int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(code)
		_, _ = w.Write([]byte("body"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastOptions() Options {
	return Options{
		Retries:      0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}
}

func readAll(t *testing.T, body io.ReadCloser) string {
	t.Helper()
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	return string(data)
}

func TestOpenReturnsBody(t *testing.T) {
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.UserAgent())
		_, _ = w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.UserAgent = "tester/2"
	c := New(opts)

	body, err := c.Open(context.Background(), srv.URL+"/app.jar")
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", readAll(t, body))
	assert.Equal(t, "tester/2", agent.Load())
}

func TestOpenStatusErrors(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"not found", http.StatusNotFound},
		{"forbidden", http.StatusForbidden},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := statusServer(t, tt.code, &hits)

			_, err := New(fastOptions()).Open(context.Background(), srv.URL+"/missing.jar")
			require.Error(t, err)

			var status *StatusError
			require.ErrorAs(t, err, &status)
			assert.Equal(t, tt.code, status.Code)
			assert.Contains(t, err.Error(), "missing.jar")
		})
	}
}

func TestOpenRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusServiceUnavailable, &hits)

	opts := fastOptions()
	opts.Retries = 2
	_, err := New(opts).Open(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestOpenRecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.Retries = 1
	body, err := New(opts).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, body))
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreakerOpensPerHost(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusInternalServerError, &hits)

	opts := fastOptions()
	opts.Breakers = DefaultBreakers(2, time.Minute, nil)
	c := New(opts)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Open(ctx, srv.URL)
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}

	_, err := c.Open(ctx, srv.URL)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, resilience.StateOpen, c.BreakerStates()[u.Host])
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusNotFound, &hits)

	opts := fastOptions()
	opts.Breakers = DefaultBreakers(1, time.Minute, nil)
	c := New(opts)

	for i := 0; i < 3; i++ {
		_, err := c.Open(context.Background(), srv.URL)
		var status *StatusError
		require.ErrorAs(t, err, &status)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestRateLimitHonoursContext(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusOK, &hits)

	opts := fastOptions()
	opts.RateLimit = 0.001
	opts.RateBurst = 1
	c := New(opts)

	body, err := c.Open(context.Background(), srv.URL)
	require.NoError(t, err)
	body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Open(ctx, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := New(fastOptions()).Open(context.Background(), "http://[::1")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default().Fetch
	opts := FromConfig(cfg, nil)

	assert.Equal(t, cfg.Retries, opts.Retries)
	assert.Equal(t, cfg.RetryWaitMin, opts.RetryWaitMin)
	assert.Equal(t, cfg.RetryWaitMax, opts.RetryWaitMax)
	assert.InDelta(t, cfg.RateLimit, opts.RateLimit, 0.0001)
	assert.Equal(t, cfg.RateBurst, opts.RateBurst)
	assert.Equal(t, cfg.UserAgent, opts.UserAgent)
	assert.NotNil(t, opts.Breakers)
}
