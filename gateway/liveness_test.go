package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("gateway down")

func newTestLiveness(attempts int) (*liveness, *noSleep) {
	ns := &noSleep{}
	l := newLiveness(func(context.Context) error { return errDown })
	l.attempts = attempts
	l.sleep = ns.sleep
	return l, ns
}

func TestLivenessRecovers(t *testing.T) {
	l, ns := newTestLiveness(10)

	calls := 0
	ok := l.wait(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errDown
		}
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, ns.count())
	assert.Equal(t, livenessInterval, ns.delays[0])
}

func TestLivenessGivesUp(t *testing.T) {
	l, ns := newTestLiveness(4)

	assert.False(t, l.wait(context.Background(), nil))
	assert.Equal(t, 3, ns.count())
}

func TestLivenessCanceled(t *testing.T) {
	l, ns := newTestLiveness(100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, l.wait(ctx, nil))
	assert.Zero(t, ns.count())
}

func TestLivenessDefaults(t *testing.T) {
	l := newLiveness(nil)
	assert.Equal(t, 100, l.attempts)
	assert.Equal(t, time.Second, l.interval)
}

func TestWaitForLiveRequiresSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	cfg := testConfig(srv.URL)
	c := NewUnifiedClient(cfg, NewTransportPool(cfg), Dependencies{})
	ns := instant(c.adapter)

	assert.False(t, c.WaitForLive(context.Background(), nil))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 2, ns.count())
}

func TestWaitForLiveOnFirstSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	cfg := testConfig(srv.URL)
	c := NewUnifiedClient(cfg, NewTransportPool(cfg), Dependencies{})
	instant(c.adapter)
	c.live.attempts = 10

	assert.True(t, c.WaitForLive(context.Background(), nil))
	assert.Equal(t, int32(3), hits.Load())
}

func TestBearerTransport(t *testing.T) {
	var got http.Header
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	})
	session := NewSession()
	pool := NewTransportPool(testConfig(srv.URL))
	client := pool.Bearer(session)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, got.Get("Authorization"))
	assert.Equal(t, unifiedUserAgent, got.Get("User-Agent"))

	session.authenticate(Credentials{}, "abc", "", time.Time{})
	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
}

func TestCookieTransport(t *testing.T) {
	var got string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Cookie")
	})
	session := NewSession()
	session.authenticate(Credentials{}, "", "sid=1", time.Time{})
	client := NewTransportPool(testConfig(srv.URL)).Cookie(session)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "sid=1", got)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Cookie", "explicit=1")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "explicit=1", got)
}

func TestRateLimitedTransport(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	cfg := testConfig(srv.URL)
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	pool := NewTransportPool(cfg)
	require.NotNil(t, pool.limiter)

	resp, err := pool.Plain.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	// The burst is spent; a request that cannot wait long enough fails fast.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = pool.Plain.Do(req)
	assert.Error(t, err)
}
