package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// recordingSink is a diagnostics.Sink that keeps everything it receives.
type recordingSink struct {
	mu          sync.Mutex
	notified    []error
	breadcrumbs []map[string]string
}

func (s *recordingSink) Notify(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, err)
}

func (s *recordingSink) AddBreadcrumb(_ string, attrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breadcrumbs = append(s.breadcrumbs, attrs)
}

func (s *recordingSink) notifications() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.notified...)
}

func (s *recordingSink) crumbs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.breadcrumbs)
}

// memoryCredentials is a CredentialStore kept in memory.
type memoryCredentials struct {
	mu       sync.Mutex
	username string
	password string
	saves    int
}

func (m *memoryCredentials) SaveCredentials(username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username, m.password = username, password
	m.saves++
	return nil
}

type publishedErrors struct {
	mu   sync.Mutex
	errs []error
}

func (p *publishedErrors) add(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *publishedErrors) all() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

// testDeps wires a fresh error channel and recording sink.
type testDeps struct {
	Dependencies
	sink      *recordingSink
	published *publishedErrors
}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()
	sink := &recordingSink{}
	errs := NewErrorChannel(zap.NewNop())
	published := &publishedErrors{}
	t.Cleanup(errs.Subscribe(published.add))
	return testDeps{
		Dependencies: Dependencies{
			Errors:      errs,
			Diagnostics: sink,
			Activity:    &Activity{},
			Credentials: &memoryCredentials{},
			Logger:      zap.NewNop(),
		},
		sink:      sink,
		published: published,
	}
}

// noSleep records requested delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.delays = append(n.delays, d)
	n.mu.Unlock()
	return ctx.Err()
}

func (n *noSleep) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delays)
}

// instant removes every real wait from an adapter.
func instant(a *adapter) *noSleep {
	ns := &noSleep{}
	a.exec.sleep = ns.sleep
	a.plainExec.sleep = ns.sleep
	a.live.sleep = ns.sleep
	a.live.attempts = 3
	return ns
}

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) ClientConfig {
	return ClientConfig{URL: url, Timeout: 5 * time.Second}
}
