package gateway

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 20 * time.Second
	maxRedirects     = 100
	unifiedUserAgent = "homeisp/android/2.12.1"
)

// TransportPool owns the HTTP clients shared by the adapters. Every client
// goes through the same rate limiter so parallel refreshes cannot flood the
// gateway's embedded web server.
type TransportPool struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	timeout time.Duration

	// Plain is the unauthenticated client used for logins and probes.
	Plain *http.Client
}

// NewTransportPool builds the shared transport from cfg.
func NewTransportPool(cfg ClientConfig) *TransportPool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	base.MaxIdleConnsPerHost = 4

	p := &TransportPool{
		base:    base,
		timeout: timeout,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	p.Plain = p.client(p.limited(base))
	return p
}

// Bearer returns a client that attaches the session's bearer token and the
// unified API user agent to every request.
func (p *TransportPool) Bearer(s *Session) *http.Client {
	return p.client(p.limited(&bearerTransport{next: p.base, session: s}))
}

// Cookie returns a client that attaches the session cookie to every request.
func (p *TransportPool) Cookie(s *Session) *http.Client {
	return p.client(p.limited(&cookieTransport{next: p.base, session: s}))
}

// Mock returns a client answering from canned unified API responses.
func (p *TransportPool) Mock() *http.Client {
	return p.client(newMockTransport())
}

// Close releases idle connections.
func (p *TransportPool) Close() {
	if t, ok := p.base.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

func (p *TransportPool) client(rt http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   p.timeout,
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

func (p *TransportPool) limited(next http.RoundTripper) http.RoundTripper {
	if p.limiter == nil {
		return next
	}
	return &limitedTransport{next: next, limiter: p.limiter}
}

type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

type bearerTransport struct {
	next    http.RoundTripper
	session *Session
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if token := t.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", unifiedUserAgent)
	return t.next.RoundTrip(req)
}

type cookieTransport struct {
	next    http.RoundTripper
	session *Session
}

func (t *cookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if cookie := t.session.Cookie(); cookie != "" && req.Header.Get("Cookie") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Cookie", cookie)
	}
	return t.next.RoundTrip(req)
}
