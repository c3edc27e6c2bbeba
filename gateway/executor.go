package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tmobile-dashboard/gateway-monitor/diagnostics"
)

const (
	// DefaultMaxRetries bounds the retry-for-live loop.
	DefaultMaxRetries = 20
	retryDelay        = 2 * time.Second
)

// Request describes one gateway call. It is rebuilt into a fresh
// *http.Request on every attempt so bodies can be replayed.
type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
}

func getRequest(u string) Request {
	return Request{Method: http.MethodGet, URL: u}
}

func postRequest(u string) Request {
	return Request{Method: http.MethodPost, URL: u}
}

func jsonRequest(method, u string, v any) (Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Request{}, err
	}
	return Request{Method: method, URL: u, Body: body, ContentType: "application/json"}, nil
}

func formRequest(u string, values url.Values) Request {
	return Request{
		Method:      http.MethodPost,
		URL:         u,
		Body:        []byte(values.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}
}

// Response is a fully buffered gateway response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Method     string
	URL        string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RequestOptions control retries and where failures are surfaced.
type RequestOptions struct {
	// ShowError publishes failures on the error channel.
	ShowError bool

	// ReportError sends failures to diagnostics when ShowError is off.
	ReportError bool

	// RetryForLive retries timeouts and RetryOnCodes while the gateway
	// comes back up.
	RetryForLive bool

	// IsLogin marks the login call itself. Logins never trigger a session
	// refresh or a liveness wait.
	IsLogin bool

	MaxRetries   int
	RetryOnCodes []int
}

// DefaultRequestOptions shows errors to the user and retries 408s only when
// RetryForLive is set.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		ShowError:    true,
		ReportError:  true,
		MaxRetries:   DefaultMaxRetries,
		RetryOnCodes: []int{http.StatusRequestTimeout},
	}
}

// refresher renews an adapter's session after the gateway rejects it.
// generation identifies the session a request was sent with, so requests
// rejected together renew it only once.
type refresher interface {
	needsRefresh(status int) bool
	maxRefreshes() int
	generation() uint64
	refresh(ctx context.Context, seen uint64) error
}

// Executor runs gateway requests with retry, session refresh and failure
// reporting.
type Executor struct {
	client *http.Client
	auth   refresher
	live   func(ctx context.Context) bool

	errs   *ErrorChannel
	diag   diagnostics.Sink
	logger *zap.Logger

	sleep      func(ctx context.Context, d time.Duration) error
	retryDelay time.Duration
}

func newExecutor(client *http.Client, auth refresher, live func(context.Context) bool, deps Dependencies) *Executor {
	return &Executor{
		client:     client,
		auth:       auth,
		live:       live,
		errs:       deps.Errors,
		diag:       deps.Diagnostics,
		logger:     deps.Logger,
		sleep:      sleepContext,
		retryDelay: retryDelay,
	}
}

// Execute performs req and returns the 2xx response. Any other outcome is
// returned as an *Error that has been surfaced exactly once, except for
// cancellation which is never surfaced.
//
// Timeouts and RetryOnCodes statuses are retried while RetryForLive is set
// and fewer than MaxRetries retries have been made. A timeout that exhausts
// the retries waits for the gateway to come back and then gets one final
// attempt.
func (e *Executor) Execute(ctx context.Context, op string, req Request, opts RequestOptions) (*Response, error) {
	codes := opts.RetryOnCodes
	if codes == nil {
		codes = []int{http.StatusRequestTimeout}
	}

	retries, refreshes := 0, 0
	recovered := false

	for {
		var gen uint64
		if e.auth != nil {
			gen = e.auth.generation()
		}
		resp, err := e.attempt(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceled(op, req, ctx.Err())
			}
			if !isTimeout(err) {
				return nil, e.report(&Error{
					Kind:    KindConnectivity,
					Op:      op,
					Method:  req.Method,
					URL:     req.URL,
					Message: "could not reach the gateway",
					Err:     err,
				}, opts)
			}

			if opts.RetryForLive && retries < opts.MaxRetries {
				retries++
				if err := e.sleep(ctx, e.retryDelay); err != nil {
					return nil, canceled(op, req, err)
				}
				continue
			}

			if !opts.IsLogin && !recovered && e.live != nil {
				recovered = true
				if e.live(ctx) {
					continue
				}
				if ctx.Err() != nil {
					return nil, canceled(op, req, ctx.Err())
				}
			}

			return nil, e.report(&Error{
				Kind:    KindTimeout,
				Op:      op,
				Method:  req.Method,
				URL:     req.URL,
				Message: "the gateway did not respond in time",
				Err:     err,
			}, opts)
		}

		if resp.OK() {
			return resp, nil
		}

		if e.auth != nil && !opts.IsLogin && e.auth.needsRefresh(resp.StatusCode) && refreshes < e.auth.maxRefreshes() {
			refreshes++
			e.logger.Debug("refreshing session",
				zap.String("op", op),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", refreshes),
			)
			if err := e.auth.refresh(ctx, gen); err != nil {
				if ctx.Err() != nil {
					return nil, canceled(op, req, ctx.Err())
				}
				return nil, e.report(&Error{
					Kind:       KindAuthentication,
					Op:         op,
					StatusCode: resp.StatusCode,
					Method:     req.Method,
					URL:        req.URL,
					Message:    "session refresh failed",
					Err:        err,
				}, opts)
			}
			continue
		}

		if opts.RetryForLive && slices.Contains(codes, resp.StatusCode) && retries < opts.MaxRetries {
			retries++
			if err := e.sleep(ctx, e.retryDelay); err != nil {
				return nil, canceled(op, req, err)
			}
			continue
		}

		serr := statusError(op, resp)
		if refreshes > 0 && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			serr.Kind = KindAuthentication
		}
		return nil, e.report(serr, opts)
	}
}

func (e *Executor) attempt(ctx context.Context, req Request) (*Response, error) {
	e.diag.AddBreadcrumb("Making request.", map[string]string{
		"url":    req.URL,
		"method": req.Method,
	})

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}

	resp, err := e.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Method:     req.Method,
		URL:        req.URL,
	}, nil
}

// report surfaces err through exactly one channel: the error channel, then
// diagnostics, then the debug log.
func (e *Executor) report(err *Error, opts RequestOptions) error {
	switch {
	case opts.ShowError:
		e.errs.Publish(err)
	case opts.ReportError:
		e.diag.Notify(err)
	default:
		e.logger.Debug("gateway request failed", zap.Error(err))
	}
	return err
}

func canceled(op string, req Request, err error) *Error {
	return &Error{
		Kind:   KindCanceled,
		Op:     op,
		Method: req.Method,
		URL:    req.URL,
		Err:    err,
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
