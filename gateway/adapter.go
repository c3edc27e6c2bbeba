package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	errNoCredentials = errors.New("no credentials to refresh the session with")
	errNotLive       = errors.New("gateway not serving yet")
)

// adapter is the machinery shared by the vendor clients: session, executors,
// liveness polling and the login lock.
type adapter struct {
	model   Model
	baseURL string
	testURL string

	pool    *TransportPool
	session *Session
	authed  *http.Client
	plain   *http.Client

	// exec carries the session and refreshes it; plainExec is used for
	// logins and unauthenticated reads.
	exec      *Executor
	plainExec *Executor
	live      *liveness

	deps   Dependencies
	logger *zap.Logger

	// loginMu serializes logins, including those triggered by a refresh.
	loginMu sync.Mutex

	// refreshMu lets one rejected request renew the session while the
	// others rejected alongside it wait and reuse the result.
	refreshMu sync.Mutex

	relogin      func(ctx context.Context, creds Credentials) error
	refreshOn    func(status int) bool
	refreshLimit int
}

func newAdapter(model Model, baseURL, testPath string, pool *TransportPool, session *Session, authed, plain *http.Client, deps Dependencies) *adapter {
	deps = deps.withDefaults()
	a := &adapter{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		pool:    pool,
		session: session,
		authed:  authed,
		plain:   plain,
		deps:    deps,
		logger:  deps.Logger.With(zap.String("model", string(model))),
	}
	a.testURL = a.url(testPath)
	a.live = newLiveness(a.probeLive)

	wait := func(ctx context.Context) bool {
		return a.live.wait(ctx, nil)
	}
	a.exec = newExecutor(authed, a, wait, deps)
	a.plainExec = newExecutor(plain, nil, wait, deps)
	return a
}

func (a *adapter) url(path string) string {
	return a.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (a *adapter) Model() Model {
	return a.model
}

func (a *adapter) TestURL() string {
	return a.testURL
}

func (a *adapter) Session() *Session {
	return a.session
}

func (a *adapter) Logout(ctx context.Context) error {
	a.session.clear()
	a.logger.Info("logged out")
	return nil
}

func (a *adapter) WaitForLive(ctx context.Context, check LiveCheck) bool {
	return a.live.wait(ctx, check)
}

func (a *adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *adapter) needsRefresh(status int) bool {
	return a.refreshOn != nil && a.refreshOn(status)
}

func (a *adapter) maxRefreshes() int {
	return a.refreshLimit
}

func (a *adapter) generation() uint64 {
	return a.session.generation()
}

// refresh logs in again unless the session has been renewed since seen was
// taken, in which case the caller just retries with the new session.
func (a *adapter) refresh(ctx context.Context, seen uint64) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	if a.session.generation() != seen {
		return nil
	}

	creds, ok := a.session.Credentials()
	if !ok || a.relogin == nil {
		return errNoCredentials
	}
	return a.relogin(ctx, creds)
}

// probe issues a GET against u and returns the response status.
func (a *adapter) probe(ctx context.Context, client *http.Client, u string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// probeLive requires a 2xx from the test URL. A rebooting gateway often
// answers 502 or 503 before it can serve requests.
func (a *adapter) probeLive(ctx context.Context) error {
	status, err := a.probe(ctx, a.authed, a.testURL)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%s: %w: status %d", a.testURL, errNotLive, status)
	}
	return nil
}

// exists runs the vendor probe with the probe timeout and reports transport
// failures to diagnostics unless the caller has given up.
func (a *adapter) exists(ctx context.Context, ok func(status int) bool) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status, err := a.probe(pctx, a.plain, a.testURL)
	if err != nil {
		if ctx.Err() == nil {
			a.deps.Diagnostics.Notify(&Error{
				Kind:    KindConnectivity,
				Op:      string(a.model) + ".exists",
				Method:  http.MethodGet,
				URL:     a.testURL,
				Message: "probe failed",
				Err:     err,
			})
		}
		return false
	}
	a.logger.Debug("probe answered", zap.String("url", a.testURL), zap.Int("status", status))
	return ok(status)
}

func (a *adapter) options(ctx context.Context, base RequestOptions) RequestOptions {
	if isQuiet(ctx) {
		base.ShowError = false
		base.ReportError = true
	}
	return base
}

// fetch runs req through e and decodes the JSON body into a new T.
func fetch[T any](ctx context.Context, e *Executor, op string, req Request, opts RequestOptions) (*T, error) {
	resp, err := e.Execute(ctx, op, req, opts)
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeJSON(op, resp, &out); err != nil {
		return nil, e.report(err, opts)
	}
	return &out, nil
}

// decodeJSON decodes a gateway payload leniently. Trailing commas are
// tolerated and fields of the wrong JSON type are left absent; only payloads
// that are not JSON at all fail.
func decodeJSON(op string, resp *Response, v any) *Error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return &Error{Kind: KindDecode, Op: op, Method: resp.Method, URL: resp.URL, Message: "empty response body"}
	}
	err := json.Unmarshal(stripTrailingCommas(resp.Body), v)
	var typeErr *json.UnmarshalTypeError
	if err == nil || errors.As(err, &typeErr) {
		return nil
	}
	return &Error{
		Kind:    KindDecode,
		Op:      op,
		Method:  resp.Method,
		URL:     resp.URL,
		Body:    string(resp.Body),
		Message: "malformed response body",
		Err:     err,
	}
}

type quietKey struct{}

// Quiet marks ctx so that failures of gateway calls made with it go to
// diagnostics instead of the user-facing error channel. Background polling
// uses it.
func Quiet(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func isQuiet(ctx context.Context) bool {
	v, _ := ctx.Value(quietKey{}).(bool)
	return v
}
