package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const unifiedBasePath = "TMI/v1/"

// Unified API endpoints, relative to unifiedBasePath.
const (
	unifiedAuth        = "auth/login"
	unifiedGatewayInfo = "gateway/?get=all"
	unifiedGetWifi     = "network/configuration/v2?get=ap"
	unifiedSetWifi     = "network/configuration/v2?set=ap"
	unifiedClients     = "network/telemetry/?get=clients"
	unifiedCell        = "network/telemetry/?get=cell"
	unifiedSim         = "network/telemetry/?get=sim"
	unifiedReset       = "auth/admin/reset"
	unifiedReboot      = "gateway/reset?set=reboot"
)

const defaultTooManyAttempts = "Too many attempts."

// UnifiedClient implements Client for gateways serving the TMI v1 API
// (Arcadyan KVD21, Sagemcom Fast 5688W and newer).
type UnifiedClient struct {
	*adapter
}

type usernamePassword struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type setLoginAction struct {
	UsernameNew string `json:"usernameNew"`
	PasswordNew string `json:"passwordNew"`
}

// NewUnifiedClient creates a client for the unified API.
func NewUnifiedClient(cfg ClientConfig, pool *TransportPool, deps Dependencies) *UnifiedClient {
	session := NewSession()
	return newUnifiedClient(ModelUnified, cfg, pool, session, pool.Bearer(session), pool.Plain, deps)
}

// NewMockClient creates a unified client whose transport answers from canned
// payloads instead of a real gateway.
func NewMockClient(cfg ClientConfig, pool *TransportPool, deps Dependencies) *UnifiedClient {
	mock := pool.Mock()
	return newUnifiedClient(ModelMock, cfg, pool, NewSession(), mock, mock, deps)
}

func newUnifiedClient(model Model, cfg ClientConfig, pool *TransportPool, session *Session, authed, plain *http.Client, deps Dependencies) *UnifiedClient {
	c := &UnifiedClient{
		adapter: newAdapter(model, strings.TrimRight(cfg.URL, "/")+"/"+unifiedBasePath, unifiedGatewayInfo, pool, session, authed, plain, deps),
	}
	c.refreshOn = func(status int) bool { return status == http.StatusUnauthorized }
	c.refreshLimit = 1
	c.relogin = func(ctx context.Context, creds Credentials) error {
		return c.login(ctx, creds, RequestOptions{}, false)
	}
	return c
}

func (c *UnifiedClient) Login(ctx context.Context, username, password string, remember bool) error {
	release := c.deps.Activity.acquire(true)
	defer release()

	creds := Credentials{Username: username, Password: password, Remember: remember}
	return c.login(ctx, creds, c.options(ctx, DefaultRequestOptions()), remember)
}

// login authenticates with creds. persist saves them to the credential store
// on success; refreshes pass false.
func (c *UnifiedClient) login(ctx context.Context, creds Credentials, opts RequestOptions, persist bool) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.session.begin()
	opts.IsLogin = true

	req, err := jsonRequest(http.MethodPost, c.url(unifiedAuth), usernamePassword{
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		c.session.fail()
		return err
	}

	result, err := fetch[LoginResultData](ctx, c.plainExec, "unified.login", req, opts)
	if err != nil {
		c.session.fail()
		return err
	}

	var token string
	var expiry time.Time
	if result.Auth != nil {
		token = result.Auth.Token.Or("")
		if exp, ok := result.Auth.Expiration.Get(); ok && exp > 0 {
			expiry = time.Unix(exp, 0)
		}
	}
	if token == "" {
		c.session.fail()
		msg := defaultTooManyAttempts
		if result.Result != nil {
			if m := result.Result.Message.Or(""); m != "" {
				msg = m
			}
		}
		return c.plainExec.report(&Error{
			Kind:    KindTooManyAttempts,
			Op:      "unified.login",
			Method:  req.Method,
			URL:     req.URL,
			Message: msg,
		}, opts)
	}

	c.session.authenticate(creds, token, "", expiry)
	c.logger.Info("logged in", zap.String("username", creds.Username), zap.Time("expires", expiry))

	if persist && c.deps.Credentials != nil {
		if err := c.deps.Credentials.SaveCredentials(creds.Username, creds.Password); err != nil {
			c.logger.Warn("failed to remember credentials", zap.Error(err))
		}
	}
	return nil
}

func (c *UnifiedClient) MainData(ctx context.Context, unauthed bool) (*MainData, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	exec := c.exec
	opts := c.options(ctx, DefaultRequestOptions())
	if unauthed {
		exec = c.plainExec
		opts.ShowError = false
		opts.ReportError = false
	}
	return fetch[MainData](ctx, exec, "unified.main", getRequest(c.url(unifiedGatewayInfo)), opts)
}

func (c *UnifiedClient) WifiData(ctx context.Context) (*WifiConfig, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	opts := c.options(ctx, DefaultRequestOptions())
	opts.RetryForLive = true
	return fetch[WifiConfig](ctx, c.exec, "unified.wifi", getRequest(c.url(unifiedGetWifi)), opts)
}

func (c *UnifiedClient) DeviceData(ctx context.Context) (*ClientDeviceData, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	return fetch[ClientDeviceData](ctx, c.exec, "unified.clients", getRequest(c.url(unifiedClients)), c.options(ctx, DefaultRequestOptions()))
}

func (c *UnifiedClient) CellData(ctx context.Context) (*CellDataRoot, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	return fetch[CellDataRoot](ctx, c.exec, "unified.cell", getRequest(c.url(unifiedCell)), c.options(ctx, DefaultRequestOptions()))
}

func (c *UnifiedClient) SimData(ctx context.Context) (*SimDataRoot, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	return fetch[SimDataRoot](ctx, c.exec, "unified.sim", getRequest(c.url(unifiedSim)), c.options(ctx, DefaultRequestOptions()))
}

func (c *UnifiedClient) SetWifiData(ctx context.Context, cfg *WifiConfig) error {
	release := c.deps.Activity.acquire(true)
	defer release()

	req, err := jsonRequest(http.MethodPost, c.url(unifiedSetWifi), cfg)
	if err != nil {
		return err
	}
	_, err = c.exec.Execute(ctx, "unified.set_wifi", req, c.options(ctx, DefaultRequestOptions()))
	return err
}

func (c *UnifiedClient) SetLogin(ctx context.Context, username, password string) error {
	release := c.deps.Activity.acquire(true)
	defer release()

	req, err := jsonRequest(http.MethodPost, c.url(unifiedReset), setLoginAction{
		UsernameNew: username,
		PasswordNew: password,
	})
	if err != nil {
		return err
	}
	if _, err := c.exec.Execute(ctx, "unified.set_login", req, c.options(ctx, DefaultRequestOptions())); err != nil {
		return err
	}

	// Keep refreshes working with the new login.
	c.session.updateCredentials(username, password)
	if creds, ok := c.session.Credentials(); ok && creds.Remember && c.deps.Credentials != nil {
		if err := c.deps.Credentials.SaveCredentials(username, password); err != nil {
			c.logger.Warn("failed to remember credentials", zap.Error(err))
		}
	}
	return nil
}

func (c *UnifiedClient) Reboot(ctx context.Context) error {
	release := c.deps.Activity.acquire(true)
	defer release()

	_, err := c.exec.Execute(ctx, "unified.reboot", postRequest(c.url(unifiedReboot)), c.options(ctx, DefaultRequestOptions()))
	return err
}

// Exists reports true for any answer except 403 and 404; the unified API
// serves its gateway info without authentication.
func (c *UnifiedClient) Exists(ctx context.Context) bool {
	return c.exists(ctx, func(status int) bool {
		return status != http.StatusForbidden && status != http.StatusNotFound
	})
}
