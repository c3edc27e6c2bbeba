package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// wifiSettleDelay is how long the gateway needs before its web server comes
// back after a Wi-Fi change.
const wifiSettleDelay = 10 * time.Second

// legacyRefreshLimit bounds re-logins per request; the legacy firmware
// answers expired cookies with 403 or a 5xx.
const legacyRefreshLimit = 3

// LegacyClient implements Client for Nokia FastMile gateways. The legacy API
// spreads one logical read over several CGI endpoints which are fetched in
// parallel and merged into the unified model.
type LegacyClient struct {
	*adapter
	settle time.Duration
}

// NewLegacyClient creates a client for the legacy API.
func NewLegacyClient(cfg ClientConfig, pool *TransportPool, deps Dependencies) *LegacyClient {
	session := NewSession()
	c := &LegacyClient{
		adapter: newAdapter(ModelLegacy, cfg.URL, legacyDeviceStatusPath, pool, session, pool.Cookie(session), pool.Plain, deps),
		settle:  wifiSettleDelay,
	}
	c.refreshOn = func(status int) bool {
		if status == http.StatusForbidden {
			return true
		}
		// A 5xx without a session is a plain server error.
		_, hasCreds := session.Credentials()
		return status >= 500 && hasCreds
	}
	c.refreshLimit = legacyRefreshLimit
	c.relogin = func(ctx context.Context, creds Credentials) error {
		return c.login(ctx, creds, RequestOptions{}, false)
	}
	return c
}

func (c *LegacyClient) Login(ctx context.Context, username, password string, remember bool) error {
	release := c.deps.Activity.acquire(true)
	defer release()

	creds := Credentials{Username: username, Password: password, Remember: remember}
	return c.login(ctx, creds, c.options(ctx, DefaultRequestOptions()), remember)
}

func (c *LegacyClient) login(ctx context.Context, creds Credentials, opts RequestOptions, persist bool) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.session.begin()
	opts.IsLogin = true

	form := url.Values{}
	form.Set("name", creds.Username)
	form.Set("pswd", creds.Password)

	resp, err := c.plainExec.Execute(ctx, "legacy.login", formRequest(c.url(legacyLoginPath), form), opts)
	if err != nil {
		c.session.fail()
		return err
	}

	cookie := sessionCookie(resp.Header)
	c.session.authenticate(creds, "", cookie, time.Time{})
	c.logger.Info("logged in", zap.String("username", creds.Username), zap.Bool("cookie", cookie != ""))

	if persist && c.deps.Credentials != nil {
		if err := c.deps.Credentials.SaveCredentials(creds.Username, creds.Password); err != nil {
			c.logger.Warn("failed to remember credentials", zap.Error(err))
		}
	}
	return nil
}

// sessionCookie joins the name=value pairs of every Set-Cookie header.
func sessionCookie(h http.Header) string {
	cookies := (&http.Response{Header: h}).Cookies()
	pairs := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	return strings.Join(pairs, "; ")
}

func (c *LegacyClient) MainData(ctx context.Context, unauthed bool) (*MainData, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	exec := c.exec
	opts := c.options(ctx, DefaultRequestOptions())
	if unauthed {
		exec = c.plainExec
		opts.ShowError = false
		opts.ReportError = false
	}

	var (
		dev   *legacyDeviceInfoStatus
		cell  *legacyCellStatus
		radio *legacyRadioStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		dev, err = fetchPart[legacyDeviceInfoStatus](gctx, exec, "legacy.device_info", getRequest(c.url(legacyDeviceInfoStatusPath)), opts)
		return err
	})
	g.Go(func() (err error) {
		cell, err = fetchPart[legacyCellStatus](gctx, exec, "legacy.cell_status", getRequest(c.url(legacyCellStatusPath)), opts)
		return err
	})
	g.Go(func() (err error) {
		radio, err = fetchPart[legacyRadioStatus](gctx, exec, "legacy.radio_status", getRequest(c.url(legacyRadioStatusPath)), opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return legacyMainData(dev, cell, radio), nil
}

func (c *LegacyClient) WifiData(ctx context.Context) (*WifiConfig, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	listing, err := fetch[legacyWifiListing](ctx, c.exec, "legacy.wifi", getRequest(c.url(legacyWifiListingPath)), c.options(ctx, DefaultRequestOptions()))
	if err != nil {
		return nil, err
	}
	return legacyWifi(listing), nil
}

func (c *LegacyClient) DeviceData(ctx context.Context) (*ClientDeviceData, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	dev, err := fetch[legacyDeviceInfoStatus](ctx, c.exec, "legacy.clients", getRequest(c.url(legacyDeviceInfoStatusPath)), c.options(ctx, DefaultRequestOptions()))
	if err != nil {
		return nil, err
	}
	return legacyClients(dev), nil
}

func (c *LegacyClient) CellData(ctx context.Context) (*CellDataRoot, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	opts := c.options(ctx, DefaultRequestOptions())
	var (
		cell  *legacyCellStatus
		radio *legacyRadioStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		radio, err = fetchPart[legacyRadioStatus](gctx, c.exec, "legacy.radio_status", getRequest(c.url(legacyRadioStatusPath)), opts)
		return err
	})
	g.Go(func() (err error) {
		cell, err = fetchPart[legacyCellStatus](gctx, c.exec, "legacy.cell_status", getRequest(c.url(legacyCellStatusPath)), opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return legacyCellData(cell, radio), nil
}

func (c *LegacyClient) SimData(ctx context.Context) (*SimDataRoot, error) {
	release := c.deps.Activity.acquire(false)
	defer release()

	stats, err := fetch[legacyStatistics](ctx, c.exec, "legacy.sim", getRequest(c.url(legacyStatisticsPath)), c.options(ctx, DefaultRequestOptions()))
	if err != nil {
		return nil, err
	}
	return legacySimData(stats), nil
}

// fetchPart reads one endpoint of a merged read. A malformed body leaves
// that part absent, and is only reported to diagnostics, so the other
// endpoints still produce a record.
func fetchPart[T any](ctx context.Context, e *Executor, op string, req Request, opts RequestOptions) (*T, error) {
	resp, err := e.Execute(ctx, op, req, opts)
	if err != nil {
		return nil, err
	}
	var out T
	if derr := decodeJSON(op, resp, &out); derr != nil {
		opts.ShowError = false
		_ = e.report(derr, opts)
		return new(T), nil
	}
	return &out, nil
}

// SetWifiData writes the SSID list and then waits for the gateway to finish
// restarting its radios.
func (c *LegacyClient) SetWifiData(ctx context.Context, cfg *WifiConfig) error {
	release := c.deps.Activity.acquire(true)
	defer release()

	req, err := jsonRequest(http.MethodPost, c.url(legacyServiceFunctionPath), legacyWifiRequest(cfg))
	if err != nil {
		return err
	}
	if _, err := c.exec.Execute(ctx, "legacy.set_wifi", req, c.options(ctx, DefaultRequestOptions())); err != nil {
		return err
	}

	if err := c.live.sleep(ctx, c.settle); err != nil {
		return canceled("legacy.set_wifi", req, err)
	}
	listing := c.url(legacyWifiListingPath)
	live := c.WaitForLive(ctx, func(ctx context.Context) error {
		_, err := c.probe(ctx, c.authed, listing)
		return err
	})
	if !live {
		if ctx.Err() != nil {
			return canceled("legacy.set_wifi", req, ctx.Err())
		}
		return &Error{
			Kind:    KindTimeout,
			Op:      "legacy.set_wifi",
			URL:     listing,
			Message: "the gateway did not come back after the Wi-Fi change",
		}
	}
	return nil
}

// SetLogin is not offered by the legacy firmware.
func (c *LegacyClient) SetLogin(ctx context.Context, username, password string) error {
	return fmt.Errorf("legacy gateway: changing the admin login: %w", errors.ErrUnsupported)
}

func (c *LegacyClient) Reboot(ctx context.Context) error {
	release := c.deps.Activity.acquire(true)
	defer release()

	opts := c.options(ctx, DefaultRequestOptions())
	req, err := jsonRequest(http.MethodPost, c.url(legacyServiceFunctionPath), legacyServiceAction{Service: "Reboot"})
	if err != nil {
		return err
	}
	if _, err := c.exec.Execute(ctx, "legacy.reboot", req, opts); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "Reboot")
	_, err = c.exec.Execute(ctx, "legacy.reboot", formRequest(c.url(legacyLoginPath), form), opts)
	return err
}

// Exists requires a 2xx from the device status page.
func (c *LegacyClient) Exists(ctx context.Context) bool {
	return c.exists(ctx, func(status int) bool {
		return status >= 200 && status < 300
	})
}
