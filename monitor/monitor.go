// Package monitor polls a gateway in the background and keeps the latest
// state for the metrics collector, the API and the MQTT publisher.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
)

const (
	defaultPollInterval = 5 * time.Second
	loginBackoff        = time.Minute
)

// CredentialSource supplies the login used when the session is not
// authenticated.
type CredentialSource interface {
	Credentials() (username, password string, ok bool)
}

// StaticCredentials is a CredentialSource for configured credentials.
type StaticCredentials struct {
	Username string
	Password string
}

func (s StaticCredentials) Credentials() (string, string, bool) {
	return s.Username, s.Password, s.Password != ""
}

// Monitor refreshes a Store from a gateway client at a fixed cadence.
type Monitor struct {
	client   gateway.Client
	store    *Store
	creds    []CredentialSource
	interval time.Duration
	logger   *zap.Logger

	// failedLogin throttles background logins so a wrong password does not
	// lock the admin account.
	mu          sync.Mutex
	failedLogin time.Time
	now         func() time.Time
}

// New creates a monitor. Credential sources are tried in order when a login
// is needed.
func New(client gateway.Client, store *Store, interval time.Duration, logger *zap.Logger, creds ...CredentialSource) *Monitor {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		client:   client,
		store:    store,
		creds:    creds,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Store returns the monitor's snapshot store.
func (m *Monitor) Store() *Store {
	return m.store
}

// Run refreshes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
			m.logger.Debug("gateway poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh reads the gateway once and records the result. Without an
// authenticated session only the unauthenticated summary is read.
func (m *Monitor) Refresh(ctx context.Context) error {
	ctx = gateway.Quiet(ctx)
	start := time.Now()

	m.ensureSession(ctx)
	authed := m.client.Session().State() == gateway.SessionAuthenticated

	var state gateway.State
	var g errgroup.Group
	g.Go(func() (err error) {
		state.Main, err = m.client.MainData(ctx, !authed)
		return err
	})
	if authed {
		g.Go(func() (err error) {
			state.Cell, err = m.client.CellData(ctx)
			return err
		})
		g.Go(func() (err error) {
			state.Clients, err = m.client.DeviceData(ctx)
			return err
		})
		g.Go(func() (err error) {
			state.Sim, err = m.client.SimData(ctx)
			return err
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.store.Update(m.client.Model(), m.client.Session().State(), &state, time.Since(start), err)
	return err
}

func (m *Monitor) ensureSession(ctx context.Context) {
	switch m.client.Session().State() {
	case gateway.SessionAnonymous, gateway.SessionExpired:
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.failedLogin.IsZero() && m.now().Sub(m.failedLogin) < loginBackoff {
		return
	}
	for _, src := range m.creds {
		username, password, ok := src.Credentials()
		if !ok {
			continue
		}
		if err := m.client.Login(ctx, username, password, false); err != nil {
			m.logger.Warn("background login failed", zap.Error(err))
			m.failedLogin = m.now()
			continue
		}
		m.failedLogin = time.Time{}
		return
	}
}
