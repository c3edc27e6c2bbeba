package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tmobile-dashboard/gateway-monitor/diagnostics"
)

// Model identifies which gateway API an adapter speaks.
type Model string

const (
	// ModelUnified is the TMI v1 API served by Arcadyan and Sagemcom gateways.
	ModelUnified Model = "unified"
	// ModelLegacy is the CGI API served by Nokia FastMile gateways.
	ModelLegacy Model = "legacy"
	// ModelMock answers from canned unified API payloads.
	ModelMock Model = "mock"
	// ModelAuto probes the network and picks whichever gateway answers first.
	ModelAuto Model = "auto"
)

// ParseModel parses a configured model name. Hardware names are accepted as
// aliases for the API they speak.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "unknown":
		return ModelAuto, nil
	case "unified", "arcadyan", "arcadyan_kvd21", "kvd21", "sagemcom":
		return ModelUnified, nil
	case "legacy", "nokia":
		return ModelLegacy, nil
	case "mock", "test":
		return ModelMock, nil
	default:
		return "", fmt.Errorf("unsupported gateway model: %s", s)
	}
}

// ClientConfig contains configuration for connecting to a gateway.
type ClientConfig struct {
	// URL is the base URL of the gateway (e.g., http://192.168.12.1)
	URL string

	// Model is the gateway API (auto-detect if ModelAuto)
	Model Model

	// Timeout for HTTP requests
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// RateLimit caps requests per second across all adapters (0 disables)
	RateLimit float64
	RateBurst int

	// TestMode replaces the gateway with the mock adapter
	TestMode bool
}

// DefaultConfig returns a ClientConfig with default values.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		URL:                "http://192.168.12.1",
		Model:              ModelAuto,
		Timeout:            defaultTimeout,
		InsecureSkipVerify: true,
	}
}

// CredentialStore persists remembered gateway credentials.
type CredentialStore interface {
	SaveCredentials(username, password string) error
}

// Dependencies are the process-wide collaborators shared by every adapter.
// Nil fields fall back to no-op implementations.
type Dependencies struct {
	Errors      *ErrorChannel
	Diagnostics diagnostics.Sink
	Activity    *Activity
	Credentials CredentialStore
	Logger      *zap.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Diagnostics == nil {
		d.Diagnostics = diagnostics.Nop{}
	}
	if d.Activity == nil {
		d.Activity = &Activity{}
	}
	return d
}

// Client is the vendor-neutral gateway API. Every operation returns a typed
// *Error on failure; failures are additionally surfaced on the error channel
// or to diagnostics depending on the operation.
type Client interface {
	// Login authenticates and, if remember is set, persists the credentials.
	Login(ctx context.Context, username, password string, remember bool) error

	// Logout forgets the session. Later authenticated calls fail with
	// KindAuthentication until the next Login.
	Logout(ctx context.Context) error

	// MainData reads the gateway summary. With unauthed set, failures are
	// only logged.
	MainData(ctx context.Context, unauthed bool) (*MainData, error)

	WifiData(ctx context.Context) (*WifiConfig, error)
	DeviceData(ctx context.Context) (*ClientDeviceData, error)
	CellData(ctx context.Context) (*CellDataRoot, error)
	SimData(ctx context.Context) (*SimDataRoot, error)

	SetWifiData(ctx context.Context, cfg *WifiConfig) error
	SetLogin(ctx context.Context, username, password string) error
	Reboot(ctx context.Context) error

	// Exists reports whether this kind of gateway answers at its test URL.
	Exists(ctx context.Context) bool

	// WaitForLive polls until check succeeds or the attempts run out. A nil
	// check probes the test URL.
	WaitForLive(ctx context.Context, check LiveCheck) bool

	Model() Model
	TestURL() string
	Session() *Session

	// Close releases any resources held by the client.
	Close() error
}

// NewClient creates a gateway client based on the configuration. With
// ModelAuto the unified and legacy adapters are probed in parallel.
func NewClient(ctx context.Context, cfg ClientConfig, deps Dependencies) (Client, error) {
	deps = deps.withDefaults()
	pool := NewTransportPool(cfg)

	if cfg.TestMode {
		return NewMockClient(cfg, pool, deps), nil
	}

	switch cfg.Model {
	case ModelUnified:
		return NewUnifiedClient(cfg, pool, deps), nil
	case ModelLegacy:
		return NewLegacyClient(cfg, pool, deps), nil
	case ModelMock:
		return NewMockClient(cfg, pool, deps), nil
	case ModelAuto, "":
		selector := NewSelector(deps,
			NewUnifiedClient(cfg, pool, deps),
			NewLegacyClient(cfg, pool, deps),
		)
		return selector.Select(ctx)
	default:
		return nil, fmt.Errorf("unsupported gateway model: %s", cfg.Model)
	}
}
