// Package api serves the gateway monitor's JSON API and live websocket feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
	"github.com/tmobile-dashboard/gateway-monitor/monitor"
	"github.com/tmobile-dashboard/gateway-monitor/readings"
)

// ReadingStore persists saved readings.
type ReadingStore interface {
	Insert(r *readings.Reading) error
	Get(id uint64) (*readings.Reading, error)
	All() ([]*readings.Reading, error)
	Delete(id uint64) error
	Subscribe(fn func([]*readings.Reading)) func()
}

// Refresher triggers an immediate poll.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Forgetter clears remembered credentials.
type Forgetter interface {
	Forget() error
}

// ServerOption configures the API server.
type ServerOption func(*Server)

// WithReadings enables the saved readings endpoints.
func WithReadings(store ReadingStore) ServerOption {
	return func(s *Server) {
		s.readings = store
	}
}

// WithRefresher makes state-changing endpoints poll right after they succeed.
func WithRefresher(r Refresher) ServerOption {
	return func(s *Server) {
		s.refresher = r
	}
}

// WithErrors forwards user-visible gateway errors to websocket clients.
func WithErrors(errs *gateway.ErrorChannel) ServerOption {
	return func(s *Server) {
		s.errs = errs
	}
}

// WithRemembered enables forgetting stored credentials.
func WithRemembered(f Forgetter) ServerOption {
	return func(s *Server) {
		s.remembered = f
	}
}

// WithActivity exposes the gateway's blocking and loading flags so clients
// can disable input while an operation is in flight.
func WithActivity(a *gateway.Activity) ServerOption {
	return func(s *Server) {
		s.activity = a
	}
}

// WithAllowedOrigins sets allowed websocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithHandler mounts an extra handler, e.g. the metrics endpoint.
func WithHandler(pattern string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.extra = append(s.extra, route{pattern: pattern, handler: h})
	}
}

type route struct {
	pattern string
	handler http.Handler
}

// Server is the HTTP server for the API.
type Server struct {
	client         gateway.Client
	store          *monitor.Store
	readings       ReadingStore
	refresher      Refresher
	errs           *gateway.ErrorChannel
	remembered     Forgetter
	activity       *gateway.Activity
	allowedOrigins []string
	extra          []route

	hub    *Hub
	logger *zap.Logger
	mux    *http.ServeMux
	now    func() time.Time
	wg     sync.WaitGroup
	unsubs []func()
}

// NewServer creates the API server and starts its websocket hub.
func NewServer(client gateway.Client, store *monitor.Store, logger *zap.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		client: client,
		store:  store,
		logger: logger.With(zap.String("component", "api")),
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = NewHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()

	s.unsubs = append(s.unsubs, store.Subscribe(func(snap monitor.Snapshot) {
		s.hub.Broadcast(Event{Type: "state", Data: s.viewState(snap)})
	}))
	if s.errs != nil {
		s.unsubs = append(s.unsubs, s.errs.Subscribe(func(err error) {
			s.hub.Broadcast(Event{Type: "error", Data: newErrorView(err)})
		}))
	}
	if s.readings != nil {
		s.unsubs = append(s.unsubs, s.readings.Subscribe(func(all []*readings.Reading) {
			s.hub.Broadcast(Event{Type: "readings", Data: all})
		}))
	}

	s.routes()
	return s
}

// Stop shuts down the websocket hub and waits for it to exit.
func (s *Server) Stop() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.hub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/activity", s.handleActivity)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/wifi", s.handleGetWifi)
	s.mux.HandleFunc("PUT /api/wifi", s.handleSetWifi)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)
	s.mux.HandleFunc("DELETE /api/login/remembered", s.handleForget)
	s.mux.HandleFunc("POST /api/reboot", s.handleReboot)
	s.mux.HandleFunc("POST /api/credentials", s.handleSetLogin)
	s.mux.HandleFunc("GET /api/cellmapper", s.handleCellMapper)

	s.mux.HandleFunc("GET /api/readings", s.handleListReadings)
	s.mux.HandleFunc("POST /api/readings", s.handleCreateReading)
	s.mux.HandleFunc("GET /api/readings/{id}", s.handleGetReading)
	s.mux.HandleFunc("DELETE /api/readings/{id}", s.handleDeleteReading)

	s.mux.HandleFunc("GET /ws", s.handleWS)

	for _, r := range s.extra {
		s.mux.Handle(r.pattern, r.handler)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, httpStatus(err), newErrorView(err))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// httpStatus maps a gateway failure onto the response status.
func httpStatus(err error) int {
	if errors.Is(err, errors.ErrUnsupported) {
		return http.StatusNotImplemented
	}
	if errors.Is(err, readings.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, readings.ErrInvalid) {
		return http.StatusBadRequest
	}
	switch gateway.KindOf(err) {
	case gateway.KindAuthentication:
		return http.StatusUnauthorized
	case gateway.KindTooManyAttempts:
		return http.StatusTooManyRequests
	case gateway.KindTimeout:
		return http.StatusGatewayTimeout
	case gateway.KindConnectivity, gateway.KindNoGatewayFound, gateway.KindHTTPStatus, gateway.KindDecode:
		return http.StatusBadGateway
	case gateway.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorView struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind,omitempty"`
	Status int      `json:"status,omitempty"`
	URLs   []string `json:"urls,omitempty"`
}

func newErrorView(err error) errorView {
	v := errorView{Error: err.Error()}
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		v.Kind = gerr.Kind.String()
		v.Status = gerr.StatusCode
		v.URLs = gerr.URLs
		if gerr.Message != "" {
			v.Error = gerr.Message
		}
	}
	return v
}

type stateView struct {
	Model               string         `json:"model"`
	Session             string         `json:"session"`
	Online              bool           `json:"online"`
	Updated             *time.Time     `json:"updated,omitempty"`
	DurationMS          int64          `json:"duration_ms"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastError           *errorView     `json:"last_error,omitempty"`
	Activity            *activityView  `json:"activity,omitempty"`
	State               *gateway.State `json:"state,omitempty"`
}

type activityView struct {
	Blocking bool `json:"blocking"`
	Loading  bool `json:"loading"`
}

func (s *Server) currentActivity() activityView {
	if s.activity == nil {
		return activityView{}
	}
	return activityView{
		Blocking: s.activity.Blocking.Active(),
		Loading:  s.activity.Loading.Active(),
	}
}

func (s *Server) viewState(snap monitor.Snapshot) stateView {
	v := newStateView(snap)
	if s.activity != nil {
		a := s.currentActivity()
		v.Activity = &a
	}
	return v
}

func newStateView(snap monitor.Snapshot) stateView {
	v := stateView{
		Model:               string(snap.Model),
		Session:             snap.Session.String(),
		Online:              !snap.IsOffline(),
		DurationMS:          snap.LastDuration.Milliseconds(),
		ConsecutiveFailures: snap.ConsecutiveFailures,
	}
	if !snap.LastUpdated.IsZero() {
		updated := snap.LastUpdated
		v.Updated = &updated
	}
	if snap.LastError != nil {
		ev := newErrorView(snap.LastError)
		v.LastError = &ev
	}
	if snap.HasState {
		state := snap.State
		v.State = &state
	}
	return v
}
