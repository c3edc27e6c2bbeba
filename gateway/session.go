package gateway

import (
	"sync"
	"time"
)

// SessionState is the authentication state of a gateway session.
type SessionState int

const (
	SessionAnonymous SessionState = iota
	SessionAuthenticating
	SessionAuthenticated
	SessionExpired
)

func (s SessionState) String() string {
	switch s {
	case SessionAuthenticating:
		return "authenticating"
	case SessionAuthenticated:
		return "authenticated"
	case SessionExpired:
		return "expired"
	default:
		return "anonymous"
	}
}

// Credentials are the gateway admin login.
type Credentials struct {
	Username string
	Password string

	// Remember asks for the credentials to be persisted after a successful
	// login.
	Remember bool
}

// Session holds the authentication material for one adapter: a bearer token
// for the unified API or a cookie for the legacy API.
type Session struct {
	mu       sync.RWMutex
	state    SessionState
	prev     SessionState
	token    string
	cookie   string
	expiry   time.Time
	creds    Credentials
	hasCreds bool
	now      func() time.Time

	// gen counts successful logins.
	gen uint64
}

// NewSession returns an anonymous session.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// State returns the current state. An authenticated session whose expiry has
// passed reports SessionExpired.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == SessionAuthenticated && !s.expiry.IsZero() && s.now().After(s.expiry) {
		return SessionExpired
	}
	return s.state
}

// Token returns the bearer token, or "" when there is none.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Cookie returns the session cookie header value, or "".
func (s *Session) Cookie() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cookie
}

// Expiry returns when the token expires. The zero time means unknown.
func (s *Session) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

// Credentials returns the credentials of the last successful login.
func (s *Session) Credentials() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, s.hasCreds
}

func (s *Session) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prev = s.state
	s.state = SessionAuthenticating
}

// fail restores the state from before the login attempt.
func (s *Session) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionAuthenticating {
		s.state = s.prev
	}
}

func (s *Session) authenticate(creds Credentials, token, cookie string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionAuthenticated
	s.token = token
	s.cookie = cookie
	s.expiry = expiry
	s.creds = creds
	s.hasCreds = true
	s.gen++
}

func (s *Session) updateCredentials(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCreds {
		return
	}
	s.creds.Username = username
	s.creds.Password = password
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionAnonymous
	s.prev = SessionAnonymous
	s.token = ""
	s.cookie = ""
	s.expiry = time.Time{}
	s.creds = Credentials{}
	s.hasCreds = false
}
