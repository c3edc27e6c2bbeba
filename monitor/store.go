package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
)

// Snapshot is the latest gateway state available to consumers. The data it
// points to is replaced, never mutated, on each refresh.
type Snapshot struct {
	Model               gateway.Model
	Session             gateway.SessionState
	State               gateway.State
	HasState            bool
	LastUpdated         time.Time
	LastDuration        time.Duration
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the gateway has been unreachable for multiple
// polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot and notifies
// subscribers after each one.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	subs     map[uint64]func(Snapshot)
	nextID   uint64
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		subs: make(map[uint64]func(Snapshot)),
		now:  time.Now,
	}
}

// Update records the outcome of one refresh. When err is non-nil the previous
// state is kept but the error is recorded for visibility.
func (s *Store) Update(model gateway.Model, session gateway.SessionState, state *gateway.State, took time.Duration, err error) {
	s.mu.Lock()
	s.snapshot.Model = model
	s.snapshot.Session = session
	s.snapshot.LastUpdated = s.now()
	s.snapshot.LastDuration = took
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
	} else {
		if state != nil {
			s.snapshot.State = *state
			s.snapshot.HasState = true
		}
		s.snapshot.LastError = nil
		s.snapshot.ConsecutiveFailures = 0
	}
	snap := s.copyLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

// Subscribe registers fn to be called after every update. fn runs on the
// polling goroutine and must not block. Returns an unsubscribe function.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
