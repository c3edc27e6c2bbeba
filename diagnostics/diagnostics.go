// Package diagnostics collects background failures that are not shown to the
// user, together with a trail of breadcrumbs leading up to them.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink receives diagnostic reports. Implementations must never block or
// panic into the caller.
type Sink interface {
	Notify(err error)
	AddBreadcrumb(message string, attrs map[string]string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(error)                            {}
func (Nop) AddBreadcrumb(string, map[string]string) {}

// Breadcrumb is one step recorded before a failure.
type Breadcrumb struct {
	Time    time.Time
	Message string
	Attrs   map[string]string
}

func (b Breadcrumb) String() string {
	keys := make([]string, 0, len(b.Attrs))
	for k := range b.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(b.Time.Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(b.Message)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%s", k, b.Attrs[k])
	}
	return sb.String()
}

// DefaultBreadcrumbs is the ring size used when none is given.
const DefaultBreadcrumbs = 50

// LogSink writes reports to a zap logger. Each report gets an event ID and
// carries the breadcrumbs recorded since the previous report.
type LogSink struct {
	logger *zap.Logger
	max    int
	now    func() time.Time

	mu     sync.Mutex
	crumbs []Breadcrumb
	last   string
}

// NewLogSink creates a sink keeping at most max breadcrumbs.
func NewLogSink(logger *zap.Logger, max int) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if max <= 0 {
		max = DefaultBreadcrumbs
	}
	return &LogSink{
		logger: logger,
		max:    max,
		now:    time.Now,
	}
}

func (s *LogSink) AddBreadcrumb(message string, attrs map[string]string) {
	crumb := Breadcrumb{Time: s.now(), Message: message, Attrs: attrs}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.crumbs) == s.max {
		copy(s.crumbs, s.crumbs[1:])
		s.crumbs = s.crumbs[:len(s.crumbs)-1]
	}
	s.crumbs = append(s.crumbs, crumb)
}

func (s *LogSink) Notify(err error) {
	if err == nil {
		return
	}
	id := uuid.NewString()

	s.mu.Lock()
	crumbs := s.crumbs
	s.crumbs = nil
	s.last = id
	s.mu.Unlock()

	trail := make([]string, len(crumbs))
	for i, c := range crumbs {
		trail[i] = c.String()
	}
	s.logger.Error("diagnostic report",
		zap.String("event_id", id),
		zap.Error(err),
		zap.Strings("breadcrumbs", trail),
	)
}

// Breadcrumbs returns a copy of the pending breadcrumbs.
func (s *LogSink) Breadcrumbs() []Breadcrumb {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Breadcrumb, len(s.crumbs))
	copy(out, s.crumbs)
	return out
}

// LastEventID returns the ID of the most recent report, or "".
func (s *LogSink) LastEventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Multi fans out to several sinks. A panicking sink is skipped.
type Multi []Sink

func (m Multi) Notify(err error) {
	for _, s := range m {
		safely(func() { s.Notify(err) })
	}
}

func (m Multi) AddBreadcrumb(message string, attrs map[string]string) {
	for _, s := range m {
		safely(func() { s.AddBreadcrumb(message, attrs) })
	}
}

func safely(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
