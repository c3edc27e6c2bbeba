package gateway

import (
	"sync"

	"go.uber.org/zap"
)

// ErrorHandler receives errors that should be shown to the user.
type ErrorHandler func(error)

// ErrorChannel fans user-visible errors out to subscribers. Handlers are
// called synchronously and must not block; a panicking handler is recovered.
type ErrorChannel struct {
	mu       sync.RWMutex
	handlers map[uint64]ErrorHandler
	nextID   uint64
	last     error
	logger   *zap.Logger
}

// NewErrorChannel creates an empty error channel.
func NewErrorChannel(logger *zap.Logger) *ErrorChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorChannel{
		handlers: make(map[uint64]ErrorHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (c *ErrorChannel) Subscribe(handler ErrorHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Publish delivers err to every subscriber. A nil channel drops the error.
func (c *ErrorChannel) Publish(err error) {
	if c == nil || err == nil {
		return
	}

	c.mu.Lock()
	c.last = err
	handlers := make([]ErrorHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	c.logger.Warn("gateway error", zap.Error(err), zap.Stringer("kind", KindOf(err)))
	for _, h := range handlers {
		c.dispatch(h, err)
	}
}

func (c *ErrorChannel) dispatch(h ErrorHandler, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("error handler panicked", zap.Any("panic", r))
		}
	}()
	h(err)
}

// Last returns the most recently published error, or nil.
func (c *ErrorChannel) Last() error {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}
