package gateway

import (
	"context"
	"time"
)

const (
	livenessAttempts = 100
	livenessInterval = time.Second
)

// LiveCheck reports nil once the gateway is serving again.
type LiveCheck func(ctx context.Context) error

// liveness polls a check until it succeeds, the attempts run out or the
// context ends.
type liveness struct {
	attempts int
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	probe    LiveCheck
}

func newLiveness(probe LiveCheck) *liveness {
	return &liveness{
		attempts: livenessAttempts,
		interval: livenessInterval,
		sleep:    sleepContext,
		probe:    probe,
	}
}

func (l *liveness) wait(ctx context.Context, check LiveCheck) bool {
	if check == nil {
		check = l.probe
	}
	for i := 0; i < l.attempts; i++ {
		if ctx.Err() != nil {
			return false
		}
		if check(ctx) == nil {
			return true
		}
		if i == l.attempts-1 {
			break
		}
		if err := l.sleep(ctx, l.interval); err != nil {
			return false
		}
	}
	return false
}
