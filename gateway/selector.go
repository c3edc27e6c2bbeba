package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds each vendor's existence probe.
const probeTimeout = 5 * time.Second

// errProbeWon stops the remaining probes once one vendor has answered.
var errProbeWon = errors.New("gateway found")

// Selector picks the adapter for whichever gateway is on the network.
type Selector struct {
	candidates []Client
	mock       Client
	deps       Dependencies
}

// NewSelector creates a selector over candidates.
func NewSelector(deps Dependencies, candidates ...Client) *Selector {
	return &Selector{
		candidates: candidates,
		deps:       deps.withDefaults(),
	}
}

// UseMock puts the selector in test mode: Select returns mock without
// probing.
func (s *Selector) UseMock(mock Client) {
	s.mock = mock
}

// Select probes every candidate concurrently and returns the first that
// reports it exists. The losing probes are canceled and have exited by the
// time Select returns. When nothing answers, a KindNoGatewayFound error naming
// every probed URL is published and returned.
func (s *Selector) Select(ctx context.Context) (Client, error) {
	if s.mock != nil {
		return s.mock, nil
	}

	release := s.deps.Activity.acquire(true)
	defer release()

	var (
		once   sync.Once
		winner Client
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.candidates {
		g.Go(func() error {
			if !c.Exists(gctx) {
				return nil
			}
			once.Do(func() { winner = c })
			return errProbeWon
		})
	}
	_ = g.Wait()

	if winner != nil {
		s.deps.Logger.Info("gateway detected",
			zap.String("model", string(winner.Model())),
			zap.String("url", winner.TestURL()),
		)
		return winner, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindCanceled, Op: "select", Err: err}
	}

	urls := make([]string, 0, len(s.candidates))
	for _, c := range s.candidates {
		urls = append(urls, c.TestURL())
	}
	err := &Error{
		Kind:    KindNoGatewayFound,
		Op:      "select",
		Message: "No T-Mobile gateway found!",
		URLs:    urls,
	}
	s.deps.Errors.Publish(err)
	return nil, err
}
