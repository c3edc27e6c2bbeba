package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeClient answers Exists after a delay. Every other Client method is
// left to the nil embedded interface.
type probeClient struct {
	Client
	model    Model
	url      string
	delay    time.Duration
	exists   bool
	activity *Activity

	blocking atomic.Bool
	finished atomic.Bool
}

func (p *probeClient) Exists(ctx context.Context) bool {
	defer p.finished.Store(true)
	if p.activity != nil {
		p.blocking.Store(p.activity.Blocking.Active())
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return p.exists
	case <-ctx.Done():
		return false
	}
}

func (p *probeClient) Model() Model    { return p.model }
func (p *probeClient) TestURL() string { return p.url }

func TestSelectorFirstAnswerWins(t *testing.T) {
	deps := newTestDeps(t)
	unified := &probeClient{model: ModelUnified, url: "http://gw/TMI/v1/gateway/?get=all", delay: 100 * time.Millisecond, exists: true, activity: deps.Activity}
	legacy := &probeClient{model: ModelLegacy, url: "http://gw/device_status_web_app.cgi?getroot", delay: 4 * time.Second, exists: true}

	start := time.Now()
	c, err := NewSelector(deps.Dependencies, unified, legacy).Select(context.Background())
	require.NoError(t, err)

	assert.Same(t, unified, c)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, legacy.finished.Load(), "losing probe still running")
	assert.True(t, unified.blocking.Load())
	assert.False(t, deps.Activity.Blocking.Active())
	assert.Empty(t, deps.published.all())
}

func TestSelectorSlowerCandidateCanWin(t *testing.T) {
	deps := newTestDeps(t)
	unified := &probeClient{model: ModelUnified, url: "u", delay: 10 * time.Millisecond}
	legacy := &probeClient{model: ModelLegacy, url: "l", delay: 50 * time.Millisecond, exists: true}

	c, err := NewSelector(deps.Dependencies, unified, legacy).Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModelLegacy, c.Model())
}

func TestSelectorNoGatewayFound(t *testing.T) {
	deps := newTestDeps(t)
	unified := &probeClient{model: ModelUnified, url: "http://gw/TMI/v1/gateway/?get=all"}
	legacy := &probeClient{model: ModelLegacy, url: "http://gw/device_status_web_app.cgi?getroot"}

	c, err := NewSelector(deps.Dependencies, unified, legacy).Select(context.Background())
	assert.Nil(t, c)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindNoGatewayFound, gerr.Kind)
	assert.Equal(t, "No T-Mobile gateway found!", gerr.Message)
	assert.Equal(t, []string{unified.url, legacy.url}, gerr.URLs)

	published := deps.published.all()
	require.Len(t, published, 1)
	assert.Equal(t, KindNoGatewayFound, KindOf(published[0]))
	assert.False(t, deps.Activity.Blocking.Active())
}

func TestSelectorCanceled(t *testing.T) {
	deps := newTestDeps(t)
	slow := &probeClient{model: ModelUnified, url: "u", delay: time.Minute, exists: true}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewSelector(deps.Dependencies, slow).Select(ctx)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.Empty(t, deps.published.all())
}

func TestSelectorUseMock(t *testing.T) {
	deps := newTestDeps(t)
	probe := &probeClient{model: ModelUnified, url: "u", exists: true}
	mock := &probeClient{model: ModelMock, url: "m"}

	s := NewSelector(deps.Dependencies, probe)
	s.UseMock(mock)

	c, err := s.Select(context.Background())
	require.NoError(t, err)
	assert.Same(t, mock, c)
	assert.False(t, probe.finished.Load())
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  ClientConfig
		want Model
	}{
		{"unified", ClientConfig{URL: "http://gw", Model: ModelUnified}, ModelUnified},
		{"legacy", ClientConfig{URL: "http://gw", Model: ModelLegacy}, ModelLegacy},
		{"mock", ClientConfig{URL: "http://gw", Model: ModelMock}, ModelMock},
		{"test mode wins", ClientConfig{URL: "http://gw", Model: ModelLegacy, TestMode: true}, ModelMock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(ctx, tt.cfg, Dependencies{})
			require.NoError(t, err)
			defer c.Close()
			assert.Equal(t, tt.want, c.Model())
		})
	}

	_, err := NewClient(ctx, ClientConfig{URL: "http://gw", Model: "zte"}, Dependencies{})
	assert.Error(t, err)
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		in   string
		want Model
	}{
		{"", ModelAuto},
		{"AUTO", ModelAuto},
		{"unknown", ModelAuto},
		{"arcadyan", ModelUnified},
		{"kvd21", ModelUnified},
		{"Sagemcom", ModelUnified},
		{" unified ", ModelUnified},
		{"nokia", ModelLegacy},
		{"legacy", ModelLegacy},
		{"test", ModelMock},
	}
	for _, tt := range tests {
		got, err := ParseModel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseModel("huawei")
	assert.Error(t, err)
}
