package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
)

// fakeClient wraps the canned mock gateway and records what the monitor asks
// of it.
type fakeClient struct {
	gateway.Client

	mu       sync.Mutex
	logins   []string
	unauthed []bool
	cellRead int
	loginErr error
	mainErr  error
}

func newFakeClient() *fakeClient {
	cfg := gateway.ClientConfig{URL: "http://192.168.12.1", Timeout: time.Second}
	return &fakeClient{Client: gateway.NewMockClient(cfg, gateway.NewTransportPool(cfg), gateway.Dependencies{})}
}

func (f *fakeClient) Login(ctx context.Context, username, password string, remember bool) error {
	f.mu.Lock()
	f.logins = append(f.logins, username)
	err := f.loginErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Client.Login(ctx, username, password, remember)
}

func (f *fakeClient) MainData(ctx context.Context, unauthed bool) (*gateway.MainData, error) {
	f.mu.Lock()
	f.unauthed = append(f.unauthed, unauthed)
	err := f.mainErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Client.MainData(ctx, unauthed)
}

func (f *fakeClient) CellData(ctx context.Context) (*gateway.CellDataRoot, error) {
	f.mu.Lock()
	f.cellRead++
	f.mu.Unlock()
	return f.Client.CellData(ctx)
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeClient) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logins)
}

func TestRefreshAnonymousReadsSummaryOnly(t *testing.T) {
	client := newFakeClient()
	m := New(client, NewStore(), time.Second, nil)

	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, []bool{true}, client.unauthed)
	assert.Zero(t, client.cellRead)
	assert.Empty(t, client.logins)

	snap := m.Store().Snapshot()
	assert.True(t, snap.HasState)
	assert.Equal(t, gateway.ModelMock, snap.Model)
	assert.Equal(t, gateway.SessionAnonymous, snap.Session)
	require.NotNil(t, snap.State.Main)
	assert.Nil(t, snap.State.Cell)
	assert.Nil(t, snap.State.Clients)
	assert.Nil(t, snap.State.Sim)
}

func TestRefreshLogsInFromFirstUsableSource(t *testing.T) {
	client := newFakeClient()
	m := New(client, NewStore(), time.Second, nil,
		StaticCredentials{Username: "nobody"},
		StaticCredentials{Username: "admin", Password: "secret"},
	)
	ctx := context.Background()

	require.NoError(t, m.Refresh(ctx))
	require.NoError(t, m.Refresh(ctx))

	assert.Equal(t, []string{"admin"}, client.logins)
	assert.Equal(t, []bool{false, false}, client.unauthed)
	assert.Equal(t, 2, client.cellRead)

	snap := m.Store().Snapshot()
	assert.Equal(t, gateway.SessionAuthenticated, snap.Session)
	assert.NotNil(t, snap.State.Cell)
	assert.NotNil(t, snap.State.Clients)
	assert.NotNil(t, snap.State.Sim)
}

func TestRefreshBacksOffAfterFailedLogin(t *testing.T) {
	client := newFakeClient()
	client.loginErr = &gateway.Error{Kind: gateway.KindAuthentication, Op: "unified.login", Err: errors.New("bad password")}
	m := New(client, NewStore(), time.Second, nil, StaticCredentials{Username: "admin", Password: "wrong"})

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	// The anonymous summary is still read after a failed login.
	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, 1, client.loginCount())
	assert.Equal(t, gateway.SessionAnonymous, m.Store().Snapshot().Session)

	now = now.Add(30 * time.Second)
	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, 1, client.loginCount())

	client.set(func(f *fakeClient) { f.loginErr = nil })
	now = now.Add(time.Minute)
	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, 2, client.loginCount())
	assert.Equal(t, gateway.SessionAuthenticated, m.Store().Snapshot().Session)
}

func TestRefreshFailureKeepsPreviousState(t *testing.T) {
	client := newFakeClient()
	m := New(client, NewStore(), time.Second, nil)
	ctx := context.Background()

	require.NoError(t, m.Refresh(ctx))
	before := m.Store().Snapshot().State.Main

	boom := &gateway.Error{Kind: gateway.KindConnectivity, Op: "unified.main", Err: errors.New("no route")}
	client.set(func(f *fakeClient) { f.mainErr = boom })
	err := m.Refresh(ctx)
	require.Error(t, err)

	snap := m.Store().Snapshot()
	assert.True(t, snap.HasState)
	assert.Same(t, before, snap.State.Main)
	assert.ErrorIs(t, snap.LastError, boom)
	assert.Equal(t, 1, snap.ConsecutiveFailures)
	assert.False(t, snap.IsOffline())
}

func TestRefreshCanceledDoesNotRecord(t *testing.T) {
	client := newFakeClient()
	store := NewStore()
	m := New(client, store, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Refresh(ctx), context.Canceled)
	assert.True(t, store.Snapshot().LastUpdated.IsZero())
}

func TestRunStopsOnCancel(t *testing.T) {
	client := newFakeClient()
	store := NewStore()
	m := New(client, store, 10*time.Millisecond, nil)

	updates := make(chan Snapshot, 8)
	unsubscribe := store.Subscribe(func(s Snapshot) {
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case snap := <-updates:
			assert.True(t, snap.HasState)
		case <-time.After(5 * time.Second):
			t.Fatal("no update from poll loop")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
