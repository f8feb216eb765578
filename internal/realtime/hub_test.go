package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/dependencies/mocks"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/testutil"
)

type recordingListener struct {
	mu          sync.Mutex
	connects    []model.UserID
	disconnects []model.UserID
}

func (l *recordingListener) OnConnect(_ context.Context, userID model.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects = append(l.connects, userID)
}

func (l *recordingListener) OnDisconnect(_ context.Context, userID model.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects = append(l.disconnects, userID)
}

func (l *recordingListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.connects), len(l.disconnects)
}

func startHub(t *testing.T, listener Listener) *Hub {
	t.Helper()
	hub := NewHub(listener, clock.New(), testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case msg := <-client.Send():
		return msg
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
		return nil
	}
}

func TestHub_RegisterAndDeliver(t *testing.T) {
	hub := startHub(t, nil)

	client := NewClient("u1")
	require.NoError(t, hub.Register(client))

	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, hub.IsConnected("u1"))

	require.NoError(t, hub.Deliver(context.Background(), "u1", []byte("hello")))
	assert.Equal(t, "hello", string(receive(t, client)))
}

func TestHub_DeliverToEveryChannelOfUser(t *testing.T) {
	hub := startHub(t, nil)

	tab1 := NewClient("u1")
	tab2 := NewClient("u1")
	other := NewClient("u2")
	for _, c := range []*Client{tab1, tab2, other} {
		require.NoError(t, hub.Register(c))
	}

	require.NoError(t, hub.Deliver(context.Background(), "u1", []byte("x")))

	assert.Equal(t, "x", string(receive(t, tab1)))
	assert.Equal(t, "x", string(receive(t, tab2)))
	assert.Empty(t, other.Send())
}

func TestHub_DeliverToUnknownUser(t *testing.T) {
	hub := startHub(t, nil)
	err := hub.Deliver(context.Background(), "nobody", []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestHub_DeliverFullBufferDrops(t *testing.T) {
	hub := startHub(t, nil)

	client := NewClient("u1")
	require.NoError(t, hub.Register(client))

	for range sendBufferSize {
		require.NoError(t, hub.Deliver(context.Background(), "u1", []byte("x")))
	}
	err := hub.Deliver(context.Background(), "u1", []byte("overflow"))
	assert.ErrorIs(t, err, ErrBufferFull)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t, nil)

	client := NewClient("u1")
	require.NoError(t, hub.Register(client))
	hub.Unregister(client)

	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-client.Send()
	assert.False(t, open)

	// Second unregister is harmless
	hub.Unregister(client)
}

func TestHub_ListenerSeesFirstAndLastChannel(t *testing.T) {
	listener := &recordingListener{}
	hub := startHub(t, listener)

	tab1 := NewClient("u1")
	tab2 := NewClient("u1")

	require.NoError(t, hub.Register(tab1))
	require.NoError(t, hub.Register(tab2))
	connects, disconnects := listener.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 0, disconnects)

	hub.Unregister(tab1)
	_, disconnects = listener.counts()
	assert.Equal(t, 0, disconnects)

	hub.Unregister(tab2)
	_, disconnects = listener.counts()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, []model.UserID{"u1"}, listener.disconnects)
}

func TestHub_ListenerMayDeliver(t *testing.T) {
	hub := NewHub(nil, clock.New(), testutil.NopLogger())
	welcomed := make(chan error, 1)
	hub.SetListener(listenerFunc(func(ctx context.Context, userID model.UserID) {
		welcomed <- hub.Deliver(ctx, userID, []byte("welcome"))
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("u1")
	require.NoError(t, hub.Register(client))

	require.NoError(t, <-welcomed)
	assert.Equal(t, "welcome", string(receive(t, client)))
}

func TestHub_CloseRejectsRegistration(t *testing.T) {
	hub := NewHub(nil, clock.New(), testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("u1")
	require.NoError(t, hub.Register(client))

	hub.Close()
	_, open := <-client.Send()
	assert.False(t, open)

	assert.ErrorIs(t, hub.Register(NewClient("u2")), ErrHubClosed)
}

func TestHub_ContextCancelStopsHub(t *testing.T) {
	hub := NewHub(nil, clock.New(), testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.ErrorIs(t, hub.Register(NewClient("u1")), ErrHubClosed)
}

// listenerFunc adapts a connect callback into a Listener
type listenerFunc func(ctx context.Context, userID model.UserID)

func (f listenerFunc) OnConnect(ctx context.Context, userID model.UserID) { f(ctx, userID) }
func (f listenerFunc) OnDisconnect(context.Context, model.UserID)         {}

func TestHub_ConnectionTimedByClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clk := mocks.NewMockClock(start)
	logger, logs := testutil.BufferLogger()
	hub := NewHub(nil, clk, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	client := NewClient("u1")
	require.NoError(t, hub.Register(client))
	assert.Equal(t, start, client.ConnectedAt())

	clk.Advance(90 * time.Second)
	hub.Unregister(client)

	assert.Contains(t, logs.String(), `"connection_duration":90000000000`)
}
