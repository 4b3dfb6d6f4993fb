package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/transport"
	"github.com/aebaduq/arabsocial-chat/internal/wire"
)

type serverConn struct {
	ws     *websocket.Conn
	header http.Header
	frames chan wire.Envelope
	closed chan struct{}
}

type fakeServer struct {
	*httptest.Server
	conns    chan *serverConn
	attempts atomic.Int32
	reject   atomic.Int32 // HTTP status to refuse the upgrade with
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{conns: make(chan *serverConn, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.attempts.Add(1)
		if code := fs.reject.Load(); code != 0 {
			http.Error(w, "rejected", int(code))
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{
			ws:     ws,
			header: r.Header.Clone(),
			frames: make(chan wire.Envelope, 16),
			closed: make(chan struct{}),
		}
		go func() {
			defer close(sc.closed)
			for {
				_, frame, err := ws.ReadMessage()
				if err != nil {
					return
				}
				if env, err := wire.DecodeEnvelope(frame); err == nil {
					sc.frames <- env
				}
			}
		}()
		fs.conns <- sc
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

func (fs *fakeServer) next(t *testing.T) *serverConn {
	t.Helper()
	select {
	case sc := <-fs.conns:
		return sc
	case <-time.After(2 * time.Second):
		t.Fatal("no connection reached the server")
		return nil
	}
}

func (sc *serverConn) push(t *testing.T, event string, payload any) {
	t.Helper()
	frame, err := wire.EncodeEnvelope(event, payload)
	require.NoError(t, err)
	require.NoError(t, sc.ws.WriteMessage(websocket.TextMessage, frame))
}

func testOptions() transport.Options {
	return transport.Options{
		DialRetries:   0,
		RetryInterval: 10 * time.Millisecond,
		WriteTimeout:  time.Second,
	}
}

func connect(t *testing.T, fs *fakeServer, opts transport.Options) (*transport.Conn, *serverConn) {
	t.Helper()
	c := transport.New(fs.wsURL(), opts, zap.NewNop())
	t.Cleanup(c.Disconnect)
	c.Connect(context.Background(), "tok-1")
	require.Equal(t, domain.ConnConnected, c.State())
	return c, fs.next(t)
}

func TestConn_ConnectSendsBearerToken(t *testing.T) {
	fs := newFakeServer(t)
	_, sc := connect(t, fs, testOptions())

	require.Equal(t, "Bearer tok-1", sc.header.Get("Authorization"))
}

func TestConn_ConnectSameTokenReuses(t *testing.T) {
	fs := newFakeServer(t)
	c, _ := connect(t, fs, testOptions())

	c.Connect(context.Background(), "tok-1")

	require.Equal(t, int32(1), fs.attempts.Load())
	require.Equal(t, domain.ConnConnected, c.State())
}

func TestConn_ConnectNewTokenClosesOld(t *testing.T) {
	fs := newFakeServer(t)
	c, first := connect(t, fs, testOptions())

	c.Connect(context.Background(), "tok-2")

	select {
	case <-first.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("old connection not closed")
	}
	second := fs.next(t)
	require.Equal(t, "Bearer tok-2", second.header.Get("Authorization"))
	require.Equal(t, domain.ConnConnected, c.State())
}

func TestConn_EmitWhileDisconnectedIsDropped(t *testing.T) {
	c := transport.New("ws://127.0.0.1:0", testOptions(), zap.NewNop())

	ok := c.Emit(wire.EventJoinRoom, wire.RoomPayload{RoomID: "R1"})

	require.False(t, ok)
}

func TestConn_EmitDeliversEnvelope(t *testing.T) {
	fs := newFakeServer(t)
	c, sc := connect(t, fs, testOptions())

	require.True(t, c.Emit(wire.EventJoinRoom, wire.RoomPayload{RoomID: "R1"}))

	select {
	case env := <-sc.frames:
		require.Equal(t, wire.EventJoinRoom, env.Event)
		require.JSONEq(t, `{"roomId":"R1"}`, string(env.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the event")
	}
}

func TestConn_OnReceivesEventsUntilReleased(t *testing.T) {
	fs := newFakeServer(t)
	c, sc := connect(t, fs, testOptions())

	got := make(chan string, 4)
	sub := c.On(wire.EventNewMessage, func(data []byte) {
		p, err := wire.DecodeNewMessage(data)
		if err == nil {
			got <- p.ID.String()
		}
	})

	sc.push(t, wire.EventNewMessage, map[string]any{"id": 1, "roomId": "R1", "content": "hi"})
	select {
	case id := <-got:
		require.Equal(t, "1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	sub.Release()
	sub.Release()
	sc.push(t, wire.EventNewMessage, map[string]any{"id": 2, "roomId": "R1"})
	// A follow-up frame on another event proves the released one was processed.
	marker := make(chan struct{})
	c.On("marker", func([]byte) { close(marker) })
	sc.push(t, "marker", map[string]any{})
	<-marker

	require.Empty(t, got)
}

func TestConn_DuplicateHandlersBothRun(t *testing.T) {
	fs := newFakeServer(t)
	c, sc := connect(t, fs, testOptions())

	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	h := func([]byte) { calls.Add(1); wg.Done() }
	c.On(wire.EventUserTyping, h)
	c.On(wire.EventUserTyping, h)

	sc.push(t, wire.EventUserTyping, map[string]any{"userId": 2, "typing": true})
	wg.Wait()

	require.Equal(t, int32(2), calls.Load())
}

func TestConn_StateTransitions(t *testing.T) {
	fs := newFakeServer(t)
	c := transport.New(fs.wsURL(), testOptions(), zap.NewNop())

	var mu sync.Mutex
	var states []domain.ConnState
	c.OnStateChange(func(s domain.ConnState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	c.Connect(context.Background(), "tok-1")
	sc := fs.next(t)
	c.Disconnect()

	<-sc.closed
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []domain.ConnState{domain.ConnConnecting, domain.ConnConnected, domain.ConnDisconnected}, states)
}

func TestConn_RejectedHandshakeFailsSilently(t *testing.T) {
	fs := newFakeServer(t)
	fs.reject.Store(http.StatusUnauthorized)

	core, logs := observer.New(zapcore.WarnLevel)
	opts := testOptions()
	opts.DialRetries = 5
	c := transport.New(fs.wsURL(), opts, zap.New(core))

	c.Connect(context.Background(), "bad")

	require.Equal(t, domain.ConnDisconnected, c.State())
	require.Equal(t, int32(1), fs.attempts.Load(), "auth failures are not retried")
	require.Equal(t, 1, logs.FilterMessage("connect failed").Len())
}

func TestConn_DialRetriesTransientFailures(t *testing.T) {
	fs := newFakeServer(t)
	fs.reject.Store(http.StatusServiceUnavailable)

	opts := testOptions()
	opts.DialRetries = 2
	c := transport.New(fs.wsURL(), opts, zap.NewNop())

	c.Connect(context.Background(), "tok-1")

	require.Equal(t, domain.ConnDisconnected, c.State())
	require.Equal(t, int32(3), fs.attempts.Load())
}

func TestConn_ServerDropWithoutReconnect(t *testing.T) {
	fs := newFakeServer(t)
	c, sc := connect(t, fs, testOptions())

	sc.ws.Close()

	require.Eventually(t, func() bool {
		return c.State() == domain.ConnDisconnected
	}, 2*time.Second, 10*time.Millisecond)
	require.False(t, c.Emit(wire.EventMarkRead, wire.RoomPayload{RoomID: "R1"}))
}

func TestConn_ServerDropReconnects(t *testing.T) {
	fs := newFakeServer(t)
	opts := testOptions()
	opts.AutoReconnect = true
	c, sc := connect(t, fs, opts)

	sc.ws.Close()

	second := fs.next(t)
	require.Equal(t, "Bearer tok-1", second.header.Get("Authorization"))
	require.Eventually(t, func() bool {
		return c.State() == domain.ConnConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConn_DisconnectIsIdempotent(t *testing.T) {
	c := transport.New("ws://127.0.0.1:0", testOptions(), zap.NewNop())

	c.Disconnect()
	c.Disconnect()

	require.Equal(t, domain.ConnDisconnected, c.State())
}
