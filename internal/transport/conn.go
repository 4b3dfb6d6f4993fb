// Package transport owns the single live websocket the client keeps per
// authenticated session.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/wire"
)

type Options struct {
	DialRetries      uint64
	RetryInterval    time.Duration // first backoff step; zero keeps the library default
	AutoReconnect    bool
	PingInterval     time.Duration // zero disables keep-alive pings
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		DialRetries:      3,
		AutoReconnect:    true,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// socket is one established websocket and the channel that stops its loops.
type socket struct {
	ws   *websocket.Conn
	done chan struct{}
}

// Conn is the process-wide event connection. Construct one per session and
// share it by reference.
type Conn struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	logger *zap.Logger

	mu       sync.Mutex
	state    domain.ConnState
	token    string
	sock     *socket
	epoch    uint64 // bumped by every Connect/Disconnect; stale dials check it
	handlers map[string]map[uint64]Handler
	watchers map[uint64]func(domain.ConnState)
	nextID   uint64

	writeMu sync.Mutex
}

func New(url string, opts Options, logger *zap.Logger) *Conn {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Conn{
		url:  url,
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger:   logger.Named("transport"),
		handlers: make(map[string]map[uint64]Handler),
		watchers: make(map[uint64]func(domain.ConnState)),
	}
}

// State returns the current connection state.
func (c *Conn) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection for token. It is a no-op when a
// connection for the same token exists or is being set up; a different token
// gracefully closes the old connection first. Failures are reported as a
// transition back to disconnected.
func (c *Conn) Connect(ctx context.Context, token string) {
	c.mu.Lock()
	if token == c.token && c.state != domain.ConnDisconnected {
		c.mu.Unlock()
		return
	}
	old := c.detachLocked()
	c.token = token
	c.epoch++
	epoch := c.epoch
	notify := c.setStateLocked(domain.ConnConnecting)
	c.mu.Unlock()

	if old != nil {
		c.closeSocket(old)
	}
	notify()

	ws, err := c.dial(ctx, token)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return
	}
	if err != nil {
		notify = c.setStateLocked(domain.ConnDisconnected)
		c.mu.Unlock()
		c.logger.Warn("connect failed", zap.String("url", c.url), zap.Error(err))
		notify()
		return
	}
	sock := &socket{ws: ws, done: make(chan struct{})}
	c.sock = sock
	notify = c.setStateLocked(domain.ConnConnected)
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("url", c.url))
	notify()

	go c.readLoop(sock, epoch)
	if c.opts.PingInterval > 0 {
		go c.pingLoop(sock)
	}
}

// Disconnect gracefully closes the connection and forgets the token.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.epoch++
	c.token = ""
	old := c.detachLocked()
	notify := c.setStateLocked(domain.ConnDisconnected)
	c.mu.Unlock()

	if old != nil {
		c.closeSocket(old)
		c.logger.Info("disconnected")
	}
	notify()
}

// Emit sends one event. Delivery is best effort: when the connection is not
// up the event is dropped and Emit returns false.
func (c *Conn) Emit(event string, payload any) bool {
	c.mu.Lock()
	sock := c.sock
	state := c.state
	c.mu.Unlock()

	if sock == nil || state != domain.ConnConnected {
		c.logger.Debug("emit dropped, not connected", zap.String("event", event))
		return false
	}

	frame, err := wire.EncodeEnvelope(event, payload)
	if err != nil {
		c.logger.Error("emit encode failed", zap.String("event", event), zap.Error(err))
		return false
	}

	c.writeMu.Lock()
	sock.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	err = sock.ws.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("emit failed", zap.String("event", event), zap.Error(err))
		return false
	}
	return true
}

// On subscribes h to an inbound event. Handlers run on the read goroutine in
// registration order; the same function registered twice runs twice.
func (c *Conn) On(event string, h Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]Handler)
	}
	c.handlers[event][id] = h

	return NewSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
		if len(c.handlers[event]) == 0 {
			delete(c.handlers, event)
		}
	})
}

// OnStateChange registers fn for every connection state transition.
func (c *Conn) OnStateChange(fn func(domain.ConnState)) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.watchers[id] = fn
	return NewSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	})
}

// setStateLocked records the new state and returns a func that notifies
// watchers; call it after releasing c.mu.
func (c *Conn) setStateLocked(s domain.ConnState) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	fns := make([]func(domain.ConnState), 0, len(c.watchers))
	for _, id := range sortedKeys(c.watchers) {
		fns = append(fns, c.watchers[id])
	}
	return func() {
		for _, fn := range fns {
			fn(s)
		}
	}
}

// detachLocked unhooks the current socket and stops its loops.
func (c *Conn) detachLocked() *socket {
	old := c.sock
	if old == nil {
		return nil
	}
	c.sock = nil
	close(old.done)
	return old
}

func (c *Conn) closeSocket(s *socket) {
	c.writeMu.Lock()
	err := s.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.opts.WriteTimeout),
	)
	c.writeMu.Unlock()
	err = multierr.Append(err, s.ws.Close())
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("close socket", zap.Error(err))
	}
}

func (c *Conn) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	var ws *websocket.Conn
	op := func() error {
		conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
		if err != nil {
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				return backoff.Permanent(err)
			}
			return err
		}
		ws = conn
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	if c.opts.RetryInterval > 0 {
		eb.InitialInterval = c.opts.RetryInterval
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, c.opts.DialRetries), ctx)
	err := backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		c.logger.Debug("dial failed, retrying", zap.Error(err), zap.Duration("backoff", next))
	})
	return ws, err
}

func (c *Conn) readLoop(s *socket, epoch uint64) {
	if c.opts.PingInterval > 0 {
		wait := 2 * c.opts.PingInterval
		s.ws.SetReadDeadline(time.Now().Add(wait))
		s.ws.SetPongHandler(func(string) error {
			return s.ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, frame, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection lost", zap.Error(err))
			}
			c.dropped(s, epoch)
			return
		}

		env, err := wire.DecodeEnvelope(frame)
		if err != nil {
			c.logger.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		c.dispatch(env.Event, env.Data)
	}
}

func (c *Conn) pingLoop(s *socket) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// dropped handles a socket that died without us closing it.
func (c *Conn) dropped(s *socket, epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.sock != s {
		c.mu.Unlock()
		return
	}
	c.detachLocked()
	s.ws.Close()
	notify := c.setStateLocked(domain.ConnDisconnected)
	token := c.token
	reconnect := c.opts.AutoReconnect && token != ""
	c.mu.Unlock()

	c.logger.Info("disconnected", zap.Bool("reconnect", reconnect))
	notify()

	if reconnect {
		go c.Connect(context.Background(), token)
	}
}

func (c *Conn) dispatch(event string, data []byte) {
	c.mu.Lock()
	hs := c.handlers[event]
	fns := make([]Handler, 0, len(hs))
	for _, id := range sortedKeys(hs) {
		fns = append(fns, hs[id])
	}
	c.mu.Unlock()

	if len(fns) == 0 {
		c.logger.Debug("no handler for event", zap.String("event", event))
		return
	}
	for _, h := range fns {
		h(data)
	}
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
