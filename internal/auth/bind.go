package auth

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Connector is the socket side of the transport.
type Connector interface {
	Connect(ctx context.Context, token string)
	Disconnect()
}

// Bind keeps conn connected with the holder's current token until ctx is
// done: a new token reconnects, a cleared token disconnects. Connect may
// block while dialing, so changes are applied on Bind's goroutine and only
// the latest pending token is kept.
func Bind(ctx context.Context, h *Holder, conn Connector, logger *zap.Logger) error {
	logger = logger.Named("auth")
	changes := make(chan string, 1)
	var pushMu sync.Mutex
	push := func(token string) {
		pushMu.Lock()
		defer pushMu.Unlock()
		select {
		case <-changes:
		default:
		}
		changes <- token
	}

	sub := h.Watch(push)
	defer sub.Release()
	push(h.Token())

	for {
		select {
		case <-ctx.Done():
			conn.Disconnect()
			return nil
		case token := <-changes:
			if token == "" {
				logger.Info("no token, staying disconnected")
				conn.Disconnect()
				continue
			}
			conn.Connect(ctx, token)
		}
	}
}
