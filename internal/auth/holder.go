// Package auth owns the bearer token: where it is persisted, who is told when
// it changes, and how the socket follows it.
package auth

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aebaduq/arabsocial-chat/internal/transport"
)

// Persister stores the token between runs.
type Persister interface {
	Save(token string) error
	Clear() error
}

// Holder is the single source of the current token. It satisfies
// history.TokenSource.
type Holder struct {
	store  Persister
	logger *zap.Logger

	mu       sync.Mutex
	token    string
	nextID   uint64
	watchers map[uint64]func(string)
}

// NewHolder starts with the given token, which is not persisted again. store
// may be nil.
func NewHolder(initial string, store Persister, logger *zap.Logger) *Holder {
	return &Holder{
		token:    strings.TrimSpace(initial),
		store:    store,
		logger:   logger.Named("auth"),
		watchers: make(map[uint64]func(string)),
	}
}

func (h *Holder) Token() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

// Set replaces the token, persists it and notifies watchers. Setting the
// current token again is a no-op.
func (h *Holder) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return h.Clear()
	}

	h.mu.Lock()
	if token == h.token {
		h.mu.Unlock()
		return nil
	}
	h.token = token
	watchers := h.snapshotLocked()
	h.mu.Unlock()

	var err error
	if h.store != nil {
		err = h.store.Save(token)
		if err != nil {
			h.logger.Warn("failed to persist token", zap.Error(err))
		}
	}
	h.logger.Info("token updated")
	notify(watchers, token)
	return err
}

// Clear forgets the token (logout).
func (h *Holder) Clear() error {
	h.mu.Lock()
	if h.token == "" {
		h.mu.Unlock()
		return nil
	}
	h.token = ""
	watchers := h.snapshotLocked()
	h.mu.Unlock()

	var err error
	if h.store != nil {
		err = h.store.Clear()
		if err != nil {
			h.logger.Warn("failed to remove stored token", zap.Error(err))
		}
	}
	h.logger.Info("token cleared")
	notify(watchers, "")
	return err
}

// Watch calls fn with every new token; an empty token means logged out.
func (h *Holder) Watch(fn func(token string)) *transport.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.watchers[id] = fn
	return transport.NewSubscription(func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	})
}

func (h *Holder) snapshotLocked() []func(string) {
	out := make([]func(string), 0, len(h.watchers))
	for _, fn := range h.watchers {
		out = append(out, fn)
	}
	return out
}

func notify(watchers []func(string), token string) {
	for _, fn := range watchers {
		fn(token)
	}
}
