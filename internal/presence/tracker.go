// Package presence tracks typing indicators in both directions: it derives
// whether the other party is typing from socket events, and it emits the
// local user's typing/stop_typing with a debounce.
package presence

import (
	"sync"
	"time"

	"github.com/aebaduq/arabsocial-chat/internal/wire"
)

// Emitter is the fire-and-forget side of the transport.
type Emitter interface {
	Emit(event string, payload any) bool
}

type Options struct {
	// Quiet is how long after the last keystroke stop_typing is emitted.
	Quiet time.Duration
	// Expiry clears a remote typing flag when no follow-up typing event arrives.
	Expiry time.Duration
}

func DefaultOptions() Options {
	return Options{Quiet: 2 * time.Second, Expiry: 5 * time.Second}
}

// Timer callbacks carry the gen they were scheduled under and do nothing if
// it has moved on.
type remoteTyping struct {
	typing bool
	timer  *time.Timer
	gen    uint64
}

type localTyping struct {
	active bool
	timer  *time.Timer
	gen    uint64
}

type Tracker struct {
	selfID   string
	emitter  Emitter
	opts     Options
	onChange func(roomID string, typing bool)

	mu     sync.Mutex
	seq    uint64
	remote map[string]*remoteTyping
	local  map[string]*localTyping
}

// New creates a tracker. onChange, if set, is called whenever a room's remote
// typing flag flips; it runs without the tracker lock held.
func New(selfID string, emitter Emitter, opts Options, onChange func(roomID string, typing bool)) *Tracker {
	return &Tracker{
		selfID:   selfID,
		emitter:  emitter,
		opts:     opts,
		onChange: onChange,
		remote:   make(map[string]*remoteTyping),
		local:    make(map[string]*localTyping),
	}
}

// HandleRemote applies a user_typing event observed in roomID. Events from
// the current user are ignored.
func (t *Tracker) HandleRemote(roomID, userID string, typing bool) {
	if userID == "" || userID == t.selfID {
		return
	}

	t.mu.Lock()
	r, ok := t.remote[roomID]
	if !ok {
		r = &remoteTyping{}
		t.remote[roomID] = r
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	t.seq++
	r.gen = t.seq
	if typing && t.opts.Expiry > 0 {
		gen := r.gen
		r.timer = time.AfterFunc(t.opts.Expiry, func() { t.expire(roomID, gen) })
	}
	changed := r.typing != typing
	r.typing = typing
	t.mu.Unlock()

	if changed {
		t.changed(roomID, typing)
	}
}

func (t *Tracker) expire(roomID string, gen uint64) {
	t.mu.Lock()
	r, ok := t.remote[roomID]
	if !ok || r.gen != gen || !r.typing {
		t.mu.Unlock()
		return
	}
	r.typing = false
	r.timer = nil
	t.mu.Unlock()

	t.changed(roomID, false)
}

func (t *Tracker) changed(roomID string, typing bool) {
	if t.onChange != nil {
		t.onChange(roomID, typing)
	}
}

// IsOtherTyping reports the derived remote typing flag for roomID.
func (t *Tracker) IsOtherTyping(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.remote[roomID]
	return ok && r.typing
}

// Keystroke records local typing in roomID: typing is emitted when the user
// starts, and stop_typing once they have been quiet for Options.Quiet. Every
// keystroke pushes the stop back.
func (t *Tracker) Keystroke(roomID string) {
	t.mu.Lock()
	l, ok := t.local[roomID]
	if !ok {
		l = &localTyping{}
		t.local[roomID] = l
	}
	start := !l.active
	l.active = true
	if l.timer != nil {
		l.timer.Stop()
	}
	t.seq++
	l.gen = t.seq
	gen := l.gen
	l.timer = time.AfterFunc(t.opts.Quiet, func() { t.quiet(roomID, gen) })
	t.mu.Unlock()

	if start {
		t.emitter.Emit(wire.EventTyping, wire.TypingPayload{RoomID: roomID, UserID: t.selfID})
	}
}

func (t *Tracker) quiet(roomID string, gen uint64) {
	t.mu.Lock()
	l, ok := t.local[roomID]
	if !ok || l.gen != gen {
		t.mu.Unlock()
		return
	}
	emit := t.stopLocalLocked(l)
	t.mu.Unlock()

	if emit {
		t.emitStop(roomID)
	}
}

// StopLocal ends local typing in roomID immediately, e.g. on send.
func (t *Tracker) StopLocal(roomID string) {
	t.mu.Lock()
	l, ok := t.local[roomID]
	emit := ok && t.stopLocalLocked(l)
	t.mu.Unlock()

	if emit {
		t.emitStop(roomID)
	}
}

func (t *Tracker) stopLocalLocked(l *localTyping) bool {
	if !l.active {
		return false
	}
	l.active = false
	t.seq++
	l.gen = t.seq
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	return true
}

func (t *Tracker) emitStop(roomID string) {
	t.emitter.Emit(wire.EventStopTyping, wire.TypingPayload{RoomID: roomID, UserID: t.selfID})
}

// Forget stops all timers for roomID and drops its state without emitting.
func (t *Tracker) Forget(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.remote[roomID]; ok {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(t.remote, roomID)
	}
	if l, ok := t.local[roomID]; ok {
		if l.timer != nil {
			l.timer.Stop()
		}
		delete(t.local, roomID)
	}
}
