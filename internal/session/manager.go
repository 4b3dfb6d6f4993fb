// Package session binds one chat screen to the live connection, the history
// API and the timeline store.
//
// Each open room moves through Idle → Loading → Ready ⇄ LoadingMore → Closed.
// Network failures never surface as returned errors; they land in the room's
// Snapshot as Ready-with-error so the screen can offer a retry. Returned errors
// are reserved for caller bugs such as operating on a room that is not open.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/history"
	"github.com/aebaduq/arabsocial-chat/internal/presence"
	"github.com/aebaduq/arabsocial-chat/internal/transport"
	"github.com/aebaduq/arabsocial-chat/internal/wire"
)

type Transport interface {
	Emit(event string, payload any) bool
	On(event string, h transport.Handler) *transport.Subscription
	OnStateChange(fn func(domain.ConnState)) *transport.Subscription
	State() domain.ConnState
}

type HistoryFetcher interface {
	FetchPage(ctx context.Context, roomID string, page, pageSize int) (history.Page, error)
}

type Timeline interface {
	Seed(roomID string, msgs []domain.Message)
	PrependOlder(roomID string, msgs []domain.Message) int
	AppendLive(roomID string, msg domain.Message) bool
	AppendOptimistic(roomID string, msg domain.Message)
	SetStatus(roomID, clientID string, status domain.DeliveryStatus) error
	Optimistic(roomID, clientID string) (domain.Message, bool)
	Remove(roomID, clientID string) error
	Messages(roomID string) []domain.Message
	Discard(roomID string)
}

// RoomList is the externally owned room list; the manager only asks it to
// refresh.
type RoomList interface {
	Invalidate()
}

type Config struct {
	SelfID      string
	PageSize    int
	MessageType string
	// SendTimeout marks a pending optimistic message failed when no
	// confirmation arrives in time. Zero waits forever.
	SendTimeout time.Duration
	// EmitLeaveRoom sends leave_room on Close. The backend contract does not
	// say whether it expects one, so it is off unless configured.
	EmitLeaveRoom bool
	Typing        presence.Options
}

type Deps struct {
	Transport Transport
	History   HistoryFetcher
	Timeline  Timeline
	Rooms     RoomList            // optional
	OnChange  func(roomID string) // optional; called after session state changes
}

// Snapshot is what a screen renders for one room.
type Snapshot struct {
	RoomID      string
	State       domain.SessionState
	Err         error
	Cursor      domain.Cursor
	Joined      bool
	OtherTyping bool
	Messages    []domain.Message
}

type roomSession struct {
	roomID string
	state  domain.SessionState
	err    error
	cursor domain.Cursor
	live   bool // first page applied and socket handlers subscribed
	joined bool
	subs   []*transport.Subscription
	// pending send timeouts by client id
	pending map[string]*time.Timer
}

type Manager struct {
	cfg       Config
	transport Transport
	history   HistoryFetcher
	timeline  Timeline
	rooms     RoomList
	onChange  func(roomID string)
	typing    *presence.Tracker
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*roomSession
	connSub  *transport.Subscription
}

func NewManager(cfg Config, deps Deps, logger *zap.Logger) *Manager {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.MessageType == "" {
		cfg.MessageType = "text"
	}
	m := &Manager{
		cfg:       cfg,
		transport: deps.Transport,
		history:   deps.History,
		timeline:  deps.Timeline,
		rooms:     deps.Rooms,
		onChange:  deps.OnChange,
		logger:    logger.Named("session"),
		sessions:  make(map[string]*roomSession),
	}
	m.typing = presence.New(cfg.SelfID, deps.Transport, cfg.Typing, func(roomID string, _ bool) {
		m.changed(roomID)
	})
	m.connSub = deps.Transport.OnStateChange(m.onConnState)
	return m
}

// Open starts a session for roomID: first history page, then join_room.
// Opening a room that is already open is a no-op.
func (m *Manager) Open(ctx context.Context, roomID string) error {
	if roomID == "" {
		return domain.ErrEmptyRoomID
	}

	m.mu.Lock()
	if _, ok := m.sessions[roomID]; ok {
		m.mu.Unlock()
		return nil
	}
	s := &roomSession{
		roomID:  roomID,
		state:   domain.SessionLoading,
		cursor:  domain.Cursor{PageSize: m.cfg.PageSize},
		pending: make(map[string]*time.Timer),
	}
	m.sessions[roomID] = s
	m.mu.Unlock()

	m.logger.Debug("opening room", zap.String("room", roomID))
	m.changed(roomID)
	m.loadInitial(ctx, s)
	return nil
}

// Retry repeats whatever failed last: the initial load, or the last older page.
func (m *Manager) Retry(ctx context.Context, roomID string) error {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotOpen
	}
	if s.state != domain.SessionReady || s.err == nil {
		m.mu.Unlock()
		return nil
	}
	if s.live {
		m.mu.Unlock()
		return m.LoadMore(ctx, roomID)
	}
	s.state = domain.SessionLoading
	s.err = nil
	m.mu.Unlock()

	m.changed(roomID)
	m.loadInitial(ctx, s)
	return nil
}

func (m *Manager) loadInitial(ctx context.Context, s *roomSession) {
	page, err := m.history.FetchPage(ctx, s.roomID, 1, m.cfg.PageSize)

	m.mu.Lock()
	if !m.activeLocked(s) {
		m.mu.Unlock()
		m.logger.Debug("discarding first page for closed room", zap.String("room", s.roomID))
		return
	}
	if err != nil {
		s.state = domain.SessionReady
		s.err = err
		m.mu.Unlock()
		m.logger.Warn("initial history load failed", zap.String("room", s.roomID), zap.Error(err))
		m.changed(s.roomID)
		return
	}

	m.timeline.Seed(s.roomID, page.Messages)
	s.cursor = domain.Cursor{Page: 1, PageSize: m.cfg.PageSize, HasMore: page.HasMore()}
	s.state = domain.SessionReady
	s.err = nil
	s.live = true
	s.subs = append(s.subs,
		m.transport.On(wire.EventNewMessage, m.incomingHandler(s)),
		m.transport.On(wire.EventUserTyping, m.typingHandler(s)),
	)
	m.joinLocked(s)
	m.mu.Unlock()

	m.markRead(s.roomID)
	m.changed(s.roomID)
}

// LoadMore fetches the next older page. It does nothing while a page is in
// flight or when the history is exhausted.
func (m *Manager) LoadMore(ctx context.Context, roomID string) error {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotOpen
	}
	if s.state != domain.SessionReady || !s.live || !s.cursor.HasMore {
		m.mu.Unlock()
		return nil
	}
	s.state = domain.SessionLoadingMore
	next := s.cursor.Page + 1
	m.mu.Unlock()
	m.changed(roomID)

	page, err := m.history.FetchPage(ctx, roomID, next, m.cfg.PageSize)

	m.mu.Lock()
	if !m.activeLocked(s) {
		m.mu.Unlock()
		m.logger.Debug("discarding older page for closed room", zap.String("room", roomID), zap.Int("page", next))
		return nil
	}
	if err != nil {
		s.state = domain.SessionReady
		s.err = err
		m.mu.Unlock()
		m.logger.Warn("older history load failed", zap.String("room", roomID), zap.Int("page", next), zap.Error(err))
		m.changed(roomID)
		return nil
	}
	m.timeline.PrependOlder(roomID, page.Messages)
	s.cursor.Page = next
	s.cursor.HasMore = page.HasMore()
	s.state = domain.SessionReady
	s.err = nil
	m.mu.Unlock()

	m.changed(roomID)
	return nil
}

// Send appends text optimistically and emits it. Blank text is ignored.
// When the connection is down the message is kept in the timeline as failed
// instead of being emitted.
func (m *Manager) Send(roomID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotOpen
	}
	clientID := "tmp-" + uuid.NewString()
	msg := domain.Message{
		ID:          clientID,
		ClientID:    clientID,
		RoomID:      roomID,
		SenderID:    m.cfg.SelfID,
		Content:     text,
		MessageType: m.cfg.MessageType,
		CreatedAt:   time.Now().UTC(),
		Status:      domain.StatusPending,
	}
	connected := m.transport.State() == domain.ConnConnected
	if !connected {
		msg.Status = domain.StatusFailed
	}
	m.timeline.AppendOptimistic(roomID, msg)
	if connected {
		m.armSendTimeoutLocked(s, clientID)
	}
	m.mu.Unlock()

	m.typing.StopLocal(roomID)

	if !connected {
		m.logger.Warn("send dropped, not connected", zap.String("room", roomID), zap.String("client_id", clientID))
		return nil
	}
	m.emitMessage(s, msg)
	return nil
}

// Resend emits a failed message again under its original client id.
func (m *Manager) Resend(roomID, clientID string) error {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotOpen
	}
	msg, ok := m.timeline.Optimistic(roomID, clientID)
	if !ok {
		m.mu.Unlock()
		return domain.ErrUnknownMessage
	}
	if msg.Status != domain.StatusFailed {
		m.mu.Unlock()
		return nil
	}
	if m.transport.State() != domain.ConnConnected {
		m.mu.Unlock()
		m.logger.Warn("resend dropped, not connected", zap.String("room", roomID), zap.String("client_id", clientID))
		return nil
	}
	m.timeline.SetStatus(roomID, clientID, domain.StatusPending)
	m.armSendTimeoutLocked(s, clientID)
	m.mu.Unlock()

	m.emitMessage(s, msg)
	return nil
}

// Discard removes an unconfirmed message from the timeline.
func (m *Manager) Discard(roomID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[roomID]
	if !ok {
		return domain.ErrRoomNotOpen
	}
	m.disarmLocked(s, clientID)
	return m.timeline.Remove(roomID, clientID)
}

func (m *Manager) emitMessage(s *roomSession, msg domain.Message) {
	ok := m.transport.Emit(wire.EventSendMessage, wire.SendMessagePayload{
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		MessageType: msg.MessageType,
		Content:     msg.Content,
		ClientID:    msg.ClientID,
	})
	if ok {
		return
	}
	m.logger.Warn("send dropped at emit", zap.String("room", msg.RoomID), zap.String("client_id", msg.ClientID))
	m.markFailed(s, msg.ClientID)
}

func (m *Manager) armSendTimeoutLocked(s *roomSession, clientID string) {
	if m.cfg.SendTimeout <= 0 {
		return
	}
	m.disarmLocked(s, clientID)
	s.pending[clientID] = time.AfterFunc(m.cfg.SendTimeout, func() {
		m.logger.Warn("send timed out", zap.String("room", s.roomID), zap.String("client_id", clientID))
		m.markFailed(s, clientID)
	})
}

func (m *Manager) disarmLocked(s *roomSession, clientID string) {
	if t, ok := s.pending[clientID]; ok {
		t.Stop()
		delete(s.pending, clientID)
	}
}

func (m *Manager) markFailed(s *roomSession, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked(s) {
		return
	}
	m.disarmLocked(s, clientID)
	// The confirmation may have won the race and replaced the entry already.
	if err := m.timeline.SetStatus(s.roomID, clientID, domain.StatusFailed); err != nil {
		m.logger.Debug("no optimistic entry to fail", zap.String("client_id", clientID))
	}
}

// Typing records a local keystroke in roomID.
func (m *Manager) Typing(roomID string) error {
	m.mu.Lock()
	_, ok := m.sessions[roomID]
	m.mu.Unlock()
	if !ok {
		return domain.ErrRoomNotOpen
	}
	m.typing.Keystroke(roomID)
	return nil
}

func (m *Manager) incomingHandler(s *roomSession) transport.Handler {
	return func(data []byte) {
		p, err := wire.DecodeNewMessage(data)
		if err != nil {
			m.logger.Warn("bad new_message payload", zap.Error(err))
			return
		}
		msg := p.Message(domain.OriginLive, "")
		if msg.RoomID != s.roomID {
			return
		}
		m.onIncoming(s, msg)
	}
}

// onIncoming applies one live message: append (or reconcile), acknowledge the
// read, and have the room list refresh.
func (m *Manager) onIncoming(s *roomSession, msg domain.Message) {
	m.mu.Lock()
	if !m.activeLocked(s) {
		m.mu.Unlock()
		return
	}
	if msg.ClientID != "" {
		m.disarmLocked(s, msg.ClientID)
	} else if msg.SenderID == m.cfg.SelfID {
		m.ackUnechoedLocked(s, msg)
	}
	added := m.timeline.AppendLive(s.roomID, msg)
	m.mu.Unlock()

	if !added {
		m.logger.Debug("duplicate live message", zap.String("room", s.roomID), zap.String("id", msg.ID))
		return
	}
	m.markRead(s.roomID)
}

// ackUnechoedLocked covers servers that do not echo clientId: the oldest
// pending local copy with the same content counts as delivered. Both entries
// stay in the timeline.
func (m *Manager) ackUnechoedLocked(s *roomSession, live domain.Message) {
	for _, msg := range m.timeline.Messages(s.roomID) {
		if msg.Optimistic() && msg.Status == domain.StatusPending && msg.Content == live.Content {
			m.disarmLocked(s, msg.ClientID)
			m.timeline.SetStatus(s.roomID, msg.ClientID, domain.StatusSent)
			return
		}
	}
}

func (m *Manager) typingHandler(s *roomSession) transport.Handler {
	return func(data []byte) {
		p, err := wire.DecodeUserTyping(data)
		if err != nil {
			m.logger.Warn("bad user_typing payload", zap.Error(err))
			return
		}
		if p.RoomID != "" && p.RoomID.String() != s.roomID {
			return
		}
		m.mu.Lock()
		active := m.activeLocked(s)
		m.mu.Unlock()
		if !active {
			return
		}
		m.typing.HandleRemote(s.roomID, p.UserID.String(), p.Typing)
	}
}

// joinLocked emits join_room unless the room is already joined on the
// current socket. Emitting under m.mu keeps the first-page path and the
// reconnect path from both joining.
func (m *Manager) joinLocked(s *roomSession) {
	if s.joined || !m.activeLocked(s) {
		return
	}
	s.joined = m.transport.Emit(wire.EventJoinRoom, wire.RoomPayload{RoomID: s.roomID})
	if !s.joined {
		m.logger.Debug("join deferred until connected", zap.String("room", s.roomID))
	}
}

func (m *Manager) markRead(roomID string) {
	m.transport.Emit(wire.EventMarkRead, wire.RoomPayload{RoomID: roomID})
	if m.rooms != nil {
		m.rooms.Invalidate()
	}
}

// onConnState rejoins every live room after the socket (re)connects; the
// server forgets room membership with the old socket.
func (m *Manager) onConnState(state domain.ConnState) {
	var rejoined []string
	m.mu.Lock()
	for _, s := range m.sessions {
		if state != domain.ConnConnected {
			s.joined = false
			continue
		}
		if s.live && !s.joined {
			m.joinLocked(s)
			rejoined = append(rejoined, s.roomID)
		}
	}
	m.mu.Unlock()

	for _, roomID := range rejoined {
		m.changed(roomID)
	}
}

// Close ends the session for roomID: socket handlers are released, pending
// timers stopped and the timeline discarded. Results of fetches still in
// flight are dropped when they arrive.
func (m *Manager) Close(roomID string) {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, roomID)
	s.state = domain.SessionClosed
	subs := s.subs
	s.subs = nil
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	wasLive := s.live
	m.timeline.Discard(roomID)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
	m.typing.StopLocal(roomID)
	m.typing.Forget(roomID)
	if m.cfg.EmitLeaveRoom && wasLive {
		m.transport.Emit(wire.EventLeaveRoom, wire.RoomPayload{RoomID: roomID})
	}
	m.logger.Debug("closed room", zap.String("room", roomID))
	m.changed(roomID)
}

// CloseAll closes every open room.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// Shutdown closes every room and stops following the connection state.
func (m *Manager) Shutdown() {
	m.CloseAll()
	m.connSub.Release()
}

// Snapshot returns the current view of roomID.
func (m *Manager) Snapshot(roomID string) (Snapshot, bool) {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	if !ok {
		m.mu.Unlock()
		return Snapshot{RoomID: roomID, State: domain.SessionIdle}, false
	}
	snap := Snapshot{
		RoomID: roomID,
		State:  s.state,
		Err:    s.err,
		Cursor: s.cursor,
		Joined: s.joined,
	}
	m.mu.Unlock()

	snap.OtherTyping = m.typing.IsOtherTyping(roomID)
	snap.Messages = m.timeline.Messages(roomID)
	return snap, true
}

func (m *Manager) activeLocked(s *roomSession) bool {
	return m.sessions[s.roomID] == s && s.state != domain.SessionClosed
}

func (m *Manager) changed(roomID string) {
	if m.onChange != nil {
		m.onChange(roomID)
	}
}
