package domain

import "time"

// Origin records how a message entered the timeline.
type Origin int

const (
	OriginHistory Origin = iota
	OriginOptimistic
	OriginLive
)

func (o Origin) String() string {
	switch o {
	case OriginHistory:
		return "history"
	case OriginOptimistic:
		return "optimistic-local"
	case OriginLive:
		return "live-remote"
	default:
		return "unknown"
	}
}

// DeliveryStatus only moves for optimistic messages; everything the server
// delivered is StatusSent.
type DeliveryStatus int

const (
	StatusSent DeliveryStatus = iota
	StatusPending
	StatusFailed
)

type Message struct {
	ID          string // server id, or the client id for optimistic echoes
	ClientID    string // correlation id, set only on locally authored messages
	RoomID      string
	SenderID    string
	Content     string
	MessageType string
	CreatedAt   time.Time
	Origin      Origin
	Status      DeliveryStatus
}

// Optimistic reports whether the message is still a local echo.
func (m Message) Optimistic() bool {
	return m.Origin == OriginOptimistic
}

type Room struct {
	ID          string
	Title       string
	MemberCount int
	UnreadCount int
	LastMessage string
	LastTime    time.Time
}

// Cursor tracks backward pagination for one room.
type Cursor struct {
	Page     int
	PageSize int
	HasMore  bool
}

type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLoading
	SessionReady
	SessionLoadingMore
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionLoading:
		return "loading"
	case SessionReady:
		return "ready"
	case SessionLoadingMore:
		return "loading-more"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}
