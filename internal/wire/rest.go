package wire

import (
	"github.com/aebaduq/arabsocial-chat/internal/domain"
)

// PageMeta is the pagination block of a history response.
type PageMeta struct {
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
	Total    int `json:"total"`
}

// HistoryResponse lists messages newest first.
type HistoryResponse struct {
	Data []MessagePayload `json:"data"`
	Meta PageMeta         `json:"meta"`
}

type RoomSummary struct {
	ID            FlexID   `json:"id"`
	Title         string   `json:"title"`
	MemberCount   int      `json:"memberCount"`
	UnreadCount   int      `json:"unreadCount"`
	LastMessage   string   `json:"lastMessage"`
	LastMessageAt FlexTime `json:"lastMessageAt"`
}

type RoomsResponse struct {
	Data []RoomSummary `json:"data"`
}

// ErrorResponse is the body the backend sends with 4xx/5xx statuses.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Message converts the payload to a domain message. fallbackRoom fills in
// the room for history rows that omit it.
func (p MessagePayload) Message(origin domain.Origin, fallbackRoom string) domain.Message {
	roomID := p.RoomID.String()
	if roomID == "" {
		roomID = fallbackRoom
	}
	return domain.Message{
		ID:          p.ID.String(),
		ClientID:    p.ClientID,
		RoomID:      roomID,
		SenderID:    p.SenderID.String(),
		Content:     p.Content,
		MessageType: p.MessageType,
		CreatedAt:   p.CreatedAt.Time,
		Origin:      origin,
		Status:      domain.StatusSent,
	}
}

func (r RoomSummary) Room() domain.Room {
	return domain.Room{
		ID:          r.ID.String(),
		Title:       r.Title,
		MemberCount: r.MemberCount,
		UnreadCount: r.UnreadCount,
		LastMessage: r.LastMessage,
		LastTime:    r.LastMessageAt.Time,
	}
}
