// Package wire holds the JSON shapes exchanged with the chat backend, both
// over the websocket and over REST.
package wire

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Event names on the websocket.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventMarkRead    = "mark_read"
	EventNewMessage  = "new_message"
	EventUserTyping  = "user_typing"
)

// Envelope is one websocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func EncodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event name")
	}
	return env, nil
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID      string `json:"roomId"`
	SenderID    string `json:"senderId"`
	MessageType string `json:"messageType"`
	Content     string `json:"content"`
	ClientID    string `json:"clientId,omitempty"`
}

type TypingPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// MessagePayload is a persisted message, either delivered live or listed in a
// history page.
type MessagePayload struct {
	ID          FlexID   `json:"id"`
	RoomID      FlexID   `json:"roomId"`
	SenderID    FlexID   `json:"senderId"`
	Content     string   `json:"content"`
	MessageType string   `json:"messageType,omitempty"`
	CreatedAt   FlexTime `json:"createdAt"`
	ClientID    string   `json:"clientId,omitempty"`
}

// UserTypingPayload is the inbound presence signal. RoomID is optional; the
// server only forwards it to members of the room the sender is typing in.
type UserTypingPayload struct {
	UserID FlexID `json:"userId"`
	RoomID FlexID `json:"roomId,omitempty"`
	Typing bool   `json:"typing"`
}

func DecodeNewMessage(data []byte) (MessagePayload, error) {
	var p MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return MessagePayload{}, fmt.Errorf("decode new_message: %w", err)
	}
	if p.ID == "" {
		return MessagePayload{}, fmt.Errorf("decode new_message: missing id")
	}
	return p, nil
}

func DecodeUserTyping(data []byte) (UserTypingPayload, error) {
	var p UserTypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return UserTypingPayload{}, fmt.Errorf("decode user_typing: %w", err)
	}
	return p, nil
}
