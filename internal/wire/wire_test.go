package wire_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/wire"
)

func TestDecodeNewMessage_NumericIDsAndISOTime(t *testing.T) {
	raw := []byte(`{"id":17,"roomId":4,"senderId":"9","content":"salam","createdAt":"2024-05-01T10:02:00.000Z","clientId":"c-1"}`)

	p, err := wire.DecodeNewMessage(raw)
	require.NoError(t, err)

	msg := p.Message(domain.OriginLive, "")
	require.Equal(t, "17", msg.ID)
	require.Equal(t, "4", msg.RoomID)
	require.Equal(t, "9", msg.SenderID)
	require.Equal(t, "c-1", msg.ClientID)
	require.Equal(t, time.Date(2024, 5, 1, 10, 2, 0, 0, time.UTC), msg.CreatedAt)
	require.Equal(t, domain.OriginLive, msg.Origin)
}

func TestDecodeNewMessage_MissingID(t *testing.T) {
	_, err := wire.DecodeNewMessage([]byte(`{"content":"x"}`))
	require.Error(t, err)
}

func TestFlexTime_Epochs(t *testing.T) {
	tests := []struct {
		name string
		json string
		want time.Time
	}{
		{"seconds", `{"id":1,"createdAt":1714557720}`, time.Unix(1714557720, 0).UTC()},
		{"millis", `{"id":1,"createdAt":1714557720123}`, time.UnixMilli(1714557720123).UTC()},
		{"numeric string", `{"id":1,"createdAt":"1714557720"}`, time.Unix(1714557720, 0).UTC()},
		{"null", `{"id":1,"createdAt":null}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := wire.DecodeNewMessage([]byte(tt.json))
			require.NoError(t, err)
			require.True(t, tt.want.Equal(p.CreatedAt.Time), "got %v want %v", p.CreatedAt.Time, tt.want)
		})
	}
}

func TestFlexTime_Garbage(t *testing.T) {
	_, err := wire.DecodeNewMessage([]byte(`{"id":1,"createdAt":"yesterday"}`))
	require.Error(t, err)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	frame, err := wire.EncodeEnvelope(wire.EventJoinRoom, wire.RoomPayload{RoomID: "R1"})
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"join_room","data":{"roomId":"R1"}}`, string(frame))

	env, err := wire.DecodeEnvelope(frame)
	require.NoError(t, err)
	require.Equal(t, wire.EventJoinRoom, env.Event)
	require.JSONEq(t, `{"roomId":"R1"}`, string(env.Data))
}

func TestDecodeEnvelope_MissingEvent(t *testing.T) {
	_, err := wire.DecodeEnvelope([]byte(`{"data":{}}`))
	require.Error(t, err)
}

func TestDecodeUserTyping_OptionalRoom(t *testing.T) {
	p, err := wire.DecodeUserTyping([]byte(`{"userId":12,"typing":true}`))
	require.NoError(t, err)
	require.Equal(t, wire.FlexID("12"), p.UserID)
	require.Empty(t, p.RoomID)
	require.True(t, p.Typing)
}
