package state_test

import (
	"testing"
	"time"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/state"
)

func TestStore_SetRooms(t *testing.T) {
	s := state.New(nil) // nil drawFunc for testing

	rooms := []domain.Room{
		{ID: "1", Title: "Alice", LastTime: time.Now()},
		{ID: "2", Title: "Bob", LastTime: time.Now().Add(-time.Hour)},
	}

	s.SetRooms(rooms)

	got := s.Rooms()
	if len(got) != 2 {
		t.Fatalf("got %d rooms, want 2", len(got))
	}
	if got[0].Title != "Alice" {
		t.Errorf("first room = %q, want Alice", got[0].Title)
	}
}

func TestStore_SetRooms_ActiveRoomStaysRead(t *testing.T) {
	s := state.New(nil)
	s.SetActiveRoom("2")

	s.SetRooms([]domain.Room{
		{ID: "1", UnreadCount: 3},
		{ID: "2", UnreadCount: 5},
	})

	r, ok := s.Room("2")
	if !ok {
		t.Fatal("room 2 missing")
	}
	if r.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0 for the active room", r.UnreadCount)
	}
	if r, _ := s.Room("1"); r.UnreadCount != 3 {
		t.Errorf("UnreadCount = %d, want 3", r.UnreadCount)
	}
}

func TestStore_ActiveRoom(t *testing.T) {
	s := state.New(nil)

	s.SetActiveRoom("42")
	if s.ActiveRoom() != "42" {
		t.Errorf("ActiveRoom = %q, want 42", s.ActiveRoom())
	}
}

func TestStore_BumpRoom_UpdatesRoomList(t *testing.T) {
	s := state.New(nil)

	s.SetRooms([]domain.Room{
		{ID: "1", Title: "Alice"},
		{ID: "2", Title: "Bob"},
	})

	s.BumpRoom(domain.Message{
		ID:        "1",
		RoomID:    "2",
		SenderID:  "bob",
		Content:   "Hey",
		CreatedAt: time.Now(),
	}, false)

	updated := s.Rooms()
	// Bob's room should now be first (most recent) and have unread=1
	if updated[0].ID != "2" {
		t.Errorf("first room ID = %q, want 2 (Bob)", updated[0].ID)
	}
	if updated[0].UnreadCount != 1 {
		t.Errorf("UnreadCount = %d, want 1", updated[0].UnreadCount)
	}
	if updated[0].LastMessage != "Hey" {
		t.Errorf("LastMessage = %q, want Hey", updated[0].LastMessage)
	}
}

func TestStore_BumpRoom_OwnMessageNotUnread(t *testing.T) {
	s := state.New(nil)
	s.SetRooms([]domain.Room{{ID: "1"}})

	s.BumpRoom(domain.Message{RoomID: "1", Content: "mine", CreatedAt: time.Now()}, true)

	if r, _ := s.Room("1"); r.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0", r.UnreadCount)
	}
}

func TestStore_MarkRoomRead(t *testing.T) {
	s := state.New(nil)
	s.SetRooms([]domain.Room{{ID: "1", UnreadCount: 4}})

	s.MarkRoomRead("1")

	if r, _ := s.Room("1"); r.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0", r.UnreadCount)
	}
}

func TestStore_DrawFuncCalled(t *testing.T) {
	draws := 0
	s := state.New(func() { draws++ })

	s.Seed("R1", nil)
	s.AppendLive("R1", domain.Message{ID: "1", CreatedAt: time.Now()})

	if draws != 2 {
		t.Errorf("draws = %d, want 2", draws)
	}
}
