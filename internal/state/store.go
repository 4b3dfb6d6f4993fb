package state

import (
	"sort"
	"sync"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
)

// Store is the in-memory source of truth the UI renders from: the room list
// plus one ordered timeline per open room.
type Store struct {
	mu         sync.RWMutex
	rooms      []domain.Room
	timelines  map[string]*timeline
	activeRoom string
	drawFunc   func()
}

func New(drawFunc func()) *Store {
	return &Store{
		timelines: make(map[string]*timeline),
		drawFunc:  drawFunc,
	}
}

func (s *Store) SetDrawFunc(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawFunc = f
}

func (s *Store) draw() {
	if s.drawFunc != nil {
		s.drawFunc()
	}
}

// Notify triggers a redraw without a store mutation, for state owned elsewhere
// (session state, typing flags, connection state).
func (s *Store) Notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.draw()
}

func (s *Store) SetRooms(rooms []domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms = rooms
	// The active room is being read right now; the server count lags behind
	// the mark_read we already sent.
	for i := range s.rooms {
		if s.rooms[i].ID == s.activeRoom {
			s.rooms[i].UnreadCount = 0
		}
	}
	s.sortRooms()
	s.draw()
}

func (s *Store) MarkRoomRead(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rooms {
		if r.ID == roomID {
			s.rooms[i].UnreadCount = 0
			break
		}
	}
	s.draw()
}

// BumpRoom records a message in the room list: last message preview, and an
// unread increment when the room is not the one being read.
func (s *Store) BumpRoom(msg domain.Message, fromSelf bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rooms {
		if r.ID == msg.RoomID {
			if msg.RoomID != s.activeRoom && !fromSelf {
				s.rooms[i].UnreadCount++
			}
			s.rooms[i].LastMessage = msg.Content
			s.rooms[i].LastTime = msg.CreatedAt
			break
		}
	}
	s.sortRooms()
	s.draw()
}

func (s *Store) sortRooms() {
	sort.SliceStable(s.rooms, func(i, j int) bool {
		return s.rooms[i].LastTime.After(s.rooms[j].LastTime)
	})
}

func (s *Store) Rooms() []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, len(s.rooms))
	copy(out, s.rooms)
	return out
}

func (s *Store) Room(roomID string) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.ID == roomID {
			return r, true
		}
	}
	return domain.Room{}, false
}

func (s *Store) SetActiveRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRoom = roomID
}

func (s *Store) ActiveRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRoom
}
