package state

import (
	"sort"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
)

// timeline keeps one room's messages ordered by CreatedAt. Equal timestamps
// keep insertion order.
type timeline struct {
	msgs []domain.Message
	ids  map[string]struct{} // server-assigned ids only
}

func newTimeline() *timeline {
	return &timeline{ids: make(map[string]struct{})}
}

// insert places msg after every entry with CreatedAt <= msg.CreatedAt.
func (t *timeline) insert(msg domain.Message) {
	i := sort.Search(len(t.msgs), func(i int) bool {
		return t.msgs[i].CreatedAt.After(msg.CreatedAt)
	})
	t.msgs = append(t.msgs, domain.Message{})
	copy(t.msgs[i+1:], t.msgs[i:])
	t.msgs[i] = msg
	if !msg.Optimistic() {
		t.ids[msg.ID] = struct{}{}
	}
}

func (t *timeline) has(id string) bool {
	_, ok := t.ids[id]
	return ok
}

func (t *timeline) findOptimistic(clientID string) int {
	if clientID == "" {
		return -1
	}
	for i, m := range t.msgs {
		if m.Optimistic() && m.ClientID == clientID {
			return i
		}
	}
	return -1
}

func (t *timeline) removeAt(i int) {
	t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
}

func (s *Store) timelineLocked(roomID string) *timeline {
	tl, ok := s.timelines[roomID]
	if !ok {
		tl = newTimeline()
		s.timelines[roomID] = tl
	}
	return tl
}

// Seed replaces the room's timeline with the first history page. Unconfirmed
// local messages already in the room are kept.
func (s *Store) Seed(roomID string, msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := newTimeline()
	for _, m := range msgs {
		if tl.has(m.ID) {
			continue
		}
		tl.insert(m)
	}
	if old, ok := s.timelines[roomID]; ok {
		for _, m := range old.msgs {
			if m.Optimistic() {
				tl.insert(m)
			}
		}
	}
	s.timelines[roomID] = tl
	s.draw()
}

// PrependOlder merges an older history page. Messages already present are
// skipped. Placement is by timestamp, so a page that resolves after live
// messages were appended still lands before them.
func (s *Store) PrependOlder(roomID string, msgs []domain.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineLocked(roomID)
	added := 0
	for _, m := range msgs {
		if tl.has(m.ID) {
			continue
		}
		tl.insert(m)
		added++
	}
	if added > 0 {
		s.draw()
	}
	return added
}

// AppendLive adds a message delivered over the socket. When it echoes the
// client id of a pending optimistic entry, that entry is replaced. It returns
// false if the server id is already in the timeline.
func (s *Store) AppendLive(roomID string, msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelineLocked(roomID)
	if tl.has(msg.ID) {
		return false
	}
	if i := tl.findOptimistic(msg.ClientID); i >= 0 {
		tl.removeAt(i)
	}
	msg.Origin = domain.OriginLive
	msg.Status = domain.StatusSent
	tl.insert(msg)
	s.draw()
	return true
}

// AppendOptimistic adds a locally authored message ahead of confirmation.
func (s *Store) AppendOptimistic(roomID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.Origin = domain.OriginOptimistic
	if msg.ID == "" {
		msg.ID = msg.ClientID
	}
	s.timelineLocked(roomID).insert(msg)
	s.draw()
}

// SetStatus updates the delivery status of an optimistic entry.
func (s *Store) SetStatus(roomID, clientID string, status domain.DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.timelines[roomID]
	if !ok {
		return domain.ErrUnknownMessage
	}
	i := tl.findOptimistic(clientID)
	if i < 0 {
		return domain.ErrUnknownMessage
	}
	if tl.msgs[i].Status == status {
		return nil
	}
	tl.msgs[i].Status = status
	s.draw()
	return nil
}

// Optimistic returns the still-unconfirmed entry with the given client id.
func (s *Store) Optimistic(roomID, clientID string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.timelines[roomID]
	if !ok {
		return domain.Message{}, false
	}
	i := tl.findOptimistic(clientID)
	if i < 0 {
		return domain.Message{}, false
	}
	return tl.msgs[i], true
}

// Remove drops an optimistic entry, e.g. a failed send the user discarded.
func (s *Store) Remove(roomID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.timelines[roomID]
	if !ok {
		return domain.ErrUnknownMessage
	}
	i := tl.findOptimistic(clientID)
	if i < 0 {
		return domain.ErrUnknownMessage
	}
	tl.removeAt(i)
	s.draw()
	return nil
}

// Messages returns a copy of the room's timeline, oldest first.
func (s *Store) Messages(roomID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.timelines[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.Message, len(tl.msgs))
	copy(out, tl.msgs)
	return out
}

// Discard drops the room's timeline when its screen closes.
func (s *Store) Discard(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timelines[roomID]; !ok {
		return
	}
	delete(s.timelines, roomID)
	s.draw()
}
