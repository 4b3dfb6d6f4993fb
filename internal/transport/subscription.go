package transport

import "sync"

// Handler receives the raw JSON data of one inbound event.
type Handler func(data []byte)

// Subscription is a registration handle. Release is idempotent.
type Subscription struct {
	once    sync.Once
	release func()
}

func NewSubscription(release func()) *Subscription {
	return &Subscription{release: release}
}

func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
