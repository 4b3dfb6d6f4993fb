// Package roomlist keeps the room list in the state store current.
package roomlist

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aebaduq/arabsocial-chat/internal/domain"
	"github.com/aebaduq/arabsocial-chat/internal/transport"
	"github.com/aebaduq/arabsocial-chat/internal/wire"
)

type Lister interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
}

type Sink interface {
	SetRooms(rooms []domain.Room)
	BumpRoom(msg domain.Message, fromSelf bool)
	ActiveRoom() string
}

type Subscriber interface {
	On(event string, h transport.Handler) *transport.Subscription
}

// Refresher reloads the room list on demand. Concurrent requests share one
// round trip.
type Refresher struct {
	lister  Lister
	sink    Sink
	selfID  string
	timeout time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

func New(lister Lister, sink Sink, selfID string, logger *zap.Logger) *Refresher {
	return &Refresher{
		lister:  lister,
		sink:    sink,
		selfID:  selfID,
		timeout: 15 * time.Second,
		logger:  logger.Named("roomlist"),
	}
}

// Refresh loads the room list and stores it.
func (r *Refresher) Refresh(ctx context.Context) error {
	_, err, shared := r.group.Do("rooms", func() (any, error) {
		rooms, err := r.lister.ListRooms(ctx)
		if err != nil {
			return nil, err
		}
		r.sink.SetRooms(rooms)
		return nil, nil
	})
	if err != nil {
		r.logger.Warn("room list refresh failed", zap.Error(err))
		return err
	}
	r.logger.Debug("room list refreshed", zap.Bool("shared", shared))
	return nil
}

// Invalidate schedules a refresh in the background.
func (r *Refresher) Invalidate() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.Refresh(ctx)
	}()
}

// Follow bumps rooms in the list as new_message events arrive, so rooms
// other than the open one show fresh previews and unread counts. The
// returned subscription stops it.
func (r *Refresher) Follow(sub Subscriber) *transport.Subscription {
	return sub.On(wire.EventNewMessage, func(data []byte) {
		p, err := wire.DecodeNewMessage(data)
		if err != nil {
			return
		}
		msg := p.Message(domain.OriginLive, "")
		if msg.RoomID == "" {
			msg.RoomID = r.sink.ActiveRoom()
		}
		if msg.RoomID == "" {
			return
		}
		r.sink.BumpRoom(msg, msg.SenderID == r.selfID)
	})
}
